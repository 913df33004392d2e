package nfsmount

import (
	"os"
	"time"

	"github.com/0-chirag-s/sitecrafter/internal/tree"
)

const (
	dirMode      = os.ModeDir | 0o555
	readOnlyMode = os.FileMode(0o444)
	editMode     = os.FileMode(0o644)
)

// nodeInfo is the os.FileInfo handed to go-nfs. Every entry carries the
// export start time since the tree does not track modification times.
type nodeInfo struct {
	name string
	size int64
	mode os.FileMode
	at   time.Time
}

func (i nodeInfo) Name() string       { return i.name }
func (i nodeInfo) Size() int64        { return i.size }
func (i nodeInfo) Mode() os.FileMode  { return i.mode }
func (i nodeInfo) ModTime() time.Time { return i.at }
func (i nodeInfo) IsDir() bool        { return i.mode.IsDir() }
func (i nodeInfo) Sys() any           { return nil }

func (fs *TreeFS) dirInfo(name string) os.FileInfo {
	return nodeInfo{name: name, mode: dirMode, at: fs.started}
}

func (fs *TreeFS) descriptorInfo() os.FileInfo {
	return nodeInfo{
		name: descriptorFile[1:],
		size: int64(len(fs.descriptorJSON())),
		mode: readOnlyMode,
		at:   fs.started,
	}
}

func (fs *TreeFS) infoFor(n tree.Node) os.FileInfo {
	if n.IsDir() {
		return fs.dirInfo(n.Name)
	}
	mode := readOnlyMode
	if fs.writable() {
		mode = editMode
	}
	return nodeInfo{name: n.Name, size: int64(len(n.Content)), mode: mode, at: fs.started}
}
