// Package nfsmount exports a live project tree over NFSv3 through
// willscott/go-nfs. TreeFS is the billy.Filesystem view of a tree.
package nfsmount

import (
	"encoding/json"
	"errors"
	"os"
	"path"
	"strings"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"

	"github.com/0-chirag-s/sitecrafter/internal/mount"
	"github.com/0-chirag-s/sitecrafter/internal/tree"
)

var (
	errReadOnly = errors.New("read-only filesystem")
	errIsDir    = errors.New("is a directory")
	errNotDir   = errors.New("not a directory")
)

// descriptorFile is a virtual file at the export root that renders the
// current mount descriptor as JSON.
const descriptorFile = "/_mount.json"

const writeFlags = os.O_WRONLY | os.O_RDWR | os.O_CREATE | os.O_TRUNC

// EditFunc commits new content for an existing file. path has no leading slash.
type EditFunc func(path string, content []byte) error

// TreeFS exposes a tree as a billy.Filesystem. Reads always see the latest
// tree. Writes are accepted only for files that already exist and only
// after SetEditor.
type TreeFS struct {
	tree    tree.Reader
	started time.Time
	edit    EditFunc
}

func NewTreeFS(t tree.Reader) *TreeFS {
	return &TreeFS{tree: t, started: time.Now()}
}

// SetEditor enables writes. fn runs when a written file is closed.
func (fs *TreeFS) SetEditor(fn EditFunc) {
	fs.edit = fn
}

func (fs *TreeFS) writable() bool { return fs.edit != nil }

// lookupFile resolves name to a file node, rejecting folders.
func (fs *TreeFS) lookupFile(op, name string) (tree.Node, error) {
	n, err := fs.tree.Get(treePath(name))
	if err != nil {
		return tree.Node{}, pathErr(op, name, os.ErrNotExist)
	}
	if n.IsDir() {
		return tree.Node{}, pathErr(op, name, errIsDir)
	}
	return n, nil
}

// Create succeeds only for existing files since the export never adds
// paths to the tree. go-nfs closes the result immediately and delivers
// content through OpenFile.
func (fs *TreeFS) Create(filename string) (billy.File, error) {
	if !fs.writable() {
		return nil, errReadOnly
	}
	name := cleanPath(filename)
	n, err := fs.tree.Get(treePath(name))
	if err != nil {
		return nil, pathErr("create", name, os.ErrPermission)
	}
	if n.IsDir() {
		return nil, pathErr("create", name, errIsDir)
	}
	return &snapshotFile{name: name}, nil
}

func (fs *TreeFS) Open(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDONLY, 0)
}

func (fs *TreeFS) OpenFile(filename string, flag int, _ os.FileMode) (billy.File, error) {
	name := cleanPath(filename)
	if flag&writeFlags != 0 {
		return fs.openForEdit(name, flag)
	}
	if name == descriptorFile {
		return &snapshotFile{name: path.Base(name), buffer: buffer{data: fs.descriptorJSON()}}, nil
	}
	n, err := fs.lookupFile("open", name)
	if err != nil {
		return nil, err
	}
	return &snapshotFile{name: name, buffer: buffer{data: []byte(n.Content)}}, nil
}

func (fs *TreeFS) openForEdit(name string, flag int) (billy.File, error) {
	switch {
	case !fs.writable():
		return nil, errReadOnly
	case name == descriptorFile:
		return nil, pathErr("open", name, errReadOnly)
	}
	n, err := fs.lookupFile("open", name)
	if err != nil {
		return nil, err
	}
	f := &editFile{path: treePath(name), commit: fs.edit}
	if flag&os.O_TRUNC == 0 {
		f.data = []byte(n.Content)
	}
	return f, nil
}

func (fs *TreeFS) Stat(filename string) (os.FileInfo, error) { return fs.Lstat(filename) }

// Lstat has no symlinks to resolve, so it is Stat.
func (fs *TreeFS) Lstat(filename string) (os.FileInfo, error) {
	name := cleanPath(filename)
	switch name {
	case "/":
		return fs.dirInfo("/"), nil
	case descriptorFile:
		return fs.descriptorInfo(), nil
	}
	n, err := fs.tree.Get(treePath(name))
	if err != nil {
		return nil, pathErr("lstat", name, os.ErrNotExist)
	}
	return fs.infoFor(n), nil
}

// ReadDir lists a folder in tree order.
func (fs *TreeFS) ReadDir(dirname string) ([]os.FileInfo, error) {
	name := cleanPath(dirname)
	if name == "/" {
		return fs.rootInfos(), nil
	}
	children, err := fs.tree.List(treePath(name))
	switch {
	case errors.Is(err, tree.ErrNotAFolder):
		return nil, pathErr("readdir", name, errNotDir)
	case err != nil:
		return nil, pathErr("readdir", name, os.ErrNotExist)
	}

	out := make([]os.FileInfo, 0, len(children))
	for _, c := range children {
		out = append(out, fs.infoFor(c))
	}
	return out, nil
}

// rootInfos lists the descriptor file first, then the top-level nodes.
// A root folder named "" is left out since no billy path reaches it.
func (fs *TreeFS) rootInfos() []os.FileInfo {
	out := []os.FileInfo{fs.descriptorInfo()}
	for _, r := range fs.tree.Roots() {
		if r.Name == "" {
			continue
		}
		out = append(out, fs.infoFor(r))
	}
	return out
}

// The tree has no renames, deletions or links.

func (fs *TreeFS) Rename(_, _ string) error                 { return errReadOnly }
func (fs *TreeFS) Remove(string) error                      { return errReadOnly }
func (fs *TreeFS) MkdirAll(string, os.FileMode) error       { return errReadOnly }
func (fs *TreeFS) Symlink(_, _ string) error                { return billy.ErrNotSupported }
func (fs *TreeFS) Readlink(string) (string, error)          { return "", billy.ErrNotSupported }
func (fs *TreeFS) TempFile(_, _ string) (billy.File, error) { return nil, billy.ErrNotSupported }

func (fs *TreeFS) Join(elem ...string) string { return path.Join(elem...) }
func (fs *TreeFS) Root() string               { return "/" }

func (fs *TreeFS) Chroot(dir string) (billy.Filesystem, error) {
	return chroot.New(fs, dir), nil
}

func (fs *TreeFS) Capabilities() billy.Capability {
	c := billy.ReadCapability | billy.SeekCapability
	if fs.writable() {
		c |= billy.WriteCapability
	}
	return c
}

func (fs *TreeFS) descriptorJSON() []byte {
	raw, err := json.MarshalIndent(mount.ProjectTree(fs.tree), "", "  ")
	if err != nil {
		return nil
	}
	return append(raw, '\n')
}

func pathErr(op, name string, err error) error {
	return &os.PathError{Op: op, Path: name, Err: err}
}

// cleanPath turns any billy path into a clean absolute one.
func cleanPath(p string) string {
	return path.Clean("/" + p)
}

// treePath strips the leading slash off a cleaned path.
func treePath(p string) string {
	return strings.TrimPrefix(p, "/")
}

var (
	_ billy.Filesystem = (*TreeFS)(nil)
	_ billy.Capable    = (*TreeFS)(nil)
	_ billy.File       = (*snapshotFile)(nil)
	_ billy.File       = (*editFile)(nil)
)
