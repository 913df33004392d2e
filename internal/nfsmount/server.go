package nfsmount

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"runtime"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	nfs "github.com/willscott/go-nfs"
	nfshelper "github.com/willscott/go-nfs/helpers"
)

// handleCacheSize bounds the NFS file-handle cache.
const handleCacheSize = 4096

// Server exports a billy filesystem over NFSv3.
type Server struct {
	ln   net.Listener
	port int
	done chan struct{}
}

// NewServer starts an NFS server on addr (":0" for an ephemeral port)
// backed by fs. Serve errors after Close are not reported.
func NewServer(fs billy.Filesystem, addr string, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("nfs listen on %s: %w", addr, err)
	}
	s := &Server{ln: ln, port: ln.Addr().(*net.TCPAddr).Port, done: make(chan struct{})}

	h := nfshelper.NewCachingHandler(nfshelper.NewNullAuthHandler(fs), handleCacheSize)
	go s.serve(h, logger)
	logger.Info("nfs export ready", "addr", ln.Addr().String())
	return s, nil
}

func (s *Server) serve(h nfs.Handler, logger *slog.Logger) {
	defer close(s.done)
	err := nfs.Serve(s.ln, h)
	if err != nil && !errors.Is(err, net.ErrClosed) {
		logger.Error("nfs serve loop exited", "port", s.port, "error", err)
	}
}

func (s *Server) Port() int              { return s.port }
func (s *Server) Done() <-chan struct{} { return s.done }

// Close stops accepting connections; Done fires once the loop returns.
func (s *Server) Close() error { return s.ln.Close() }

// mountFlavor holds the per-OS NFSv3 client options. go-nfs has no lock
// manager, so locking stays client-local on both.
type mountFlavor struct {
	base     string
	readOnly string
}

var mountFlavors = map[string]mountFlavor{
	"darwin": {base: "vers=3,tcp,locallocks,noresvport", readOnly: "rdonly"},
	"linux":  {base: "vers=3,tcp,local_lock=all,nolock", readOnly: "ro"},
}

// mountOptions builds the -o argument for mount(8) on goos.
func mountOptions(goos string, port int, writable bool) (string, error) {
	fl, ok := mountFlavors[goos]
	if !ok {
		return "", fmt.Errorf("nfs mount not supported on %s", goos)
	}
	opts := []string{fmt.Sprintf("port=%d", port), fmt.Sprintf("mountport=%d", port), fl.base}
	if !writable {
		opts = append(opts, fl.readOnly)
	}
	return strings.Join(opts, ","), nil
}

// Mount attaches the server on port at mountpoint via sudo mount.
func Mount(port int, mountpoint string, writable bool) error {
	opts, err := mountOptions(runtime.GOOS, port, writable)
	if err != nil {
		return err
	}
	return runMountCmd("sudo", "mount", "-t", "nfs", "-o", opts, "localhost:/", mountpoint)
}

// Unmount detaches mountpoint. On macOS diskutil is tried first since it
// works without sudo for user mounts.
func Unmount(mountpoint string) error {
	if runtime.GOOS == "darwin" && exec.Command("diskutil", "unmount", mountpoint).Run() == nil {
		return nil
	}
	return runMountCmd("sudo", "umount", mountpoint)
}

func runMountCmd(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}
