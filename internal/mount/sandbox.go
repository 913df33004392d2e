package mount

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/0-chirag-s/sitecrafter/api"
)

// ErrUnsafeName is returned when a descriptor entry cannot be written as a
// single path element.
var ErrUnsafeName = errors.New("unsafe entry name")

// Sandbox consumes mount descriptors. The caller does not inspect anything
// beyond the returned error.
type Sandbox interface {
	Mount(ctx context.Context, desc *api.Descriptor) error
}

// SandboxFunc adapts a function to Sandbox.
type SandboxFunc func(ctx context.Context, desc *api.Descriptor) error

func (f SandboxFunc) Mount(ctx context.Context, desc *api.Descriptor) error { return f(ctx, desc) }

// Discard is a Sandbox that accepts and drops every descriptor.
var Discard Sandbox = SandboxFunc(func(context.Context, *api.Descriptor) error { return nil })

// Options controls how descriptors are written to a filesystem.
type Options struct {
	// FormatGo runs gofumpt over .go file contents before writing.
	FormatGo bool
	// Logger receives warnings for skipped entries. Nil uses slog.Default().
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// FSSandbox materialises each mounted descriptor onto a billy filesystem
// (memfs for an in-process sandbox, osfs for a directory on disk).
type FSSandbox struct {
	FS      billy.Filesystem
	Options Options
}

func NewFSSandbox(fs billy.Filesystem, opts Options) *FSSandbox {
	return &FSSandbox{FS: fs, Options: opts}
}

// Mount implements Sandbox.
func (s *FSSandbox) Mount(ctx context.Context, desc *api.Descriptor) error {
	return Materialize(ctx, s.FS, desc, s.Options)
}

// Materialize writes desc into fs. Directories are created even when empty;
// existing files are overwritten. Nothing is deleted. Entries whose names
// cannot be written as a single path element are skipped, along with
// anything beneath them, and reported wrapping ErrUnsafeName once the rest
// of the descriptor is written.
func Materialize(ctx context.Context, fs billy.Filesystem, desc *api.Descriptor, opts Options) error {
	var skipped []error
	skip := func(err error) {
		opts.logger().Warn("skipping descriptor entry", "error", err)
		skipped = append(skipped, err)
	}
	if err := materializeDir(ctx, fs, "", desc, opts, skip); err != nil {
		return err
	}
	return errors.Join(skipped...)
}

func materializeDir(ctx context.Context, fs billy.Filesystem, dir string, desc *api.Descriptor, opts Options, skip func(error)) error {
	return desc.Each(func(name string, e *api.Entry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := checkName(name); err != nil {
			skip(fmt.Errorf("materialize %q under %q: %w", name, dir, err))
			return nil
		}
		p := name
		if dir != "" {
			p = fs.Join(dir, name)
		}

		switch {
		case e.IsDir():
			if err := fs.MkdirAll(p, 0o755); err != nil {
				return fmt.Errorf("mkdir %s: %w", p, err)
			}
			return materializeDir(ctx, fs, p, e.Directory, opts, skip)
		case e != nil && e.File != nil:
			data := []byte(e.File.Contents)
			if opts.FormatGo {
				data = FormatSource(p, data)
			}
			if err := util.WriteFile(fs, p, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", p, err)
			}
			return nil
		default:
			return fmt.Errorf("materialize %s: entry is neither directory nor file", p)
		}
	})
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return ErrUnsafeName
	}
	return nil
}

// Tee mounts every descriptor into each sandbox in order. All sandboxes are
// tried; their errors are joined.
func Tee(sbs ...Sandbox) Sandbox {
	return SandboxFunc(func(ctx context.Context, desc *api.Descriptor) error {
		var errs []error
		for _, sb := range sbs {
			if err := sb.Mount(ctx, desc); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
