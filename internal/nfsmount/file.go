package nfsmount

import (
	"fmt"
	"io"
)

// buffer is an in-memory byte slice with a cursor, shared by both file kinds.
type buffer struct {
	data []byte
	off  int64
}

func (b *buffer) Read(p []byte) (int, error) {
	n, err := b.ReadAt(p, b.off)
	b.off += int64(n)
	return n, err
}

func (b *buffer) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *buffer) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = b.off
	case io.SeekEnd:
		base = int64(len(b.data))
	default:
		return b.off, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if base+offset < 0 {
		return b.off, fmt.Errorf("seek: negative position %d", base+offset)
	}
	b.off = base + offset
	return b.off, nil
}

func (b *buffer) resize(size int64) {
	if size <= int64(len(b.data)) {
		b.data = b.data[:size]
		return
	}
	b.data = append(b.data, make([]byte, size-int64(len(b.data)))...)
}

func (b *buffer) Lock() error   { return nil }
func (b *buffer) Unlock() error { return nil }

// snapshotFile serves content captured when the file was opened. Later
// tree changes are not visible through it.
type snapshotFile struct {
	name string
	buffer
}

func (f *snapshotFile) Name() string              { return f.name }
func (f *snapshotFile) Write([]byte) (int, error) { return 0, errReadOnly }
func (f *snapshotFile) Truncate(int64) error      { return errReadOnly }
func (f *snapshotFile) Close() error              { return nil }

// editFile collects NFS WRITE RPCs for one existing file and hands the
// final content to commit on Close.
type editFile struct {
	path string
	buffer
	dirty  bool // set by Write only, never by Truncate
	commit EditFunc
}

func (f *editFile) Name() string { return f.path }

func (f *editFile) Write(p []byte) (int, error) {
	end := f.off + int64(len(p))
	if end > int64(len(f.data)) {
		f.resize(end)
	}
	n := copy(f.data[f.off:], p)
	f.off += int64(n)
	f.dirty = true
	return n, nil
}

// Truncate does not mark the file dirty: a SETATTR(size=0) reaches us as
// Truncate+Close ahead of the WRITEs, and committing then would blank the
// file.
func (f *editFile) Truncate(size int64) error {
	if size < 0 {
		return fmt.Errorf("truncate %s: negative size", f.path)
	}
	f.resize(size)
	return nil
}

// Close commits the content if anything was written.
func (f *editFile) Close() error {
	if !f.dirty || f.commit == nil {
		return nil
	}
	f.dirty = false
	if err := f.commit(f.path, f.data); err != nil {
		return fmt.Errorf("edit %s: %w", f.path, err)
	}
	return nil
}
