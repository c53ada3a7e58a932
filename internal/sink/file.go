package sink

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const writeBufSize = 1 << 20 // 1 MiB

// File is a compressed file written through a temporary sibling and moved
// into place by Commit. Until Commit succeeds the destination path is never
// touched, so an aborted run leaves no partial output behind.
//
// Callers must end every File with Commit or Abort; calling Abort after a
// successful Commit is a no-op, so `defer f.Abort()` is always safe.
type File struct {
	path string
	tmp  *os.File
	bw   *bufio.Writer
	zw   io.WriteCloser
	n    int64
	done bool
}

// Create opens a new compressed file that will land at path on Commit.
func Create(path string, c Codec) (*File, error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("sink: create %s: %w", path, err)
	}
	bw := bufio.NewWriterSize(tmp, writeBufSize)
	zw, err := NewWriter(bw, c)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, err
	}
	return &File{path: path, tmp: tmp, bw: bw, zw: zw}, nil
}

// Path returns the final destination path.
func (f *File) Path() string { return f.path }

// Written returns the number of uncompressed bytes accepted so far.
func (f *File) Written() int64 { return f.n }

// Write appends p to the compressed stream.
func (f *File) Write(p []byte) (int, error) {
	if f.done {
		return 0, os.ErrClosed
	}
	n, err := f.zw.Write(p)
	f.n += int64(n)
	return n, err
}

// Commit flushes the compressor, closes the temporary file and renames it to
// the destination. On failure the temporary file is removed.
func (f *File) Commit() error {
	if f.done {
		return os.ErrClosed
	}
	f.done = true

	err := f.zw.Close()
	if err == nil {
		err = f.bw.Flush()
	}
	if cerr := f.tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(f.tmp.Name(), f.path)
	}
	if err != nil {
		_ = os.Remove(f.tmp.Name())
		return fmt.Errorf("sink: commit %s: %w", f.path, err)
	}
	return nil
}

// Abort discards everything written and removes the temporary file.
func (f *File) Abort() error {
	if f.done {
		return nil
	}
	f.done = true
	err := errors.Join(f.zw.Close(), f.tmp.Close())
	if rerr := os.Remove(f.tmp.Name()); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
		err = errors.Join(err, rerr)
	}
	return err
}
