package staging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"splitvep/internal/sink"
)

// DiskStore keeps artifacts as compressed files in a directory created for
// the run, so names never collide with other runs sharing the scratch dir.
type DiskStore struct {
	dir   string
	codec sink.Codec
}

var _ Store = (*DiskStore)(nil)

// NewDiskStore creates a fresh run directory under scratchDir.
func NewDiskStore(scratchDir string, codec sink.Codec) (*DiskStore, error) {
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	dir, err := os.MkdirTemp(scratchDir, "splitvep-*")
	if err != nil {
		return nil, fmt.Errorf("staging: create run dir in %s: %w", scratchDir, err)
	}
	return &DiskStore{dir: dir, codec: codec}, nil
}

// Dir returns the run directory.
func (s *DiskStore) Dir() string { return s.dir }

// Path returns the artifact path for a block index.
func (s *DiskStore) Path(index int) string {
	name := fmt.Sprintf("block-%08d", index)
	if ext := s.codec.Ext(); ext != "" {
		name += "." + ext
	}
	return filepath.Join(s.dir, name)
}

// Create starts the artifact file for index.
func (s *DiskStore) Create(index int) (Writer, error) {
	path := s.Path(index)
	f, err := sink.Create(path, s.codec)
	if err != nil {
		return nil, fmt.Errorf("staging: block %d: %w", index, err)
	}
	return &diskWriter{f: f, sum: newChecksum(), index: index, codec: s.codec}, nil
}

// Close removes the run directory and anything still in it.
func (s *DiskStore) Close() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("staging: remove %s: %w", s.dir, err)
	}
	return nil
}

type diskWriter struct {
	f     *sink.File
	sum   *checksum
	index int
	codec sink.Codec
}

func (w *diskWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	_, _ = w.sum.Write(p[:n])
	return n, err
}

func (w *diskWriter) Commit() (Artifact, error) {
	if err := w.f.Commit(); err != nil {
		return nil, fmt.Errorf("staging: block %d: %w", w.index, err)
	}
	return &diskArtifact{
		path:  w.f.Path(),
		codec: w.codec,
		index: w.index,
		sum:   w.sum.h.Sum64(),
		size:  w.sum.n,
	}, nil
}

func (w *diskWriter) Abort() error { return w.f.Abort() }

type diskArtifact struct {
	path  string
	codec sink.Codec
	index int
	sum   uint64
	size  int64
}

func (a *diskArtifact) Index() int  { return a.index }
func (a *diskArtifact) Size() int64 { return a.size }

func (a *diskArtifact) Open() (io.ReadCloser, error) {
	if a.size == 0 {
		// Nothing was written; skip the decoder entirely.
		if _, err := os.Stat(a.path); err != nil {
			return nil, fmt.Errorf("staging: open block %d: %w", a.index, err)
		}
		return io.NopCloser(eofReader{}), nil
	}
	f, err := os.Open(a.path)
	if err != nil {
		return nil, fmt.Errorf("staging: open block %d: %w", a.index, err)
	}
	zr, err := sink.NewReader(f, a.codec)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("staging: block %d: %w", a.index, err)
	}
	return newVerifyReader(&fileReader{ReadCloser: zr, f: f}, a.index, a.sum, a.size), nil
}

func (a *diskArtifact) Remove() error {
	if err := os.Remove(a.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("staging: remove block %d: %w", a.index, err)
	}
	return nil
}

// fileReader closes both the decompressor and the file beneath it.
type fileReader struct {
	io.ReadCloser
	f *os.File
}

func (r *fileReader) Close() error {
	return errors.Join(r.ReadCloser.Close(), r.f.Close())
}
