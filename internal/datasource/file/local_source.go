// Package file implements a local filesystem-backed data source.
package file

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"splitvep/internal/sink"
)

const readBufSize = 1 << 20 // 1 MiB, matching typical BGZF block batches

// Stdin is the path that selects standard input.
const Stdin = "-"

// Local is a filesystem data source. Compressed input (gzip, BGZF, zstd) is
// detected by its magic bytes and decompressed transparently.
type Local struct {
	path  string
	stdin io.Reader
}

// NewLocal returns a new Local data source bound to path. "-" reads stdin.
func NewLocal(path string) *Local { return &Local{path: path, stdin: os.Stdin} }

// Path returns the configured path.
func (l *Local) Path() string { return l.path }

// Open opens the configured path and returns the decompressed stream.
//
// Behavior:
//   - A canceled context returns its error without touching the filesystem.
//   - Filesystem errors are wrapped with the path and keep errors.Is support
//     (e.g. os.ErrNotExist).
//   - Closing the returned reader closes the decompressor and the file.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var (
		raw    io.Reader
		closer io.Closer = io.NopCloser(nil)
	)
	if l.path == Stdin {
		raw = l.stdin
	} else {
		f, err := os.Open(l.path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", l.path, err)
		}
		adviseSequential(f)
		raw, closer = f, f
	}

	br := bufio.NewReaderSize(raw, readBufSize)
	codec := sink.Sniff(br)
	zr, err := sink.NewReader(br, codec)
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return &stream{ReadCloser: zr, under: closer}, nil
}

// stream closes the decompressor first and then the file beneath it.
type stream struct {
	io.ReadCloser
	under io.Closer
}

func (s *stream) Close() error {
	return errors.Join(s.ReadCloser.Close(), s.under.Close())
}
