// Package staging holds the per-block intermediate outputs of a run.
//
// Every block gets its own Artifact, written by exactly one worker and later
// handed to the merger, which streams it into the final output and removes
// it. Artifacts live either under a run-scoped scratch directory (DiskStore)
// or in memory (MemoryStore); both compress with a sink.Codec and carry an
// xxh3 checksum of the uncompressed bytes that is verified on read.
package staging

import (
	"errors"
	"fmt"
	"io"

	"github.com/zeebo/xxh3"
)

// ErrChecksum is returned when an artifact read back does not match the
// checksum recorded when it was written.
var ErrChecksum = errors.New("staging: checksum mismatch")

// Artifact is a committed, read-only block output.
type Artifact interface {
	// Index is the block index the artifact belongs to.
	Index() int
	// Size is the number of uncompressed bytes.
	Size() int64
	// Open returns the uncompressed content. Reading to EOF verifies the
	// checksum and yields ErrChecksum on mismatch.
	Open() (io.ReadCloser, error)
	// Remove releases the artifact's storage.
	Remove() error
}

// Writer accepts a block's rows. Exactly one of Commit or Abort must be
// called.
type Writer interface {
	io.Writer
	Commit() (Artifact, error)
	Abort() error
}

// Store creates artifacts for one run.
type Store interface {
	// Create starts the artifact for the given block index.
	Create(index int) (Writer, error)
	// Close removes whatever the run left behind. It is safe to call after
	// every artifact has been removed.
	Close() error
}

// checksum tracks the uncompressed size and xxh3 digest of a stream.
type checksum struct {
	h *xxh3.Hasher
	n int64
}

func newChecksum() *checksum { return &checksum{h: xxh3.New()} }

func (c *checksum) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return c.h.Write(p)
}

// verifyReader hashes everything read through it and checks the digest and
// length once the underlying reader reports EOF.
type verifyReader struct {
	rc    io.ReadCloser
	sum   *checksum
	want  uint64
	size  int64
	index int
}

func newVerifyReader(rc io.ReadCloser, index int, want uint64, size int64) *verifyReader {
	return &verifyReader{rc: rc, sum: newChecksum(), want: want, size: size, index: index}
}

func (v *verifyReader) Read(p []byte) (int, error) {
	n, err := v.rc.Read(p)
	if n > 0 {
		_, _ = v.sum.Write(p[:n])
	}
	if errors.Is(err, io.EOF) {
		if got := v.sum.h.Sum64(); got != v.want || v.sum.n != v.size {
			return n, fmt.Errorf("%w: block %d: got %016x/%d bytes, want %016x/%d bytes",
				ErrChecksum, v.index, got, v.sum.n, v.want, v.size)
		}
	}
	return n, err
}

func (v *verifyReader) Close() error { return v.rc.Close() }

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
