package staging

import (
	"bytes"
	"fmt"
	"io"
	"sync/atomic"

	"splitvep/internal/sink"
)

// MemoryStore keeps compressed artifacts in memory. It suits small inputs
// and tests; a run's peak memory grows with the compressed output size.
type MemoryStore struct {
	codec sink.Codec
	live  atomic.Int64 // compressed bytes currently held
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an in-memory store using codec.
func NewMemoryStore(codec sink.Codec) *MemoryStore {
	return &MemoryStore{codec: codec}
}

// Live returns the compressed bytes held by artifacts not yet removed.
func (s *MemoryStore) Live() int64 { return s.live.Load() }

func (s *MemoryStore) Create(index int) (Writer, error) {
	w := &memWriter{store: s, index: index, sum: newChecksum()}
	zw, err := sink.NewWriter(&w.buf, s.codec)
	if err != nil {
		return nil, fmt.Errorf("staging: block %d: %w", index, err)
	}
	w.zw = zw
	return w, nil
}

// Close is a no-op; removed artifacts already released their buffers.
func (s *MemoryStore) Close() error { return nil }

type memWriter struct {
	store *MemoryStore
	index int
	buf   bytes.Buffer
	zw    io.WriteCloser
	sum   *checksum
}

func (w *memWriter) Write(p []byte) (int, error) {
	n, err := w.zw.Write(p)
	_, _ = w.sum.Write(p[:n])
	return n, err
}

func (w *memWriter) Commit() (Artifact, error) {
	if err := w.zw.Close(); err != nil {
		return nil, fmt.Errorf("staging: block %d: %w", w.index, err)
	}
	data := w.buf.Bytes()
	w.store.live.Add(int64(len(data)))
	return &memArtifact{
		store: w.store,
		data:  data,
		index: w.index,
		sum:   w.sum.h.Sum64(),
		size:  w.sum.n,
	}, nil
}

func (w *memWriter) Abort() error {
	_ = w.zw.Close()
	w.buf = bytes.Buffer{}
	return nil
}

type memArtifact struct {
	store   *MemoryStore
	data    []byte
	index   int
	sum     uint64
	size    int64
	removed bool
}

func (a *memArtifact) Index() int  { return a.index }
func (a *memArtifact) Size() int64 { return a.size }

func (a *memArtifact) Open() (io.ReadCloser, error) {
	if a.removed {
		return nil, fmt.Errorf("staging: block %d already removed", a.index)
	}
	if a.size == 0 {
		return io.NopCloser(eofReader{}), nil
	}
	zr, err := sink.NewReader(bytes.NewReader(a.data), a.store.codec)
	if err != nil {
		return nil, fmt.Errorf("staging: block %d: %w", a.index, err)
	}
	return newVerifyReader(zr, a.index, a.sum, a.size), nil
}

func (a *memArtifact) Remove() error {
	if !a.removed {
		a.store.live.Add(-int64(len(a.data)))
		a.data = nil
		a.removed = true
	}
	return nil
}
