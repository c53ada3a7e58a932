package block

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"splitvep/internal/output"
	"splitvep/internal/staging"
	"splitvep/internal/vcf"
)

// flushSize is how many rendered bytes a worker buffers before handing them
// to its staging writer.
const flushSize = 256 << 10

// Test seams. Both run on the worker goroutine.
var (
	onBlockStart func(index int)
	onBlockDone  func(index int)
)

// Stats aggregates per-block worker counts.
type Stats struct {
	ShortRecords int64 // lines with fewer than vcf.MinColumns columns
	Decode       vcf.DecodeStats
	Bytes        int64 // rendered bytes staged
}

// Add folds o into s.
func (s *Stats) Add(o Stats) {
	s.ShortRecords += o.ShortRecords
	s.Decode.Add(o.Decode)
	s.Bytes += o.Bytes
}

// PoolOptions configures a Pool.
type PoolOptions struct {
	Workers int // concurrent blocks, default runtime.NumCPU()
	Tag     string
	Format  output.Format
}

// Pool transforms blocks concurrently, each into its own staging artifact.
//
// Submit blocks while Workers blocks are in flight, which bounds the number
// of blocks held in memory. Wait is the join barrier: it returns the
// committed artifacts, or the first error after removing every artifact the
// run created.
type Pool struct {
	g     *errgroup.Group
	ctx   context.Context
	store staging.Store
	opts  PoolOptions

	mu        sync.Mutex
	artifacts []staging.Artifact
	stats     Stats
}

// NewPool returns a Pool whose workers stop when ctx is canceled or any
// block fails.
func NewPool(ctx context.Context, store staging.Store, opts PoolOptions) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	return &Pool{g: g, ctx: gctx, store: store, opts: opts}
}

// Context is canceled as soon as a block fails. Producers should stop
// reading input once it is done.
func (p *Pool) Context() context.Context { return p.ctx }

// Submit schedules b for transformation. It waits for a free worker slot and
// returns the pool's context error if the run was already canceled.
func (p *Pool) Submit(schema vcf.Schema, b Block) error {
	if err := p.ctx.Err(); err != nil {
		return err
	}
	p.g.Go(func() error { return p.process(schema, b) })
	return nil
}

// Wait blocks until every submitted block finished. On failure all artifacts
// committed so far are removed and the first error is returned.
func (p *Pool) Wait() ([]staging.Artifact, Stats, error) {
	err := p.g.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		var rmErr error
		for _, a := range p.artifacts {
			rmErr = errors.Join(rmErr, a.Remove())
		}
		p.artifacts = nil
		if rmErr != nil {
			return nil, p.stats, errors.Join(err, rmErr)
		}
		return nil, p.stats, err
	}
	return p.artifacts, p.stats, nil
}

func (p *Pool) process(schema vcf.Schema, b Block) (err error) {
	if onBlockStart != nil {
		onBlockStart(b.Index)
	}

	w, err := p.store.Create(b.Index)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = w.Abort()
		}
	}()

	var st Stats
	dec := vcf.NewDecoder(schema, p.opts.Tag)
	buf := make([]byte, 0, flushSize+4096)
	emit := func(r vcf.Row) { buf = p.opts.Format.AppendRow(buf, r) }

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		n, err := w.Write(buf)
		st.Bytes += int64(n)
		buf = buf[:0]
		if err != nil {
			return fmt.Errorf("block %d: stage rows: %w", b.Index, err)
		}
		return nil
	}

	for i, line := range b.Lines {
		if i%1024 == 0 {
			if err := p.ctx.Err(); err != nil {
				return err
			}
		}
		rec, ok := vcf.ParseRecord(line)
		if !ok {
			st.ShortRecords++
			continue
		}
		dec.Decode(rec, emit)
		if len(buf) >= flushSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	a, err := w.Commit()
	if err != nil {
		return err
	}
	st.Decode = dec.Stats

	p.mu.Lock()
	p.artifacts = append(p.artifacts, a)
	p.stats.Add(st)
	p.mu.Unlock()

	if onBlockDone != nil {
		onBlockDone(b.Index)
	}
	return nil
}
