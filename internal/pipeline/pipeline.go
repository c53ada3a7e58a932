// Package pipeline runs one split end to end:
//
//	source → partitioner → worker pool → staging artifacts → (join) → merger → sink
//
// The partitioner reads the input once, finds the annotation declaration and
// hands fixed-size blocks of data lines to the pool. Each worker renders its
// block into a private staging artifact. Once every block is done, the
// merger writes the header row followed by the artifacts in block order into
// the compressed output, which is only moved into place when everything
// succeeded.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dustin/go-humanize"

	"splitvep/internal/block"
	"splitvep/internal/datasource"
	"splitvep/internal/metrics"
	"splitvep/internal/output"
	"splitvep/internal/sink"
	"splitvep/internal/staging"
	"splitvep/internal/vcf"
)

// Staging kinds.
const (
	StagingDisk   = "disk"
	StagingMemory = "memory"
)

// Options configures a run.
type Options struct {
	Job        string
	Tag        string // annotation INFO tag, default vcf.DefaultTag
	Format     output.Format
	Codec      sink.Codec // output compression
	OutputPath string

	BlockSize    int
	Workers      int
	ScratchDir   string
	Staging      string // StagingDisk (default) or StagingMemory
	StagingCodec sink.Codec

	// ProgressEvery logs a progress line every N dispatched blocks when
	// Verbose is set. 0 disables it.
	ProgressEvery int
	Verbose       bool
}

// Stats is the end-of-run summary.
type Stats struct {
	Lines         int64
	HeaderLines   int64
	Blank         int64
	Records       int64
	ShortRecords  int64
	SchemaMissing int64
	NoAnnotation  int64
	Entries       int64
	Repaired      int64
	Dropped       int64
	Rows          int64
	Blocks        int64
	Fields        int   // schema width
	Bytes         int64 // uncompressed bytes written, header included
	Elapsed       time.Duration
}

// newStore is a test seam over the staging constructors.
var newStore = func(opts Options) (staging.Store, error) {
	switch opts.Staging {
	case StagingMemory:
		return staging.NewMemoryStore(opts.StagingCodec), nil
	case "", StagingDisk:
		return staging.NewDiskStore(opts.ScratchDir, opts.StagingCodec)
	default:
		return nil, fmt.Errorf("unknown staging kind %q", opts.Staging)
	}
}

// Run splits the input opened from src into opts.OutputPath.
//
// On any failure the output path is left untouched and every staging
// artifact is removed before Run returns.
func Run(ctx context.Context, src datasource.Source, opts Options) (st Stats, err error) {
	start := time.Now()
	defer func() {
		st.Elapsed = time.Since(start)
		metrics.RecordStep(opts.Job, "split", err, st.Elapsed)
	}()

	in, err := src.Open(ctx)
	if err != nil {
		return st, fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	// Created up front so an unwritable destination fails before any work.
	out, err := sink.Create(opts.OutputPath, opts.Codec)
	if err != nil {
		return st, fmt.Errorf("create output: %w", err)
	}
	defer out.Abort()

	store, err := newStore(opts)
	if err != nil {
		return st, fmt.Errorf("scratch: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			log.Printf("staging: cleanup: %v", cerr)
		}
	}()

	pool := block.NewPool(ctx, store, block.PoolOptions{
		Workers: opts.Workers,
		Tag:     opts.Tag,
		Format:  opts.Format,
	})

	var dispatched int64
	dispatch := func(schema vcf.Schema, b block.Block) error {
		if err := pool.Submit(schema, b); err != nil {
			return err
		}
		dispatched += int64(len(b.Lines))
		if opts.Verbose && opts.ProgressEvery > 0 && (b.Index+1)%opts.ProgressEvery == 0 {
			log.Printf("partition: blocks=%d lines=%s elapsed=%s",
				b.Index+1, humanize.Comma(dispatched), time.Since(start).Truncate(time.Millisecond))
		}
		return nil
	}

	partStart := time.Now()
	schema, pst, perr := block.Partition(pool.Context(), block.Lines(in), block.PartitionOptions{
		Tag:  opts.Tag,
		Size: opts.BlockSize,
	}, dispatch)
	artifacts, wst, werr := pool.Wait()
	metrics.RecordStep(opts.Job, "transform", errors.Join(perr, werr), time.Since(partStart))

	st.fill(pst, wst)
	// A worker failure cancels the partitioner, so its error is the cause.
	if werr != nil {
		return st, fmt.Errorf("transform: %w", werr)
	}
	if perr != nil {
		return st, fmt.Errorf("partition: %w", perr)
	}
	if schema == nil {
		return st, vcf.ErrNoSchema
	}
	st.Fields = schema.Len()

	mergeStart := time.Now()
	n, err := merge(ctx, opts.Format.Header(schema), artifacts, out)
	metrics.RecordStep(opts.Job, "merge", err, time.Since(mergeStart))
	if err != nil {
		return st, err
	}
	st.Bytes = n

	if err := out.Commit(); err != nil {
		return st, fmt.Errorf("commit output: %w", err)
	}

	recordStats(opts.Job, st)
	return st, nil
}

// merge writes the header row and then every artifact in block order.
// Artifacts left over on failure go with the store.
func merge(ctx context.Context, header []byte, artifacts []staging.Artifact, out *sink.File) (int64, error) {
	if _, err := out.Write(header); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}
	n, err := block.Merge(ctx, artifacts, out)
	if err != nil {
		return 0, fmt.Errorf("merge: %w", err)
	}
	log.Printf("merge: blocks=%d bytes=%s", len(artifacts), humanize.Bytes(uint64(n)))
	return int64(len(header)) + n, nil
}

func (st *Stats) fill(p block.PartitionStats, w block.Stats) {
	st.Lines = p.Lines
	st.HeaderLines = p.HeaderLines
	st.Blank = p.Blank
	st.SchemaMissing = p.SchemaMissing
	st.Blocks = p.Blocks
	st.ShortRecords = w.ShortRecords
	st.Records = w.Decode.Records
	st.NoAnnotation = w.Decode.NoAnnotation
	st.Entries = w.Decode.Entries
	st.Repaired = w.Decode.Repaired
	st.Dropped = w.Decode.Dropped
	st.Rows = w.Decode.Rows
}

func recordStats(job string, st Stats) {
	for kind, v := range map[string]int64{
		"lines":          st.Lines,
		"records":        st.Records,
		"short_records":  st.ShortRecords,
		"schema_missing": st.SchemaMissing,
		"no_annotation":  st.NoAnnotation,
		"entries":        st.Entries,
		"repaired":       st.Repaired,
		"dropped":        st.Dropped,
		"rows":           st.Rows,
	} {
		metrics.RecordRow(job, kind, v)
	}
	metrics.RecordBlocks(job, st.Blocks)
}
