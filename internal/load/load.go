// Package load copies a committed split output into a SQL table.
//
// The header row names the columns (normalized to SQL identifiers); every
// following row is streamed to the storage backend in batches. Empty values,
// including the format's placeholder, become SQL NULL.
package load

import (
	"context"
	"fmt"
	"iter"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"splitvep/internal/block"
	"splitvep/internal/metrics"
	"splitvep/internal/output"
	"splitvep/internal/sink"
	"splitvep/internal/storage"
)

// Options configures a load.
type Options struct {
	Job        string
	Kind       string // storage kind, e.g. "postgres"
	DSN        string
	Table      string
	AutoCreate bool
	BatchSize  int
	Codec      sink.Codec
	Format     output.Format
}

// Stats summarizes a load.
type Stats struct {
	Columns []string
	Rows    int64
	Batches int64
}

// newRepository is a test seam over storage.New.
var newRepository = storage.New

// File loads the split output at path into opts.Table.
func File(ctx context.Context, path string, opts Options) (st Stats, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordStep(opts.Job, "load", err, time.Since(start))
	}()
	if opts.BatchSize <= 0 {
		return st, fmt.Errorf("load: batch size must be > 0")
	}

	f, err := os.Open(path)
	if err != nil {
		return st, fmt.Errorf("load: open %s: %w", path, err)
	}
	defer f.Close()

	zr, err := sink.NewReader(f, opts.Codec)
	if err != nil {
		return st, fmt.Errorf("load: %s: %w", path, err)
	}
	defer zr.Close()

	next, stop := iter.Pull2(block.Lines(zr))
	defer stop()

	header, err, ok := next()
	if err != nil {
		return st, fmt.Errorf("load: %w", err)
	}
	if !ok || header == "" {
		return st, fmt.Errorf("load: %s: missing header row", path)
	}
	st.Columns = storage.ColumnNames(strings.Split(header, string(opts.Format.Delimiter)))

	repo, err := newRepository(ctx, storage.Config{Kind: opts.Kind, DSN: opts.DSN, Table: opts.Table})
	if err != nil {
		return st, fmt.Errorf("load: init repo: %w", err)
	}
	defer repo.Close()

	if opts.AutoCreate {
		def := storage.TableDef{Table: opts.Table, Columns: st.Columns}
		if err := storage.EnsureTable(ctx, opts.Kind, repo, def); err != nil {
			return st, fmt.Errorf("load: apply DDL: %w", err)
		}
		log.Printf("load: table ensured: %s columns=%d", opts.Table, len(st.Columns))
	}

	g, gctx := errgroup.WithContext(ctx)
	rows := make(chan []any, opts.BatchSize)

	g.Go(func() error {
		defer close(rows)
		line := 1
		for {
			text, err, ok := next()
			if err != nil {
				return fmt.Errorf("load: %w", err)
			}
			if !ok {
				return nil
			}
			line++
			if text == "" {
				continue
			}
			row, err := toRow(opts.Format, text, len(st.Columns))
			if err != nil {
				return fmt.Errorf("load: line %d: %w", line, err)
			}
			select {
			case rows <- row:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	g.Go(func() error {
		bs, err := storage.LoadBatches(gctx, st.Columns, rows, opts.BatchSize, repo.CopyFrom)
		st.Rows, st.Batches = bs.Rows, bs.Batches
		if err != nil {
			return fmt.Errorf("load: copy into %s: %w", opts.Table, err)
		}
		return nil
	})

	err = g.Wait()
	metrics.RecordRow(opts.Job, "loaded", st.Rows)
	metrics.RecordBatches(opts.Job, st.Batches)
	if err != nil {
		return st, err
	}

	log.Printf("load: table=%s rows=%s batches=%d elapsed=%s",
		opts.Table, humanize.Comma(st.Rows), st.Batches, time.Since(start).Truncate(time.Millisecond))
	return st, nil
}

// toRow splits a rendered line into values; empty values become nil.
func toRow(f output.Format, line string, width int) ([]any, error) {
	fields := f.SplitRow(line)
	if len(fields) != width {
		return nil, fmt.Errorf("got %d fields, want %d", len(fields), width)
	}
	row := make([]any, width)
	for i, v := range fields {
		if v != "" {
			row[i] = v
		}
	}
	return row, nil
}
