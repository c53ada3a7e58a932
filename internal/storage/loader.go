package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dustin/go-humanize"
)

// CopyFn inserts rows aligned to columns and reports how many were inserted.
// Repository.CopyFrom satisfies it.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// BatchStats summarizes a LoadBatches call.
type BatchStats struct {
	Rows    int64
	Batches int64
}

// LoadBatches drains rows from in, groups them into batches of batchSize and
// calls copyFn for each non-empty batch. It returns when in is closed, on the
// first copy error, or when ctx is canceled.
//
// Rows are handed to copyFn as-is; a batch slice is reused after copyFn
// returns, so copyFn must not retain it.
func LoadBatches(
	ctx context.Context,
	columns []string,
	in <-chan []any,
	batchSize int,
	copyFn CopyFn,
) (BatchStats, error) {
	var st BatchStats
	if batchSize <= 0 {
		return st, fmt.Errorf("storage: batchSize must be > 0")
	}
	if copyFn == nil {
		return st, fmt.Errorf("storage: copyFn must not be nil")
	}

	var (
		batch     = make([][]any, 0, batchSize)
		start     = time.Now()
		lastFlush = start
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, batch)
		st.Rows += n
		batch = batch[:0]
		if err != nil {
			log.Printf("loader: copy failed batch=%d inserted=%d total=%d err=%v", st.Batches+1, n, st.Rows, err)
			return err
		}

		st.Batches++
		now := time.Now()
		since := now.Sub(lastFlush)
		rps := float64(0)
		if since > 0 {
			rps = float64(n) / since.Seconds()
		}
		log.Printf("loader: batch=%d rows/s=%s inserted=%d total=%s elapsed=%s",
			st.Batches, humanize.Comma(int64(rps)), n, humanize.Comma(st.Rows),
			now.Sub(start).Truncate(time.Millisecond))
		lastFlush = now
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return st, ctx.Err()

		case row, ok := <-in:
			if !ok {
				if err := flush(); err != nil {
					return st, err
				}
				return st, nil
			}
			batch = append(batch, row)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return st, err
				}
			}
		}
	}
}
