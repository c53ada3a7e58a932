package storage

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoadBatches_Basic(t *testing.T) {
	t.Parallel()

	in := make(chan []any, 8)
	for i := 0; i < 7; i++ {
		in <- []any{"chr1", i}
	}
	close(in)

	var calls int32
	copyFn := func(_ context.Context, cols []string, rows [][]any) (int64, error) {
		atomic.AddInt32(&calls, 1)
		if len(cols) != 2 {
			t.Errorf("columns = %v", cols)
		}
		return int64(len(rows)), nil
	}

	st, err := LoadBatches(context.Background(), []string{"chrom", "pos"}, in, 3, copyFn)
	if err != nil {
		t.Fatalf("LoadBatches: %v", err)
	}
	if st.Rows != 7 || st.Batches != 3 {
		t.Fatalf("stats = %+v, want 7 rows in 3 batches", st)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("copyFn calls = %d, want 3 (3+3+1)", got)
	}
}

func TestLoadBatches_ErrorPropagation(t *testing.T) {
	t.Parallel()

	in := make(chan []any, 5)
	for i := 0; i < 5; i++ {
		in <- []any{i}
	}
	close(in)

	wantErr := errors.New("copy failed")
	var batches int
	copyFn := func(_ context.Context, _ []string, rows [][]any) (int64, error) {
		batches++
		if batches == 2 {
			return 0, wantErr
		}
		return int64(len(rows)), nil
	}

	st, err := LoadBatches(context.Background(), []string{"c"}, in, 2, copyFn)
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if st.Rows != 2 || st.Batches != 1 || batches != 2 {
		t.Fatalf("stats = %+v after %d calls; want 2 rows, 1 batch, 2 calls", st, batches)
	}
}

func TestLoadBatches_BadArgs(t *testing.T) {
	t.Parallel()

	in := make(chan []any)
	if _, err := LoadBatches(context.Background(), nil, in, 0, func(context.Context, []string, [][]any) (int64, error) { return 0, nil }); err == nil {
		t.Fatal("expected error for batchSize 0")
	}
	if _, err := LoadBatches(context.Background(), nil, in, 1, nil); err == nil {
		t.Fatal("expected error for nil copyFn")
	}
}

func TestLoadBatches_ContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan []any, 1)
	in <- []any{1}

	copyFn := func(ctx context.Context, _ []string, rows [][]any) (int64, error) {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(2 * time.Second):
			return int64(len(rows)), nil
		}
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := LoadBatches(ctx, []string{"c"}, in, 2, copyFn)
		errCh <- err
	}()

	cancel()
	close(in)

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected cancellation error, got nil")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("LoadBatches did not return after context cancel")
	}
}
