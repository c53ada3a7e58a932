// Package datasource defines where the pipeline reads its input from.
package datasource

import (
	"context"
	"io"
)

// Source opens a fresh stream of decompressed input bytes.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
