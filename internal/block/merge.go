package block

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"splitvep/internal/staging"
)

// ErrMissingBlock is returned when the artifacts handed to Merge do not form
// a dense index range starting at 0.
var ErrMissingBlock = errors.New("block: missing block")

const copyBufSize = 1 << 20

// Merge streams artifacts into dst strictly by ascending index and removes
// each one once it has been copied. It returns the number of bytes written.
//
// Artifacts may be passed in any order. A gap or duplicate in the indices,
// or a checksum mismatch while reading, aborts the merge.
func Merge(ctx context.Context, artifacts []staging.Artifact, dst io.Writer) (int64, error) {
	sorted := make([]staging.Artifact, len(artifacts))
	copy(sorted, artifacts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index() < sorted[j].Index() })

	for i, a := range sorted {
		if a.Index() != i {
			return 0, fmt.Errorf("%w: want index %d, have %d", ErrMissingBlock, i, a.Index())
		}
	}

	var (
		total int64
		buf   = make([]byte, copyBufSize)
	)
	for _, a := range sorted {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := copyArtifact(a, dst, buf)
		total += n
		if err != nil {
			return total, err
		}
		if err := a.Remove(); err != nil {
			return total, err
		}
	}
	return total, nil
}

func copyArtifact(a staging.Artifact, dst io.Writer, buf []byte) (int64, error) {
	rc, err := a.Open()
	if err != nil {
		return 0, err
	}
	n, err := io.CopyBuffer(dst, rc, buf)
	cerr := rc.Close()
	if err != nil {
		return n, fmt.Errorf("merge block %d: %w", a.Index(), err)
	}
	if cerr != nil {
		return n, fmt.Errorf("merge block %d: %w", a.Index(), cerr)
	}
	return n, nil
}
