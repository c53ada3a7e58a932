// Package block splits a VCF stream into index-tagged blocks, transforms the
// blocks concurrently into staging artifacts and merges the artifacts back in
// input order.
package block

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log"
	"strings"

	"splitvep/internal/vcf"
)

// DefaultSize is the number of data lines per block when none is configured.
const DefaultSize = 100_000

const readBufSize = 1 << 20

// Block is a contiguous run of data lines. Indices are dense, start at 0 and
// follow input order.
type Block struct {
	Index int
	Lines []string
}

// Lines yields the lines of r with their terminator ("\n" or "\r\n")
// removed. A final line without terminator is yielded as well. Every string
// is freshly allocated, so a block may keep the lines it is handed.
func Lines(r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		br := bufio.NewReaderSize(r, readBufSize)
		for {
			line, err := br.ReadString('\n')
			if len(line) > 0 {
				line = strings.TrimSuffix(line, "\n")
				line = strings.TrimSuffix(line, "\r")
				if !yield(line, nil) {
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					yield("", fmt.Errorf("read input: %w", err))
				}
				return
			}
		}
	}
}

// PartitionOptions controls how lines are grouped.
type PartitionOptions struct {
	Tag  string // annotation INFO tag, default vcf.DefaultTag
	Size int    // data lines per block, default DefaultSize
}

// PartitionStats counts what the partitioner saw.
type PartitionStats struct {
	Lines         int64 // lines read, headers included
	HeaderLines   int64
	Blank         int64 // empty lines, skipped
	SchemaMissing int64 // data lines before the declaration, skipped
	Blocks        int64 // blocks dispatched
}

// Dispatch receives every sealed block together with the schema in effect.
// Returning an error stops partitioning.
type Dispatch func(schema vcf.Schema, b Block) error

// Partition reads lines, extracts the annotation schema from the first
// declaration line and dispatches data lines in blocks of opts.Size.
//
// The returned schema is nil when the input held no declaration; callers turn
// that into vcf.ErrNoSchema. A malformed declaration is a fatal error.
func Partition(ctx context.Context, lines iter.Seq2[string, error], opts PartitionOptions, dispatch Dispatch) (vcf.Schema, PartitionStats, error) {
	tag := opts.Tag
	if tag == "" {
		tag = vcf.DefaultTag
	}
	size := opts.Size
	if size <= 0 {
		size = DefaultSize
	}

	var (
		st     PartitionStats
		schema vcf.Schema
		next   int
		buf    = make([]string, 0, size)
	)

	seal := func() error {
		b := Block{Index: next, Lines: buf}
		next++
		st.Blocks++
		buf = make([]string, 0, size)
		return dispatch(schema, b)
	}

	for line, err := range lines {
		if err != nil {
			return schema, st, err
		}
		st.Lines++
		if st.Lines%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return schema, st, err
			}
		}

		if vcf.IsHeader(line) {
			st.HeaderLines++
			if !vcf.IsDeclaration(line, tag) {
				continue
			}
			if schema != nil {
				log.Printf("partition: ignoring repeated %s declaration at line %d", tag, st.Lines)
				continue
			}
			s, err := vcf.ParseDeclaration(line, tag)
			if err != nil {
				return nil, st, fmt.Errorf("line %d: %w", st.Lines, err)
			}
			schema = s
			log.Printf("partition: found %s declaration fields=%d line=%d", tag, schema.Len(), st.Lines)
			continue
		}

		if line == "" {
			st.Blank++
			continue
		}
		if schema == nil {
			st.SchemaMissing++
			continue
		}

		buf = append(buf, line)
		if len(buf) >= size {
			if err := seal(); err != nil {
				return schema, st, err
			}
		}
	}

	if len(buf) > 0 {
		if err := seal(); err != nil {
			return schema, st, err
		}
	}
	return schema, st, nil
}
