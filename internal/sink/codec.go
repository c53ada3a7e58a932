// Package sink provides the compressed, append-only byte destinations used
// for staging artifacts and for the final output, plus the matching readers.
package sink

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec names a compression container.
type Codec string

const (
	Gzip Codec = "gzip"
	Zstd Codec = "zstd"
	LZ4  Codec = "lz4"
	None Codec = "none"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// ParseCodec resolves a codec name; "" means gzip.
func ParseCodec(s string) (Codec, error) {
	switch Codec(strings.ToLower(strings.TrimSpace(s))) {
	case "", Gzip, "gz":
		return Gzip, nil
	case Zstd, "zst":
		return Zstd, nil
	case LZ4:
		return LZ4, nil
	case None, "plain":
		return None, nil
	default:
		return "", fmt.Errorf("sink: unknown codec %q", s)
	}
}

// Ext returns the conventional file suffix without the dot ("" for None).
func (c Codec) Ext() string {
	switch c {
	case Gzip:
		return "gz"
	case Zstd:
		return "zst"
	case LZ4:
		return "lz4"
	default:
		return ""
	}
}

// nopWriteCloser adapts an io.Writer for the None codec.
type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewWriter wraps w with the codec's compressor. Closing the returned writer
// flushes the compressed stream but does not close w.
//
// Output is deterministic: the gzip header carries no name or timestamp.
func NewWriter(w io.Writer, c Codec) (io.WriteCloser, error) {
	switch c {
	case Gzip, "":
		return gzip.NewWriterLevel(w, gzip.DefaultCompression)
	case Zstd:
		// One encoder per writer; concurrency comes from running many writers.
		return zstd.NewWriter(w,
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithEncoderConcurrency(1),
		)
	case LZ4:
		return lz4.NewWriter(w), nil
	case None:
		return nopWriteCloser{w}, nil
	default:
		return nil, fmt.Errorf("sink: unknown codec %q", c)
	}
}

// NewReader wraps r with the codec's decompressor. Gzip input may consist of
// several members (BGZF); all of them are read.
func NewReader(r io.Reader, c Codec) (io.ReadCloser, error) {
	switch c {
	case Gzip, "":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("sink: gzip reader: %w", err)
		}
		return zr, nil
	case Zstd:
		zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("sink: zstd reader: %w", err)
		}
		return zr.IOReadCloser(), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case None:
		return io.NopCloser(r), nil
	default:
		return nil, fmt.Errorf("sink: unknown codec %q", c)
	}
}

// Sniff peeks at the first bytes of br and reports the container they start.
// Nothing is consumed.
func Sniff(br *bufio.Reader) Codec {
	head, _ := br.Peek(len(zstdMagic))
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return Gzip
	case bytes.HasPrefix(head, zstdMagic):
		return Zstd
	case bytes.HasPrefix(head, lz4Magic):
		return LZ4
	default:
		return None
	}
}
