package httpds

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"splitvep/internal/sink"
)

const readBufSize = 1 << 20

// Remote is a datasource.Source reading from a URL. Compressed bodies (gzip,
// BGZF, zstd) are detected by their magic bytes, as for local files.
type Remote struct {
	url    string
	client *Client
}

// NewRemote returns a Remote for url using client.
func NewRemote(url string, client *Client) *Remote {
	return &Remote{url: url, client: client}
}

// URL returns the configured URL.
func (r *Remote) URL() string { return r.url }

// Open starts the download and returns the decompressed body.
func (r *Remote) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := r.client.Get(ctx, r.url)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReaderSize(resp.Body, readBufSize)
	zr, err := sink.NewReader(br, sink.Sniff(br))
	if err != nil {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("httpds: %s: %w", r.url, err)
	}
	return &body{ReadCloser: zr, under: resp.Body}, nil
}

type body struct {
	io.ReadCloser
	under io.Closer
}

func (b *body) Close() error {
	return errors.Join(b.ReadCloser.Close(), b.under.Close())
}
