package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrRangeUnsupported is returned when the server cannot serve byte ranges for a URL.
var ErrRangeUnsupported = errors.New("byte ranges not supported")

// RangeReader exposes a remote object as io.ReaderAt + io.Seeker using HTTP range requests,
// so random-access decoders can read only the parts of a file they need.
type RangeReader struct {
	client *Client
	ctx    context.Context
	url    string
	size   int64
	pos    int64
}

// NewRangeReader probes url with HEAD and returns a reader when the server advertises
// byte-range support and a content length.
func (c *Client) NewRangeReader(ctx context.Context, url string) (*RangeReader, error) {
	resp, err := c.do(ctx, http.MethodHead, url, nil, c.catalogTimeout)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()

	if !strings.EqualFold(resp.Header.Get("Accept-Ranges"), "bytes") || resp.ContentLength <= 0 {
		return nil, ErrRangeUnsupported
	}
	return &RangeReader{client: c, ctx: ctx, url: url, size: resp.ContentLength}, nil
}

// Size returns the object length in bytes.
func (r *RangeReader) Size() int64 { return r.size }

// ReadAt implements io.ReaderAt with one ranged GET per call.
func (r *RangeReader) ReadAt(p []byte, off int64) (int, error) {
	if off >= r.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	end := off + int64(len(p)) - 1
	if end >= r.size {
		end = r.size - 1
	}

	header := http.Header{}
	header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, end))
	resp, err := r.client.do(r.ctx, http.MethodGet, r.url, header, r.client.downloadTimeout)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		return 0, fmt.Errorf("range request to %s: %w (status %d)", r.url, ErrRangeUnsupported, resp.StatusCode)
	}

	want := int(end - off + 1)
	n, err := io.ReadFull(resp.Body, p[:want])
	if err != nil {
		return n, err
	}
	if want < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Seek implements io.Seeker.
func (r *RangeReader) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = r.pos + offset
	case io.SeekEnd:
		abs = r.size + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("negative position")
	}
	r.pos = abs
	return abs, nil
}
