// Package tabular opens remote resources and reads them as ordered row batches.
// Two strategies share the Reader contract: whole-file columnar decoding and
// incremental delimited-text decoding with an encoding fallback.
package tabular

import (
	"context"
	"fmt"
	"io"

	"earapi/internal/apperr"
	"earapi/internal/config"
	"earapi/internal/fetch"
	"earapi/internal/metrics"
	"earapi/internal/model"
	"earapi/internal/storage"
)

// Reader yields the rows of one resource in source order.
// Next returns io.EOF after the last batch. Close must be called on every path.
type Reader interface {
	Schema() *Schema
	Next() (Batch, error)
	Close() error
}

// Fetcher is the transport the readers pull resource bytes through.
type Fetcher interface {
	Open(ctx context.Context, url string) (io.ReadCloser, error)
	Download(ctx context.Context, url string) ([]byte, error)
	NewRangeReader(ctx context.Context, url string) (*fetch.RangeReader, error)
}

// Opener creates Readers for resource URLs.
type Opener struct {
	fetcher Fetcher
	cfg     config.ReaderConfig
	mirror  storage.Storage
	prefix  string
	metrics *metrics.Pipeline
}

// Option configures an Opener.
type Option func(*Opener)

// WithMirror keeps downloaded columnar resources in s under prefix.
func WithMirror(s storage.Storage, prefix string) Option {
	return func(o *Opener) {
		o.mirror = s
		o.prefix = prefix
	}
}

// WithMetrics records reader fallbacks on m.
func WithMetrics(m *metrics.Pipeline) Option {
	return func(o *Opener) {
		o.metrics = m
	}
}

// NewOpener returns an Opener reading through f.
func NewOpener(f Fetcher, cfg config.ReaderConfig, opts ...Option) *Opener {
	if cfg.ChunkRows < 1 {
		cfg.ChunkRows = 10000
	}
	if cfg.Separator == 0 {
		cfg.Separator = ';'
	}
	o := &Opener{fetcher: f, cfg: cfg}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Open starts reading url with the strategy for format.
func (o *Opener) Open(ctx context.Context, url string, format model.Format) (Reader, error) {
	switch format {
	case model.FormatColumnar:
		return o.openColumnar(ctx, url)
	case model.FormatCSV:
		return o.openDelimited(ctx, url)
	default:
		return nil, apperr.New(apperr.ErrDecode, fmt.Sprintf("unsupported resource format %q", format))
	}
}
