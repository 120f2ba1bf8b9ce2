package tabular

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"earapi/internal/apperr"
	"earapi/internal/logging"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// errInvalidUTF8 triggers the Latin-1 restart.
var errInvalidUTF8 = errors.New("invalid utf-8")

type delimitedReader struct {
	ctx    context.Context
	opener *Opener
	url    string

	body   io.ReadCloser
	csv    *csv.Reader
	schema *Schema
	latin1 bool
	// records counts data records already turned into rows, so a restart can skip them.
	records int
	done    bool
}

func (o *Opener) openDelimited(ctx context.Context, url string) (Reader, error) {
	r := &delimitedReader{ctx: ctx, opener: o, url: url}
	if err := r.start(false); err != nil {
		if !errors.Is(err, errInvalidUTF8) {
			return nil, err
		}
		if err := r.restartLatin1(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// start opens the resource and reads the header.
func (r *delimitedReader) start(latin1 bool) error {
	body, err := r.opener.fetcher.Open(r.ctx, r.url)
	if err != nil {
		return err
	}
	r.body = body
	r.latin1 = latin1

	br := bufio.NewReader(body)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}
	var src io.Reader = br
	if latin1 {
		src = charmap.ISO8859_1.NewDecoder().Reader(br)
	}

	cr := csv.NewReader(src)
	cr.Comma = r.opener.cfg.Separator
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	r.csv = cr

	header, err := cr.Read()
	if err != nil {
		r.closeBody()
		if errors.Is(err, io.EOF) {
			return apperr.New(apperr.ErrDecode, "delimited resource has no header")
		}
		return r.readError(err)
	}
	if !latin1 && !validUTF8(header) {
		r.closeBody()
		return errInvalidUTF8
	}
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = strings.TrimSpace(h)
	}
	r.schema = NewSchema(cols)
	return nil
}

// restartLatin1 reopens the resource under ISO-8859-1 and skips rows already produced.
func (r *delimitedReader) restartLatin1() error {
	logging.FromContext(r.ctx).Warn("resource is not valid utf-8, retrying as latin-1", "url", r.url, "rows_read", r.records)
	r.opener.metrics.ReaderFallback("latin1")

	r.closeBody()
	if err := r.start(true); err != nil {
		return err
	}
	for i := 0; i < r.records; i++ {
		if _, err := r.csv.Read(); err != nil {
			r.closeBody()
			if errors.Is(err, io.EOF) {
				return apperr.New(apperr.ErrDecode, "resource changed during encoding retry")
			}
			return r.readError(err)
		}
	}
	return nil
}

func (r *delimitedReader) Schema() *Schema { return r.schema }

func (r *delimitedReader) Next() (Batch, error) {
	if r.done {
		return nil, io.EOF
	}
	limit := r.opener.cfg.ChunkRows
	batch := make(Batch, 0, min(limit, 1024))
	for len(batch) < limit {
		rec, err := r.csv.Read()
		if errors.Is(err, io.EOF) {
			r.done = true
			r.closeBody()
			break
		}
		if err != nil {
			r.closeBody()
			r.done = true
			return nil, r.readError(err)
		}
		if !r.latin1 && !validUTF8(rec) {
			if err := r.restartLatin1(); err != nil {
				r.done = true
				return nil, err
			}
			continue
		}
		batch = append(batch, r.row(rec))
		r.records++
	}
	if len(batch) == 0 {
		return nil, io.EOF
	}
	return batch, nil
}

func (r *delimitedReader) row(rec []string) Row {
	cfg := r.opener.cfg
	dateIdx, hasDate := r.schema.Index(cfg.DateColumn)
	cells := make([]Cell, len(r.schema.columns))
	for i := range cells {
		if i >= len(rec) {
			break
		}
		v := rec[i]
		switch {
		case isNullToken(v, cfg.NullTokens):
		case hasDate && i == dateIdx:
			cells[i] = dateCell(v)
		default:
			cells[i] = Text(v)
		}
	}
	return Row{Schema: r.schema, Cells: cells}
}

func (r *delimitedReader) readError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return apperr.Wrap(apperr.ErrDecode, "parse "+r.url, err)
	}
	return apperr.Wrap(apperr.ErrUpstreamFetch, "read "+r.url, err)
}

func (r *delimitedReader) closeBody() {
	if r.body != nil {
		r.body.Close()
		r.body = nil
	}
}

func (r *delimitedReader) Close() error {
	r.done = true
	r.closeBody()
	return nil
}

func validUTF8(fields []string) bool {
	for _, f := range fields {
		if !utf8.ValidString(f) {
			return false
		}
	}
	return true
}

// isNullToken matches v against the configured tokens. A token made only of '#'
// matches any run of '#'.
func isNullToken(v string, tokens []string) bool {
	for _, t := range tokens {
		if v == t {
			return true
		}
		if t != "" && strings.Trim(t, "#") == "" && v != "" && strings.Trim(v, "#") == "" {
			return true
		}
	}
	return false
}
