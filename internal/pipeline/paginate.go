// Package pipeline holds the per-request stages that turn raw row batches
// into one sanitized page: filtering, pagination and sanitization.
package pipeline

import (
	"errors"
	"io"

	"earapi/internal/model"
	"earapi/internal/tabular"
)

// BatchSource yields row batches in order and io.EOF at the end.
type BatchSource interface {
	Next() (tabular.Batch, error)
}

// Page is the raw rows of one page.
type Page struct {
	Rows    []tabular.Row
	HasMore bool
	// Scanned counts the source rows the paginator examined.
	Scanned int
}

// Paginate skips the rows before req and collects at most PageSize+1 rows,
// pulling no further batches once the page and its lookahead row are known.
// A page whose offset overflows int lies past any source and is empty.
func Paginate(src BatchSource, req model.PageRequest) (Page, error) {
	skip := req.Offset()
	if skip < 0 {
		return Page{Rows: []tabular.Row{}}, nil
	}
	limit := req.PageSize + 1
	collected := make([]tabular.Row, 0, min(limit, 1024))
	scanned := 0

	for len(collected) < limit {
		batch, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Page{}, err
		}
		for _, row := range batch {
			scanned++
			if skip > 0 {
				skip--
				continue
			}
			collected = append(collected, row)
			if len(collected) == limit {
				break
			}
		}
	}

	page := Page{Rows: collected, Scanned: scanned}
	if len(collected) > req.PageSize {
		page.HasMore = true
		page.Rows = collected[:req.PageSize]
	}
	return page, nil
}

// Filtered applies f to every batch of src and counts the raw rows read.
type Filtered struct {
	src     BatchSource
	filter  Filter
	scanned int
}

// NewFiltered wraps src with f.
func NewFiltered(src BatchSource, f Filter) *Filtered {
	return &Filtered{src: src, filter: f}
}

// Next returns the next non-empty filtered batch.
func (s *Filtered) Next() (tabular.Batch, error) {
	for {
		b, err := s.src.Next()
		if err != nil {
			return nil, err
		}
		s.scanned += len(b)
		if out := s.filter.Apply(b); len(out) > 0 {
			return out, nil
		}
	}
}

// Scanned returns the number of unfiltered rows read from the source.
func (s *Filtered) Scanned() int { return s.scanned }
