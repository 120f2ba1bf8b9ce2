package model

import "math"

// FilterCriteria selects rows by date and reservoir name.
// Month and Name are optional; nil disables the corresponding test.
type FilterCriteria struct {
	Year  int
	Month *int
	Name  *string
}

// PageRequest is a 1-based page index and a page size. Both must be positive.
type PageRequest struct {
	Page     int
	PageSize int
}

// Offset returns the number of filtered rows preceding the page,
// or -1 when that count does not fit in an int.
func (p PageRequest) Offset() int {
	if p.Page < 1 || p.PageSize < 1 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.PageSize {
		return -1
	}
	return (p.Page - 1) * p.PageSize
}
