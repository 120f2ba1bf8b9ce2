package pipeline

import (
	"strings"

	"earapi/internal/model"
	"earapi/internal/tabular"
)

// Filter keeps rows matching a date and name criteria.
// A column absent from the schema makes its test pass for every row.
type Filter struct {
	DateColumn string
	NameColumn string
	Criteria   model.FilterCriteria
}

// Apply returns the matching rows of b in order. b is not modified.
func (f Filter) Apply(b tabular.Batch) tabular.Batch {
	if len(b) == 0 {
		return b
	}
	schema := b[0].Schema
	dateIdx, hasDate := schema.Index(f.DateColumn)
	nameIdx, hasName := schema.Index(f.NameColumn)
	needle := ""
	if f.Criteria.Name != nil {
		needle = strings.ToLower(*f.Criteria.Name)
	}

	out := make(tabular.Batch, 0, len(b))
	for _, row := range b {
		if hasDate && !f.matchDate(cellAt(row, dateIdx)) {
			continue
		}
		if hasName && f.Criteria.Name != nil && !matchName(cellAt(row, nameIdx), needle) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func (f Filter) matchDate(c tabular.Cell) bool {
	if c.Kind() != tabular.KindDate {
		return false
	}
	t := c.Time()
	if t.Year() != f.Criteria.Year {
		return false
	}
	return f.Criteria.Month == nil || int(t.Month()) == *f.Criteria.Month
}

func matchName(c tabular.Cell, needle string) bool {
	if c.IsNull() {
		return false
	}
	return strings.Contains(strings.ToLower(c.String()), needle)
}

func cellAt(row tabular.Row, i int) tabular.Cell {
	if i < len(row.Cells) {
		return row.Cells[i]
	}
	return tabular.Null()
}
