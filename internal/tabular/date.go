package tabular

import (
	"strings"
	"time"
)

// Day-first layouts tried in order. ISO forms come first since they are unambiguous.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
	"2006/01/02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006 15:04:05",
	"02-01-2006",
	"02.01.2006",
	"02/01/06",
	"2/1/06",
}

// ParseDate parses a trimmed day-first date. Time of day is kept but callers only use the date.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// dateCell returns a Date cell or null when s does not parse.
func dateCell(s string) Cell {
	t, ok := ParseDate(s)
	if !ok {
		return Null()
	}
	return Date(t)
}
