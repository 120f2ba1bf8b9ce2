package model

import "strings"

// Format is the declared file format of a catalog resource.
type Format int

const (
	FormatOther Format = iota
	FormatCSV
	FormatColumnar
)

// String returns the lowercase name of the format.
func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatColumnar:
		return "parquet"
	default:
		return "other"
	}
}

// ParseFormat derives a Format from the catalog's declared format string,
// falling back to the URL suffix when the declaration is not recognised.
func ParseFormat(declared, url string) Format {
	switch strings.ToUpper(strings.TrimSpace(declared)) {
	case "PARQUET":
		return FormatColumnar
	case "CSV":
		return FormatCSV
	}
	u := strings.ToLower(url)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	switch {
	case strings.HasSuffix(u, ".parquet"):
		return FormatColumnar
	case strings.HasSuffix(u, ".csv"):
		return FormatCSV
	default:
		return FormatOther
	}
}

// Resource is one downloadable file description returned by the catalog.
type Resource struct {
	URL    string `json:"url"`
	Format Format `json:"-"`
	Name   string `json:"name"`
}
