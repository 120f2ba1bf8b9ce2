package catalog

import (
	"errors"
	"strconv"
	"strings"

	"earapi/internal/apperr"
	"earapi/internal/model"
)

// Select returns the URL of the resource of the given format whose name or url
// mentions year, or the first resource of that format when none does.
func Select(resources []model.Resource, year int, format model.Format) (string, error) {
	y := strconv.Itoa(year)
	first := -1
	for i, r := range resources {
		if r.Format != format {
			continue
		}
		if first < 0 {
			first = i
		}
		if strings.Contains(r.Name, y) || strings.Contains(r.URL, y) {
			return r.URL, nil
		}
	}
	if first < 0 {
		return "", apperr.New(apperr.ErrResourceNotFound, "no "+format.String()+" resource in dataset")
	}
	return resources[first].URL, nil
}

// SelectPreferred prefers a columnar resource and falls back to delimited text.
func SelectPreferred(resources []model.Resource, year int) (string, model.Format, error) {
	for _, f := range []model.Format{model.FormatColumnar, model.FormatCSV} {
		u, err := Select(resources, year, f)
		if err == nil {
			return u, f, nil
		}
		if !errors.Is(err, apperr.ErrResourceNotFound) {
			return "", model.FormatOther, err
		}
	}
	return "", model.FormatOther, apperr.New(apperr.ErrResourceNotFound, "no parquet or csv resource in dataset")
}
