package pipeline

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"earapi/internal/tabular"
)

// MaxMagnitude bounds accepted floats; larger values become null.
const MaxMagnitude = 1e15

var (
	scientificRe = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)[eE][+-]?\d+$`)
	integerRe    = regexp.MustCompile(`^[+-]?\d+$`)
)

// Sanitize converts every cell of row into a JSON-safe value. It never fails.
func Sanitize(row tabular.Row) Record {
	cols := row.Schema.Columns()
	out := Record{Columns: cols, Values: make([]Value, len(cols))}
	for i, c := range row.Cells {
		if i < len(out.Values) {
			out.Values[i] = SanitizeCell(c)
		}
	}
	return out
}

// SanitizeCell converts one raw cell.
func SanitizeCell(c tabular.Cell) Value {
	switch c.Kind() {
	case tabular.KindNull:
		return NullValue()
	case tabular.KindInt:
		return IntValue(c.Int())
	case tabular.KindFloat:
		if !acceptable(c.Float()) {
			return NullValue()
		}
		return FloatValue(c.Float())
	case tabular.KindDate:
		return StringValue(c.Time().Format(time.DateOnly))
	case tabular.KindText:
		return sanitizeText(c.Text())
	case tabular.KindBool:
		return BoolValue(c.Bool())
	default:
		return NullValue()
	}
}

func sanitizeText(s string) Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return NullValue()
	}
	if !looksNumeric(s) {
		return StringValue(s)
	}
	if v, ok := parseNumber(s); ok {
		return v
	}
	return StringValue(s)
}

// looksNumeric reports whether s has a digit and no letters besides e/E.
func looksNumeric(s string) bool {
	digit := false
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case r == 'e' || r == 'E':
		case unicode.IsLetter(r):
			return false
		}
	}
	return digit
}

// parseNumber tries plain integers, then the locale-tolerant float strategies in order.
func parseNumber(s string) (Value, bool) {
	if integerRe.MatchString(s) {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil && acceptable(float64(i)) {
			return IntValue(i), true
		}
	}

	dotted := strings.ReplaceAll(s, ",", ".")
	if scientificRe.MatchString(dotted) {
		if f, ok := parseFloat(dotted); ok {
			return FloatValue(f), true
		}
	}
	if f, ok := parseFloat(dotted); ok {
		return FloatValue(f), true
	}
	grouped := strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
	if f, ok := parseFloat(grouped); ok {
		return FloatValue(f), true
	}
	return Value{}, false
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !acceptable(f) {
		return 0, false
	}
	return f, true
}

func acceptable(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && math.Abs(f) <= MaxMagnitude
}
