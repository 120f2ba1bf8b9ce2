package tabular

import (
	"strconv"
	"time"
)

// Kind tags the variant held by a Cell.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindText
	KindDate
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindDate:
		return "date"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Cell is one raw value read from a resource. The zero Cell is null.
type Cell struct {
	kind Kind
	i    int64
	f    float64
	s    string
	t    time.Time
}

func Null() Cell { return Cell{} }
func Int(v int64) Cell { return Cell{kind: KindInt, i: v} }
func Float(v float64) Cell { return Cell{kind: KindFloat, f: v} }
func Text(v string) Cell { return Cell{kind: KindText, s: v} }
func Date(v time.Time) Cell { return Cell{kind: KindDate, t: v} }
func Bool(v bool) Cell {
	c := Cell{kind: KindBool}
	if v {
		c.i = 1
	}
	return c
}

func (c Cell) Kind() Kind { return c.kind }
func (c Cell) IsNull() bool { return c.kind == KindNull }
func (c Cell) Int() int64 { return c.i }
func (c Cell) Float() float64 { return c.f }
func (c Cell) Text() string { return c.s }
func (c Cell) Time() time.Time { return c.t }
func (c Cell) Bool() bool { return c.i != 0 }

// String returns the textual form of the value; null is the empty string.
func (c Cell) String() string {
	switch c.kind {
	case KindInt:
		return strconv.FormatInt(c.i, 10)
	case KindFloat:
		return strconv.FormatFloat(c.f, 'g', -1, 64)
	case KindText:
		return c.s
	case KindDate:
		return c.t.Format(time.DateOnly)
	case KindBool:
		return strconv.FormatBool(c.Bool())
	default:
		return ""
	}
}
