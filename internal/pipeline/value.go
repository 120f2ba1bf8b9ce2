package pipeline

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	ValueNull ValueKind = iota
	ValueInt
	ValueFloat
	ValueString
	ValueBool
)

// Value is a JSON-safe cell: null, int, finite float, non-empty string or bool.
type Value struct {
	kind ValueKind
	i    int64
	f    float64
	s    string
	b    bool
}

func NullValue() Value { return Value{} }
func IntValue(v int64) Value { return Value{kind: ValueInt, i: v} }
func FloatValue(v float64) Value { return Value{kind: ValueFloat, f: v} }
func StringValue(v string) Value { return Value{kind: ValueString, s: v} }
func BoolValue(v bool) Value { return Value{kind: ValueBool, b: v} }

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) Int() int64 { return v.i }
func (v Value) Float() float64 { return v.f }
func (v Value) Str() string { return v.s }
func (v Value) Bool() bool { return v.b }

// Any returns the value as a plain Go value, nil for null.
func (v Value) Any() any {
	switch v.kind {
	case ValueInt:
		return v.i
	case ValueFloat:
		return v.f
	case ValueString:
		return v.s
	case ValueBool:
		return v.b
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueInt:
		return strconv.AppendInt(nil, v.i, 10), nil
	case ValueFloat:
		return json.Marshal(v.f)
	case ValueString:
		return json.Marshal(v.s)
	case ValueBool:
		return strconv.AppendBool(nil, v.b), nil
	default:
		return []byte("null"), nil
	}
}

// Record is one sanitized row. It marshals to a JSON object in column order.
type Record struct {
	Columns []string
	Values  []Value
}

// Get returns the value of column name.
func (r Record) Get(name string) (Value, bool) {
	for i, c := range r.Columns {
		if c == name {
			return r.Values[i], true
		}
	}
	return Value{}, false
}

func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := r.Values[i].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
