package tabular

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCellString(t *testing.T) {
	tests := []struct {
		name string
		cell Cell
		want string
	}{
		{"null", Null(), ""},
		{"int", Int(-42), "-42"},
		{"float", Float(1.5), "1.5"},
		{"text", Text("Furnas"), "Furnas"},
		{"date", Date(time.Date(2021, 1, 5, 13, 0, 0, 0, time.UTC)), "2021-01-05"},
		{"bool", Bool(true), "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cell.String())
		})
	}
}

func TestRowGet(t *testing.T) {
	s := NewSchema([]string{"a", "b", "a"})
	r := Row{Schema: s, Cells: []Cell{Int(1), Text("x"), Int(3)}}

	c, ok := r.Get("a")
	assert.True(t, ok)
	assert.Equal(t, int64(1), c.Int())

	_, ok = r.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "b", "a"}, s.Columns())
}
