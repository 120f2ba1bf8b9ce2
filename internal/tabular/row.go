package tabular

// Schema is the ordered column set shared by every row of one resource.
type Schema struct {
	columns []string
	index   map[string]int
}

// NewSchema indexes columns by name. On duplicate names the first wins.
func NewSchema(columns []string) *Schema {
	s := &Schema{columns: columns, index: make(map[string]int, len(columns))}
	for i, c := range columns {
		if _, ok := s.index[c]; !ok {
			s.index[c] = i
		}
	}
	return s
}

// Columns returns the column names in source order.
func (s *Schema) Columns() []string { return s.columns }

// Index returns the position of column name.
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Has reports whether the schema contains column name.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Row holds one cell per schema column.
type Row struct {
	Schema *Schema
	Cells  []Cell
}

// Get returns the cell of column name.
func (r Row) Get(name string) (Cell, bool) {
	i, ok := r.Schema.Index(name)
	if !ok || i >= len(r.Cells) {
		return Cell{}, false
	}
	return r.Cells[i], true
}

// Batch is an ordered group of rows from one incremental read step.
type Batch []Row
