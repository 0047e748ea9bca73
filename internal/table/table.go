package table

import (
	"fmt"
	"strings"
)

// Column is a named, typed sequence of cells.
type Column struct {
	Name   string
	Type   Type
	Values []Value
}

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.Values) }

// MissingCount counts Missing cells.
func (c *Column) MissingCount() int {
	n := 0
	for _, v := range c.Values {
		if v.IsMissing() {
			n++
		}
	}
	return n
}

// Floats returns the non-missing numeric cells in row order.
func (c *Column) Floats() []float64 {
	out := make([]float64, 0, len(c.Values))
	for _, v := range c.Values {
		if v.Kind() == KindNumber {
			out = append(out, v.Float())
		}
	}
	return out
}

// Clone returns a deep copy.
func (c *Column) Clone() *Column {
	vals := make([]Value, len(c.Values))
	copy(vals, c.Values)
	return &Column{Name: c.Name, Type: c.Type, Values: vals}
}

// Table is an ordered set of equally sized columns with unique names.
type Table struct {
	Columns []*Column
}

// New validates the columns and builds a table from them.
func New(cols ...*Column) (*Table, error) {
	t := &Table{}
	for _, c := range cols {
		if err := t.AddColumn(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustNew is New for statically known input; it panics on invalid columns.
func MustNew(cols ...*Column) *Table {
	t, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

// NumRows returns the row count.
func (t *Table) NumRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return t.Columns[0].Len()
}

// NumCols returns the column count.
func (t *Table) NumCols() int { return len(t.Columns) }

// Names returns column names in display order.
func (t *Table) Names() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Index returns the position of the named column or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	if i := t.Index(name); i >= 0 {
		return t.Columns[i], true
	}
	return nil, false
}

// AddColumn appends a column, enforcing name uniqueness and equal length.
func (t *Table) AddColumn(c *Column) error {
	if c == nil {
		return fmt.Errorf("nil column")
	}
	if t.Index(c.Name) >= 0 {
		return fmt.Errorf("duplicate column %q", c.Name)
	}
	if len(t.Columns) > 0 && c.Len() != t.NumRows() {
		return fmt.Errorf("column %q has %d rows, table has %d", c.Name, c.Len(), t.NumRows())
	}
	t.Columns = append(t.Columns, c)
	return nil
}

// SetColumn replaces the named column in place or appends it when absent.
func (t *Table) SetColumn(c *Column) error {
	i := t.Index(c.Name)
	if i < 0 {
		return t.AddColumn(c)
	}
	if c.Len() != t.NumRows() {
		return fmt.Errorf("column %q has %d rows, table has %d", c.Name, c.Len(), t.NumRows())
	}
	t.Columns[i] = c
	return nil
}

// DropColumns removes the named columns. Unknown names are an error.
func (t *Table) DropColumns(names ...string) error {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		if t.Index(n) < 0 {
			return fmt.Errorf("unknown column %q", n)
		}
		drop[n] = true
	}
	kept := t.Columns[:0]
	for _, c := range t.Columns {
		if !drop[c.Name] {
			kept = append(kept, c)
		}
	}
	t.Columns = kept
	return nil
}

// Clone returns a deep copy that shares no cells with t.
func (t *Table) Clone() *Table {
	out := &Table{Columns: make([]*Column, len(t.Columns))}
	for i, c := range t.Columns {
		out.Columns[i] = c.Clone()
	}
	return out
}

// Row returns the cells of row i in column order.
func (t *Table) Row(i int) []Value {
	out := make([]Value, len(t.Columns))
	for j, c := range t.Columns {
		out[j] = c.Values[i]
	}
	return out
}

// RowKey encodes the cells of row i in the given columns (all when cols is nil).
// Rows with equal keys are equal in every selected field.
func (t *Table) RowKey(i int, cols []int) string {
	var b strings.Builder
	write := func(c *Column) {
		k := c.Values[i].key()
		fmt.Fprintf(&b, "%d:%s;", len(k), k)
	}
	if cols == nil {
		for _, c := range t.Columns {
			write(c)
		}
		return b.String()
	}
	for _, j := range cols {
		write(t.Columns[j])
	}
	return b.String()
}

// SelectRows keeps only the given row indexes, in the given order.
func (t *Table) SelectRows(rows []int) {
	for _, c := range t.Columns {
		vals := make([]Value, len(rows))
		for k, i := range rows {
			vals[k] = c.Values[i]
		}
		c.Values = vals
	}
}

// Head returns a copy restricted to the first rows rows and cols columns.
func (t *Table) Head(rows, cols int) *Table {
	if cols > len(t.Columns) || cols < 0 {
		cols = len(t.Columns)
	}
	if rows > t.NumRows() || rows < 0 {
		rows = t.NumRows()
	}
	out := &Table{Columns: make([]*Column, cols)}
	for j := 0; j < cols; j++ {
		c := t.Columns[j]
		vals := make([]Value, rows)
		copy(vals, c.Values[:rows])
		out.Columns[j] = &Column{Name: c.Name, Type: c.Type, Values: vals}
	}
	return out
}

// Equal reports whether both tables have the same columns, types and cells.
func (t *Table) Equal(o *Table) bool {
	if t.NumCols() != o.NumCols() || t.NumRows() != o.NumRows() {
		return false
	}
	for j, c := range t.Columns {
		oc := o.Columns[j]
		if c.Name != oc.Name || c.Type != oc.Type {
			return false
		}
		for i, v := range c.Values {
			if !v.Equal(oc.Values[i]) {
				return false
			}
		}
	}
	return true
}

// Records renders the table as string rows, header first.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, t.NumRows()+1)
	out = append(out, t.Names())
	for i := 0; i < t.NumRows(); i++ {
		rec := make([]string, len(t.Columns))
		for j, c := range t.Columns {
			rec[j] = c.Values[i].String()
		}
		out = append(out, rec)
	}
	return out
}
