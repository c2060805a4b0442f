// Package table holds the normalized tabular result of a download: ordered,
// named, homogeneously typed columns. A Table never changes once built;
// derived operations return new tables.
package table

import (
	"errors"
	"fmt"
)

// ErrValue marks a value-level parse failure: the payload was recognized but
// its contents could not be read as a table.
var ErrValue = errors.New("value error")

// ParseError reports a value-level failure, with the 1-based source line when known.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return e.Err.Error()
}

func (e *ParseError) Unwrap() []error { return []error{ErrValue, e.Err} }

// Column is one named, typed column.
type Column struct {
	name   string
	kind   Kind
	values []Value
}

// NewColumn copies values into a new column. Every non-null value must be of kind k.
func NewColumn(name string, k Kind, values []Value) (Column, error) {
	vs := make([]Value, len(values))
	for i, v := range values {
		if v.IsNull() {
			vs[i] = NewNull(k)
			continue
		}
		if v.Kind() != k {
			return Column{}, fmt.Errorf("column %q: row %d is %s, want %s", name, i, v.Kind(), k)
		}
		vs[i] = v
	}
	return Column{name: name, kind: k, values: vs}, nil
}

func (c Column) Name() string { return c.name }
func (c Column) Kind() Kind   { return c.kind }
func (c Column) Len() int     { return len(c.values) }

// Value returns the i-th value.
func (c Column) Value(i int) Value { return c.values[i] }

// Values returns a copy of the column's values.
func (c Column) Values() []Value {
	out := make([]Value, len(c.values))
	copy(out, c.values)
	return out
}

// Table is an immutable, ordered set of equally long columns.
type Table struct {
	columns []Column
	rows    int
}

// New builds a table from columns of equal length. Column names must be unique.
func New(columns ...Column) (*Table, error) {
	t := &Table{columns: make([]Column, len(columns))}
	seen := make(map[string]struct{}, len(columns))
	for i, c := range columns {
		if _, dup := seen[c.name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.name)
		}
		seen[c.name] = struct{}{}
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.name, c.Len(), t.rows)
		}
		t.columns[i] = c
	}
	return t, nil
}

func (t *Table) NumRows() int    { return t.rows }
func (t *Table) NumColumns() int { return len(t.columns) }

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name
	}
	return names
}

// ColumnAt returns the i-th column.
func (t *Table) ColumnAt(i int) Column { return t.columns[i] }

// Column looks a column up by name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.columns {
		if c.name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Row returns the values of row i across all columns.
func (t *Table) Row(i int) []Value {
	row := make([]Value, len(t.columns))
	for j, c := range t.columns {
		row[j] = c.values[i]
	}
	return row
}

// Records renders the table as a header row followed by string rows.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, t.rows+1)
	out = append(out, t.Names())
	for i := 0; i < t.rows; i++ {
		rec := make([]string, len(t.columns))
		for j, c := range t.columns {
			rec[j] = c.values[i].String()
		}
		out = append(out, rec)
	}
	return out
}

// Maps renders each row as a column-name keyed map, for JSON and YAML output.
func (t *Table) Maps() []map[string]any {
	out := make([]map[string]any, t.rows)
	for i := 0; i < t.rows; i++ {
		m := make(map[string]any, len(t.columns))
		for _, c := range t.columns {
			m[c.name] = c.values[i].Interface()
		}
		out[i] = m
	}
	return out
}

// fromGrid infers a typed table from a header and string rows of the same width.
func fromGrid(header []string, rows [][]string) *Table {
	t := &Table{columns: make([]Column, len(header)), rows: len(rows)}
	raw := make([]string, len(rows))
	for j, name := range header {
		for i, r := range rows {
			raw[i] = r[j]
		}
		t.columns[j] = inferColumn(name, raw)
	}
	return t
}
