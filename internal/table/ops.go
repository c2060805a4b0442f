package table

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DropMissing returns a table without the rows whose value in column is missing.
func (t *Table) DropMissing(column string) (*Table, error) {
	col, ok := t.Column(column)
	if !ok {
		return nil, fmt.Errorf("no column %q", column)
	}

	keep := make([]int, 0, t.rows)
	for i, v := range col.values {
		if !v.IsNull() {
			keep = append(keep, i)
		}
	}

	out := &Table{columns: make([]Column, len(t.columns)), rows: len(keep)}
	for j, c := range t.columns {
		vs := make([]Value, len(keep))
		for k, i := range keep {
			vs[k] = c.values[i]
		}
		out.columns[j] = Column{name: c.name, kind: c.kind, values: vs}
	}
	return out, nil
}

// PctChange returns a table with column out set to (c1 - c2) / c2 * 100 at
// full decimal precision. Rows where either side is missing get a missing
// value, and so do rows where c2 is zero: decimals have no infinity. An
// existing column named out is replaced in place.
func (t *Table) PctChange(c1, c2, out string) (*Table, error) {
	a, err := t.numericColumn(c1)
	if err != nil {
		return nil, err
	}
	b, err := t.numericColumn(c2)
	if err != nil {
		return nil, err
	}

	vs := make([]Value, t.rows)
	for i := range vs {
		x, okx := a.values[i].Decimal()
		y, oky := b.values[i].Decimal()
		if !okx || !oky || y.IsZero() {
			vs[i] = NewNull(KindNumeric)
			continue
		}
		vs[i] = NewNumeric(x.Sub(y).Div(y).Mul(hundred))
	}
	change := Column{name: out, kind: KindNumeric, values: vs}

	cols := make([]Column, 0, len(t.columns)+1)
	replaced := false
	for _, c := range t.columns {
		if c.name == out {
			cols = append(cols, change)
			replaced = true
			continue
		}
		cols = append(cols, c)
	}
	if !replaced {
		cols = append(cols, change)
	}
	return &Table{columns: cols, rows: t.rows}, nil
}

func (t *Table) numericColumn(name string) (Column, error) {
	c, ok := t.Column(name)
	if !ok {
		return Column{}, fmt.Errorf("no column %q", name)
	}
	if c.kind != KindNumeric {
		return Column{}, fmt.Errorf("column %q is %s, want numeric", name, c.kind)
	}
	return c, nil
}
