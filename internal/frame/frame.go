// Package frame is a small in-memory dataframe used as the bulk-compute
// engine of the pipeline. Frames are immutable: every operator returns a
// new Frame and never mutates its input rows.
package frame

import (
	"fmt"
)

// Row holds one value per schema column. Values are string, int64,
// float64, bool, time.Time or nil.
type Row []any

type Frame struct {
	schema Schema
	rows   []Row
}

// New validates rows against schema.
func New(schema Schema, rows []Row) (*Frame, error) {
	for i, r := range rows {
		if err := checkRow(schema, r); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return &Frame{schema: schema, rows: rows}, nil
}

func Empty(schema Schema) *Frame {
	return &Frame{schema: schema}
}

func checkRow(schema Schema, r Row) error {
	if len(r) != schema.Len() {
		return fmt.Errorf("%w: got %d values, want %d", ErrRowWidth, len(r), schema.Len())
	}
	for j, v := range r {
		col := schema.Column(j)
		if !col.Kind.Accepts(v) {
			return fmt.Errorf("%w: column %s is %s, got %T", ErrKindMismatch, col.Name, col.Kind, v)
		}
	}
	return nil
}

func (f *Frame) Schema() Schema { return f.schema }

func (f *Frame) Len() int { return len(f.rows) }

func (f *Frame) Row(i int) Row { return f.rows[i] }

// Rows returns the backing rows. Callers must not modify them.
func (f *Frame) Rows() []Row { return f.rows }

// Values returns the named column as a slice.
func (f *Frame) Values(name string) ([]any, error) {
	idx, ok := f.schema.Index(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
	}
	out := make([]any, len(f.rows))
	for i, r := range f.rows {
		out[i] = r[idx]
	}
	return out, nil
}

// Projection names a source column and the name it takes in the output.
type Projection struct {
	Source string
	Alias  string
}

func Col(name string) Projection { return Projection{Source: name, Alias: name} }

func (p Projection) As(alias string) Projection {
	p.Alias = alias
	return p
}

// Project keeps the listed columns, in the listed order, renaming as asked.
func (f *Frame) Project(cols ...Projection) (*Frame, error) {
	idx := make([]int, len(cols))
	out := make([]Column, len(cols))
	for i, p := range cols {
		j, ok := f.schema.Index(p.Source)
		if !ok {
			return nil, fmt.Errorf("project: %w: %s", ErrUnknownColumn, p.Source)
		}
		idx[i] = j
		alias := p.Alias
		if alias == "" {
			alias = p.Source
		}
		out[i] = Column{Name: alias, Kind: f.schema.Column(j).Kind}
	}
	schema, err := NewSchema(out...)
	if err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}

	rows := make([]Row, len(f.rows))
	for i, r := range f.rows {
		nr := make(Row, len(idx))
		for k, j := range idx {
			nr[k] = r[j]
		}
		rows[i] = nr
	}
	return &Frame{schema: schema, rows: rows}, nil
}

// Select is Project without renames.
func (f *Frame) Select(names ...string) (*Frame, error) {
	cols := make([]Projection, len(names))
	for i, n := range names {
		cols[i] = Col(n)
	}
	return f.Project(cols...)
}

// Filter keeps rows for which keep returns true.
func (f *Frame) Filter(keep func(Row) bool) *Frame {
	rows := make([]Row, 0, len(f.rows))
	for _, r := range f.rows {
		if keep(r) {
			rows = append(rows, r)
		}
	}
	return &Frame{schema: f.schema, rows: rows}
}

// WhereEquals keeps rows whose column equals v. Null never matches.
func (f *Frame) WhereEquals(name string, v any) (*Frame, error) {
	idx, ok := f.schema.Index(name)
	if !ok {
		return nil, fmt.Errorf("where: %w: %s", ErrUnknownColumn, name)
	}
	if v == nil {
		return f.Filter(func(Row) bool { return false }), nil
	}
	want := valueKey(v)
	return f.Filter(func(r Row) bool {
		return r[idx] != nil && valueKey(r[idx]) == want
	}), nil
}

// WithColumn appends col computed by fn, or replaces an existing column
// of the same name in place.
func (f *Frame) WithColumn(col Column, fn func(Row) (any, error)) (*Frame, error) {
	pos, replace := f.schema.Index(col.Name)
	cols := f.schema.Columns()
	if replace {
		cols[pos] = col
	} else {
		pos = len(cols)
		cols = append(cols, col)
	}
	schema, err := NewSchema(cols...)
	if err != nil {
		return nil, fmt.Errorf("with column %s: %w", col.Name, err)
	}

	rows := make([]Row, len(f.rows))
	for i, r := range f.rows {
		v, err := fn(r)
		if err != nil {
			return nil, fmt.Errorf("with column %s: row %d: %w", col.Name, i, err)
		}
		if !col.Kind.Accepts(v) {
			return nil, fmt.Errorf("with column %s: %w: got %T", col.Name, ErrKindMismatch, v)
		}
		nr := make(Row, schema.Len())
		copy(nr, r)
		nr[pos] = v
		rows[i] = nr
	}
	return &Frame{schema: schema, rows: rows}, nil
}

// WithRowID appends an int64 column filled by next, called once per row
// in row order.
func (f *Frame) WithRowID(name string, next func() int64) (*Frame, error) {
	return f.WithColumn(Int64(name), func(Row) (any, error) {
		return next(), nil
	})
}

// Distinct removes rows equal across every column. The first occurrence
// of each row is kept and input order is preserved.
func (f *Frame) Distinct() *Frame {
	seen := newRowSet(len(f.rows))
	rows := make([]Row, 0, len(f.rows))
	for _, r := range f.rows {
		if seen.add(r) {
			rows = append(rows, r)
		}
	}
	return &Frame{schema: f.schema, rows: rows}
}
