package frame

import (
	"fmt"
)

// JoinStats describes how the left side of an inner join fared.
type JoinStats struct {
	LeftRows  int
	Matched   int
	Unmatched int
	Output    int
}

// InnerJoin is an equi-join on left.leftOn == right.rightOn. The right
// frame is hashed and the left frame probes it in order, so output rows
// follow left order and, per left row, right order. A left row matching
// k right rows yields k output rows; null keys never match.
//
// The output schema is the left columns followed by the right columns.
// Column names must not overlap.
func (f *Frame) InnerJoin(right *Frame, leftOn, rightOn string) (*Frame, JoinStats, error) {
	var stats JoinStats

	li, ok := f.schema.Index(leftOn)
	if !ok {
		return nil, stats, fmt.Errorf("join: left %w: %s", ErrUnknownColumn, leftOn)
	}
	ri, ok := right.schema.Index(rightOn)
	if !ok {
		return nil, stats, fmt.Errorf("join: right %w: %s", ErrUnknownColumn, rightOn)
	}
	if lk, rk := f.schema.Column(li).Kind, right.schema.Column(ri).Kind; lk != rk {
		return nil, stats, fmt.Errorf("join: %w: %s is %s, %s is %s", ErrKindMismatch, leftOn, lk, rightOn, rk)
	}

	cols := append(f.schema.Columns(), right.schema.Columns()...)
	schema, err := NewSchema(cols...)
	if err != nil {
		return nil, stats, fmt.Errorf("join: %w", err)
	}

	table := make(map[string][]Row, right.Len())
	for _, r := range right.rows {
		if r[ri] == nil {
			continue
		}
		k := valueKey(r[ri])
		table[k] = append(table[k], r)
	}

	stats.LeftRows = len(f.rows)
	rows := make([]Row, 0, len(f.rows))
	for _, l := range f.rows {
		var matches []Row
		if l[li] != nil {
			matches = table[valueKey(l[li])]
		}
		if len(matches) == 0 {
			stats.Unmatched++
			continue
		}
		stats.Matched++
		for _, r := range matches {
			nr := make(Row, 0, schema.Len())
			nr = append(nr, l...)
			nr = append(nr, r...)
			rows = append(rows, nr)
		}
	}
	stats.Output = len(rows)

	return &Frame{schema: schema, rows: rows}, stats, nil
}
