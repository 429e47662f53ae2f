package frame

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrDuplicateColumn = errors.New("duplicate_column")
	ErrUnknownColumn   = errors.New("unknown_column")
	ErrKindMismatch    = errors.New("kind_mismatch")
	ErrRowWidth        = errors.New("row_width_mismatch")
)

// Kind is the logical type of a column.
type Kind uint8

const (
	KindString Kind = iota + 1
	KindInt64
	KindFloat64
	KindBool
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindBool:
		return "bool"
	case KindTimestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Accepts reports whether v is a valid value for a column of kind k.
// nil is accepted by every kind.
func (k Kind) Accepts(v any) bool {
	if v == nil {
		return true
	}
	switch v.(type) {
	case string:
		return k == KindString
	case int64:
		return k == KindInt64
	case float64:
		return k == KindFloat64
	case bool:
		return k == KindBool
	case time.Time:
		return k == KindTimestamp
	default:
		return false
	}
}

type Column struct {
	Name string
	Kind Kind
}

func String(name string) Column    { return Column{Name: name, Kind: KindString} }
func Int64(name string) Column     { return Column{Name: name, Kind: KindInt64} }
func Float64(name string) Column   { return Column{Name: name, Kind: KindFloat64} }
func Bool(name string) Column      { return Column{Name: name, Kind: KindBool} }
func Timestamp(name string) Column { return Column{Name: name, Kind: KindTimestamp} }

// Schema is an ordered, name-unique list of columns.
type Schema struct {
	cols  []Column
	index map[string]int
}

func NewSchema(cols ...Column) (Schema, error) {
	s := Schema{
		cols:  make([]Column, 0, len(cols)),
		index: make(map[string]int, len(cols)),
	}
	for _, c := range cols {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return Schema{}, fmt.Errorf("%w: empty column name", ErrUnknownColumn)
		}
		if _, ok := s.index[name]; ok {
			return Schema{}, fmt.Errorf("%w: %s", ErrDuplicateColumn, name)
		}
		s.index[name] = len(s.cols)
		s.cols = append(s.cols, Column{Name: name, Kind: c.Kind})
	}
	return s, nil
}

// MustSchema is NewSchema for static declarations.
func MustSchema(cols ...Column) Schema {
	s, err := NewSchema(cols...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Schema) Len() int { return len(s.cols) }

func (s Schema) Column(i int) Column { return s.cols[i] }

func (s Schema) Columns() []Column {
	out := make([]Column, len(s.cols))
	copy(out, s.cols)
	return out
}

func (s Schema) Names() []string {
	out := make([]string, len(s.cols))
	for i, c := range s.cols {
		out[i] = c.Name
	}
	return out
}

func (s Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

func (s Schema) Lookup(name string) (Column, error) {
	i, ok := s.index[name]
	if !ok {
		return Column{}, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
	}
	return s.cols[i], nil
}

// Without returns the schema minus the named columns, order preserved.
func (s Schema) Without(names ...string) Schema {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	kept := make([]Column, 0, len(s.cols))
	for _, c := range s.cols {
		if _, ok := drop[c.Name]; ok {
			continue
		}
		kept = append(kept, c)
	}
	out, _ := NewSchema(kept...)
	return out
}

// Equal compares names and kinds in order.
func (s Schema) Equal(other Schema) bool {
	if len(s.cols) != len(other.cols) {
		return false
	}
	for i := range s.cols {
		if s.cols[i] != other.cols[i] {
			return false
		}
	}
	return true
}
