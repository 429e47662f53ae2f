// Package table persists frames as partitioned Parquet tables with
// overwrite semantics and reads committed tables back.
package table

import (
	"errors"
	"fmt"

	"github.com/smallbiznis/songlake/internal/frame"
)

var (
	ErrSinkWrite         = errors.New("sink_write")
	ErrTableRead         = errors.New("table_read")
	ErrTableNotCommitted = errors.New("table_not_committed")
	ErrSchemaMismatch    = errors.New("schema_mismatch")
)

const (
	// SuccessMarker is written last; its presence commits the table.
	SuccessMarker = "_SUCCESS"
	// DefaultPartitionName stands in for null or empty partition values.
	DefaultPartitionName = "__HIVE_DEFAULT_PARTITION__"

	fileSuffix = ".snappy.parquet"
)

// Table declares an output table: its sub-location under the output
// root, its full row schema and its partition columns in directory order.
type Table struct {
	Name        string
	Schema      frame.Schema
	PartitionBy []string
}

func (t Table) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: table without name", ErrSchemaMismatch)
	}
	seen := make(map[string]struct{}, len(t.PartitionBy))
	for _, p := range t.PartitionBy {
		if _, ok := t.Schema.Index(p); !ok {
			return fmt.Errorf("%w: %s: partition column %s not in schema", ErrSchemaMismatch, t.Name, p)
		}
		if _, dup := seen[p]; dup {
			return fmt.Errorf("%w: %s: partition column %s repeated", ErrSchemaMismatch, t.Name, p)
		}
		seen[p] = struct{}{}
	}
	if len(t.PartitionBy) >= t.Schema.Len() {
		return fmt.Errorf("%w: %s: every column is a partition column", ErrSchemaMismatch, t.Name)
	}
	return nil
}

// FileSchema is the schema stored inside data files: partition columns
// live only in the directory path.
func (t Table) FileSchema() frame.Schema {
	return t.Schema.Without(t.PartitionBy...)
}

func (t Table) partitionColumns() []frame.Column {
	cols := make([]frame.Column, len(t.PartitionBy))
	for i, p := range t.PartitionBy {
		cols[i], _ = t.Schema.Lookup(p)
	}
	return cols
}
