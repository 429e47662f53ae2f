package table

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/songlake/internal/frame"
	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

const parallelism = 1

// parquetTag maps a frame column onto a parquet-go metadata tag. Every
// column is OPTIONAL; timestamps are INT64 milliseconds.
func parquetTag(c frame.Column) (string, error) {
	var typ string
	switch c.Kind {
	case frame.KindString:
		typ = "type=BYTE_ARRAY, convertedtype=UTF8"
	case frame.KindInt64:
		typ = "type=INT64"
	case frame.KindFloat64:
		typ = "type=DOUBLE"
	case frame.KindBool:
		typ = "type=BOOLEAN"
	case frame.KindTimestamp:
		typ = "type=INT64, convertedtype=TIMESTAMP_MILLIS"
	default:
		return "", fmt.Errorf("%w: column %s has unsupported kind %s", ErrSchemaMismatch, c.Name, c.Kind)
	}
	return fmt.Sprintf("name=%s, %s, repetitiontype=OPTIONAL", c.Name, typ), nil
}

func encodeParquet(schema frame.Schema, rows []frame.Row) ([]byte, error) {
	md := make([]string, schema.Len())
	for i, c := range schema.Columns() {
		tag, err := parquetTag(c)
		if err != nil {
			return nil, err
		}
		md[i] = tag
	}

	var buf bytes.Buffer
	pw, err := writer.NewCSVWriterFromWriter(md, &buf, parallelism)
	if err != nil {
		return nil, fmt.Errorf("parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i, r := range rows {
		// the writer buffers records by reference until flush
		rec := make([]interface{}, len(r))
		for j, v := range r {
			if t, ok := v.(time.Time); ok {
				rec[j] = t.UnixMilli()
				continue
			}
			rec[j] = v
		}
		if err := pw.Write(rec); err != nil {
			return nil, fmt.Errorf("parquet write row %d: %w", i, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("parquet finalize: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeParquet reads every row of a parquet file into schema order.
// Columns are matched by name, case-insensitively, because parquet-go
// upper-cases the first letter of column names on read.
func decodeParquet(data []byte, schema frame.Schema) ([]frame.Row, error) {
	pr, err := reader.NewParquetColumnReader(buffer.NewBufferFileFromBytes(data), parallelism)
	if err != nil {
		return nil, fmt.Errorf("parquet reader: %w", err)
	}
	defer pr.ReadStop()

	numRows := pr.GetNumRows()
	rows := make([]frame.Row, numRows)
	for i := range rows {
		rows[i] = make(frame.Row, schema.Len())
	}
	if numRows == 0 {
		return rows, nil
	}

	leaves := pr.Footer.Schema[1:]
	for j, col := range schema.Columns() {
		leaf := -1
		for k, el := range leaves {
			if strings.EqualFold(el.GetName(), col.Name) {
				leaf = k
				break
			}
		}
		if leaf < 0 {
			return nil, fmt.Errorf("%w: column %s missing from file", ErrSchemaMismatch, col.Name)
		}

		values, _, _, err := pr.ReadColumnByIndex(int64(leaf), numRows)
		if err != nil {
			return nil, fmt.Errorf("parquet read column %s: %w", col.Name, err)
		}
		if int64(len(values)) != numRows {
			return nil, fmt.Errorf("parquet read column %s: got %d values, want %d", col.Name, len(values), numRows)
		}
		for i, v := range values {
			cv, err := fromParquet(col.Kind, v)
			if err != nil {
				return nil, fmt.Errorf("column %s row %d: %w", col.Name, i, err)
			}
			rows[i][j] = cv
		}
	}
	return rows, nil
}

func fromParquet(kind frame.Kind, v interface{}) (any, error) {
	if v == nil {
		return nil, nil
	}
	if kind == frame.KindTimestamp {
		ms, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("%w: timestamp stored as %T", ErrSchemaMismatch, v)
		}
		return time.UnixMilli(ms).UTC(), nil
	}
	if !kind.Accepts(v) {
		return nil, fmt.Errorf("%w: %s stored as %T", ErrSchemaMismatch, kind, v)
	}
	return v, nil
}
