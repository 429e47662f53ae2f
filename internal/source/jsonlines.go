// Package source bulk-reads line-delimited JSON inputs into frames.
package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/songlake/internal/frame"
	"github.com/smallbiznis/songlake/internal/storage"
)

var (
	ErrSourceRead = errors.New("source_read")
	errCoerce     = errors.New("coerce")
)

const maxLineBytes = 16 << 20

// Stats summarizes one bulk read.
type Stats struct {
	Files     int
	Records   int
	Malformed int
}

// ReadJSONLines reads every object matching pattern as line-delimited
// JSON, one record per non-blank line, and maps each record onto schema
// by field name. Fields absent from a record are null; fields not in
// schema are ignored. Lines that fail to parse or coerce are skipped and
// counted as malformed.
//
// It fails with ErrSourceRead when the store cannot be listed or read,
// when nothing matches pattern, or when no record parses at all.
func ReadJSONLines(ctx context.Context, store storage.Store, pattern string, schema frame.Schema) (*frame.Frame, Stats, error) {
	var stats Stats

	keys, err := store.Glob(ctx, pattern)
	if err != nil {
		return nil, stats, fmt.Errorf("%w: %s/%s: %w", ErrSourceRead, store.URI(), pattern, err)
	}
	if len(keys) == 0 {
		return nil, stats, fmt.Errorf("%w: %s/%s: no files matched", ErrSourceRead, store.URI(), pattern)
	}

	var rows []frame.Row
	for _, key := range keys {
		data, err := store.Read(ctx, key)
		if err != nil {
			return nil, stats, fmt.Errorf("%w: %s: %w", ErrSourceRead, key, err)
		}
		stats.Files++

		parsed, malformed, err := decodeLines(data, schema)
		if err != nil {
			return nil, stats, fmt.Errorf("%w: %s: %w", ErrSourceRead, key, err)
		}
		rows = append(rows, parsed...)
		stats.Malformed += malformed
	}
	stats.Records = len(rows)

	if len(rows) == 0 {
		return nil, stats, fmt.Errorf("%w: %s/%s: no parseable records in %d files", ErrSourceRead, store.URI(), pattern, stats.Files)
	}

	f, err := frame.New(schema, rows)
	if err != nil {
		return nil, stats, fmt.Errorf("%w: %w", ErrSourceRead, err)
	}
	return f, stats, nil
}

func decodeLines(data []byte, schema frame.Schema) ([]frame.Row, int, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var rows []frame.Row
	malformed := 0
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		row, err := decodeRecord(line, schema)
		if err != nil {
			malformed++
			continue
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, malformed, err
	}
	return rows, malformed, nil
}

func decodeRecord(line []byte, schema frame.Schema) (frame.Row, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var record map[string]any
	if err := dec.Decode(&record); err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: not an object", errCoerce)
	}

	row := make(frame.Row, schema.Len())
	for i, col := range schema.Columns() {
		v, err := coerce(col.Kind, record[col.Name])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", col.Name, err)
		}
		row[i] = v
	}
	return row, nil
}

func coerce(kind frame.Kind, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch kind {
	case frame.KindString:
		switch v := raw.(type) {
		case string:
			return v, nil
		case json.Number:
			return v.String(), nil
		case bool:
			return strconv.FormatBool(v), nil
		}
	case frame.KindInt64:
		switch v := raw.(type) {
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return n, nil
			}
			if f, err := v.Float64(); err == nil && f == math.Trunc(f) && math.Abs(f) < math.MaxInt64 {
				return int64(f), nil
			}
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				return nil, nil
			}
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n, nil
			}
		}
	case frame.KindFloat64:
		switch v := raw.(type) {
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f, nil
			}
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				return nil, nil
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, nil
			}
		}
	case frame.KindBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				return b, nil
			}
		}
	case frame.KindTimestamp:
		switch v := raw.(type) {
		case json.Number:
			if ms, err := v.Int64(); err == nil {
				return time.UnixMilli(ms).UTC(), nil
			}
		case string:
			if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(v)); err == nil {
				return t.UTC(), nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %T as %s", errCoerce, raw, kind)
}
