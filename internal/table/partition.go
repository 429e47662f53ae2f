package table

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/songlake/internal/frame"
)

const partitionTimeLayout = "2006-01-02 15:04:05.000"

// partitionDir renders col=value segments in column order.
func partitionDir(cols []frame.Column, values []any) string {
	segs := make([]string, len(cols))
	for i, c := range cols {
		segs[i] = escapePathName(c.Name) + "=" + formatPartitionValue(values[i])
	}
	return strings.Join(segs, "/")
}

func formatPartitionValue(v any) string {
	var s string
	switch x := v.(type) {
	case nil:
		return DefaultPartitionName
	case string:
		s = x
	case int64:
		s = strconv.FormatInt(x, 10)
	case float64:
		s = strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		s = strconv.FormatBool(x)
	case time.Time:
		s = x.UTC().Format(partitionTimeLayout)
	default:
		s = fmt.Sprint(x)
	}
	if s == "" {
		return DefaultPartitionName
	}
	return escapePathName(s)
}

func parsePartitionValue(kind frame.Kind, raw string) (any, error) {
	if raw == DefaultPartitionName {
		return nil, nil
	}
	s := unescapePathName(raw)
	switch kind {
	case frame.KindString:
		return s, nil
	case frame.KindInt64:
		return strconv.ParseInt(s, 10, 64)
	case frame.KindFloat64:
		return strconv.ParseFloat(s, 64)
	case frame.KindBool:
		return strconv.ParseBool(s)
	case frame.KindTimestamp:
		t, err := time.ParseInLocation(partitionTimeLayout, s, time.UTC)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported partition kind %s", kind)
	}
}

// parsePartitionPath decodes the directory part of a table-relative file
// key against the declared partition columns.
func parsePartitionPath(cols []frame.Column, rel string) ([]any, error) {
	segs := strings.Split(rel, "/")
	dirs := segs[:len(segs)-1]
	if len(dirs) != len(cols) {
		return nil, fmt.Errorf("%s: expected %d partition directories, got %d", rel, len(cols), len(dirs))
	}
	values := make([]any, len(cols))
	for i, d := range dirs {
		name, raw, ok := strings.Cut(d, "=")
		if !ok {
			return nil, fmt.Errorf("%s: segment %q is not col=value", rel, d)
		}
		if unescapePathName(name) != cols[i].Name {
			return nil, fmt.Errorf("%s: expected partition column %s, got %s", rel, cols[i].Name, name)
		}
		v, err := parsePartitionValue(cols[i].Kind, raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", rel, cols[i].Name, err)
		}
		values[i] = v
	}
	return values, nil
}

func needsEscape(c byte) bool {
	if c < 0x20 || c == 0x7f {
		return true
	}
	switch c {
	case '"', '#', '%', '\'', '*', '/', ':', '=', '?', '\\', '{', '[', ']', '^':
		return true
	}
	return false
}

const hexDigits = "0123456789ABCDEF"

// escapePathName percent-encodes bytes that would break a col=value
// directory segment.
func escapePathName(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if needsEscape(c) {
			b.WriteByte('%')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0f])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func unescapePathName(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			if n, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(n))
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
