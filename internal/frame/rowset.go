package frame

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// rowSet tracks rows by a canonical encoding of all their values, so two
// rows collide only when every value is equal in kind and content.
type rowSet struct {
	seen map[string]struct{}
}

func newRowSet(capacity int) *rowSet {
	return &rowSet{seen: make(map[string]struct{}, capacity)}
}

// add reports whether r was not already present.
func (s *rowSet) add(r Row) bool {
	key := rowKey(r)
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

func rowKey(r Row) string {
	var b strings.Builder
	for _, v := range r {
		writeValue(&b, v)
	}
	return b.String()
}

func valueKey(v any) string {
	var b strings.Builder
	writeValue(&b, v)
	return b.String()
}

// writeValue emits a kind tag, a length and the payload so that
// concatenated encodings stay unambiguous.
func writeValue(b *strings.Builder, v any) {
	var tag byte
	var payload string
	switch x := v.(type) {
	case nil:
		tag = 'n'
	case string:
		tag, payload = 's', x
	case int64:
		tag, payload = 'i', strconv.FormatInt(x, 10)
	case float64:
		tag, payload = 'f', strconv.FormatUint(math.Float64bits(x), 16)
	case bool:
		tag, payload = 'b', strconv.FormatBool(x)
	case time.Time:
		tag, payload = 't', strconv.FormatInt(x.UnixNano(), 10)
	default:
		tag = '?'
	}
	b.WriteByte(tag)
	b.WriteString(strconv.Itoa(len(payload)))
	b.WriteByte(':')
	b.WriteString(payload)
}
