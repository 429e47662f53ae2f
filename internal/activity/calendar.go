package activity

import (
	"fmt"
	"time"

	"github.com/smallbiznis/songlake/internal/frame"
)

type calendar struct {
	name string
	of   func(time.Time) int
}

// weekday counts from Sunday = 1 to Saturday = 7. week is the ISO 8601
// week number.
var calendarFields = []calendar{
	{"year", func(t time.Time) int { return t.Year() }},
	{"month", func(t time.Time) int { return int(t.Month()) }},
	{"week", func(t time.Time) int { _, w := t.ISOWeek(); return w }},
	{"weekday", func(t time.Time) int { return int(t.Weekday()) + 1 }},
	{"day", func(t time.Time) int { return t.Day() }},
	{"hour", func(t time.Time) int { return t.Hour() }},
	{"minute", func(t time.Time) int { return t.Minute() }},
}

func calendarField(name string) calendar {
	for _, c := range calendarFields {
		if c.name == name {
			return c
		}
	}
	panic(fmt.Sprintf("activity: unknown calendar field %q", name))
}

// withCalendarField sets name to a field of start_time. Null start_time
// gives null.
func withCalendarField(f *frame.Frame, name string, of func(time.Time) int) (*frame.Frame, error) {
	idx, ok := f.Schema().Index("start_time")
	if !ok {
		return nil, fmt.Errorf("%s: %w: start_time", name, frame.ErrUnknownColumn)
	}
	return f.WithColumn(frame.Int64(name), func(r frame.Row) (any, error) {
		t, ok := r[idx].(time.Time)
		if !ok {
			return nil, nil
		}
		return int64(of(t.UTC())), nil
	})
}
