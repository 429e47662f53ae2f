package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock reports the current time. Runs use it to stamp reports and
// measure stage durations.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

type realClock struct{}

func New() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now().UTC() }

func (realClock) Since(t time.Time) time.Duration { return time.Since(t) }

var Module = fx.Module("clock",
	fx.Provide(New),
)
