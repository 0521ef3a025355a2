package quota

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// WindowClock time arithmetic for fixed windows (stateless apart from the clock source)
type WindowClock struct {
	clock clockwork.Clock
}

// NewWindowClock creates a window clock; nil uses the real clock
func NewWindowClock(clock clockwork.Clock) WindowClock {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return WindowClock{clock: clock}
}

// Now current time
func (c WindowClock) Now() time.Time {
	return c.clock.Now()
}

// Clock underlying clock source
func (c WindowClock) Clock() clockwork.Clock {
	return c.clock
}

// ResetAt reset boundary of a window opened at now
func ResetAt(now time.Time, window time.Duration) time.Time {
	return now.Add(window)
}

// RetryAfter whole seconds until resetAt, rounded up and never below one second
func RetryAfter(now, resetAt time.Time) time.Duration {
	left := resetAt.Sub(now)
	if left <= 0 {
		return time.Second
	}
	secs := (left + time.Second - 1) / time.Second
	return secs * time.Second
}

// Expired reports whether a window ending at resetAt is over
func Expired(now, resetAt time.Time) bool {
	return !now.Before(resetAt)
}
