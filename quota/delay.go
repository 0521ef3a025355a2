package quota

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// ProgressiveDelay pause applied to over-quota requests before they are rejected
type ProgressiveDelay struct {
	Base time.Duration `mapstructure:"base"`
	Max  time.Duration `mapstructure:"max"`
}

// For delay for a request exceeding the limit by exceedBy: min(exceedBy*Base, Max)
func (p ProgressiveDelay) For(exceedBy int64) time.Duration {
	if exceedBy <= 0 || p.Base <= 0 || p.Max <= 0 {
		return 0
	}
	// exceedBy <= Max/Base cannot overflow the multiplication below
	if exceedBy > int64(p.Max/p.Base) {
		return p.Max
	}
	d := time.Duration(exceedBy) * p.Base
	if d > p.Max {
		return p.Max
	}
	return d
}

// Wait blocks for d or until ctx is done; returns the time actually waited
func (p ProgressiveDelay) Wait(ctx context.Context, clock clockwork.Clock, d time.Duration) (time.Duration, error) {
	if d <= 0 {
		return 0, nil
	}
	start := clock.Now()
	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.Chan():
		return d, nil
	case <-ctx.Done():
		return clock.Since(start), ctx.Err()
	}
}
