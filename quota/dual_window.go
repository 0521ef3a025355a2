package quota

import (
	"context"
	"time"
)

// DualWindow enforces a short and a long window against the same principal
//
// Unlike Engine it is check-then-increment: both windows are read first and only an
// admitted request is counted, in both windows. A request rejected by the minute
// window never touches the hour window. Concurrent requests at the boundary can
// overshoot a limit slightly, which is accepted for this policy.
type DualWindow struct {
	engine *Engine
	short  Category
	long   Category
}

// NewDualWindow creates a dual-window policy sharing the engine's store, tiers and recorder
func NewDualWindow(engine *Engine, short, long Category) *DualWindow {
	return &DualWindow{
		engine: engine,
		short:  short,
		long:   long,
	}
}

type windowCheck struct {
	category Category
	key      string
	policy   Policy
	state    WindowState
}

// Check evaluates the short window, then the long one, then counts in both
func (w *DualWindow) Check(ctx context.Context, req Request) (*Decision, error) {
	e := w.engine
	tier := e.lookupTier(ctx, req.PrincipalID)

	short, err := w.prepare(tier, w.short, req.Principal)
	if err != nil {
		return nil, err
	}
	long, err := w.prepare(tier, w.long, req.Principal)
	if err != nil {
		return nil, err
	}

	d := &Decision{Category: short.category, Key: short.key, Tier: tier, Limit: short.policy.Limit}

	for _, wc := range []*windowCheck{short, long} {
		if wc.policy.IsUnlimited() {
			continue
		}
		state, ok, err := e.store.Get(ctx, wc.key)
		if err != nil {
			d.Category, d.Key, d.Limit = wc.category, wc.key, wc.policy.Limit
			e.failOpen(ctx, d, wc.policy, err)
			return d, nil
		}
		if ok {
			wc.state = state
		}
		if wc.state.Count >= wc.policy.Limit {
			return w.rejectWindow(ctx, d, req, wc, short, long), nil
		}
	}

	now := e.clock.Now()
	for _, wc := range []*windowCheck{short, long} {
		if wc.policy.IsUnlimited() {
			continue
		}
		state, err := e.store.Increment(ctx, wc.key, wc.policy.Window)
		if err != nil {
			d.Category, d.Key, d.Limit = wc.category, wc.key, wc.policy.Limit
			e.failOpen(ctx, d, wc.policy, err)
			return d, nil
		}
		wc.state = state
	}

	d.Allowed = true
	d.Minute = w.status(short, now)
	d.Hour = w.status(long, now)
	w.bind(d, short, long)
	e.observe(ctx, d)
	return d, nil
}

// Settle skip-counting does not apply to the dual-window policy
func (w *DualWindow) Settle(ctx context.Context, d *Decision, succeeded bool) {}

// Reset drops both windows of a principal
func (w *DualWindow) Reset(ctx context.Context, principal string) error {
	if err := w.engine.store.Reset(ctx, BucketKey(w.short, principal)); err != nil {
		return err
	}
	return w.engine.store.Reset(ctx, BucketKey(w.long, principal))
}

func (w *DualWindow) prepare(tier Tier, category Category, principal string) (*windowCheck, error) {
	policy, err := w.engine.resolver.Resolve(tier, category)
	if err != nil {
		return nil, err
	}
	return &windowCheck{
		category: category,
		key:      BucketKey(category, principal),
		policy:   policy,
	}, nil
}

func (w *DualWindow) rejectWindow(ctx context.Context, d *Decision, req Request, hit, short, long *windowCheck) *Decision {
	e := w.engine
	now := e.clock.Now()

	// the long window is only read here for headers when the short one rejected
	if hit == short && !long.policy.IsUnlimited() {
		if state, ok, err := e.store.Get(ctx, long.key); err == nil && ok {
			long.state = state
		}
	}

	d.Category = hit.category
	d.Key = hit.key
	d.Limit = hit.policy.Limit
	d.ResetAt = hit.state.ResetAt
	d.RetryAfter = RetryAfter(now, hit.state.ResetAt)
	d.Minute = w.status(short, now)
	d.Hour = w.status(long, now)

	observed := hit.state.Count + 1
	e.reject(ctx, d, req, observed, observed-hit.policy.Limit, false)
	return d
}

func (w *DualWindow) status(wc *windowCheck, now time.Time) *WindowStatus {
	if wc.policy.IsUnlimited() {
		return &WindowStatus{Limit: Unlimited, Remaining: Unlimited}
	}
	resetAt := wc.state.ResetAt
	if wc.state.Count == 0 {
		resetAt = ResetAt(now, wc.policy.Window)
	}
	return &WindowStatus{
		Limit:     wc.policy.Limit,
		Remaining: max(wc.policy.Limit-wc.state.Count, 0),
		ResetAt:   resetAt,
	}
}

// bind copies the tighter window into the top-level fields
func (w *DualWindow) bind(d *Decision, short, long *windowCheck) {
	switch {
	case short.policy.IsUnlimited() && long.policy.IsUnlimited():
		d.Limit, d.Remaining = Unlimited, Unlimited
		return
	case short.policy.IsUnlimited():
		d.Category, d.Key = long.category, long.key
		d.Limit, d.Remaining, d.ResetAt = d.Hour.Limit, d.Hour.Remaining, d.Hour.ResetAt
		return
	case long.policy.IsUnlimited():
		d.Limit, d.Remaining, d.ResetAt = d.Minute.Limit, d.Minute.Remaining, d.Minute.ResetAt
		return
	}

	if d.Hour.Remaining < d.Minute.Remaining {
		d.Category, d.Key = long.category, long.key
		d.Limit, d.Remaining, d.ResetAt = d.Hour.Limit, d.Hour.Remaining, d.Hour.ResetAt
		return
	}
	d.Limit, d.Remaining, d.ResetAt = d.Minute.Limit, d.Minute.Remaining, d.Minute.ResetAt
}
