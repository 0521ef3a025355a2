package quota

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// CategoryOptions per-category counting behaviour
type CategoryOptions struct {
	// SkipSuccessful un-counts requests whose handler succeeded (e.g. count failed logins only)
	SkipSuccessful bool `mapstructure:"skip_successful"`

	// SkipFailed un-counts requests whose handler failed
	SkipFailed bool `mapstructure:"skip_failed"`
}

// Engine single-window quota engine
//
// Ordering is increment-then-check: the counter is incremented before the limit is
// compared, so a rejected request still consumes a slot. With an atomic store this
// closes the race where concurrent requests at the boundary all read "below limit"
// and all get admitted.
type Engine struct {
	store      CounterStore
	resolver   *Resolver
	lookup     TierLookup
	clock      WindowClock
	delay      ProgressiveDelay
	recorder   *Recorder
	logger     Logger
	metrics    *OTelMetrics
	bus        EventBus
	categories map[Category]CategoryOptions
}

// Option configures an Engine
type Option func(*Engine)

// WithTierLookup sets the tier lookup; without one every principal is on the fallback tier
func WithTierLookup(lookup TierLookup) Option {
	return func(e *Engine) { e.lookup = lookup }
}

// WithClock sets the clock
func WithClock(clock clockwork.Clock) Option {
	return func(e *Engine) { e.clock = NewWindowClock(clock) }
}

// WithDelay sets the progressive delay
func WithDelay(delay ProgressiveDelay) Option {
	return func(e *Engine) { e.delay = delay }
}

// WithRecorder sets the violation recorder
func WithRecorder(recorder *Recorder) Option {
	return func(e *Engine) { e.recorder = recorder }
}

// WithLogger sets the logger
func WithLogger(log Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.logger = log
		}
	}
}

// WithMetrics sets the metrics provider
func WithMetrics(metrics *OTelMetrics) Option {
	return func(e *Engine) { e.metrics = metrics }
}

// WithEventBus sets the event bus
func WithEventBus(bus EventBus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithCategoryOptions sets counting options of one category
func WithCategoryOptions(category Category, opts CategoryOptions) Option {
	return func(e *Engine) { e.categories[category] = opts }
}

// NewEngine creates an engine over store and resolver
func NewEngine(store CounterStore, resolver *Resolver, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		resolver:   resolver,
		clock:      NewWindowClock(nil),
		recorder:   NewRecorder(DefaultViolationCapacity),
		logger:     nopLogger{},
		categories: make(map[Category]CategoryOptions),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.recorder.SetLogger(e.logger)
	if e.bus != nil {
		e.recorder.Attach(e.bus)
	}
	return e
}

// Check admits or rejects one request
//
// A non-nil error is only returned for configuration errors (unknown category). Store
// failures are logged and the request is admitted with FailOpen set.
func (e *Engine) Check(ctx context.Context, req Request) (*Decision, error) {
	tier := e.lookupTier(ctx, req.PrincipalID)

	policy, err := e.resolver.Resolve(tier, req.Category)
	if err != nil {
		return nil, err
	}

	d := &Decision{
		Category: req.Category,
		Key:      BucketKey(req.Category, req.Principal),
		Tier:     tier,
		Limit:    policy.Limit,
	}

	if policy.IsUnlimited() {
		d.Allowed = true
		d.Remaining = Unlimited
		e.observe(ctx, d)
		return d, nil
	}

	state, err := e.store.Increment(ctx, d.Key, policy.Window)
	if err != nil {
		e.failOpen(ctx, d, policy, err)
		return d, nil
	}

	opts := e.categories[req.Category]
	d.ResetAt = state.ResetAt
	d.counted = true
	d.skipOnSuccess = opts.SkipSuccessful
	d.skipOnFailure = opts.SkipFailed

	if state.Count <= policy.Limit {
		d.Allowed = true
		d.Remaining = policy.Limit - state.Count
		e.observe(ctx, d)
		return d, nil
	}

	d.RetryAfter = RetryAfter(e.clock.Now(), state.ResetAt)
	e.reject(ctx, d, req, state.Count, state.Count-policy.Limit, true)
	return d, nil
}

// Settle applies skip-counting for an admitted request once its outcome is known
//
// The compensating decrement is best effort. Stores returning ErrStoreNotSupported
// (RedisStore) make it a no-op, so skip options only take effect on MemoryStore.
func (e *Engine) Settle(ctx context.Context, d *Decision, succeeded bool) {
	if d == nil || !d.Allowed || !d.counted {
		return
	}
	if !(succeeded && d.skipOnSuccess) && !(!succeeded && d.skipOnFailure) {
		return
	}
	d.counted = false

	if err := e.store.Decrement(ctx, d.Key); err != nil {
		if errors.Is(err, ErrStoreNotSupported) {
			e.logger.DebugCtx(ctx, "Skip-counting not supported by store", zap.String("key", d.Key))
			return
		}
		e.logger.WarnCtx(ctx, "Compensating decrement failed", zap.String("key", d.Key), zap.Error(err))
	}
}

// Status read-only view of a principal's bucket
func (e *Engine) Status(ctx context.Context, category Category, principal string, tier Tier) (*Decision, error) {
	policy, err := e.resolver.Resolve(tier, category)
	if err != nil {
		return nil, err
	}

	d := &Decision{
		Category: category,
		Key:      BucketKey(category, principal),
		Tier:     tier,
		Limit:    policy.Limit,
		Allowed:  true,
	}
	if policy.IsUnlimited() {
		d.Remaining = Unlimited
		return d, nil
	}

	state, ok, err := e.store.Get(ctx, d.Key)
	if err != nil {
		return nil, err
	}
	if !ok {
		d.Remaining = policy.Limit
		d.ResetAt = ResetAt(e.clock.Now(), policy.Window)
		return d, nil
	}

	d.ResetAt = state.ResetAt
	d.Remaining = max(policy.Limit-state.Count, 0)
	d.Allowed = state.Count < policy.Limit
	return d, nil
}

// Reset administrative override: drops a principal's bucket
func (e *Engine) Reset(ctx context.Context, category Category, principal string) error {
	return e.store.Reset(ctx, BucketKey(category, principal))
}

// Resolver tier policy resolver
func (e *Engine) Resolver() *Resolver {
	return e.resolver
}

// Recorder violation recorder
func (e *Engine) Recorder() *Recorder {
	return e.recorder
}

// Store counter store
func (e *Engine) Store() CounterStore {
	return e.store
}

// lookupTier never fails: errors and anonymous principals map to the fallback tier
func (e *Engine) lookupTier(ctx context.Context, principalID string) Tier {
	fallback := e.resolver.Fallback()
	if e.lookup == nil || principalID == "" {
		return fallback
	}

	tier, err := e.lookup.LookupTier(ctx, principalID)
	if err != nil {
		e.logger.WarnCtx(ctx, "Tier lookup failed, using fallback tier",
			zap.String("principal_id", principalID),
			zap.String("fallback", string(fallback)),
			zap.Error(err))
		return fallback
	}
	if tier == "" {
		return fallback
	}
	return tier
}

func (e *Engine) failOpen(ctx context.Context, d *Decision, policy Policy, err error) {
	d.Allowed = true
	d.FailOpen = true
	d.Remaining = policy.Limit
	d.ResetAt = ResetAt(e.clock.Now(), policy.Window)

	e.logger.WarnCtx(ctx, "Counter store unavailable, failing open",
		zap.String("key", d.Key),
		zap.String("category", string(d.Category)),
		zap.Error(err))

	if e.bus != nil {
		e.bus.Publish(&FailOpenEvent{
			BaseEvent: NewBaseEvent(ctx, EventFailOpen, d.Category, e.clock.Now()),
			Key:       d.Key,
			Err:       err,
		})
	}
	e.metrics.recordDecision(ctx, d)
}

// reject records the violation, then applies the progressive delay when withDelay is set
func (e *Engine) reject(ctx context.Context, d *Decision, req Request, observed, exceedBy int64, withDelay bool) {
	d.Allowed = false
	d.Remaining = 0

	v := Violation{
		ID:            uuid.NewString(),
		Key:           d.Key,
		Category:      d.Category,
		Tier:          d.Tier,
		Limit:         d.Limit,
		ObservedCount: observed,
		ExceedBy:      exceedBy,
		PrincipalIP:   req.IP,
		ResourcePath:  req.Path,
		Method:        req.Method,
		UserAgent:     req.UserAgent,
		Timestamp:     e.clock.Now(),
	}
	// queued for the sinks; the counter store stays the only I/O on this path
	e.recorder.Record(ctx, v)

	var delay time.Duration
	if withDelay {
		delay = e.delay.For(exceedBy)
	}
	e.logger.DebugCtx(ctx, "Quota exceeded",
		zap.String("key", d.Key),
		zap.Int64("limit", d.Limit),
		zap.Int64("observed", observed),
		zap.Duration("retry_after", d.RetryAfter),
		zap.Duration("delay", delay))

	if delay > 0 {
		waited, err := e.delay.Wait(ctx, e.clock.Clock(), delay)
		d.Delay = waited
		if err != nil {
			e.logger.DebugCtx(ctx, "Progressive delay interrupted", zap.String("key", d.Key), zap.Error(err))
		}
	}

	if e.bus != nil {
		e.bus.Publish(&RejectedEvent{
			BaseEvent:  NewBaseEvent(ctx, EventRejected, d.Category, e.clock.Now()),
			Key:        d.Key,
			Tier:       d.Tier,
			RetryAfter: d.RetryAfter,
			Delay:      d.Delay,
			ExceedBy:   exceedBy,
		})
	}
	e.metrics.recordDecision(ctx, d)
	e.metrics.recordViolation(ctx, v, d.Delay)
}

func (e *Engine) observe(ctx context.Context, d *Decision) {
	if e.bus != nil {
		e.bus.Publish(&AdmittedEvent{
			BaseEvent: NewBaseEvent(ctx, EventAdmitted, d.Category, e.clock.Now()),
			Key:       d.Key,
			Tier:      d.Tier,
			Remaining: d.Remaining,
			Limit:     d.Limit,
		})
	}
	e.metrics.recordDecision(ctx, d)
}
