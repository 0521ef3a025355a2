// Package quota provides tiered quota enforcement (rate limiting) for shared resources
//
// Design philosophy:
//   - Fixed-window counters per bucket key, stored behind a pluggable CounterStore
//   - Limits are resolved from the principal's subscription tier at check time
//   - Rejections carry machine-readable backoff data and are recorded as violations
//   - Storage failures fail open: the request is admitted and the fault is logged
//
// The default MemoryStore is process-local. Deployments running more than one
// instance must use a shared atomic backend (RedisStore), otherwise every instance
// enforces its own copy of each limit.
package quota

import (
	"context"
	"time"
)

// Tier subscription tier of a principal
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
	TierUnlimited  Tier = "unlimited"
)

// Category protected resource category
type Category string

const (
	CategoryAuth          Category = "auth"
	CategoryPasswordReset Category = "password_reset"
	CategoryAPI           Category = "api"
	CategoryAnalysis      Category = "analysis"
	CategoryAIMinute      Category = "ai_minute"
	CategoryAIHour        Category = "ai_hour"
)

// Unlimited sentinel limit: counting is skipped entirely
const Unlimited int64 = -1

// Limiter is implemented by every named policy
type Limiter interface {
	// Check decides whether the request is admitted
	Check(ctx context.Context, req Request) (*Decision, error)

	// Settle reports the outcome of an admitted request (used for skip-counting)
	Settle(ctx context.Context, d *Decision, succeeded bool)
}

// Request describes one inbound request as seen by the engine
type Request struct {
	// Category resource category (filled in by named policies)
	Category Category

	// Principal identifier the bucket is keyed by (user id, IP or email)
	Principal string

	// PrincipalID identifier handed to the tier lookup, empty for anonymous requests
	PrincipalID string

	// Request metadata, copied into violation records
	IP        string
	Path      string
	Method    string
	UserAgent string
}

// Decision result of a quota check
type Decision struct {
	Allowed  bool
	Category Category
	Key      string
	Tier     Tier

	// Limit is Unlimited (-1) for unlimited tiers
	Limit     int64
	Remaining int64
	ResetAt   time.Time

	// RetryAfter is only set on rejection, always a whole number of seconds
	RetryAfter time.Duration

	// Delay progressive delay applied before the rejection was returned
	Delay time.Duration

	// FailOpen is true when the store was unavailable and the request was admitted unchecked
	FailOpen bool

	// Minute and Hour are set by the dual-window policy only
	Minute *WindowStatus
	Hour   *WindowStatus

	skipOnSuccess bool
	skipOnFailure bool
	counted       bool
}

// WindowStatus state of one window of a dual-window decision
type WindowStatus struct {
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// Unlimited reports whether the decision was made for an unlimited tier
func (d *Decision) Unlimited() bool {
	return d.Limit == Unlimited
}

// RetryAfterSeconds returns Retry-After in whole seconds
func (d *Decision) RetryAfterSeconds() int64 {
	return int64(d.RetryAfter / time.Second)
}
