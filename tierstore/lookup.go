package tierstore

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/KOMKZ/go-yogan-quota/quota"
)

// DefaultLookupTimeout bound of one shared subscription query
const DefaultLookupTimeout = 3 * time.Second

// SubscriptionLookup quota.TierLookup over the subscriptions table
//
// Users without a subscription row resolve to the fallback tier (free by default).
// Results are cached for ttl and concurrent misses for one user share a single query.
// The shared query is detached from the first caller's cancellation and bounded by
// its own timeout instead.
type SubscriptionLookup struct {
	source   subscriptionSource
	fallback quota.Tier
	ttl      time.Duration
	timeout  time.Duration
	clock    clockwork.Clock

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]cachedTier
	// gen bumped by Invalidate; a query started under an older generation is not cached
	gen map[string]uint64
}

type subscriptionSource interface {
	Subscription(ctx context.Context, userID string) (quota.Tier, bool, error)
}

type cachedTier struct {
	tier      quota.Tier
	expiresAt time.Time
}

var _ quota.TierLookup = (*SubscriptionLookup)(nil)

// LookupOption SubscriptionLookup option
type LookupOption func(*SubscriptionLookup)

func WithFallbackTier(tier quota.Tier) LookupOption {
	return func(l *SubscriptionLookup) { l.fallback = tier }
}

// WithCacheTTL 0 disables caching
func WithCacheTTL(ttl time.Duration) LookupOption {
	return func(l *SubscriptionLookup) { l.ttl = ttl }
}

// WithLookupTimeout bounds each subscription query
func WithLookupTimeout(timeout time.Duration) LookupOption {
	return func(l *SubscriptionLookup) { l.timeout = timeout }
}

func WithLookupClock(clock clockwork.Clock) LookupOption {
	return func(l *SubscriptionLookup) { l.clock = clock }
}

func NewSubscriptionLookup(store *Store, opts ...LookupOption) *SubscriptionLookup {
	l := &SubscriptionLookup{
		source:   store,
		fallback: quota.TierFree,
		timeout:  DefaultLookupTimeout,
		clock:    clockwork.NewRealClock(),
		cache:    make(map[string]cachedTier),
		gen:      make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.timeout <= 0 {
		l.timeout = DefaultLookupTimeout
	}
	return l
}

// LookupTier implements quota.TierLookup
func (l *SubscriptionLookup) LookupTier(ctx context.Context, principalID string) (quota.Tier, error) {
	if tier, ok := l.cached(principalID); ok {
		return tier, nil
	}

	v, err, _ := l.group.Do(principalID, func() (interface{}, error) {
		gen := l.generation(principalID)

		// shared by every waiter, so one caller's cancellation must not fail the rest
		qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()

		tier, ok, err := l.source.Subscription(qctx, principalID)
		if err != nil {
			return quota.Tier(""), err
		}
		if !ok {
			tier = l.fallback
		}
		l.remember(principalID, tier, gen)
		return tier, nil
	})
	if err != nil {
		return "", err
	}
	return v.(quota.Tier), nil
}

// Invalidate forgets the cached tier of principalID
//
// A query already in flight still answers its waiters but is not cached, and the
// next caller starts a fresh one.
func (l *SubscriptionLookup) Invalidate(principalID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cache, principalID)
	l.gen[principalID]++
	l.group.Forget(principalID)
}

func (l *SubscriptionLookup) generation(principalID string) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.gen[principalID]
}

func (l *SubscriptionLookup) cached(principalID string) (quota.Tier, bool) {
	if l.ttl <= 0 {
		return "", false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.cache[principalID]
	if !ok || !l.clock.Now().Before(entry.expiresAt) {
		return "", false
	}
	return entry.tier, true
}

func (l *SubscriptionLookup) remember(principalID string, tier quota.Tier, gen uint64) {
	if l.ttl <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen[principalID] != gen {
		return
	}
	l.cache[principalID] = cachedTier{tier: tier, expiresAt: l.clock.Now().Add(l.ttl)}
}
