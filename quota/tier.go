package quota

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Policy limit of one category within one tier
type Policy struct {
	Limit  int64
	Window time.Duration
}

// IsUnlimited reports whether counting is skipped for this policy
func (p Policy) IsUnlimited() bool {
	return p.Limit == Unlimited
}

// PolicyTable tier -> category -> policy
type PolicyTable map[Tier]map[Category]Policy

// Validate checks limits and windows of every entry
func (t PolicyTable) Validate(fallback Tier) error {
	if len(t) == 0 {
		return &ValidationError{Field: "tiers", Message: "tier table is empty"}
	}
	if _, ok := t[fallback]; !ok {
		return &ValidationError{Field: "tiers." + string(fallback), Message: "fallback tier is not defined"}
	}
	for tier, row := range t {
		for category, p := range row {
			field := fmt.Sprintf("tiers.%s.%s", tier, category)
			if p.IsUnlimited() {
				continue
			}
			if p.Limit <= 0 {
				return &ValidationError{Field: field + ".limit", Message: "must be > 0 or -1 (unlimited)"}
			}
			if p.Window <= 0 {
				return &ValidationError{Field: field + ".window", Message: "must be > 0"}
			}
		}
	}
	return nil
}

// Clone deep copy
func (t PolicyTable) Clone() PolicyTable {
	out := make(PolicyTable, len(t))
	for tier, row := range t {
		r := make(map[Category]Policy, len(row))
		for c, p := range row {
			r[c] = p
		}
		out[tier] = r
	}
	return out
}

// Resolver maps (tier, category) to a policy
//
// Reads are lock-free. Update publishes a whole new table, so readers never observe a
// partially updated one.
type Resolver struct {
	table    atomic.Pointer[PolicyTable]
	fallback Tier
}

// NewResolver creates a resolver; fallback is the most restrictive tier
func NewResolver(table PolicyTable, fallback Tier) (*Resolver, error) {
	if fallback == "" {
		fallback = TierFree
	}
	r := &Resolver{fallback: fallback}
	if err := r.Update(table); err != nil {
		return nil, err
	}
	return r, nil
}

// Resolve policy for tier and category
//
// An unknown tier, or a tier without an entry for the category, resolves through the
// fallback tier. A category the fallback tier does not define is ErrUnknownCategory.
func (r *Resolver) Resolve(tier Tier, category Category) (Policy, error) {
	table := *r.table.Load()

	if row, ok := table[tier]; ok {
		if p, ok := row[category]; ok {
			return p, nil
		}
	}
	if p, ok := table[r.fallback][category]; ok {
		return p, nil
	}
	return Policy{}, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
}

// Fallback the tier used for unknown principals
func (r *Resolver) Fallback() Tier {
	return r.fallback
}

// Table snapshot of the current table
func (r *Resolver) Table() PolicyTable {
	return (*r.table.Load()).Clone()
}

// Update validates and atomically swaps the table
func (r *Resolver) Update(table PolicyTable) error {
	if err := table.Validate(r.fallback); err != nil {
		return err
	}
	snapshot := table.Clone()
	r.table.Store(&snapshot)
	return nil
}

// TierLookup resolves a principal to its subscription tier
type TierLookup interface {
	LookupTier(ctx context.Context, principalID string) (Tier, error)
}

// TierLookupFunc function adapter for TierLookup
type TierLookupFunc func(ctx context.Context, principalID string) (Tier, error)

// LookupTier implements TierLookup
func (f TierLookupFunc) LookupTier(ctx context.Context, principalID string) (Tier, error) {
	return f(ctx, principalID)
}

// StaticTier lookup returning the same tier for everyone
func StaticTier(tier Tier) TierLookup {
	return TierLookupFunc(func(context.Context, string) (Tier, error) {
		return tier, nil
	})
}
