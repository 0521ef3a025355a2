package quota

import (
	"context"
	"strings"
)

// CategoryLimiter an engine bound to one category
type CategoryLimiter struct {
	engine    *Engine
	category  Category
	normalize func(string) string
}

// NewCategoryLimiter binds engine to category
func NewCategoryLimiter(engine *Engine, category Category) *CategoryLimiter {
	return &CategoryLimiter{engine: engine, category: category}
}

// Category returns the bound category
func (l *CategoryLimiter) Category() Category {
	return l.category
}

// Check implements Limiter
func (l *CategoryLimiter) Check(ctx context.Context, req Request) (*Decision, error) {
	req.Category = l.category
	if l.normalize != nil {
		req.Principal = l.normalize(req.Principal)
	}
	return l.engine.Check(ctx, req)
}

// Settle implements Limiter
func (l *CategoryLimiter) Settle(ctx context.Context, d *Decision, succeeded bool) {
	l.engine.Settle(ctx, d, succeeded)
}

// Reset drops the bucket of principal
func (l *CategoryLimiter) Reset(ctx context.Context, principal string) error {
	if l.normalize != nil {
		principal = l.normalize(principal)
	}
	return l.engine.Reset(ctx, l.category, principal)
}

// NormalizeEmail trims and lower-cases an address so "A@x.io " and "a@x.io" share a bucket
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Policies the named policies of the product
//
// Principals are derived by the caller: IP for Auth, email for PasswordReset, user id
// for API, Analysis and AI.
type Policies struct {
	Auth          *CategoryLimiter
	PasswordReset *CategoryLimiter
	API           *CategoryLimiter
	Analysis      *CategoryLimiter
	AI            *DualWindow
}

// NewPolicies builds every named policy over one engine
func NewPolicies(engine *Engine) *Policies {
	reset := NewCategoryLimiter(engine, CategoryPasswordReset)
	reset.normalize = NormalizeEmail

	return &Policies{
		Auth:          NewCategoryLimiter(engine, CategoryAuth),
		PasswordReset: reset,
		API:           NewCategoryLimiter(engine, CategoryAPI),
		Analysis:      NewCategoryLimiter(engine, CategoryAnalysis),
		AI:            NewDualWindow(engine, CategoryAIMinute, CategoryAIHour),
	}
}

// Lookup returns a policy by name ("auth", "password_reset", "api", "analysis", "ai")
func (p *Policies) Lookup(name string) (Limiter, bool) {
	switch name {
	case string(CategoryAuth):
		return p.Auth, true
	case string(CategoryPasswordReset):
		return p.PasswordReset, true
	case string(CategoryAPI):
		return p.API, true
	case string(CategoryAnalysis):
		return p.Analysis, true
	case "ai":
		return p.AI, true
	default:
		return nil, false
	}
}
