package admin

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-quota/httpx"
	"github.com/KOMKZ/go-yogan-quota/logger"
	"github.com/KOMKZ/go-yogan-quota/quota"
)

// QuotaService running quota engine; *quota.Component implements it
type QuotaService interface {
	Engine() *quota.Engine
	Recorder() *quota.Recorder
	UpdateTiers(ctx context.Context, table quota.PolicyTable) error
}

// TablePersister durable copy of the tier table (tierstore)
type TablePersister interface {
	SaveTable(ctx context.Context, table quota.PolicyTable) error
}

// SubscriptionStore user tier assignments (tierstore)
type SubscriptionStore interface {
	SetSubscription(ctx context.Context, userID string, tier quota.Tier) error
	DeleteSubscription(ctx context.Context, userID string) error
}

// Handler administrative endpoints over a running quota engine
type Handler struct {
	quota         QuotaService
	persister     TablePersister
	subscriptions SubscriptionStore
	invalidate    func(userID string)
	logger        logger.CtxLogger
}

// Option Handler option
type Option func(*Handler)

// WithTablePersister PUT /tiers also saves the table
func WithTablePersister(p TablePersister) Option {
	return func(h *Handler) { h.persister = p }
}

// WithSubscriptions enables the subscription routes; invalidate drops cached lookups
func WithSubscriptions(store SubscriptionStore, invalidate func(userID string)) Option {
	return func(h *Handler) {
		h.subscriptions = store
		h.invalidate = invalidate
	}
}

func WithLogger(log logger.CtxLogger) Option {
	return func(h *Handler) { h.logger = log }
}

func NewHandler(q QuotaService, opts ...Option) *Handler {
	h := &Handler{quota: q}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.GetLogger("admin")
	}
	return h
}

// RegisterRoutes mounts the admin API on router
//
//	GET    /violations?n=
//	DELETE /violations
//	GET    /buckets/:category/:principal?tier=
//	DELETE /buckets/:category/:principal
//	GET    /tiers
//	PUT    /tiers
//	PUT    /subscriptions/:user_id
//	DELETE /subscriptions/:user_id
func RegisterRoutes(router gin.IRouter, h *Handler) {
	router.GET("/violations", httpx.Wrap(h.ListViolations))
	router.DELETE("/violations", httpx.Wrap(h.ClearViolations))
	router.GET("/buckets/:category/:principal", httpx.Wrap(h.GetBucket))
	router.DELETE("/buckets/:category/:principal", httpx.Wrap(h.ResetBucket))
	router.GET("/tiers", httpx.Wrap(h.GetTiers))
	router.PUT("/tiers", httpx.Wrap(h.UpdateTiers))
	router.PUT("/subscriptions/:user_id", httpx.Wrap(h.SetSubscription))
	router.DELETE("/subscriptions/:user_id", httpx.Wrap(h.DeleteSubscription))
}

func (h *Handler) engine() (*quota.Engine, error) {
	if h.quota == nil || h.quota.Engine() == nil {
		return nil, ErrQuotaNotStarted
	}
	return h.quota.Engine(), nil
}

func (h *Handler) ListViolations(c *gin.Context, req *ListViolationsReq) (*ListViolationsResp, error) {
	if _, err := h.engine(); err != nil {
		return nil, err
	}
	rec := h.quota.Recorder()
	items := rec.Recent(req.N)
	return &ListViolationsResp{Count: len(items), Capacity: rec.Cap(), Items: items}, nil
}

func (h *Handler) ClearViolations(c *gin.Context, req *ClearViolationsReq) (*ClearViolationsResp, error) {
	if _, err := h.engine(); err != nil {
		return nil, err
	}
	rec := h.quota.Recorder()
	n := rec.Len()
	rec.Clear()
	h.logger.InfoCtx(c.Request.Context(), "Violations cleared", zap.Int("count", n))
	return &ClearViolationsResp{Cleared: n}, nil
}

func (h *Handler) GetBucket(c *gin.Context, req *BucketReq) (*BucketResp, error) {
	engine, err := h.engine()
	if err != nil {
		return nil, err
	}

	tier := quota.Tier(req.Tier)
	if tier == "" {
		tier = engine.Resolver().Fallback()
	}

	resp := &BucketResp{}
	for _, category := range expandCategory(req.Category) {
		d, err := engine.Status(c.Request.Context(), category, principalFor(category, req.Principal), tier)
		if err != nil {
			return nil, mapEngineError(err, req.Category)
		}
		status := BucketStatus{
			Key:       d.Key,
			Category:  string(d.Category),
			Tier:      string(d.Tier),
			Limit:     d.Limit,
			Remaining: d.Remaining,
			Exhausted: !d.Allowed,
		}
		if !d.ResetAt.IsZero() {
			resetAt := d.ResetAt.UTC()
			status.ResetAt = &resetAt
		}
		resp.Buckets = append(resp.Buckets, status)
	}
	return resp, nil
}

func (h *Handler) ResetBucket(c *gin.Context, req *BucketReq) (*ResetBucketResp, error) {
	engine, err := h.engine()
	if err != nil {
		return nil, err
	}
	ctx := c.Request.Context()

	resp := &ResetBucketResp{}
	for _, category := range expandCategory(req.Category) {
		if _, err := engine.Resolver().Resolve(engine.Resolver().Fallback(), category); err != nil {
			return nil, mapEngineError(err, req.Category)
		}
		principal := principalFor(category, req.Principal)
		if err := engine.Reset(ctx, category, principal); err != nil {
			return nil, err
		}
		resp.Reset = append(resp.Reset, quota.BucketKey(category, principal))
	}

	h.logger.InfoCtx(ctx, "Quota bucket reset",
		zap.String("category", req.Category),
		zap.String("principal", req.Principal))
	return resp, nil
}

func (h *Handler) GetTiers(c *gin.Context, req *GetTiersReq) (*TiersResp, error) {
	engine, err := h.engine()
	if err != nil {
		return nil, err
	}
	resolver := engine.Resolver()
	return tiersResp(resolver.Table(), resolver.Fallback()), nil
}

// UpdateTiers swaps the live table first, then persists it
func (h *Handler) UpdateTiers(c *gin.Context, req *UpdateTiersReq) (*TiersResp, error) {
	engine, err := h.engine()
	if err != nil {
		return nil, err
	}
	ctx := c.Request.Context()
	table := req.Table()

	if err := h.quota.UpdateTiers(ctx, table); err != nil {
		if errors.Is(err, quota.ErrInvalidConfig) {
			return nil, ErrTierTableRejected.WithMsgf("Tier table rejected: %v", err).Wrap(err)
		}
		return nil, err
	}

	if h.persister != nil {
		if err := h.persister.SaveTable(ctx, table); err != nil {
			h.logger.ErrorCtx(ctx, "Persist tier table failed", zap.Error(err))
			return nil, ErrPersistFailed.Wrap(err)
		}
	}

	resolver := engine.Resolver()
	return tiersResp(resolver.Table(), resolver.Fallback()), nil
}

func (h *Handler) SetSubscription(c *gin.Context, req *SetSubscriptionReq) (*SubscriptionResp, error) {
	if h.subscriptions == nil {
		return nil, ErrSubscriptionsDisabled
	}
	if err := h.subscriptions.SetSubscription(c.Request.Context(), req.UserID, quota.Tier(req.Tier)); err != nil {
		return nil, err
	}
	if h.invalidate != nil {
		h.invalidate(req.UserID)
	}
	return &SubscriptionResp{UserID: req.UserID, Tier: req.Tier}, nil
}

func (h *Handler) DeleteSubscription(c *gin.Context, req *DeleteSubscriptionReq) (*SubscriptionResp, error) {
	if h.subscriptions == nil {
		return nil, ErrSubscriptionsDisabled
	}
	if err := h.subscriptions.DeleteSubscription(c.Request.Context(), req.UserID); err != nil {
		return nil, err
	}
	if h.invalidate != nil {
		h.invalidate(req.UserID)
	}
	return &SubscriptionResp{UserID: req.UserID}, nil
}

// expandCategory "ai" addresses both dual-window buckets
func expandCategory(name string) []quota.Category {
	if name == "ai" {
		return []quota.Category{quota.CategoryAIMinute, quota.CategoryAIHour}
	}
	return []quota.Category{quota.Category(name)}
}

func principalFor(category quota.Category, principal string) string {
	if category == quota.CategoryPasswordReset {
		return quota.NormalizeEmail(principal)
	}
	return principal
}

func mapEngineError(err error, category string) error {
	if errors.Is(err, quota.ErrUnknownCategory) {
		return ErrCategoryNotFound.WithMsgf("Unknown quota category: %s", category).Wrap(err)
	}
	return err
}
