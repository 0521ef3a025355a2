package admin

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/KOMKZ/go-yogan-quota/quota"
)

// ListViolationsReq GET /violations
type ListViolationsReq struct {
	// N newest records to return, 0 means all
	N int `form:"n"`
}

func (r *ListViolationsReq) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.N, validation.Min(0)),
	)
}

type ListViolationsResp struct {
	Count    int               `json:"count"`
	Capacity int               `json:"capacity"`
	Items    []quota.Violation `json:"items"`
}

type ClearViolationsReq struct{}

type ClearViolationsResp struct {
	Cleared int `json:"cleared"`
}

// BucketReq GET/DELETE /buckets/:category/:principal
type BucketReq struct {
	Category  string `uri:"category"`
	Principal string `uri:"principal"`

	// Tier read-only status is evaluated against this tier (default: fallback tier)
	Tier string `form:"tier"`
}

func (r *BucketReq) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Category, validation.Required),
		validation.Field(&r.Principal, validation.Required),
	)
}

type BucketStatus struct {
	Key       string     `json:"key"`
	Category  string     `json:"category"`
	Tier      string     `json:"tier"`
	Limit     int64      `json:"limit"`
	Remaining int64      `json:"remaining"`
	ResetAt   *time.Time `json:"reset_at,omitempty"`
	Exhausted bool       `json:"exhausted"`
}

type BucketResp struct {
	Buckets []BucketStatus `json:"buckets"`
}

type ResetBucketResp struct {
	Reset []string `json:"reset"`
}

// PolicyDTO wire form of a policy; window is a Go duration string ("1m", "24h")
type PolicyDTO struct {
	Limit  int64  `json:"limit"`
	Window string `json:"window"`
}

func (p PolicyDTO) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Limit, validation.By(func(interface{}) error {
			if p.Limit == quota.Unlimited || p.Limit > 0 {
				return nil
			}
			return fmt.Errorf("must be > 0 or -1 (unlimited)")
		})),
		validation.Field(&p.Window, validation.Required, validation.By(func(interface{}) error {
			d, err := time.ParseDuration(p.Window)
			if err != nil {
				return fmt.Errorf("must be a duration such as 1m or 24h")
			}
			if d <= 0 {
				return fmt.Errorf("must be positive")
			}
			return nil
		})),
	)
}

type GetTiersReq struct{}

type TiersResp struct {
	Fallback string                          `json:"fallback"`
	Tiers    map[string]map[string]PolicyDTO `json:"tiers"`
}

// UpdateTiersReq PUT /tiers, replaces the whole table
type UpdateTiersReq struct {
	Tiers map[string]map[string]PolicyDTO `json:"tiers"`
}

func (r *UpdateTiersReq) Validate() error {
	if err := validation.ValidateStruct(r, validation.Field(&r.Tiers, validation.Required)); err != nil {
		return err
	}

	errs := validation.Errors{}
	for tier, row := range r.Tiers {
		for category, p := range row {
			if err := p.Validate(); err != nil {
				errs[fmt.Sprintf("tiers.%s.%s", tier, category)] = err
			}
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Table converts the request; windows were validated by Validate
func (r *UpdateTiersReq) Table() quota.PolicyTable {
	table := make(quota.PolicyTable, len(r.Tiers))
	for tier, row := range r.Tiers {
		policies := make(map[quota.Category]quota.Policy, len(row))
		for category, p := range row {
			window, _ := time.ParseDuration(p.Window)
			policies[quota.Category(category)] = quota.Policy{Limit: p.Limit, Window: window}
		}
		table[quota.Tier(tier)] = policies
	}
	return table
}

func tiersResp(table quota.PolicyTable, fallback quota.Tier) *TiersResp {
	resp := &TiersResp{Fallback: string(fallback), Tiers: make(map[string]map[string]PolicyDTO, len(table))}
	for tier, row := range table {
		policies := make(map[string]PolicyDTO, len(row))
		for category, p := range row {
			policies[string(category)] = PolicyDTO{Limit: p.Limit, Window: p.Window.String()}
		}
		resp.Tiers[string(tier)] = policies
	}
	return resp
}

// SetSubscriptionReq PUT /subscriptions/:user_id
type SetSubscriptionReq struct {
	UserID string `uri:"user_id"`
	Tier   string `json:"tier"`
}

func (r *SetSubscriptionReq) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.UserID, validation.Required),
		validation.Field(&r.Tier, validation.Required, validation.Length(1, 32)),
	)
}

// DeleteSubscriptionReq DELETE /subscriptions/:user_id
type DeleteSubscriptionReq struct {
	UserID string `uri:"user_id"`
}

func (r *DeleteSubscriptionReq) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.UserID, validation.Required),
	)
}

type SubscriptionResp struct {
	UserID string `json:"user_id"`
	Tier   string `json:"tier,omitempty"`
}
