package tierstore

import (
	"time"

	"github.com/KOMKZ/go-yogan-quota/quota"
)

// TierPolicyRow one cell of the tier table
type TierPolicyRow struct {
	ID       uint   `gorm:"primaryKey"`
	Tier     string `gorm:"size:32;not null;uniqueIndex:idx_tier_category"`
	Category string `gorm:"size:64;not null;uniqueIndex:idx_tier_category"`

	// Limit -1 is unlimited
	Limit    int64 `gorm:"not null"`
	WindowMs int64 `gorm:"not null"`

	UpdatedAt time.Time
}

func (TierPolicyRow) TableName() string {
	return "quota_tier_policies"
}

// Policy converts the row to an engine policy
func (r TierPolicyRow) Policy() quota.Policy {
	return quota.Policy{
		Limit:  r.Limit,
		Window: time.Duration(r.WindowMs) * time.Millisecond,
	}
}

// Subscription tier a user is subscribed to
type Subscription struct {
	UserID string `gorm:"primaryKey;size:128"`
	Tier   string `gorm:"size:32;not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Subscription) TableName() string {
	return "quota_subscriptions"
}
