package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "memory", cfg.StoreType)
	assert.Equal(t, "free", cfg.FallbackTier)
	assert.Equal(t, DefaultViolationCapacity, cfg.Violations.Capacity)
	assert.True(t, cfg.Categories["auth"].SkipSuccessful)
	require.NoError(t, cfg.Validate())

	table := cfg.PolicyTable()
	assert.Len(t, table, 4)
	for _, tier := range []Tier{TierFree, TierPro, TierEnterprise, TierUnlimited} {
		for _, c := range []Category{CategoryAuth, CategoryPasswordReset, CategoryAPI, CategoryAnalysis, CategoryAIMinute, CategoryAIHour} {
			_, ok := table[tier][c]
			assert.True(t, ok, "%s/%s missing", tier, c)
		}
	}
	assert.Equal(t, Unlimited, table[TierUnlimited][CategoryAPI].Limit)
	assert.False(t, table[TierUnlimited][CategoryAuth].IsUnlimited(), "auth stays limited for every tier")
}

func TestConfig_ApplyDefaultsMergesOverrides(t *testing.T) {
	cfg := Config{
		Enabled: true,
		Tiers: map[string]map[string]PolicyConfig{
			"free": {"api": {Limit: 10, Window: 30 * time.Second}},
		},
	}
	cfg.ApplyDefaults()

	assert.Equal(t, "memory", cfg.StoreType)
	assert.Equal(t, "quota:", cfg.Redis.KeyPrefix)
	assert.Equal(t, 50*time.Millisecond, cfg.Redis.Timeout)
	assert.Equal(t, time.Minute, cfg.CleanupInterval)
	assert.Equal(t, 500, cfg.EventBusBuffer)

	assert.Equal(t, PolicyConfig{Limit: 10, Window: 30 * time.Second}, cfg.Tiers["free"]["api"])
	assert.Equal(t, DefaultTiers()["free"]["auth"], cfg.Tiers["free"]["auth"])
	assert.Contains(t, cfg.Tiers, "enterprise")
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"bad store type", func(c *Config) { c.StoreType = "etcd" }, "StoreType"},
		{"redis without instance", func(c *Config) { c.StoreType = "redis" }, "redis.instance"},
		{"negative delay", func(c *Config) { c.Delay.Base = -time.Second }, "delay"},
		{"max below base", func(c *Config) { c.Delay = ProgressiveDelay{Base: time.Second, Max: time.Millisecond} }, "delay.max"},
		{"unknown fallback", func(c *Config) { c.FallbackTier = "gold" }, "tiers.gold"},
		{"zero window", func(c *Config) { c.Tiers["pro"]["api"] = PolicyConfig{Limit: 5} }, "tiers.pro.api.window"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestConfig_DisabledSkipsValidation(t *testing.T) {
	cfg := Config{Enabled: false, StoreType: "bogus"}
	assert.NoError(t, cfg.Validate())
}

func TestConfig_CategoryOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Categories["api"] = CategoryOptions{SkipFailed: true}

	opts := cfg.CategoryOptions()
	assert.True(t, opts[CategoryAuth].SkipSuccessful)
	assert.True(t, opts[CategoryAPI].SkipFailed)
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Field: "delay.max", Message: "must be >= delay.base"}
	assert.Equal(t, "quota config validation failed for field 'delay.max': must be >= delay.base", err.Error())
	assert.Equal(t, "quota config validation failed", (&ValidationError{}).Error())
}
