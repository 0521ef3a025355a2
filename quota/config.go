package quota

import (
	"errors"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config quota configuration, read from the "quota" section
type Config struct {
	// Enabled whether to enforce quotas (false means direct passthrough)
	Enabled bool `mapstructure:"enabled"`

	// StoreType storage type: memory, redis
	StoreType string `mapstructure:"store_type"`

	// Redis configuration (required when StoreType is redis)
	Redis RedisInstanceConfig `mapstructure:"redis"`

	// CleanupInterval sweep interval of the memory store
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`

	// FallbackTier tier of anonymous principals and failed lookups
	FallbackTier string `mapstructure:"fallback_tier"`

	Delay      ProgressiveDelay `mapstructure:"delay"`
	Violations ViolationsConfig `mapstructure:"violations"`

	// EventBusBuffer event bus buffer size
	EventBusBuffer int `mapstructure:"event_bus_buffer"`

	Metrics MetricsConfig `mapstructure:"metrics"`

	// Tiers tier -> category -> policy; entries missing here are taken from the defaults
	Tiers map[string]map[string]PolicyConfig `mapstructure:"tiers"`

	// Categories per-category counting options
	Categories map[string]CategoryOptions `mapstructure:"categories"`
}

// RedisInstanceConfig reference to a redis instance of the redis manager
type RedisInstanceConfig struct {
	Instance  string        `mapstructure:"instance"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// ViolationsConfig violation recorder settings
type ViolationsConfig struct {
	Capacity int `mapstructure:"capacity"`

	// Log writes every violation to the quota logger at warn level
	Log bool `mapstructure:"log"`
}

// PolicyConfig limit and window of one tier/category pair; limit -1 is unlimited
type PolicyConfig struct {
	Limit  int64         `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		StoreType: string(StoreTypeMemory),
		Redis: RedisInstanceConfig{
			KeyPrefix: "quota:",
			Timeout:   50 * time.Millisecond,
		},
		CleanupInterval: time.Minute,
		FallbackTier:    string(TierFree),
		Delay: ProgressiveDelay{
			Base: 250 * time.Millisecond,
			Max:  3 * time.Second,
		},
		Violations: ViolationsConfig{
			Capacity: DefaultViolationCapacity,
			Log:      true,
		},
		EventBusBuffer: 500,
		Tiers:          DefaultTiers(),
		Categories: map[string]CategoryOptions{
			string(CategoryAuth): {SkipSuccessful: true},
		},
	}
}

// DefaultTiers built-in tier table
func DefaultTiers() map[string]map[string]PolicyConfig {
	row := func(auth, reset, api, analysis, aiMinute, aiHour int64) map[string]PolicyConfig {
		return map[string]PolicyConfig{
			string(CategoryAuth):          {Limit: auth, Window: 15 * time.Minute},
			string(CategoryPasswordReset): {Limit: reset, Window: time.Hour},
			string(CategoryAPI):           {Limit: api, Window: time.Minute},
			string(CategoryAnalysis):      {Limit: analysis, Window: time.Hour},
			string(CategoryAIMinute):      {Limit: aiMinute, Window: time.Minute},
			string(CategoryAIHour):        {Limit: aiHour, Window: time.Hour},
		}
	}

	return map[string]map[string]PolicyConfig{
		string(TierFree):       row(5, 3, 60, 5, 5, 50),
		string(TierPro):        row(10, 5, 300, 50, 20, 500),
		string(TierEnterprise): row(20, 10, 1000, 500, 60, 3000),
		// auth and password reset stay limited for every tier
		string(TierUnlimited): row(20, 10, Unlimited, Unlimited, Unlimited, Unlimited),
	}
}

// ApplyDefaults fills zero values and merges missing tier entries from DefaultTiers
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()

	if c.StoreType == "" {
		c.StoreType = def.StoreType
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = def.Redis.KeyPrefix
	}
	if c.Redis.Timeout <= 0 {
		c.Redis.Timeout = def.Redis.Timeout
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = def.CleanupInterval
	}
	if c.FallbackTier == "" {
		c.FallbackTier = def.FallbackTier
	}
	if c.Violations.Capacity <= 0 {
		c.Violations.Capacity = def.Violations.Capacity
	}
	if c.EventBusBuffer <= 0 {
		c.EventBusBuffer = def.EventBusBuffer
	}

	if c.Tiers == nil {
		c.Tiers = make(map[string]map[string]PolicyConfig)
	}
	for tier, row := range def.Tiers {
		if c.Tiers[tier] == nil {
			c.Tiers[tier] = make(map[string]PolicyConfig)
		}
		for category, p := range row {
			if _, ok := c.Tiers[tier][category]; !ok {
				c.Tiers[tier][category] = p
			}
		}
	}

	if c.Categories == nil {
		c.Categories = def.Categories
	}
}

// Validate configuration
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	err := validation.ValidateStruct(c,
		validation.Field(&c.StoreType, validation.Required,
			validation.In(string(StoreTypeMemory), string(StoreTypeRedis))),
		validation.Field(&c.FallbackTier, validation.Required),
		validation.Field(&c.Tiers, validation.Required),
		validation.Field(&c.EventBusBuffer, validation.Min(0)),
	)
	if err != nil {
		return toValidationError(err)
	}

	if c.StoreType == string(StoreTypeRedis) {
		if err := validation.Validate(c.Redis.Instance, validation.Required); err != nil {
			return &ValidationError{Field: "redis.instance", Err: err}
		}
	}

	if c.Delay.Base < 0 || c.Delay.Max < 0 {
		return &ValidationError{Field: "delay", Message: "base and max must be >= 0"}
	}
	if c.Delay.Base > 0 && c.Delay.Max < c.Delay.Base {
		return &ValidationError{Field: "delay.max", Message: "must be >= delay.base"}
	}

	return c.PolicyTable().Validate(Tier(c.FallbackTier))
}

// PolicyTable converts the tiers section into a PolicyTable
func (c *Config) PolicyTable() PolicyTable {
	table := make(PolicyTable, len(c.Tiers))
	for tier, row := range c.Tiers {
		r := make(map[Category]Policy, len(row))
		for category, p := range row {
			r[Category(category)] = Policy{Limit: p.Limit, Window: p.Window}
		}
		table[Tier(tier)] = r
	}
	return table
}

// CategoryOptions converts the categories section
func (c *Config) CategoryOptions() map[Category]CategoryOptions {
	out := make(map[Category]CategoryOptions, len(c.Categories))
	for category, opts := range c.Categories {
		out[Category(category)] = opts
	}
	return out
}

// toValidationError picks the first failing field of an ozzo error set
func toValidationError(err error) error {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return &ValidationError{Err: err}
	}

	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		if errs[field] != nil {
			return &ValidationError{Field: field, Err: errs[field]}
		}
	}
	return &ValidationError{Err: err}
}
