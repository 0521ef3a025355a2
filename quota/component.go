package quota

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-quota/component"
	"github.com/KOMKZ/go-yogan-quota/logger"
)

// RedisProvider hands out named redis clients (implemented by *redis.Manager)
type RedisProvider interface {
	UniversalClient(name string) goredis.UniversalClient
}

// startSweeper replaced in tests
var startSweeper = (*Sweeper).Start

// Component quota component
//
// Implements component.Component. Lifecycle: Init reads the "quota" section, Start
// builds store, engine and sweeper, Stop releases them.
type Component struct {
	config     Config
	configured bool

	redis      RedisProvider
	lookup     TierLookup
	lookupFrom func() TierLookup
	sinks      []ViolationSink
	sinksFrom  []func() ViolationSink
	clock      clockwork.Clock
	logger     Logger

	store    CounterStore
	sweeper  *Sweeper
	bus      EventBus
	metrics  *OTelMetrics
	engine   *Engine
	policies *Policies
}

// ComponentOption configures a Component
type ComponentOption func(*Component)

// WithRedisProvider sets the redis client source used by the redis store
func WithRedisProvider(p RedisProvider) ComponentOption {
	return func(c *Component) { c.redis = p }
}

// WithComponentTierLookup sets the subscription tier lookup
func WithComponentTierLookup(lookup TierLookup) ComponentOption {
	return func(c *Component) { c.lookup = lookup }
}

// WithViolationSink adds a violation sink
func WithViolationSink(sink ViolationSink) ComponentOption {
	return func(c *Component) { c.sinks = append(c.sinks, sink) }
}

// WithTierLookupFrom resolves the lookup at Start, once the component supplying it is running
//
// A nil result leaves every principal on the fallback tier.
func WithTierLookupFrom(fn func() TierLookup) ComponentOption {
	return func(c *Component) { c.lookupFrom = fn }
}

// WithViolationSinkFrom resolves a sink at Start; a nil result is skipped
func WithViolationSinkFrom(fn func() ViolationSink) ComponentOption {
	return func(c *Component) { c.sinksFrom = append(c.sinksFrom, fn) }
}

// WithComponentClock overrides the clock (tests)
func WithComponentClock(clock clockwork.Clock) ComponentOption {
	return func(c *Component) { c.clock = clock }
}

// WithComponentLogger overrides the module logger
func WithComponentLogger(log Logger) ComponentOption {
	return func(c *Component) { c.logger = log }
}

// NewComponent creates the quota component
func NewComponent(opts ...ComponentOption) *Component {
	c := &Component{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.GetLogger("quota")
	}
	return c
}

// NewComponentWithConfig creates a component that skips reading the config loader
func NewComponentWithConfig(cfg Config, opts ...ComponentOption) (*Component, error) {
	c := NewComponent(opts...)
	if err := c.configure(context.Background(), cfg); err != nil {
		return nil, err
	}
	return c, nil
}

// Name component name
func (c *Component) Name() string {
	return component.ComponentQuota
}

// DependsOn quota depends on config and logger; redis only matters for the redis store
func (c *Component) DependsOn() []string {
	return []string{component.ComponentConfig, component.ComponentLogger, "optional:" + component.ComponentRedis}
}

// Init reads the quota section
func (c *Component) Init(ctx context.Context, loader component.ConfigLoader) error {
	if c.configured {
		return nil
	}

	cfg := DefaultConfig()
	if loader.IsSet("quota") {
		if err := loader.Unmarshal("quota", &cfg); err != nil {
			return fmt.Errorf("read quota config failed: %w", err)
		}
	} else {
		c.logger.DebugCtx(ctx, "No quota section configured, using defaults")
	}

	return c.configure(ctx, cfg)
}

func (c *Component) configure(ctx context.Context, cfg Config) error {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	c.config = cfg
	c.configured = true
	if c.metrics == nil {
		c.metrics = NewOTelMetrics(cfg.Metrics)
	} else {
		c.metrics.config = cfg.Metrics
	}

	c.logger.DebugCtx(ctx, "Quota config loaded",
		zap.Bool("enabled", cfg.Enabled),
		zap.String("store_type", cfg.StoreType),
		zap.String("fallback_tier", cfg.FallbackTier),
		zap.Int("tiers", len(cfg.Tiers)))
	return nil
}

// Start builds the store and the engine
func (c *Component) Start(ctx context.Context) error {
	if !c.configured {
		if err := c.configure(ctx, DefaultConfig()); err != nil {
			return err
		}
	}
	if c.engine != nil {
		return nil
	}

	store, err := c.buildStore()
	if err != nil {
		return err
	}

	resolver, err := NewResolver(c.config.PolicyTable(), Tier(c.config.FallbackTier))
	if err != nil {
		_ = store.Close()
		return err
	}

	sinks := append([]ViolationSink(nil), c.sinks...)
	for _, from := range c.sinksFrom {
		if sink := from(); sink != nil {
			sinks = append(sinks, sink)
		}
	}
	if c.config.Violations.Log {
		sinks = append(sinks, LogSink{Logger: c.logger})
	}

	var sweeper *Sweeper
	if _, ok := store.(*MemoryStore); ok {
		sweeper = NewSweeper(store, c.config.CleanupInterval, c.clock, c.logger)
		if err := startSweeper(sweeper); err != nil {
			_ = store.Close()
			return fmt.Errorf("start quota sweeper failed: %w", err)
		}
	}

	// the recorder forwards violations to the sinks from this bus
	bus := NewEventBus(c.config.EventBusBuffer)
	opts := []Option{
		WithClock(c.clock),
		WithDelay(c.config.Delay),
		WithRecorder(NewRecorder(c.config.Violations.Capacity, sinks...)),
		WithLogger(c.logger),
		WithMetrics(c.metrics),
		WithEventBus(bus),
	}
	lookup := c.lookup
	if lookup == nil && c.lookupFrom != nil {
		lookup = c.lookupFrom()
	}
	if lookup != nil {
		opts = append(opts, WithTierLookup(lookup))
	}
	for category, o := range c.config.CategoryOptions() {
		opts = append(opts, WithCategoryOptions(category, o))
	}

	c.store = store
	c.sweeper = sweeper
	c.bus = bus
	c.engine = NewEngine(store, resolver, opts...)
	c.policies = NewPolicies(c.engine)

	c.logger.InfoCtx(ctx, "Quota engine started",
		zap.String("store_type", c.config.StoreType),
		zap.Bool("enabled", c.config.Enabled))
	return nil
}

func (c *Component) buildStore() (CounterStore, error) {
	if c.config.StoreType != string(StoreTypeRedis) {
		return NewMemoryStore(c.clock), nil
	}

	if c.redis == nil {
		return nil, fmt.Errorf("quota store_type is redis but no redis provider was supplied")
	}
	client := c.redis.UniversalClient(c.config.Redis.Instance)
	if client == nil {
		return nil, fmt.Errorf("redis instance '%s' does not exist", c.config.Redis.Instance)
	}
	return NewRedisStore(client, c.config.Redis.KeyPrefix, c.config.Redis.Timeout).WithClock(c.clock), nil
}

// Stop stops the sweeper, drains pending sink deliveries and closes the store (idempotent)
func (c *Component) Stop(ctx context.Context) error {
	if c.sweeper != nil {
		if err := c.sweeper.Stop(); err != nil {
			c.logger.WarnCtx(ctx, "Stop quota sweeper failed", zap.Error(err))
		}
		c.sweeper = nil
	}
	if c.bus != nil {
		// drains queued violations into the sinks
		c.bus.Close()
		c.bus = nil
	}
	if c.engine != nil {
		c.engine.Recorder().Close()
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			return fmt.Errorf("close quota store failed: %w", err)
		}
		c.store = nil
	}
	c.engine = nil
	c.policies = nil
	return nil
}

// Enabled whether quotas are enforced
func (c *Component) Enabled() bool {
	return c.config.Enabled
}

// Config effective configuration
func (c *Component) Config() Config {
	return c.config
}

// Engine nil before Start
func (c *Component) Engine() *Engine {
	return c.engine
}

// Policies nil before Start
func (c *Component) Policies() *Policies {
	return c.policies
}

// Recorder nil before Start
func (c *Component) Recorder() *Recorder {
	if c.engine == nil {
		return nil
	}
	return c.engine.Recorder()
}

// Subscribe registers an engine event listener; only valid after Start
func (c *Component) Subscribe(listener EventListener) {
	if c.bus != nil {
		c.bus.Subscribe(listener)
	}
}

// UpdateTiers validates and swaps the tier table of the running engine
func (c *Component) UpdateTiers(ctx context.Context, table PolicyTable) error {
	if c.engine == nil {
		return fmt.Errorf("quota component not started")
	}
	if err := c.engine.Resolver().Update(table); err != nil {
		return err
	}
	if c.bus != nil {
		c.bus.Publish(&TableUpdatedEvent{
			BaseEvent: NewBaseEvent(ctx, EventTableUpdated, "", c.clock.Now()),
			Tiers:     len(table),
		})
	}
	c.logger.InfoCtx(ctx, "Quota tier table updated", zap.Int("tiers", len(table)))
	return nil
}

// MetricsName implements component.MetricsProvider
func (c *Component) MetricsName() string {
	return c.metricsProvider().MetricsName()
}

// IsMetricsEnabled implements component.MetricsProvider
func (c *Component) IsMetricsEnabled() bool {
	return c.metricsProvider().IsMetricsEnabled()
}

// RegisterMetrics implements component.MetricsProvider
func (c *Component) RegisterMetrics(meter metric.Meter) error {
	return c.metricsProvider().RegisterMetrics(meter)
}

func (c *Component) metricsProvider() *OTelMetrics {
	if c.metrics == nil {
		c.metrics = NewOTelMetrics(c.config.Metrics)
	}
	return c.metrics
}
