package tierstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-quota/component"
	"github.com/KOMKZ/go-yogan-quota/logger"
	"github.com/KOMKZ/go-yogan-quota/quota"
)

// Component tier store lifecycle wrapper, reads the "tierstore" section
type Component struct {
	config Config
	store  *Store
	lookup *SubscriptionLookup
	logger logger.CtxLogger
}

func NewComponent() *Component {
	return &Component{}
}

func (c *Component) Name() string {
	return component.ComponentTierStore
}

func (c *Component) DependsOn() []string {
	return []string{component.ComponentConfig, component.ComponentLogger}
}

// Init opens the database and migrates it when auto_migrate is set
func (c *Component) Init(ctx context.Context, loader component.ConfigLoader) error {
	if c.logger == nil {
		c.logger = logger.GetLogger("tierstore")
	}

	cfg := DefaultConfig()
	if loader.IsSet("tierstore") {
		if err := loader.Unmarshal("tierstore", &cfg); err != nil {
			return fmt.Errorf("read tierstore config failed: %w", err)
		}
	}
	c.config = cfg
	if !cfg.Enabled {
		c.logger.DebugCtx(ctx, "Tier store disabled, tiers come from configuration")
		return nil
	}

	store, err := Open(cfg, c.logger)
	if err != nil {
		return err
	}
	if cfg.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return err
		}
	}

	c.store = store
	c.lookup = NewSubscriptionLookup(store, WithCacheTTL(cfg.CacheTTL), WithLookupTimeout(cfg.LookupTimeout))
	c.logger.InfoCtx(ctx, "Tier store opened", zap.String("driver", cfg.Driver))
	return nil
}

func (c *Component) Start(ctx context.Context) error {
	return nil
}

func (c *Component) Stop(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	c.lookup = nil
	if err != nil {
		return fmt.Errorf("close tierstore failed: %w", err)
	}
	return nil
}

// Store nil when the tier store is disabled
func (c *Component) Store() *Store {
	return c.store
}

// TierLookup nil when the tier store is disabled
func (c *Component) TierLookup() quota.TierLookup {
	if c.lookup == nil {
		return nil
	}
	return c.lookup
}

// Lookup concrete subscription lookup, for cache invalidation
func (c *Component) Lookup() *SubscriptionLookup {
	return c.lookup
}

// GetHealthChecker implements component.HealthCheckProvider
func (c *Component) GetHealthChecker() component.HealthChecker {
	if c.store == nil {
		return nil
	}
	return NewHealthChecker(c.store)
}
