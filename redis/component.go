package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-quota/component"
	"github.com/KOMKZ/go-yogan-quota/logger"
)

// Component Redis lifecycle wrapper
//
// It also serves as the quota component's client provider.
type Component struct {
	manager *Manager
	logger  logger.CtxLogger
}

func NewComponent() *Component {
	return &Component{}
}

func (c *Component) Name() string {
	return component.ComponentRedis
}

func (c *Component) DependsOn() []string {
	return []string{component.ComponentConfig, component.ComponentLogger}
}

// Init connects the instances under redis.instances; no section means no Redis
func (c *Component) Init(ctx context.Context, loader component.ConfigLoader) error {
	if c.logger == nil {
		c.logger = logger.GetLogger("redis")
	}

	var configs map[string]Config
	if loader.IsSet("redis.instances") {
		if err := loader.Unmarshal("redis.instances", &configs); err != nil {
			return fmt.Errorf("read redis config failed: %w", err)
		}
	}
	if len(configs) == 0 {
		c.logger.DebugCtx(ctx, "No Redis instances configured, skipping")
		return nil
	}

	manager, err := NewManager(ctx, configs, c.logger)
	if err != nil {
		return fmt.Errorf("create redis manager failed: %w", err)
	}
	c.manager = manager
	c.logger.InfoCtx(ctx, "Redis initialized", zap.Strings("instances", manager.Names()))
	return nil
}

func (c *Component) Start(ctx context.Context) error {
	return nil
}

func (c *Component) Stop(ctx context.Context) error {
	if c.manager == nil {
		return nil
	}
	err := c.manager.Close()
	c.manager = nil
	return err
}

// UniversalClient named client, nil before Init or when not configured
func (c *Component) UniversalClient(name string) goredis.UniversalClient {
	if c.manager == nil {
		return nil
	}
	return c.manager.UniversalClient(name)
}

func (c *Component) GetManager() *Manager {
	return c.manager
}

// GetHealthChecker nil when Redis is not configured
func (c *Component) GetHealthChecker() component.HealthChecker {
	if c.manager == nil {
		return nil
	}
	return NewHealthChecker(c.manager)
}
