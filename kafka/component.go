package kafka

import (
	"context"
	"fmt"

	"github.com/KOMKZ/go-yogan-quota/component"
	"github.com/KOMKZ/go-yogan-quota/logger"
	"github.com/KOMKZ/go-yogan-quota/quota"
)

// Component Kafka lifecycle wrapper, reads the "kafka" section
//
// A missing or disabled section leaves the component inert: Publisher returns nil.
type Component struct {
	manager *Manager
	logger  logger.CtxLogger
}

func NewComponent() *Component {
	return &Component{}
}

func (c *Component) Name() string {
	return component.ComponentKafka
}

func (c *Component) DependsOn() []string {
	return []string{component.ComponentConfig, component.ComponentLogger}
}

func (c *Component) Init(ctx context.Context, loader component.ConfigLoader) error {
	if c.logger == nil {
		c.logger = logger.GetLogger("kafka")
	}

	var cfg Config
	if loader.IsSet("kafka") {
		if err := loader.Unmarshal("kafka", &cfg); err != nil {
			return fmt.Errorf("read kafka config failed: %w", err)
		}
	}
	if !cfg.Enabled {
		c.logger.DebugCtx(ctx, "Kafka violation publishing disabled")
		return nil
	}

	manager, err := NewManager(cfg, c.logger)
	if err != nil {
		return fmt.Errorf("create kafka manager failed: %w", err)
	}
	c.manager = manager
	return nil
}

func (c *Component) Start(ctx context.Context) error {
	if c.manager == nil {
		return nil
	}
	if err := c.manager.Connect(ctx); err != nil {
		return fmt.Errorf("connect kafka failed: %w", err)
	}
	return nil
}

func (c *Component) Stop(ctx context.Context) error {
	if c.manager == nil {
		return nil
	}
	if err := c.manager.Close(); err != nil {
		return fmt.Errorf("close kafka failed: %w", err)
	}
	c.logger.InfoCtx(ctx, "Kafka stopped")
	return nil
}

func (c *Component) GetManager() *Manager {
	return c.manager
}

// Publisher violation sink, nil when Kafka is not configured
func (c *Component) Publisher() quota.ViolationSink {
	if c.manager == nil {
		return nil
	}
	if p := c.manager.Publisher(); p != nil {
		return p
	}
	return nil
}

// GetHealthChecker implements component.HealthCheckProvider
func (c *Component) GetHealthChecker() component.HealthChecker {
	if c.manager == nil {
		return nil
	}
	return NewHealthChecker(c.manager)
}
