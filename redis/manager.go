package redis

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-quota/logger"
)

// Manager named Redis clients, standalone or cluster
type Manager struct {
	clients map[string]redis.UniversalClient
	configs map[string]Config
	logger  logger.CtxLogger
	mu      sync.RWMutex
}

// NewManager connects every configured instance and pings it
func NewManager(ctx context.Context, configs map[string]Config, log logger.CtxLogger) (*Manager, error) {
	if log == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	m := &Manager{
		clients: make(map[string]redis.UniversalClient, len(configs)),
		configs: make(map[string]Config, len(configs)),
		logger:  log,
	}

	for name, cfg := range configs {
		cfg.ApplyDefaults()
		if err := cfg.Validate(); err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("invalid config for %s: %w", name, err)
		}

		client := newClient(cfg)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			_ = m.Close()
			return nil, fmt.Errorf("ping redis %s failed: %w", name, err)
		}

		m.clients[name] = client
		m.configs[name] = cfg
		m.logger.DebugCtx(ctx, "Redis connection successful",
			zap.String("name", name),
			zap.String("mode", cfg.Mode),
			zap.Strings("addrs", cfg.Addrs))
	}

	return m, nil
}

func newClient(cfg Config) redis.UniversalClient {
	if cfg.Mode == "cluster" {
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.Addrs,
			Password:     cfg.Password,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			MaxRetries:   cfg.MaxRetries,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	}
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addrs[0],
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
}

// UniversalClient named client, nil when absent
func (m *Manager) UniversalClient(name string) redis.UniversalClient {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clients[name]
}

// Names sorted instance names
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.clients))
	for name := range m.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Ping checks every instance
func (m *Manager) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, client := range m.clients {
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping %s failed: %w", name, err)
		}
	}
	return nil
}

// Close closes all connections; errors are logged, not returned
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx := context.Background()
	for name, client := range m.clients {
		if err := client.Close(); err != nil {
			m.logger.ErrorCtx(ctx, "Failed to close Redis connection",
				zap.String("name", name),
				zap.Error(err))
			continue
		}
		m.logger.DebugCtx(ctx, "Redis connection closed", zap.String("name", name))
	}
	m.clients = make(map[string]redis.UniversalClient)
	return nil
}
