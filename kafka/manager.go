package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-quota/logger"
)

// Manager owns the sarama client and the violation producer
type Manager struct {
	config       Config
	saramaConfig *sarama.Config
	logger       logger.CtxLogger

	client   sarama.Client
	producer Producer

	mu     sync.RWMutex
	closed bool
}

// NewManager validates cfg; no connection is made until Connect
func NewManager(cfg Config, log logger.CtxLogger) (*Manager, error) {
	if log == nil {
		log = logger.GetLogger("kafka")
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	saramaCfg, err := buildSaramaConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build sarama config failed: %w", err)
	}

	return &Manager{
		config:       cfg,
		saramaConfig: saramaCfg,
		logger:       log,
	}, nil
}

// Connect opens the client and the producer on top of it
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("manager is closed")
	}
	if m.client != nil {
		return nil
	}

	client, err := sarama.NewClient(m.config.Brokers, m.saramaConfig)
	if err != nil {
		return fmt.Errorf("create client failed: %w", err)
	}
	if len(client.Brokers()) == 0 {
		_ = client.Close()
		return fmt.Errorf("no brokers available")
	}

	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("create producer failed: %w", err)
	}

	m.client = client
	m.producer = NewSyncProducerFrom(producer, m.logger)
	m.logger.InfoCtx(ctx, "Kafka connected",
		zap.Strings("brokers", m.config.Brokers),
		zap.String("topic", m.config.Topic))
	return nil
}

// Producer nil before Connect
func (m *Manager) Producer() Producer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.producer
}

// Publisher violation sink on the configured topic, nil before Connect
func (m *Manager) Publisher() *ViolationPublisher {
	producer := m.Producer()
	if producer == nil {
		return nil
	}
	return NewViolationPublisher(producer, m.config.Topic)
}

// Ping checks the cluster controller is reachable
func (m *Manager) Ping(ctx context.Context) error {
	m.mu.RLock()
	client, closed := m.client, m.closed
	m.mu.RUnlock()

	if closed {
		return fmt.Errorf("manager is closed")
	}
	if client == nil {
		return fmt.Errorf("manager is not connected")
	}

	done := make(chan error, 1)
	go func() {
		controller, err := client.Controller()
		if err != nil {
			done <- fmt.Errorf("get controller failed: %w", err)
			return
		}
		connected, err := controller.Connected()
		if err != nil {
			done <- fmt.Errorf("check controller connected failed: %w", err)
			return
		}
		if !connected {
			if err := controller.Open(m.saramaConfig); err != nil {
				done <- fmt.Errorf("connect to controller failed: %w", err)
				return
			}
		}
		done <- nil
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("ping timeout")
	}
}

// TopicPartitions partitions of the violations topic as seen by the client metadata
func (m *Manager) TopicPartitions() ([]int32, error) {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()

	if client == nil {
		return nil, fmt.Errorf("manager is not connected")
	}
	partitions, err := client.Partitions(m.config.Topic)
	if err != nil {
		return nil, fmt.Errorf("topic %s metadata: %w", m.config.Topic, err)
	}
	return partitions, nil
}

// Config effective configuration
func (m *Manager) Config() Config {
	return m.config
}

// Close producer first, then the shared client; idempotent
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	if m.producer != nil {
		if err := m.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close producer: %w", err))
		}
	}
	if m.client != nil && !m.client.Closed() {
		if err := m.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close client: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close manager with %d errors: %v", len(errs), errs)
	}
	return nil
}
