package kafka

import (
	"context"
	"fmt"
	"time"
)

// HealthChecker reports ready once the controller answers and the violations topic
// has at least one partition
type HealthChecker struct {
	manager *Manager
	timeout time.Duration
}

func NewHealthChecker(manager *Manager) *HealthChecker {
	return &HealthChecker{manager: manager, timeout: 5 * time.Second}
}

func (h *HealthChecker) Name() string {
	return "kafka"
}

func (h *HealthChecker) Check(ctx context.Context) error {
	if h.manager == nil {
		return fmt.Errorf("kafka not configured")
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	if err := h.manager.Ping(ctx); err != nil {
		return err
	}

	partitions, err := h.manager.TopicPartitions()
	if err != nil {
		return err
	}
	if len(partitions) == 0 {
		return fmt.Errorf("violations topic %s has no partitions", h.manager.Config().Topic)
	}
	return nil
}

// SetTimeout bounds each Check; zero leaves the caller's deadline alone
func (h *HealthChecker) SetTimeout(timeout time.Duration) {
	h.timeout = timeout
}
