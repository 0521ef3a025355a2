package redis

import (
	"context"
	"errors"
	"fmt"
)

// HealthChecker pings every managed instance and reports all failing ones
type HealthChecker struct {
	manager *Manager
}

func NewHealthChecker(manager *Manager) *HealthChecker {
	return &HealthChecker{manager: manager}
}

func (h *HealthChecker) Name() string {
	return "redis"
}

func (h *HealthChecker) Check(ctx context.Context) error {
	if h.manager == nil {
		return fmt.Errorf("redis manager not initialized")
	}

	var errs []error
	for _, name := range h.manager.Names() {
		client := h.manager.UniversalClient(name)
		if client == nil {
			continue
		}
		if err := client.Ping(ctx).Err(); err != nil {
			errs = append(errs, fmt.Errorf("instance %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
