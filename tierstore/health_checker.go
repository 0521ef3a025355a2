package tierstore

import (
	"context"
	"fmt"
)

// HealthChecker pings the tier database
type HealthChecker struct {
	store *Store
}

func NewHealthChecker(store *Store) *HealthChecker {
	return &HealthChecker{store: store}
}

func (h *HealthChecker) Name() string {
	return "tierstore"
}

func (h *HealthChecker) Check(ctx context.Context) error {
	if h.store == nil {
		return fmt.Errorf("tierstore not initialized")
	}
	if err := h.store.Ping(ctx); err != nil {
		return fmt.Errorf("tierstore ping failed: %w", err)
	}
	return nil
}
