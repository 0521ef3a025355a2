package quota

import (
	"context"
	"time"
)

// WindowState counted usage of one bucket key within its current window
type WindowState struct {
	Count   int64
	ResetAt time.Time
}

// CounterStore storage of window states (Strategy Pattern)
//
// All mutation of counts goes through Increment, Decrement and Reset.
type CounterStore interface {
	// Increment atomically adds one to the key's count. A missing or expired state is
	// replaced by {Count: 1, ResetAt: now + window}; otherwise ResetAt is kept.
	Increment(ctx context.Context, key string, window time.Duration) (WindowState, error)

	// Get returns the live state; ok is false when absent or expired
	Get(ctx context.Context, key string) (state WindowState, ok bool, err error)

	// Decrement compensates a previous increment (best effort, may be unsupported)
	Decrement(ctx context.Context, key string) error

	// Reset drops the key's state
	Reset(ctx context.Context, key string) error

	// Cleanup removes expired states and returns how many were removed
	Cleanup(ctx context.Context) (int, error)

	// Close releases resources
	Close() error
}

// StoreType storage type
type StoreType string

const (
	// StoreTypeMemory process-local storage
	StoreTypeMemory StoreType = "memory"

	// StoreTypeRedis shared Redis storage
	StoreTypeRedis StoreType = "redis"
)

// BucketKey derives the storage key of a principal for a category
func BucketKey(category Category, principal string) string {
	return string(category) + ":" + principal
}
