package quota

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// MemoryStore process-local counter store
//
// Increments are linearizable within one process only. Running several instances
// against their own MemoryStore multiplies every limit by the instance count.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*WindowState
	clock   clockwork.Clock
	closed  bool
}

// NewMemoryStore creates a memory store; nil clock uses the real clock
func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{
		windows: make(map[string]*WindowState),
		clock:   clock,
	}
}

// Increment atomic increment with expiry
func (s *MemoryStore) Increment(ctx context.Context, key string, window time.Duration) (WindowState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return WindowState{}, ErrStoreClosed
	}

	now := s.clock.Now()
	w, exists := s.windows[key]
	if !exists || Expired(now, w.ResetAt) {
		w = &WindowState{Count: 1, ResetAt: ResetAt(now, window)}
		s.windows[key] = w
		return *w, nil
	}

	w.Count++
	return *w, nil
}

// Get live state of key
func (s *MemoryStore) Get(ctx context.Context, key string) (WindowState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return WindowState{}, false, ErrStoreClosed
	}

	w, exists := s.windows[key]
	if !exists || Expired(s.clock.Now(), w.ResetAt) {
		return WindowState{}, false, nil
	}
	return *w, true, nil
}

// Decrement compensating decrement, never drops below zero
func (s *MemoryStore) Decrement(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	w, exists := s.windows[key]
	if !exists || Expired(s.clock.Now(), w.ResetAt) {
		return nil
	}
	if w.Count > 0 {
		w.Count--
	}
	return nil
}

// Reset drop key
func (s *MemoryStore) Reset(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	delete(s.windows, key)
	return nil
}

// Cleanup removes expired window states
//
// Runs under the same lock as Increment, so a state created by a concurrent
// increment always has a future ResetAt and survives the sweep.
func (s *MemoryStore) Cleanup(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	now := s.clock.Now()
	removed := 0
	for key, w := range s.windows {
		if Expired(now, w.ResetAt) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed, nil
}

// Len number of stored states, expired ones included
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// Close the store
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.windows = nil
	return nil
}
