package errcode

import (
	"fmt"
	"sort"
	"sync"
)

// Registry guards against two errors sharing one code
type Registry struct {
	mu    sync.RWMutex
	codes map[int]*LayeredError
}

var globalRegistry = NewRegistry()

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{codes: make(map[int]*LayeredError)}
}

// Register records err; registering the same module:msgKey again is a no-op
// It panics when the code is taken by a different error.
func (r *Registry) Register(err *LayeredError) *LayeredError {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.codes[err.code]; ok {
		if existing.module != err.module || existing.msgKey != err.msgKey {
			panic(fmt.Sprintf("error code conflict: %d is registered as %s:%s, cannot register %s:%s",
				err.code, existing.module, existing.msgKey, err.module, err.msgKey))
		}
		return existing
	}
	r.codes[err.code] = err
	return err
}

// Lookup finds a registered error by code
func (r *Registry) Lookup(code int) (*LayeredError, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	err, ok := r.codes[code]
	return err, ok
}

// All registered errors ordered by code
func (r *Registry) All() []*LayeredError {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*LayeredError, 0, len(r.codes))
	for _, err := range r.codes {
		out = append(out, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].code < out[j].code })
	return out
}

// Register records err in the global registry
func Register(err *LayeredError) *LayeredError {
	return globalRegistry.Register(err)
}

// Lookup finds an error in the global registry
func Lookup(code int) (*LayeredError, bool) {
	return globalRegistry.Lookup(code)
}
