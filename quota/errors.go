package quota

import (
	"errors"
	"net/http"

	"github.com/KOMKZ/go-yogan-quota/errcode"
)

var (
	// ErrUnknownCategory no policy entry exists for the category (a deployment bug)
	ErrUnknownCategory = errors.New("unknown quota category")

	// ErrStoreUnavailable the counter store backend could not be reached
	ErrStoreUnavailable = errors.New("counter store unavailable")

	// ErrStoreNotSupported the store does not implement the operation
	ErrStoreNotSupported = errors.New("store operation not supported")

	// ErrStoreClosed the store has been closed
	ErrStoreClosed = errors.New("store is closed")

	// ErrInvalidConfig configuration is invalid
	ErrInvalidConfig = errors.New("invalid config")
)

// ModuleCode errcode module code of the quota package
const ModuleCode = 42

// ErrRateLimitExceeded client-facing error for rejected requests
var ErrRateLimitExceeded = errcode.Register(errcode.New(ModuleCode, 1, "quota", "RATE_LIMIT_EXCEEDED",
	"Too many requests, please try again later", http.StatusTooManyRequests))

// ValidationError configuration validation error
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		if e.Err != nil {
			return "quota config validation failed for field '" + e.Field + "': " + e.Err.Error()
		}
		return "quota config validation failed for field '" + e.Field + "': " + e.Message
	}

	if e.Err != nil {
		return "quota config validation failed: " + e.Err.Error()
	}

	return "quota config validation failed"
}

// Unwrap keeps ErrInvalidConfig matchable with errors.Is
func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidConfig, e.Err}
	}
	return []error{ErrInvalidConfig}
}
