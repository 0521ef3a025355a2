package tierstore

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig invalid tier store configuration
	ErrInvalidConfig = errors.New("invalid tierstore config")

	// ErrUnsupportedDriver driver other than postgres or sqlite
	ErrUnsupportedDriver = errors.New("unsupported tierstore driver")
)

// ConfigError wraps field validation errors; errors.Is matches ErrInvalidConfig
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %v", ErrInvalidConfig, e.Err)
}

func (e *ConfigError) Unwrap() []error {
	return []error{ErrInvalidConfig, e.Err}
}
