// Package httpx provides unified handling of HTTP requests and responses
package httpx

// ErrorLoggingConfig controls how HandleError logs failures
type ErrorLoggingConfig struct {
	// Enable off by default
	Enable bool `mapstructure:"enable" json:"enable"`

	// IgnoreHTTPStatus statuses that are never logged, e.g. 400 and 404
	IgnoreHTTPStatus []int `mapstructure:"ignore_http_status" json:"ignore_http_status"`

	// FullErrorChain adds the wrapped cause chain to the entry
	FullErrorChain bool `mapstructure:"full_error_chain" json:"full_error_chain"`

	// LogLevel error, warn or info
	LogLevel string `mapstructure:"log_level" json:"log_level"`
}

// DefaultErrorLoggingConfig logging disabled
func DefaultErrorLoggingConfig() ErrorLoggingConfig {
	return ErrorLoggingConfig{
		FullErrorChain: true,
		LogLevel:       "error",
	}
}
