package application

import (
	"fmt"

	"github.com/KOMKZ/go-yogan-quota/config"
	"github.com/KOMKZ/go-yogan-quota/httpx"
	"github.com/KOMKZ/go-yogan-quota/logger"
)

// AppConfig host level configuration
//
// Components (redis, tierstore, kafka, quota) read their own sections from the loader.
type AppConfig struct {
	ApiServer ApiServerConfig `mapstructure:"api_server"`

	Logger     *logger.ManagerConfig     `mapstructure:"logger,omitempty"`
	Middleware *MiddlewareConfig         `mapstructure:"middleware,omitempty"`
	Httpx      *httpx.ErrorLoggingConfig `mapstructure:"httpx,omitempty"`
	Metrics    *MetricsConfig            `mapstructure:"metrics,omitempty"`
	Tracing    *TracingConfig            `mapstructure:"tracing,omitempty"`
}

// ApiServerConfig HTTP API server configuration
type ApiServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Mode            string `mapstructure:"mode"`             // debug, release, test
	ReadTimeout     int    `mapstructure:"read_timeout"`     // seconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // seconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // seconds
}

// MiddlewareConfig global middleware switches
type MiddlewareConfig struct {
	TraceID    *TraceIDConfig    `mapstructure:"trace_id,omitempty"`
	RequestLog *RequestLogConfig `mapstructure:"request_log,omitempty"`
}

type TraceIDConfig struct {
	Enable               bool   `mapstructure:"enable"`
	TraceIDHeader        string `mapstructure:"trace_id_header"` // default "X-Trace-ID"
	EnableResponseHeader bool   `mapstructure:"enable_response_header"`
}

type RequestLogConfig struct {
	Enable    bool     `mapstructure:"enable"`
	SkipPaths []string `mapstructure:"skip_paths"`
}

// DefaultAppConfig defaults used for anything the config file leaves out
func DefaultAppConfig() AppConfig {
	loggerCfg := logger.DefaultManagerConfig()
	httpxCfg := httpx.DefaultErrorLoggingConfig()
	return AppConfig{
		ApiServer: ApiServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Mode:            "release",
			ReadTimeout:     30,
			WriteTimeout:    30,
			ShutdownTimeout: 10,
		},
		Logger: &loggerCfg,
		Middleware: &MiddlewareConfig{
			TraceID:    &TraceIDConfig{Enable: true, EnableResponseHeader: true},
			RequestLog: &RequestLogConfig{Enable: true, SkipPaths: []string{"/healthz", "/healthz/ready"}},
		},
		Httpx:   &httpxCfg,
		Metrics: &MetricsConfig{Path: "/metrics"},
		Tracing: &TracingConfig{},
	}
}

// ApplyDefaults fills zero-valued fields
func (c *AppConfig) ApplyDefaults() {
	defaults := DefaultAppConfig()

	if c.ApiServer.Port == 0 {
		c.ApiServer.Port = defaults.ApiServer.Port
	}
	if c.ApiServer.Mode == "" {
		c.ApiServer.Mode = defaults.ApiServer.Mode
	}
	if c.ApiServer.ReadTimeout == 0 {
		c.ApiServer.ReadTimeout = defaults.ApiServer.ReadTimeout
	}
	if c.ApiServer.WriteTimeout == 0 {
		c.ApiServer.WriteTimeout = defaults.ApiServer.WriteTimeout
	}
	if c.ApiServer.ShutdownTimeout == 0 {
		c.ApiServer.ShutdownTimeout = defaults.ApiServer.ShutdownTimeout
	}
	if c.Logger == nil {
		c.Logger = defaults.Logger
	}
	c.Logger.ApplyDefaults()
	if c.Middleware == nil {
		c.Middleware = defaults.Middleware
	}
	if c.Httpx == nil {
		c.Httpx = defaults.Httpx
	}
	if c.Metrics == nil {
		c.Metrics = defaults.Metrics
	}
	c.Metrics.ApplyDefaults()
	if c.Tracing == nil {
		c.Tracing = defaults.Tracing
	}
	c.Tracing.ApplyDefaults()
}

// Validate checks every section in order and stops at the first failure
func (c AppConfig) Validate() error {
	sections := []config.Validator{c.ApiServer}
	if c.Metrics != nil {
		sections = append(sections, c.Metrics)
	}
	if c.Tracing != nil {
		sections = append(sections, c.Tracing)
	}
	if c.Logger != nil {
		sections = append(sections, c.Logger)
	}
	return config.ValidateAll(sections...)
}

func (c ApiServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("api_server.port out of range: %d", c.Port)
	}
	switch c.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("api_server.mode must be debug, release or test, got %q", c.Mode)
	}
	return nil
}
