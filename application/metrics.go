package application

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// MetricsConfig in-process metrics
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Path snapshot endpoint, default /metrics
	Path string `mapstructure:"path"`

	// Exporter optional push exporter next to the snapshot: "", stdout or otlp
	Exporter       string        `mapstructure:"exporter"`
	Endpoint       string        `mapstructure:"endpoint"`
	Insecure       bool          `mapstructure:"insecure"`
	ExportInterval time.Duration `mapstructure:"export_interval"`

	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig scrape endpoint backed by its own registry
type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"` // default /metrics/prometheus
}

func (c *MetricsConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "/metrics"
	}
	if c.ExportInterval <= 0 {
		c.ExportInterval = 30 * time.Second
	}
	if c.Prometheus.Path == "" {
		c.Prometheus.Path = "/metrics/prometheus"
	}
}

func (c MetricsConfig) Validate() error {
	switch c.Exporter {
	case "", "stdout":
	case "otlp":
		if c.Endpoint == "" {
			return fmt.Errorf("metrics.endpoint is required for the otlp exporter")
		}
	default:
		return fmt.Errorf("metrics.exporter must be stdout or otlp, got %q", c.Exporter)
	}
	if c.Prometheus.Enabled && c.Prometheus.Path == c.Path {
		return fmt.Errorf("metrics.prometheus.path must differ from metrics.path")
	}
	return nil
}

// MetricsManager MeterProvider read on demand through a manual reader
//
// The snapshot endpoint serves the current values as JSON. A configured exporter
// additionally pushes them on ExportInterval.
type MetricsManager struct {
	provider *sdkmetric.MeterProvider
	reader   *sdkmetric.ManualReader
	registry *prometheus.Registry
}

func NewMetricsManager(ctx context.Context, cfg MetricsConfig) (*MetricsManager, error) {
	cfg.ApplyDefaults()

	reader := sdkmetric.NewManualReader()
	opts := []sdkmetric.Option{sdkmetric.WithReader(reader)}

	exporter, err := newMetricExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter failed: %w", err)
	}
	if exporter != nil {
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.ExportInterval)),
		))
	}

	var registry *prometheus.Registry
	if cfg.Prometheus.Enabled {
		registry = prometheus.NewRegistry()
		promExporter, err := otelprom.New(otelprom.WithRegisterer(registry))
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter failed: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(promExporter))
	}

	return &MetricsManager{
		provider: sdkmetric.NewMeterProvider(opts...),
		reader:   reader,
		registry: registry,
	}, nil
}

func newMetricExporter(ctx context.Context, cfg MetricsConfig) (sdkmetric.Exporter, error) {
	switch cfg.Exporter {
	case "otlp":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case "stdout":
		return stdoutmetric.New()
	default:
		return nil, nil
	}
}

func (m *MetricsManager) Meter(name string) metric.Meter {
	return m.provider.Meter(name)
}

// Snapshot collects the current value of every instrument
func (m *MetricsManager) Snapshot(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	if err := m.reader.Collect(ctx, &rm); err != nil {
		return rm, fmt.Errorf("collect metrics failed: %w", err)
	}
	return rm, nil
}

// Handler JSON snapshot grouped by instrumentation scope
func (m *MetricsManager) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rm, err := m.Snapshot(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		scopes := make(map[string][]metricdata.Metrics, len(rm.ScopeMetrics))
		for _, sm := range rm.ScopeMetrics {
			scopes[sm.Scope.Name] = append(scopes[sm.Scope.Name], sm.Metrics...)
		}
		c.JSON(http.StatusOK, gin.H{"scopes": scopes})
	}
}

// PrometheusHandler text exposition of the same instruments, nil unless enabled
func (m *MetricsManager) PrometheusHandler() gin.HandlerFunc {
	if m.registry == nil {
		return nil
	}
	return gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

func (m *MetricsManager) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}
