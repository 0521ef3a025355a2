package application

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// TracingConfig OpenTelemetry tracing
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"` // default "quotad"

	// Exporter otlp, stdout or noop
	Exporter string        `mapstructure:"exporter"`
	Endpoint string        `mapstructure:"endpoint"` // otlp collector, e.g. localhost:4317
	Insecure bool          `mapstructure:"insecure"`
	Timeout  time.Duration `mapstructure:"timeout"`

	// SampleRatio 0 < r <= 1; 1 samples everything
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

func (c *TracingConfig) ApplyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "quotad"
	}
	if c.Exporter == "" {
		c.Exporter = "noop"
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.SampleRatio <= 0 || c.SampleRatio > 1 {
		c.SampleRatio = 1
	}
}

// Validate only checks exporter settings when tracing is enabled
func (c TracingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Exporter {
	case "otlp":
		if c.Endpoint == "" {
			return fmt.Errorf("tracing.endpoint is required for the otlp exporter")
		}
	case "stdout", "noop":
	default:
		return fmt.Errorf("tracing.exporter must be otlp, stdout or noop, got %q", c.Exporter)
	}
	return nil
}

// NewTracerProvider builds the provider and installs it as the global one
func NewTracerProvider(ctx context.Context, cfg TracingConfig) (*sdktrace.TracerProvider, error) {
	cfg.ApplyDefaults()

	exporter, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create span exporter failed: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource failed: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))
	return tp, nil
}

func newSpanExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "otlp":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithTimeout(cfg.Timeout),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	case "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "noop":
		return noopExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.Exporter)
	}
}

// noopExporter spans are sampled and propagated but never shipped
type noopExporter struct{}

func (noopExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }
func (noopExporter) Shutdown(context.Context) error                             { return nil }
