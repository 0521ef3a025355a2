package quota

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsConfig holds configuration for quota metrics
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// OTelMetrics OpenTelemetry instruments of the engine
type OTelMetrics struct {
	config     MetricsConfig
	registered bool
	mu         sync.RWMutex

	decisionsTotal  metric.Int64Counter
	failOpenTotal   metric.Int64Counter
	violationsTotal metric.Int64Counter
	delayMillis     metric.Float64Histogram
}

// NewOTelMetrics creates a metrics provider; instruments exist after RegisterMetrics
func NewOTelMetrics(cfg MetricsConfig) *OTelMetrics {
	return &OTelMetrics{config: cfg}
}

// MetricsName returns the metrics group name
func (m *OTelMetrics) MetricsName() string {
	return "quota"
}

// IsMetricsEnabled returns whether metrics collection is enabled
func (m *OTelMetrics) IsMetricsEnabled() bool {
	return m.config.Enabled
}

// RegisterMetrics registers all quota instruments with the provided Meter
func (m *OTelMetrics) RegisterMetrics(meter metric.Meter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	var err error
	m.decisionsTotal, err = meter.Int64Counter(
		"quota_decisions_total",
		metric.WithDescription("Quota decisions by category, tier and outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	m.failOpenTotal, err = meter.Int64Counter(
		"quota_fail_open_total",
		metric.WithDescription("Requests admitted because the counter store failed"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	m.violationsTotal, err = meter.Int64Counter(
		"quota_violations_total",
		metric.WithDescription("Recorded quota violations"),
		metric.WithUnit("{violation}"),
	)
	if err != nil {
		return err
	}

	m.delayMillis, err = meter.Float64Histogram(
		"quota_progressive_delay",
		metric.WithDescription("Progressive delay applied to rejected requests"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	m.registered = true
	return nil
}

// IsRegistered returns whether metrics have been registered
func (m *OTelMetrics) IsRegistered() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registered
}

// RecordDecision counts one decision
func (m *OTelMetrics) RecordDecision(ctx context.Context, d *Decision) {
	if !m.IsRegistered() {
		return
	}

	outcome := "admitted"
	switch {
	case d.FailOpen:
		outcome = "fail_open"
	case !d.Allowed:
		outcome = "rejected"
	}

	attrs := metric.WithAttributes(
		attribute.String("category", string(d.Category)),
		attribute.String("tier", string(d.Tier)),
		attribute.String("outcome", outcome),
	)
	m.decisionsTotal.Add(ctx, 1, attrs)

	if d.FailOpen {
		m.failOpenTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("category", string(d.Category))))
	}
}

// RecordViolation counts a violation and the delay it received
func (m *OTelMetrics) RecordViolation(ctx context.Context, v Violation, delay time.Duration) {
	if !m.IsRegistered() {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("category", string(v.Category)),
		attribute.String("tier", string(v.Tier)),
	)
	m.violationsTotal.Add(ctx, 1, attrs)
	m.delayMillis.Record(ctx, float64(delay)/float64(time.Millisecond), attrs)
}

func (m *OTelMetrics) recordDecision(ctx context.Context, d *Decision) {
	if m == nil {
		return
	}
	m.RecordDecision(ctx, d)
}

func (m *OTelMetrics) recordViolation(ctx context.Context, v Violation, delay time.Duration) {
	if m == nil {
		return
	}
	m.RecordViolation(ctx, v, delay)
}
