package component

import (
	"go.opentelemetry.io/otel/metric"
)

// MetricsProvider components that publish OpenTelemetry instruments
//
// Example implementation:
//
//	func (c *Component) MetricsName() string {
//	    return "quota"
//	}
//
//	func (c *Component) RegisterMetrics(meter metric.Meter) error {
//	    return c.metrics.register(meter)
//	}
type MetricsProvider interface {
	// MetricsName short lowercase group name used for the Meter
	MetricsName() string

	// RegisterMetrics creates the instruments on the given meter
	RegisterMetrics(meter metric.Meter) error

	// IsMetricsEnabled whether collection is switched on in config
	IsMetricsEnabled() bool
}
