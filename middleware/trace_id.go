package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/KOMKZ/go-yogan-quota/logger"
)

const (
	// TraceIDKey gin context key
	TraceIDKey = "trace_id"

	// TraceIDHeaderDefault request and response header
	TraceIDHeaderDefault = "X-Trace-ID"
)

// TraceConfig trace middleware configuration
type TraceConfig struct {
	// TraceIDHeader default "X-Trace-ID"
	TraceIDHeader string

	// EnableResponseHeader echo the id back to the client
	EnableResponseHeader bool

	// Generator default uuid v4
	Generator func() string
}

func DefaultTraceConfig() TraceConfig {
	return TraceConfig{
		TraceIDHeader:        TraceIDHeaderDefault,
		EnableResponseHeader: true,
		Generator:            func() string { return uuid.New().String() },
	}
}

// TraceID assigns every request a trace id
//
// An active OpenTelemetry span wins; otherwise the inbound header is reused or a new id is generated
// and stored on the request context for loggers.
func TraceID(cfg TraceConfig) gin.HandlerFunc {
	if cfg.TraceIDHeader == "" {
		cfg.TraceIDHeader = TraceIDHeaderDefault
	}
	if cfg.Generator == nil {
		cfg.Generator = func() string { return uuid.New().String() }
	}

	return func(c *gin.Context) {
		var traceID string
		if span := trace.SpanFromContext(c.Request.Context()); span.SpanContext().IsValid() {
			traceID = span.SpanContext().TraceID().String()
		} else {
			traceID = c.GetHeader(cfg.TraceIDHeader)
			if traceID == "" {
				traceID = cfg.Generator()
			}
			c.Request = c.Request.WithContext(logger.ContextWithTraceID(c.Request.Context(), traceID))
		}

		c.Set(TraceIDKey, traceID)
		if cfg.EnableResponseHeader {
			c.Writer.Header().Set(cfg.TraceIDHeader, traceID)
		}
		c.Next()
	}
}

// GetTraceID trace id set by TraceID, empty when the middleware did not run
func GetTraceID(c *gin.Context) string {
	if v, ok := c.Get(TraceIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
