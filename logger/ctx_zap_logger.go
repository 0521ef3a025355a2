package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// CtxZapLogger context-aware zap wrapper bound to one module
//
// Obtain it through GetLogger; every call takes ctx so the trace id travels with the request.
//
//	log := logger.GetLogger("quota")
//	log.InfoCtx(ctx, "Quota engine started", zap.String("store", "redis"))
type CtxZapLogger struct {
	base   *zap.Logger
	module string
	config *ManagerConfig
}

type traceIDKey struct{}

// ContextWithTraceID stores a trace id for loggers to pick up
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceIDFromContext OpenTelemetry span first, then ContextWithTraceID
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	if id, ok := ctx.Value(traceIDKey{}).(string); ok {
		return id
	}
	return ""
}

func (l *CtxZapLogger) InfoCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Info(msg, l.enrichFields(ctx, fields)...)
}

func (l *CtxZapLogger) DebugCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Debug(msg, l.enrichFields(ctx, fields)...)
}

func (l *CtxZapLogger) WarnCtx(ctx context.Context, msg string, fields ...zap.Field) {
	l.base.Warn(msg, l.enrichFields(ctx, fields)...)
}

// ErrorCtx appends the caller stack when stacktraces are enabled
func (l *CtxZapLogger) ErrorCtx(ctx context.Context, msg string, fields ...zap.Field) {
	enriched := l.enrichFields(ctx, fields)
	if l.config != nil && l.config.EnableStacktrace {
		// skip StackSkip and ErrorCtx
		enriched = append(enriched, zap.StackSkip("stack", 2))
	}
	l.base.Error(msg, enriched...)
}

func (l *CtxZapLogger) Info(msg string, fields ...zap.Field) {
	l.InfoCtx(context.Background(), msg, fields...)
}

func (l *CtxZapLogger) Debug(msg string, fields ...zap.Field) {
	l.DebugCtx(context.Background(), msg, fields...)
}

func (l *CtxZapLogger) Warn(msg string, fields ...zap.Field) {
	l.WarnCtx(context.Background(), msg, fields...)
}

func (l *CtxZapLogger) Error(msg string, fields ...zap.Field) {
	l.ErrorCtx(context.Background(), msg, fields...)
}

// With returns a logger carrying preset fields
//
//	bucketLog := log.With(zap.String("key", "api:u1"))
func (l *CtxZapLogger) With(fields ...zap.Field) *CtxZapLogger {
	return &CtxZapLogger{
		base:   l.base.With(fields...),
		module: l.module,
		config: l.config,
	}
}

// Module name the logger was created for
func (l *CtxZapLogger) Module() string {
	return l.module
}

// GetZapLogger underlying *zap.Logger for third-party integrations
func (l *CtxZapLogger) GetZapLogger() *zap.Logger {
	return l.base
}

func (l *CtxZapLogger) enrichFields(ctx context.Context, fields []zap.Field) []zap.Field {
	if l.config == nil {
		return fields
	}

	enriched := make([]zap.Field, 0, len(fields)+2)
	enriched = append(enriched, zap.String("app_name", l.config.AppName))

	if l.config.EnableTraceID {
		if traceID := TraceIDFromContext(ctx); traceID != "" {
			name := l.config.TraceIDFieldName
			if name == "" {
				name = "trace_id"
			}
			enriched = append(enriched, zap.String(name, traceID))
		}
	}

	return append(enriched, fields...)
}
