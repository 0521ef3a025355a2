package tierstore

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	tracerName   = "github.com/KOMKZ/go-yogan-quota/tierstore"
	spanKey      = "tierstore:span"
	sqlMaxLength = 1000
)

// tracePlugin opens a client span around every gorm statement
type tracePlugin struct {
	tracer   trace.Tracer
	traceSQL bool
}

// newTracePlugin nil provider uses the global tracer provider
func newTracePlugin(tp trace.TracerProvider) *tracePlugin {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &tracePlugin{tracer: tp.Tracer(tracerName)}
}

func (p *tracePlugin) withTraceSQL(enabled bool) *tracePlugin {
	p.traceSQL = enabled
	return p
}

func (p *tracePlugin) Name() string {
	return "tierstore:otel"
}

func (p *tracePlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	steps := []error{
		cb.Create().Before("gorm:create").Register("otel:before_create", p.before),
		cb.Create().After("gorm:create").Register("otel:after_create", p.after),
		cb.Query().Before("gorm:query").Register("otel:before_query", p.before),
		cb.Query().After("gorm:query").Register("otel:after_query", p.after),
		cb.Update().Before("gorm:update").Register("otel:before_update", p.before),
		cb.Update().After("gorm:update").Register("otel:after_update", p.after),
		cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before),
		cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after),
		cb.Row().Before("gorm:row").Register("otel:before_row", p.before),
		cb.Row().After("gorm:row").Register("otel:after_row", p.after),
		cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before),
		cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after),
	}
	for _, err := range steps {
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *tracePlugin) before(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}

	name := "tierstore.query"
	if db.Statement.Table != "" {
		name += " " + db.Statement.Table
	}
	ctx, span := p.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String("db.system", db.Dialector.Name()))
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}

	db.Statement.Context = ctx
	db.InstanceSet(spanKey, span)
}

func (p *tracePlugin) after(db *gorm.DB) {
	v, ok := db.InstanceGet(spanKey)
	if !ok {
		return
	}
	span, ok := v.(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	sql := db.Statement.SQL.String()
	if op, _, found := strings.Cut(strings.TrimSpace(sql), " "); found {
		span.SetAttributes(attribute.String("db.operation", strings.ToUpper(op)))
	}
	if p.traceSQL && sql != "" {
		if len(sql) > sqlMaxLength {
			sql = sql[:sqlMaxLength] + "..."
		}
		span.SetAttributes(attribute.String("db.statement", sql))
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))

	if db.Error != nil && db.Error != gorm.ErrRecordNotFound {
		span.RecordError(db.Error)
		span.SetStatus(codes.Error, db.Error.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
