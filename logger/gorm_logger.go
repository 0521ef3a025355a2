package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// CtxLogger leveled logging with context
//
// Both *CtxZapLogger and *TestCtxLogger implement it.
type CtxLogger interface {
	DebugCtx(ctx context.Context, msg string, fields ...zap.Field)
	InfoCtx(ctx context.Context, msg string, fields ...zap.Field)
	WarnCtx(ctx context.Context, msg string, fields ...zap.Field)
	ErrorCtx(ctx context.Context, msg string, fields ...zap.Field)
}

// GormLogger gorm logger.Interface backed by a module logger
type GormLogger struct {
	log           CtxLogger
	slowThreshold time.Duration
	logLevel      gormlogger.LogLevel
	enableAudit   bool
}

// GormLoggerConfig GORM logger configuration
type GormLoggerConfig struct {
	SlowThreshold time.Duration       // default 200ms
	LogLevel      gormlogger.LogLevel // default Warn
	EnableAudit   bool                // log every statement at debug
}

// DefaultGormLoggerConfig defaults for the tier store
func DefaultGormLoggerConfig() GormLoggerConfig {
	return GormLoggerConfig{
		SlowThreshold: 200 * time.Millisecond,
		LogLevel:      gormlogger.Warn,
		EnableAudit:   false,
	}
}

// NewGormLogger a nil log falls back to the "tierstore_sql" module logger
func NewGormLogger(log CtxLogger, cfg GormLoggerConfig) *GormLogger {
	if log == nil {
		log = GetLogger("tierstore_sql")
	}
	return &GormLogger{
		log:           log,
		slowThreshold: cfg.SlowThreshold,
		logLevel:      cfg.LogLevel,
		enableAudit:   cfg.EnableAudit,
	}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.logLevel = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.logLevel >= gormlogger.Info {
		l.log.DebugCtx(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.logLevel >= gormlogger.Warn {
		l.log.WarnCtx(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.logLevel >= gormlogger.Error {
		l.log.ErrorCtx(ctx, fmt.Sprintf(msg, data...))
	}
}

// Trace logs each statement with the SQL sanitized
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.logLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []zap.Field{
		zap.String("sql", sanitizeSQL(sql)),
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
	}

	switch {
	case err != nil && l.logLevel >= gormlogger.Error:
		// a missing subscription row is a normal lookup miss
		if errors.Is(err, gormlogger.ErrRecordNotFound) {
			if l.enableAudit {
				l.log.DebugCtx(ctx, "SQL executed", fields...)
			}
			return
		}
		l.log.ErrorCtx(ctx, "SQL execution failed", append(fields, zap.Error(err))...)

	case l.slowThreshold != 0 && elapsed > l.slowThreshold && l.logLevel >= gormlogger.Warn:
		l.log.WarnCtx(ctx, "Slow SQL", append(fields, zap.Duration("threshold", l.slowThreshold))...)

	case l.logLevel >= gormlogger.Info && l.enableAudit:
		l.log.DebugCtx(ctx, "SQL executed", fields...)
	}
}
