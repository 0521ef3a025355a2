package logger

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TestCtxLogger in-memory logger for unit tests
//
//	log := logger.NewTestCtxLogger()
//	engine := quota.NewEngine(store, resolver, quota.WithLogger(log))
//	assert.True(t, log.HasLog("WARN", "Quota violation"))
type TestCtxLogger struct {
	store  *testLogStore
	preset []zap.Field
}

type testLogStore struct {
	mu   sync.RWMutex
	logs []LogEntry
}

// LogEntry one recorded entry
type LogEntry struct {
	Level   string
	Message string
	TraceID string
	Fields  map[string]interface{}
}

// NewTestCtxLogger creates an empty in-memory logger
func NewTestCtxLogger() *TestCtxLogger {
	return &TestCtxLogger{store: &testLogStore{}}
}

func (t *TestCtxLogger) InfoCtx(ctx context.Context, msg string, fields ...zap.Field) {
	t.record(ctx, "INFO", msg, fields)
}

func (t *TestCtxLogger) ErrorCtx(ctx context.Context, msg string, fields ...zap.Field) {
	t.record(ctx, "ERROR", msg, fields)
}

func (t *TestCtxLogger) DebugCtx(ctx context.Context, msg string, fields ...zap.Field) {
	t.record(ctx, "DEBUG", msg, fields)
}

func (t *TestCtxLogger) WarnCtx(ctx context.Context, msg string, fields ...zap.Field) {
	t.record(ctx, "WARN", msg, fields)
}

// With returns a logger that shares the entry store and adds preset fields
func (t *TestCtxLogger) With(fields ...zap.Field) *TestCtxLogger {
	preset := make([]zap.Field, 0, len(t.preset)+len(fields))
	preset = append(preset, t.preset...)
	return &TestCtxLogger{store: t.store, preset: append(preset, fields...)}
}

func (t *TestCtxLogger) record(ctx context.Context, level, msg string, fields []zap.Field) {
	all := make([]zap.Field, 0, len(t.preset)+len(fields))
	all = append(all, t.preset...)
	all = append(all, fields...)

	entry := LogEntry{
		Level:   level,
		Message: msg,
		TraceID: TraceIDFromContext(ctx),
		Fields:  extractFieldsMap(all),
	}

	t.store.mu.Lock()
	t.store.logs = append(t.store.logs, entry)
	t.store.mu.Unlock()
}

// HasLog reports whether an entry with level and message exists
func (t *TestCtxLogger) HasLog(level, message string) bool {
	return t.find(func(e LogEntry) bool {
		return e.Level == level && e.Message == message
	})
}

// HasLogWithTraceID also matches the trace id
func (t *TestCtxLogger) HasLogWithTraceID(level, message, traceID string) bool {
	return t.find(func(e LogEntry) bool {
		return e.Level == level && e.Message == message && e.TraceID == traceID
	})
}

// HasLogWithField also matches one encoded field value
func (t *TestCtxLogger) HasLogWithField(level, message, fieldKey string, fieldValue interface{}) bool {
	return t.find(func(e LogEntry) bool {
		if e.Level != level || e.Message != message {
			return false
		}
		val, ok := e.Fields[fieldKey]
		return ok && val == fieldValue
	})
}

// CountLogs number of entries at level
func (t *TestCtxLogger) CountLogs(level string) int {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	count := 0
	for _, e := range t.store.logs {
		if e.Level == level {
			count++
		}
	}
	return count
}

// Logs copy of all entries
func (t *TestCtxLogger) Logs() []LogEntry {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	logs := make([]LogEntry, len(t.store.logs))
	copy(logs, t.store.logs)
	return logs
}

// Clear drops all entries
func (t *TestCtxLogger) Clear() {
	t.store.mu.Lock()
	t.store.logs = nil
	t.store.mu.Unlock()
}

func (t *TestCtxLogger) find(match func(LogEntry) bool) bool {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	for _, e := range t.store.logs {
		if match(e) {
			return true
		}
	}
	return false
}

// extractFieldsMap encodes fields the way zap would, for assertions
func extractFieldsMap(fields []zap.Field) map[string]interface{} {
	enc := zapcore.NewMapObjectEncoder()
	for _, field := range fields {
		field.AddTo(enc)
	}
	return enc.Fields
}
