package quota

import (
	"context"

	"go.uber.org/zap"
)

// Logger subset of *logger.CtxZapLogger used by the engine
//
// logger.TestCtxLogger satisfies it as well, which keeps assertions on log output simple.
type Logger interface {
	DebugCtx(ctx context.Context, msg string, fields ...zap.Field)
	InfoCtx(ctx context.Context, msg string, fields ...zap.Field)
	WarnCtx(ctx context.Context, msg string, fields ...zap.Field)
	ErrorCtx(ctx context.Context, msg string, fields ...zap.Field)
}

type nopLogger struct{}

func (nopLogger) DebugCtx(context.Context, string, ...zap.Field) {}
func (nopLogger) InfoCtx(context.Context, string, ...zap.Field)  {}
func (nopLogger) WarnCtx(context.Context, string, ...zap.Field)  {}
func (nopLogger) ErrorCtx(context.Context, string, ...zap.Field) {}
