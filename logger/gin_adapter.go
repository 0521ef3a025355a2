package logger

import (
	"strings"
)

// GinLogWriter io.Writer that turns gin's text output into structured entries
//
//	gin.DefaultWriter = logger.NewGinLogWriter("gin")
type GinLogWriter struct {
	module string
}

// NewGinLogWriter module is the logger module, e.g. "gin"
func NewGinLogWriter(module string) *GinLogWriter {
	return &GinLogWriter{module: module}
}

// Write classifies by gin's prefix: route registration is debug, recovery is error
func (w *GinLogWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg == "" {
		return len(p), nil
	}

	switch {
	case strings.Contains(msg, "[GIN-debug]"):
		Debug(w.module, msg)
	case strings.Contains(msg, "[Recovery]"), strings.Contains(msg, "panic recovered"):
		Error(w.module, msg)
	case strings.Contains(msg, "[WARNING]"):
		Warn(w.module, msg)
	default:
		Info(w.module, msg)
	}
	return len(p), nil
}
