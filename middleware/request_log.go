package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-quota/logger"
)

// RequestLogConfig request log configuration
type RequestLogConfig struct {
	// SkipPaths paths that are never logged, e.g. /healthz
	SkipPaths []string
}

func DefaultRequestLogConfig() RequestLogConfig {
	return RequestLogConfig{}
}

func RequestLog() gin.HandlerFunc {
	return RequestLogWithConfig(DefaultRequestLogConfig())
}

// RequestLogWithConfig one structured entry per request
//
// 5xx logs at error, 4xx at warn, the rest at info. Requests that went through Quota
// also carry the quota category and remaining count.
func RequestLogWithConfig(cfg RequestLogConfig) gin.HandlerFunc {
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skip[path] = true
	}

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("body_size", c.Writer.Size()),
		}
		if d := DecisionFromContext(c); d != nil {
			fields = append(fields,
				zap.String("quota_category", string(d.Category)),
				zap.Int64("quota_remaining", d.Remaining),
				zap.Bool("quota_allowed", d.Allowed))
		}
		if msg := c.Errors.ByType(gin.ErrorTypePrivate).String(); msg != "" {
			fields = append(fields, zap.String("error", msg))
		}

		ctx := c.Request.Context()
		switch {
		case status >= 500:
			logger.ErrorCtx(ctx, "http", "HTTP request", fields...)
		case status >= 400:
			logger.WarnCtx(ctx, "http", "HTTP request", fields...)
		default:
			logger.InfoCtx(ctx, "http", "HTTP request", fields...)
		}
	}
}
