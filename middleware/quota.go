package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-quota/httpx"
	"github.com/KOMKZ/go-yogan-quota/logger"
	"github.com/KOMKZ/go-yogan-quota/quota"
)

// QuotaDecisionKey gin context key holding the *quota.Decision of the request
const QuotaDecisionKey = "quota.decision"

// Principal identity a request is counted against
type Principal struct {
	// Key bucket identifier (user id, IP or email)
	Key string

	// ID handed to the tier lookup, empty for anonymous callers
	ID string
}

// QuotaConfig quota middleware configuration
type QuotaConfig struct {
	// Enabled nil means always enabled
	Enabled func() bool

	// KeyFunc default KeyByIP
	KeyFunc KeyFunc

	// RequestFunc builds the engine request; the default copies client IP, path, method and user agent
	RequestFunc func(*gin.Context, Principal) quota.Request

	// RejectHandler default writes 429 with the rejection body
	RejectHandler func(*gin.Context, *quota.Decision)

	// ErrorHandler runs for limiter errors other than unknown categories;
	// the default logs and lets the request through.
	ErrorHandler func(*gin.Context, error)

	SkipFunc  func(*gin.Context) bool
	SkipPaths []string

	Logger logger.CtxLogger
}

// KeyFunc derives the principal of a request
type KeyFunc func(*gin.Context) Principal

// Quota enforces limiter on every request of the route group
//
//	api := engine.Group("/api/v1", middleware.Quota(policies.API, middleware.QuotaConfig{
//	    KeyFunc: middleware.KeyByUser("user_id"),
//	}))
//
// Admitted requests are settled after the handler runs: a status below 400 counts as success.
func Quota(limiter quota.Limiter, cfg QuotaConfig) gin.HandlerFunc {
	if limiter == nil {
		panic("middleware.Quota: limiter cannot be nil")
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}
	if cfg.RequestFunc == nil {
		cfg.RequestFunc = RequestFromContext
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger("quota")
	}
	if cfg.RejectHandler == nil {
		cfg.RejectHandler = func(c *gin.Context, d *quota.Decision) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, d.RejectionBody())
		}
	}
	if cfg.ErrorHandler == nil {
		log := cfg.Logger
		cfg.ErrorHandler = func(c *gin.Context, err error) {
			log.WarnCtx(c.Request.Context(), "Quota check failed, admitting request",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err))
			c.Next()
		}
	}

	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skip[path] = true
	}

	return func(c *gin.Context) {
		if cfg.Enabled != nil && !cfg.Enabled() {
			c.Next()
			return
		}
		if skip[c.Request.URL.Path] || (cfg.SkipFunc != nil && cfg.SkipFunc(c)) {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		d, err := limiter.Check(ctx, cfg.RequestFunc(c, cfg.KeyFunc(c)))
		if err != nil {
			if errors.Is(err, quota.ErrUnknownCategory) {
				cfg.Logger.ErrorCtx(ctx, "Quota category is not configured",
					zap.String("path", c.Request.URL.Path),
					zap.Error(err))
				httpx.HandleError(c, err)
				c.Abort()
				return
			}
			cfg.ErrorHandler(c, err)
			return
		}

		c.Set(QuotaDecisionKey, d)
		for name, values := range d.Headers() {
			for _, v := range values {
				c.Writer.Header().Add(name, v)
			}
		}

		if !d.Allowed {
			cfg.RejectHandler(c, d)
			return
		}

		c.Next()
		limiter.Settle(ctx, d, c.Writer.Status() < http.StatusBadRequest)
	}
}

// DecisionFromContext decision stored by Quota, nil when the request was not checked
func DecisionFromContext(c *gin.Context) *quota.Decision {
	if v, ok := c.Get(QuotaDecisionKey); ok {
		if d, ok := v.(*quota.Decision); ok {
			return d
		}
	}
	return nil
}

// RequestFromContext request metadata recorded with violations
func RequestFromContext(c *gin.Context, p Principal) quota.Request {
	return quota.Request{
		Principal:   p.Key,
		PrincipalID: p.ID,
		IP:          c.ClientIP(),
		Path:        c.Request.URL.Path,
		Method:      c.Request.Method,
		UserAgent:   c.Request.UserAgent(),
	}
}

// KeyByIP anonymous principal keyed by client IP
func KeyByIP(c *gin.Context) Principal {
	return Principal{Key: c.ClientIP()}
}

// KeyByUser authenticated user id from the gin context, falling back to the client IP
func KeyByUser(userIDKey string) KeyFunc {
	return func(c *gin.Context) Principal {
		if v, ok := c.Get(userIDKey); ok {
			if id, ok := v.(string); ok && id != "" {
				return Principal{Key: id, ID: id}
			}
		}
		return KeyByIP(c)
	}
}

// KeyByHeader user id taken from a trusted upstream header such as X-User-ID
func KeyByHeader(header string) KeyFunc {
	return func(c *gin.Context) Principal {
		if id := c.GetHeader(header); id != "" {
			return Principal{Key: id, ID: id}
		}
		return KeyByIP(c)
	}
}

// KeyByForm keys by a field of the JSON or form body, e.g. "email"
//
// The JSON body is restored so the handler can bind it again. An empty field falls back to the client IP.
func KeyByForm(field string) KeyFunc {
	return func(c *gin.Context) Principal {
		if v := bodyField(c, field); v != "" {
			return Principal{Key: v}
		}
		return KeyByIP(c)
	}
}

// MaxKeyBodyBytes largest body KeyByForm inspects; bigger bodies are keyed by IP
const MaxKeyBodyBytes int64 = 64 << 10

// replayBody what was already read followed by the rest of the original body
type replayBody struct {
	io.Reader
	io.Closer
}

func bodyField(c *gin.Context, field string) string {
	if c.Request.Body == nil {
		return ""
	}
	if c.ContentType() != gin.MIMEJSON {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxKeyBodyBytes)
		return c.PostForm(field)
	}

	body := c.Request.Body
	raw, err := io.ReadAll(io.LimitReader(body, MaxKeyBodyBytes+1))
	if int64(len(raw)) > MaxKeyBodyBytes {
		c.Request.Body = replayBody{Reader: io.MultiReader(bytes.NewReader(raw), body), Closer: body}
		return ""
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil || len(raw) == 0 {
		return ""
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ""
	}
	s, _ := fields[field].(string)
	return s
}
