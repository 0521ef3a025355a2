package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/KOMKZ/go-yogan-quota/logger"
)

func TestTraceID_GeneratesAndEchoes(t *testing.T) {
	router := gin.New()
	router.Use(TraceID(DefaultTraceConfig()))

	var fromGin, fromCtx string
	router.GET("/t", func(c *gin.Context) {
		fromGin = GetTraceID(c)
		fromCtx = logger.TraceIDFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := doRequest(router, http.MethodGet, "/t", "", nil)
	assert.NotEmpty(t, fromGin)
	assert.Equal(t, fromGin, fromCtx)
	assert.Equal(t, fromGin, w.Header().Get(TraceIDHeaderDefault))
}

func TestTraceID_ReusesInboundHeader(t *testing.T) {
	router := gin.New()
	router.Use(TraceID(TraceConfig{TraceIDHeader: "X-Request-ID"}))

	var got string
	router.GET("/t", func(c *gin.Context) {
		got = GetTraceID(c)
		c.Status(http.StatusOK)
	})

	w := doRequest(router, http.MethodGet, "/t", "", http.Header{"X-Request-Id": {"abc-123"}})
	assert.Equal(t, "abc-123", got)
	assert.Empty(t, w.Header().Get("X-Request-ID"), "response header disabled")
}

func TestGetTraceID_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, GetTraceID(c))
}

func TestRecovery(t *testing.T) {
	router := gin.New()
	router.Use(Recovery())
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := doRequest(router, http.MethodGet, "/panic", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestRequestLog_PassesThrough(t *testing.T) {
	p := newTestPolicies(t, nil)
	router := gin.New()
	router.Use(RequestLogWithConfig(RequestLogConfig{SkipPaths: []string{"/healthz"}}))
	router.Use(Quota(p.API, QuotaConfig{SkipPaths: []string{"/healthz"}, Logger: logger.NewTestCtxLogger()}))
	router.GET("/data", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	// the api limit is 2; health checks are neither logged nor counted
	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/data", "", nil).Code)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/healthz", "", nil).Code)
	}
	assert.Equal(t, http.StatusInternalServerError, doRequest(router, http.MethodGet, "/fail", "", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(router, http.MethodGet, "/data", "", nil).Code)
}

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Name() string                    { return s.name }
func (s stubChecker) Check(ctx context.Context) error { return s.err }

func TestHealthRoutes(t *testing.T) {
	router := gin.New()
	RegisterHealthRoutes(router, NewHealthCheckHandler(stubChecker{name: "redis"}, nil))

	w := doRequest(router, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/healthz/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"ok"`)
}

func TestHealthRoutes_Unhealthy(t *testing.T) {
	router := gin.New()
	RegisterHealthRoutes(router, NewHealthCheckHandler(
		stubChecker{name: "redis"},
		stubChecker{name: "tierstore", err: errors.New("connection refused")}))

	w := doRequest(router, http.MethodGet, "/healthz/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
	assert.Contains(t, w.Body.String(), `"status":"unhealthy"`)
}
