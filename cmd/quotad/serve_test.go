package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOMKZ/go-yogan-quota/quota"
)

func serveConfig() string {
	return serveConfigWith("", "")
}

// serveConfigWith quotaExtra is indented under the quota section, extra appended at top level
func serveConfigWith(quotaExtra, extra string) string {
	return fmt.Sprintf(`
api_server:
  host: 127.0.0.1
  mode: test
quota:
  delay:
    base: 0s
  violations:
    log: false
%s
tierstore:
  enabled: true
  driver: sqlite
  dsn: "file:%s?mode=memory&cache=shared"
  cache_ttl: 1m
%s
`, quotaExtra, uuid.NewString(), extra)
}

func startServer(t *testing.T, cfg string) (*gin.Engine, *stack) {
	t.Helper()
	app, s, err := newServer(loadConfig(t, writeConfig(t, cfg)))
	require.NoError(t, err)
	require.NoError(t, app.Setup())
	t.Cleanup(func() { _ = app.Shutdown(time.Second) })
	return app.HTTPServer().GetEngine(), s
}

func send(engine *gin.Engine, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	req.RemoteAddr = "203.0.113.7:40000"

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestServe_LoginFailuresAreLimited(t *testing.T) {
	engine, _ := startServer(t, serveConfig())
	creds := `{"email":"a@example.com","password":"wrong"}`

	for i := 0; i < 5; i++ {
		w := send(engine, http.MethodPost, "/api/v1/auth/login", creds, nil)
		require.Equal(t, http.StatusUnauthorized, w.Code, "attempt %d", i+1)
		assert.Equal(t, "5", w.Header().Get(quota.HeaderLimit))
	}

	w := send(engine, http.MethodPost, "/api/v1/auth/login", creds, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get(quota.HeaderRetryAfter))

	var body quota.RejectionBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body.Error)
}

func TestServe_SuccessfulLoginsAreNotCounted(t *testing.T) {
	engine, _ := startServer(t, serveConfig())

	for i := 0; i < 8; i++ {
		w := send(engine, http.MethodPost, "/api/v1/auth/login", `{"email":"a@example.com","password":"demo"}`, nil)
		require.Equal(t, http.StatusOK, w.Code, "attempt %d", i+1)
	}
}

func TestServe_PasswordResetKeyedByEmail(t *testing.T) {
	engine, _ := startServer(t, serveConfig())

	for _, email := range []string{"Bob@Example.com", "bob@example.com", " BOB@example.com"} {
		w := send(engine, http.MethodPost, "/api/v1/auth/password-reset", fmt.Sprintf(`{"email":%q}`, email), nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := send(engine, http.MethodPost, "/api/v1/auth/password-reset", `{"email":"bob@EXAMPLE.com"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = send(engine, http.MethodPost, "/api/v1/auth/password-reset", `{"email":"carol@example.com"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServe_SubscriptionChangesTier(t *testing.T) {
	engine, _ := startServer(t, serveConfig())
	user := map[string]string{userHeader: "u1"}

	w := send(engine, http.MethodGet, "/api/v1/resources", "", user)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "60", w.Header().Get(quota.HeaderLimit))

	w = send(engine, http.MethodPut, "/admin/subscriptions/u1", `{"tier":"pro"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = send(engine, http.MethodGet, "/api/v1/resources", "", user)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "300", w.Header().Get(quota.HeaderLimit))
	assert.Equal(t, "298", w.Header().Get(quota.HeaderRemaining))
}

func TestServe_BearerSubjectSelectsTier(t *testing.T) {
	engine, _ := startServer(t, serveConfigWith("", "demo:\n  jwt_secret: s3cret"))

	w := send(engine, http.MethodPut, "/admin/subscriptions/u9", `{"tier":"pro"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u9"}).
		SignedString([]byte("s3cret"))
	require.NoError(t, err)

	w = send(engine, http.MethodGet, "/api/v1/resources", "", map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "300", w.Header().Get(quota.HeaderLimit))

	w = send(engine, http.MethodGet, "/api/v1/resources", "", map[string]string{userHeader: "u10"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "60", w.Header().Get(quota.HeaderLimit))
}

func TestServe_TierTableSeededAndLoaded(t *testing.T) {
	cfg := serveConfig()
	engine, s := startServer(t, cfg)

	stored, err := s.tierstore.Store().LoadTable(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(60), stored[quota.TierFree][quota.CategoryAPI].Limit)

	w := send(engine, http.MethodPut, "/admin/tiers",
		`{"tiers":{"free":{"api":{"limit":2,"window":"1m"}}}}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stored, err = s.tierstore.Store().LoadTable(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored[quota.TierFree][quota.CategoryAPI].Limit)
}

func TestServe_HealthAndAdmin(t *testing.T) {
	engine, _ := startServer(t, serveConfig())

	w := send(engine, http.MethodGet, "/healthz/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "tierstore")

	w = send(engine, http.MethodGet, "/admin/tiers", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	send(engine, http.MethodPost, "/api/v1/ai/complete", `{"prompt":"hi"}`, map[string]string{userHeader: "u2"})
	w = send(engine, http.MethodGet, "/admin/buckets/ai/u2", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ai_minute")

	w = send(engine, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServe_MetricsSnapshot(t *testing.T) {
	engine, _ := startServer(t, serveConfigWith("  metrics:\n    enabled: true", "metrics:\n  enabled: true\n  prometheus:\n    enabled: true"))

	w := send(engine, http.MethodGet, "/api/v1/resources", "", map[string]string{userHeader: "u3"})
	require.Equal(t, http.StatusOK, w.Code)

	w = send(engine, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "quotad/quota")
	assert.Contains(t, w.Body.String(), "quota_decisions_total")

	w = send(engine, http.MethodGet, "/metrics/prometheus", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "quota_decisions")
}
