package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KOMKZ/go-yogan-quota/component"
	"github.com/KOMKZ/go-yogan-quota/config"
)

type mapSource map[string]interface{}

func (m mapSource) Name() string                           { return "map" }
func (m mapSource) Priority() int                          { return 10 }
func (m mapSource) Load() (map[string]interface{}, error) { return m, nil }

func loaderWith(t *testing.T, values map[string]interface{}) *config.Loader {
	t.Helper()
	merged := map[string]interface{}{
		"logger.enable_file":    false,
		"logger.enable_console": false,
		"api_server.host":       "127.0.0.1",
		"api_server.mode":       "test",
	}
	for k, v := range values {
		merged[k] = v
	}
	loader := config.NewLoader()
	loader.AddSource(mapSource(merged))
	require.NoError(t, loader.Load())
	return loader
}

type stubComponent struct {
	name     string
	events   *[]string
	startErr error
	checker  component.HealthChecker
}

func (s *stubComponent) Name() string        { return s.name }
func (s *stubComponent) DependsOn() []string { return nil }

func (s *stubComponent) Init(ctx context.Context, loader component.ConfigLoader) error {
	*s.events = append(*s.events, "init:"+s.name)
	return nil
}

func (s *stubComponent) Start(ctx context.Context) error {
	*s.events = append(*s.events, "start:"+s.name)
	return s.startErr
}

func (s *stubComponent) Stop(ctx context.Context) error {
	*s.events = append(*s.events, "stop:"+s.name)
	return nil
}

func (s *stubComponent) GetHealthChecker() component.HealthChecker {
	return s.checker
}

type okChecker struct{ name string }

func (c okChecker) Check(context.Context) error { return nil }
func (c okChecker) Name() string                { return c.name }

func TestApplication_LifecycleOrder(t *testing.T) {
	var events []string
	app, err := New(loaderWith(t, nil))
	require.NoError(t, err)

	ready := false
	app.Register(
		&stubComponent{name: "redis", events: &events},
		&stubComponent{name: "quota", events: &events, checker: okChecker{name: "quota"}},
	).OnReady(func(*Application) error {
		ready = true
		return nil
	})

	require.NoError(t, app.Setup())
	assert.True(t, ready)
	assert.Equal(t, []string{"init:redis", "start:redis", "init:quota", "start:quota"}, events)

	checkers := app.HealthCheckers()
	require.Len(t, checkers, 1)
	assert.Equal(t, "quota", checkers[0].Name())

	events = nil
	require.NoError(t, app.Shutdown(time.Second))
	assert.Equal(t, []string{"stop:quota", "stop:redis"}, events)
	assert.Equal(t, StateStopped, app.GetState())
}

func TestApplication_SetupFailureStopsStarted(t *testing.T) {
	var events []string
	app, err := New(loaderWith(t, nil))
	require.NoError(t, err)

	app.Register(
		&stubComponent{name: "redis", events: &events},
		&stubComponent{name: "kafka", events: &events, startErr: errors.New("broker down")},
		&stubComponent{name: "quota", events: &events},
	)

	err = app.Setup()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka")
	assert.Equal(t, []string{"init:redis", "start:redis", "init:kafka", "start:kafka", "stop:redis"}, events)
}

func TestApplication_InvalidConfig(t *testing.T) {
	_, err := New(loaderWith(t, map[string]interface{}{"api_server.mode": "turbo"}))
	assert.Error(t, err)
}

func TestHTTPServer_StartAndShutdown(t *testing.T) {
	srv := NewHTTPServer(ApiServerConfig{Host: "127.0.0.1", Port: 0, Mode: gin.TestMode}, DefaultAppConfig().Middleware, nil)
	srv.GetEngine().GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	resp, err := http.Get(fmt.Sprintf("http://%s/ping", srv.Addr()))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))

	resp, err = http.Get(fmt.Sprintf("http://%s/missing", srv.Addr()))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(fmt.Sprintf("http://%s/ping", srv.Addr()), "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	require.NoError(t, srv.Shutdown(context.Background()))
	require.NoError(t, srv.Shutdown(context.Background()))
}

func TestHTTPServer_PortInUse(t *testing.T) {
	first := NewHTTPServer(ApiServerConfig{Host: "127.0.0.1", Mode: gin.TestMode}, nil, nil)
	require.NoError(t, first.Start())
	t.Cleanup(func() { _ = first.Shutdown(context.Background()) })

	second := NewHTTPServer(ApiServerConfig{Mode: gin.TestMode}, nil, nil)
	second.addr = first.Addr()
	assert.Error(t, second.Start())
}

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	cfg.ApplyDefaults()

	assert.Equal(t, 8080, cfg.ApiServer.Port)
	assert.Equal(t, "release", cfg.ApiServer.Mode)
	assert.Equal(t, 10, cfg.ApiServer.ShutdownTimeout)
	require.NotNil(t, cfg.Logger)
	require.NotNil(t, cfg.Middleware)
	assert.True(t, cfg.Middleware.TraceID.Enable)
	assert.NoError(t, cfg.Validate())
}
