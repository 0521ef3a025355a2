package application

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestTracing_ServerSpanDrivesTraceID(t *testing.T) {
	tp, err := NewTracerProvider(t.Context(), TracingConfig{Enabled: true, Exporter: "noop"})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(noop.NewTracerProvider())
	})

	srv := NewHTTPServer(ApiServerConfig{Mode: gin.TestMode}, DefaultAppConfig().Middleware, nil, WithTracing("quotad-test"))
	srv.GetEngine().GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	const parentTraceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("traceparent", "00-"+parentTraceID+"-00f067aa0ba902b7-01")
	w := httptest.NewRecorder()
	srv.GetEngine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, parentTraceID, w.Header().Get("X-Trace-ID"))
}

func TestTracing_UnknownExporter(t *testing.T) {
	_, err := NewTracerProvider(t.Context(), TracingConfig{Enabled: true, Exporter: "zipkin"})
	assert.Error(t, err)

	cfg := DefaultAppConfig()
	cfg.Tracing = &TracingConfig{Enabled: true, Exporter: "otlp"}
	assert.Error(t, cfg.Validate(), "otlp without endpoint")
}

func TestMetricsManager_StdoutExporterKeepsSnapshot(t *testing.T) {
	mm, err := NewMetricsManager(t.Context(), MetricsConfig{Enabled: true, Exporter: "stdout"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mm.Shutdown(context.Background()) })

	counter, err := mm.Meter("quotad/test").Int64Counter("hits_total")
	require.NoError(t, err)
	counter.Add(t.Context(), 3)

	rm, err := mm.Snapshot(t.Context())
	require.NoError(t, err)
	require.Len(t, rm.ScopeMetrics, 1)
	assert.Equal(t, "quotad/test", rm.ScopeMetrics[0].Scope.Name)
	assert.Equal(t, "hits_total", rm.ScopeMetrics[0].Metrics[0].Name)
}

func TestMetricsConfig_Validate(t *testing.T) {
	assert.NoError(t, MetricsConfig{}.Validate())
	assert.NoError(t, MetricsConfig{Exporter: "stdout"}.Validate())
	assert.Error(t, MetricsConfig{Exporter: "otlp"}.Validate())
	assert.Error(t, MetricsConfig{Exporter: "prometheus"}.Validate())
}

func TestApplication_TracingEnabled(t *testing.T) {
	app, err := New(loaderWith(t, map[string]interface{}{
		"tracing.enabled":  true,
		"tracing.exporter": "noop",
	}))
	require.NoError(t, err)
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	require.NotNil(t, app.TracerProvider())
	assert.Equal(t, "quotad", app.Config().Tracing.ServiceName)
	require.NoError(t, app.Setup())
	assert.NoError(t, app.Shutdown(time.Second))
}

func TestMetricsManager_PrometheusEndpoint(t *testing.T) {
	mm, err := NewMetricsManager(t.Context(), MetricsConfig{Enabled: true, Prometheus: PrometheusConfig{Enabled: true}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mm.Shutdown(context.Background()) })

	counter, err := mm.Meter("quotad/test").Int64Counter("quota_checks")
	require.NoError(t, err)
	counter.Add(t.Context(), 2)

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/metrics/prometheus", mm.PrometheusHandler())

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics/prometheus", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "quota_checks")

	plain, err := NewMetricsManager(t.Context(), MetricsConfig{Enabled: true})
	require.NoError(t, err)
	assert.Nil(t, plain.PrometheusHandler())
}
