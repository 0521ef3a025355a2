// Package application hosts components and the HTTP server for quotad
package application

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-quota/component"
	"github.com/KOMKZ/go-yogan-quota/logger"
)

// AppState lifecycle state
type AppState int

const (
	StateInit AppState = iota
	StateSetup
	StateRunning
	StateStopping
	StateStopped
)

func (s AppState) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateSetup:
		return "Setup"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Application registered components started in order and stopped in reverse
type Application struct {
	loader    component.ConfigLoader
	appConfig AppConfig
	logger    *logger.CtxZapLogger

	components []component.Component
	started    []component.Component
	server     *HTTPServer
	metrics    *MetricsManager
	tracer     *sdktrace.TracerProvider

	ctx    context.Context
	cancel context.CancelFunc
	state  AppState
	mu     sync.RWMutex

	onReady    func(*Application) error
	onShutdown func(context.Context) error
}

// New reads the host sections from loader and initializes the global logger
func New(loader component.ConfigLoader) (*Application, error) {
	var appCfg AppConfig
	if err := loader.Unmarshal("", &appCfg); err != nil {
		return nil, fmt.Errorf("read app config failed: %w", err)
	}
	appCfg.ApplyDefaults()
	if err := appCfg.Validate(); err != nil {
		return nil, err
	}

	logger.InitManager(*appCfg.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	app := &Application{
		loader:    loader,
		appConfig: appCfg,
		logger:    logger.GetLogger("quotad"),
		ctx:       ctx,
		cancel:    cancel,
		state:     StateInit,
	}
	if appCfg.Metrics.Enabled {
		mm, err := NewMetricsManager(ctx, *appCfg.Metrics)
		if err != nil {
			cancel()
			return nil, err
		}
		app.metrics = mm
	}
	if appCfg.Tracing.Enabled {
		tp, err := NewTracerProvider(ctx, *appCfg.Tracing)
		if err != nil {
			cancel()
			return nil, err
		}
		app.tracer = tp
	}
	return app, nil
}

// Register appends components; Setup initializes them in registration order
func (a *Application) Register(comps ...component.Component) *Application {
	a.components = append(a.components, comps...)
	return a
}

// OnReady runs after every component started, typically to register routes
func (a *Application) OnReady(fn func(*Application) error) *Application {
	a.onReady = fn
	return a
}

// OnShutdown runs before components are stopped
func (a *Application) OnShutdown(fn func(context.Context) error) *Application {
	a.onShutdown = fn
	return a
}

// Setup runs Init then Start on every component
//
// A failure stops whatever already started, in reverse order.
func (a *Application) Setup() error {
	a.setState(StateSetup)

	for _, c := range a.components {
		if err := c.Init(a.ctx, a.loader); err != nil {
			a.stopStarted(a.ctx)
			return fmt.Errorf("init component %s failed: %w", c.Name(), err)
		}
		if err := c.Start(a.ctx); err != nil {
			a.stopStarted(a.ctx)
			return fmt.Errorf("start component %s failed: %w", c.Name(), err)
		}
		a.started = append(a.started, c)
		a.logger.DebugCtx(a.ctx, "Component started", zap.String("component", c.Name()))

		if err := a.registerMetrics(c); err != nil {
			a.stopStarted(a.ctx)
			return err
		}
	}

	if a.metrics != nil {
		engine := a.HTTPServer().GetEngine()
		engine.GET(a.appConfig.Metrics.Path, a.metrics.Handler())
		if h := a.metrics.PrometheusHandler(); h != nil {
			engine.GET(a.appConfig.Metrics.Prometheus.Path, h)
		}
	}

	if a.onReady != nil {
		if err := a.onReady(a); err != nil {
			a.stopStarted(a.ctx)
			return fmt.Errorf("onReady failed: %w", err)
		}
	}
	return nil
}

// Run sets up, serves HTTP, blocks until a signal, then shuts down
func (a *Application) Run() error {
	if err := a.Setup(); err != nil {
		return err
	}
	if err := a.HTTPServer().Start(); err != nil {
		a.stopStarted(a.ctx)
		return err
	}
	a.setState(StateRunning)
	a.logger.InfoCtx(a.ctx, "quotad started", zap.String("addr", a.HTTPServer().Addr()))

	a.WaitShutdown()
	return a.Shutdown(time.Duration(a.appConfig.ApiServer.ShutdownTimeout) * time.Second)
}

// Shutdown stops the HTTP server, runs the OnShutdown hook, then stops components
func (a *Application) Shutdown(timeout time.Duration) error {
	a.setState(StateStopping)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.onShutdown != nil {
		if err := a.onShutdown(ctx); err != nil {
			a.logger.ErrorCtx(ctx, "OnShutdown callback failed", zap.Error(err))
		}
	}
	errs = append(errs, a.stopStarted(ctx)...)
	if a.metrics != nil {
		if err := a.metrics.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	a.setState(StateStopped)
	logger.CloseAll()
	return errors.Join(errs...)
}

// WaitShutdown blocks on SIGINT/SIGTERM or Cancel; a second signal exits immediately
func (a *Application) WaitShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		a.logger.InfoCtx(a.ctx, "Shutdown signal received", zap.String("signal", sig.String()))
		a.cancel()

		go func() {
			sig := <-quit
			a.logger.WarnCtx(context.Background(), "Second signal received, forcing exit", zap.String("signal", sig.String()))
			os.Exit(1)
		}()
	case <-a.ctx.Done():
		a.logger.DebugCtx(context.Background(), "Context cancelled, starting graceful shutdown")
	}
}

// Cancel triggers shutdown from code, e.g. tests
func (a *Application) Cancel() {
	a.cancel()
}

// HTTPServer created on first use from the api_server and middleware sections
func (a *Application) HTTPServer() *HTTPServer {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server == nil {
		var opts []ServerOption
		if a.tracer != nil {
			opts = append(opts, WithTracing(a.appConfig.Tracing.ServiceName))
		}
		a.server = NewHTTPServer(a.appConfig.ApiServer, a.appConfig.Middleware, a.appConfig.Httpx, opts...)
	}
	return a.server
}

// HealthCheckers checkers of started components that provide one
func (a *Application) HealthCheckers() []component.HealthChecker {
	var checkers []component.HealthChecker
	for _, c := range a.started {
		provider, ok := c.(component.HealthCheckProvider)
		if !ok {
			continue
		}
		if checker := provider.GetHealthChecker(); checker != nil {
			checkers = append(checkers, checker)
		}
	}
	return checkers
}

// TracerProvider nil unless tracing.enabled is set
func (a *Application) TracerProvider() *sdktrace.TracerProvider {
	return a.tracer
}

// Metrics nil unless metrics.enabled is set
func (a *Application) Metrics() *MetricsManager {
	return a.metrics
}

func (a *Application) Config() AppConfig {
	return a.appConfig
}

func (a *Application) ConfigLoader() component.ConfigLoader {
	return a.loader
}

func (a *Application) Logger() *logger.CtxZapLogger {
	return a.logger
}

func (a *Application) Context() context.Context {
	return a.ctx
}

func (a *Application) GetState() AppState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// registerMetrics hands enabled MetricsProviders a meter named after them
func (a *Application) registerMetrics(c component.Component) error {
	if a.metrics == nil {
		return nil
	}
	provider, ok := c.(component.MetricsProvider)
	if !ok || !provider.IsMetricsEnabled() {
		return nil
	}
	if err := provider.RegisterMetrics(a.metrics.Meter("quotad/" + provider.MetricsName())); err != nil {
		return fmt.Errorf("register metrics of %s failed: %w", c.Name(), err)
	}
	a.logger.DebugCtx(a.ctx, "Component metrics registered", zap.String("component", c.Name()))
	return nil
}

func (a *Application) stopStarted(ctx context.Context) []error {
	var errs []error
	for i := len(a.started) - 1; i >= 0; i-- {
		c := a.started[i]
		if err := c.Stop(ctx); err != nil {
			a.logger.ErrorCtx(ctx, "Component stop failed", zap.String("component", c.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("stop %s: %w", c.Name(), err))
		}
	}
	a.started = nil
	return errs
}

func (a *Application) setState(state AppState) {
	a.mu.Lock()
	old := a.state
	a.state = state
	a.mu.Unlock()

	a.logger.DebugCtx(a.ctx, "State changed",
		zap.String("from", old.String()),
		zap.String("to", state.String()))
}
