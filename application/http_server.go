package application

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-quota/httpx"
	"github.com/KOMKZ/go-yogan-quota/logger"
	"github.com/KOMKZ/go-yogan-quota/middleware"
)

// HTTPServer gin engine plus the net/http server running it
type HTTPServer struct {
	engine     *gin.Engine
	httpServer *http.Server
	cfg        ApiServerConfig
	addr       string
}

// ServerOption optional HTTPServer behaviour
type ServerOption func(*serverOptions)

type serverOptions struct {
	tracingService string
}

// WithTracing opens a server span per request before the trace id middleware runs
func WithTracing(serviceName string) ServerOption {
	return func(o *serverOptions) {
		o.tracingService = serviceName
	}
}

// NewHTTPServer builds the engine with the global middleware chain
//
// Order: otelgin (when traced), trace id, request log, error logging, recovery.
// Routes are registered by the caller.
func NewHTTPServer(cfg ApiServerConfig, middlewareCfg *MiddlewareConfig, httpxCfg *httpx.ErrorLoggingConfig, opts ...ServerOption) *HTTPServer {
	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}

	gin.DefaultWriter = logger.NewGinLogWriter("quotad")
	gin.DefaultErrorWriter = logger.NewGinLogWriter("quotad")
	gin.SetMode(cfg.Mode)

	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	if o.tracingService != "" {
		engine.Use(otelgin.Middleware(o.tracingService))
	}

	if middlewareCfg != nil && middlewareCfg.TraceID != nil && middlewareCfg.TraceID.Enable {
		traceCfg := middleware.DefaultTraceConfig()
		if middlewareCfg.TraceID.TraceIDHeader != "" {
			traceCfg.TraceIDHeader = middlewareCfg.TraceID.TraceIDHeader
		}
		traceCfg.EnableResponseHeader = middlewareCfg.TraceID.EnableResponseHeader
		engine.Use(middleware.TraceID(traceCfg))
	}

	if middlewareCfg != nil && middlewareCfg.RequestLog != nil && middlewareCfg.RequestLog.Enable {
		engine.Use(middleware.RequestLogWithConfig(middleware.RequestLogConfig{
			SkipPaths: middlewareCfg.RequestLog.SkipPaths,
		}))
	}

	if httpxCfg != nil && httpxCfg.Enable {
		engine.Use(httpx.ErrorLoggingMiddleware(*httpxCfg))
	}

	engine.Use(middleware.Recovery())

	engine.NoRoute(httpx.NoRouteHandler())
	engine.NoMethod(httpx.NoMethodHandler())

	return &HTTPServer{
		engine: engine,
		cfg:    cfg,
		addr:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
	}
}

func (s *HTTPServer) GetEngine() *gin.Engine {
	return s.engine
}

// Addr listen address; after Start with port 0 it holds the bound port
func (s *HTTPServer) Addr() string {
	return s.addr
}

// Start listens and serves in the background
//
// Binding happens synchronously so port conflicts surface here rather than in the goroutine.
func (s *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s failed: %w", s.addr, err)
	}
	s.addr = ln.Addr().String()

	s.httpServer = &http.Server{
		Handler:      s.engine,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeout) * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("quotad", "HTTP server starting",
			zap.String("addr", s.addr),
			zap.String("mode", s.cfg.Mode))

		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		logger.Error("quotad", "HTTP server start failed", zap.Error(err))
		return fmt.Errorf("start http server failed: %w", err)
	case <-time.After(50 * time.Millisecond):
		return nil
	}
}

// Shutdown drains in-flight requests until ctx expires
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	logger.Debug("quotad", "Shutting down HTTP server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server failed: %w", err)
	}
	s.httpServer = nil
	logger.Debug("quotad", "HTTP server closed")
	return nil
}
