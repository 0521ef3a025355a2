package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/KOMKZ/go-yogan-quota/component"
)

// HealthCheckHandler aggregates component health checkers
type HealthCheckHandler struct {
	checkers []component.HealthChecker
}

// NewHealthCheckHandler nil checkers are dropped
func NewHealthCheckHandler(checkers ...component.HealthChecker) *HealthCheckHandler {
	h := &HealthCheckHandler{}
	for _, c := range checkers {
		if c != nil {
			h.checkers = append(h.checkers, c)
		}
	}
	return h
}

// HandleReadiness 200 when every checker passes, 503 otherwise
func (h *HealthCheckHandler) HandleReadiness() gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := make(map[string]string, len(h.checkers))
		status, code := "healthy", http.StatusOK
		for _, checker := range h.checkers {
			if err := checker.Check(c.Request.Context()); err != nil {
				checks[checker.Name()] = err.Error()
				status, code = "unhealthy", http.StatusServiceUnavailable
				continue
			}
			checks[checker.Name()] = "ok"
		}
		c.JSON(code, gin.H{"status": status, "checks": checks})
	}
}

// HandleLiveness always 200; dependencies are not consulted
func (h *HealthCheckHandler) HandleLiveness() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "alive"})
	}
}

// RegisterHealthRoutes GET /healthz and /healthz/ready
func RegisterHealthRoutes(router gin.IRouter, h *HealthCheckHandler) {
	router.GET("/healthz", h.HandleLiveness())
	router.GET("/healthz/ready", h.HandleReadiness())
}
