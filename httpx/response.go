package httpx

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-quota/errcode"
	"github.com/KOMKZ/go-yogan-quota/logger"
)

// Response unified envelope
type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

var (
	// ErrBadRequest malformed request body or parameters
	ErrBadRequest = errcode.Register(errcode.New(10, 1000, "common", "BAD_REQUEST", "Malformed request", http.StatusBadRequest))

	// ErrNotFound route or resource not found
	ErrNotFound = errcode.Register(errcode.New(10, 1004, "common", "NOT_FOUND", "Not found", http.StatusNotFound))
)

func OkJson(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Msg: "success", Data: data})
}

func BadRequestJson(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, Response{Code: http.StatusBadRequest, Msg: err.Error()})
}

func NotFoundJson(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, Response{Code: http.StatusNotFound, Msg: msg})
}

func InternalErrorJson(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, Response{Code: http.StatusInternalServerError, Msg: msg})
}

// NoRouteHandler for engine.NoRoute
func NoRouteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		NotFoundJson(c, "route not found: "+c.Request.Method+" "+c.Request.URL.Path)
	}
}

// NoMethodHandler for engine.NoMethod
func NoMethodHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, Response{
			Code: http.StatusMethodNotAllowed,
			Msg:  "method not allowed: " + c.Request.Method + " " + c.Request.URL.Path,
		})
	}
}

// HandleError writes a LayeredError with its own status and code; anything else is a 500
// whose message is not exposed to the client.
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	ctx := c.Request.Context()
	cfg := getErrorLoggingConfig(c)

	var layered *errcode.LayeredError
	if errors.As(err, &layered) {
		if cfg.Enable && !cfg.IgnoreStatusMap[layered.HTTPStatus()] {
			fields := []zap.Field{
				zap.Int("error_code", layered.Code()),
				zap.String("error_msg", layered.Message()),
			}
			if cfg.FullErrorChain {
				fields = append(fields, zap.Error(err))
			}

			switch cfg.LogLevel {
			case "warn":
				logger.WarnCtx(ctx, "httpx", "Request failed", fields...)
			case "info":
				logger.InfoCtx(ctx, "httpx", "Request failed", fields...)
			default:
				logger.ErrorCtx(ctx, "httpx", "Request failed", fields...)
			}
		}

		resp := Response{Code: layered.Code(), Msg: layered.Message()}
		if len(layered.Data()) > 0 {
			resp.Data = layered.Data()
		}
		c.JSON(layered.HTTPStatus(), resp)
		return
	}

	if cfg.Enable {
		logger.ErrorCtx(ctx, "httpx", "Unhandled error", zap.Error(err))
	}
	InternalErrorJson(c, "internal server error")
}
