// file: internal/server/logger.go
// version: 2.0.0
// guid: 1d2e3f4a-5b6c-7d8e-9f0a-1b2c3d4e5f6a

package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jdfalk/bookmeta/internal/logger"
	"github.com/jdfalk/bookmeta/internal/server/middleware"
)

// RequestLogger provides request-level logging
type RequestLogger struct {
	log       *logger.Logger
	requestID string
	clientIP  string
	userAgent string
	method    string
	path      string
	startTime time.Time
}

// NewRequestLogger creates a new request logger
func NewRequestLogger(base *logger.Logger, requestID, clientIP, userAgent, method, path string) *RequestLogger {
	if base == nil {
		base = logger.Get()
	}
	return &RequestLogger{
		log:       base.WithFields(map[string]interface{}{"request_id": requestID}),
		requestID: requestID,
		clientIP:  clientIP,
		userAgent: userAgent,
		method:    method,
		path:      path,
		startTime: time.Now(),
	}
}

// Logger returns the request-scoped structured logger.
func (rl *RequestLogger) Logger() *logger.Logger {
	return rl.log
}

// LogRequest logs the received request
func (rl *RequestLogger) LogRequest() {
	rl.log.Debug("request received", map[string]interface{}{
		"method":     rl.method,
		"path":       rl.path,
		"client_ip":  rl.clientIP,
		"user_agent": rl.userAgent,
	})
}

// LogResponse logs the response sent
func (rl *RequestLogger) LogResponse(statusCode int, responseSize int) {
	fields := map[string]interface{}{
		"method":      rl.method,
		"path":        rl.path,
		"status":      statusCode,
		"bytes":       responseSize,
		"duration_ms": time.Since(rl.startTime).Milliseconds(),
	}
	switch {
	case statusCode >= http.StatusInternalServerError:
		rl.log.Error("request completed", fields)
	case statusCode >= http.StatusBadRequest:
		rl.log.Warn("request completed", fields)
	default:
		rl.log.Info("request completed", fields)
	}
}

// requestLogging attaches a request logger and a fresh trail to every
// request context and logs the outcome.
func requestLogging(base *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rl := NewRequestLogger(base, middleware.GetRequestID(c), c.ClientIP(), c.Request.UserAgent(), c.Request.Method, c.Request.URL.Path)
		ctx := logger.NewContext(c.Request.Context(), rl.Logger())
		ctx = logger.WithTrail(ctx, logger.NewTrail(rl.Logger()))
		c.Request = c.Request.WithContext(ctx)

		rl.LogRequest()
		c.Next()
		rl.LogResponse(c.Writer.Status(), c.Writer.Size())
	}
}
