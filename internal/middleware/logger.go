package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestID injects an X-Request-ID header into the request and response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// Logger logs each HTTP request with method, path, status, latency and, once
// authenticated, the account id.
func Logger() gin.HandlerFunc {
	logger := zap.L().With(zap.String("component", "http"))
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", c.GetString("request_id")),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if id := c.GetString(ContextKeyAccountID); id != "" {
			fields = append(fields, zap.String("account_id", id))
		}

		level := zapcore.InfoLevel
		if status >= 500 {
			level = zapcore.ErrorLevel
		} else if status >= 400 {
			level = zapcore.WarnLevel
		}
		logger.Log(level, "request", fields...)
	}
}

// Recovery recovers from panics and returns a 500 error.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		zap.L().Error("panic recovered",
			zap.String("request_id", c.GetString("request_id")),
			zap.Any("panic", recovered))
		abort(c, http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred")
	})
}
