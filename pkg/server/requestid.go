package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	fhttp "github.com/milan604/restfetch/pkg/http"
	"github.com/milan604/restfetch/pkg/logger"
)

// RequestIDMiddleware accepts an incoming request ID or assigns one, and
// echoes it back.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(fhttp.HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))
		c.Header(fhttp.HeaderRequestID, id)
		c.Next()
	}
}

// AccessLoggerMiddleware logs each request after completion.
func AccessLoggerMiddleware(l logger.LogManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := l.With(
			"log_type", "access",
			"ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		ctx := c.Request.Context()
		switch {
		case status >= 500:
			entry.ErrorFCtx(ctx, "%s %s", c.Request.Method, c.FullPath())
		case status >= 400:
			entry.WarnFCtx(ctx, "%s %s", c.Request.Method, c.FullPath())
		default:
			entry.InfoFCtx(ctx, "%s %s", c.Request.Method, c.FullPath())
		}
	}
}
