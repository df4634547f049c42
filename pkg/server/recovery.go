package server

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/milan604/restfetch/pkg/logger"
)

// RecoveryMiddleware turns a handler panic into a 500 with a JSON body.
func RecoveryMiddleware(l logger.LogManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				l.With("log_type", "panic", "path", c.Request.URL.Path).
					ErrorFCtx(c.Request.Context(), "panic recovered: %v\n%s", r, debug.Stack())
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"status": http.StatusInternalServerError, "message": "internal server error"})
			}
		}()
		c.Next()
	}
}
