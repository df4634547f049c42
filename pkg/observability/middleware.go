package observability

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// GinMiddleware traces inbound requests of a gin server, such as the demo
// API the wrapper talks to. Incoming trace context is extracted, so wrapper
// spans and server spans join one trace.
func GinMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}
