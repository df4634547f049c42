// Package server builds the gin engine of the demo API that restfetch
// examples and integration tests talk to: request IDs, access logs, optional
// tracing, per-IP rate limits and panic recovery, plus a JWT session API.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/milan604/restfetch/pkg/logger"
	"github.com/milan604/restfetch/pkg/observability"
)

// EngineOption configures NewEngine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	logger          logger.LogManager
	recovery        bool
	serviceName     string
	rateLimitConfig *RateLimitConfig
	addMiddleware   []gin.HandlerFunc
}

func WithLogger(l logger.LogManager) EngineOption {
	return func(e *engineOptions) { e.logger = l }
}

func WithRecovery(enabled bool) EngineOption {
	return func(e *engineOptions) { e.recovery = enabled }
}

// WithTracing adds otelgin server spans under serviceName.
func WithTracing(serviceName string) EngineOption {
	return func(e *engineOptions) { e.serviceName = serviceName }
}

// WithRateLimit enables per-IP rate limiting.
func WithRateLimit(cfg *RateLimitConfig) EngineOption {
	return func(e *engineOptions) { e.rateLimitConfig = cfg }
}

func WithMiddleware(m ...gin.HandlerFunc) EngineOption {
	return func(e *engineOptions) { e.addMiddleware = append(e.addMiddleware, m...) }
}

// NewEngine creates a gin engine with the middleware in a fixed order.
func NewEngine(opts ...EngineOption) *gin.Engine {
	engine := gin.New()

	var opt engineOptions
	for _, o := range opts {
		o(&opt)
	}
	if opt.logger == nil {
		opt.logger = logger.Nop()
	}

	// recovery first so it also covers the other middleware
	if opt.recovery {
		engine.Use(RecoveryMiddleware(opt.logger))
	}
	if opt.serviceName != "" {
		engine.Use(observability.GinMiddleware(opt.serviceName))
	}
	engine.Use(RequestIDMiddleware())
	engine.Use(AccessLoggerMiddleware(opt.logger))
	if opt.rateLimitConfig != nil && opt.rateLimitConfig.Enabled {
		engine.Use(opt.rateLimitConfig.Middleware())
	}
	for _, m := range opt.addMiddleware {
		engine.Use(m)
	}
	return engine
}

// Serve runs handler on ln until ctx is cancelled, then shuts down within
// shutdownTimeout.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler, log logger.LogManager, shutdownTimeout time.Duration) error {
	if log == nil {
		log = logger.Nop()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}

	srv := &http.Server{
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.InfoF("demo API listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.InfoF("shutdown initiated")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.ErrorF("server shutdown error: %v", err)
		return err
	}
	log.InfoF("server stopped gracefully")
	return nil
}
