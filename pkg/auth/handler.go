package auth

import (
	"context"
	"time"

	coreerrors "github.com/milan604/restfetch/pkg/errors"
	"github.com/milan604/restfetch/pkg/fetch"
	"github.com/milan604/restfetch/pkg/logger"
)

const headerAuthorization = "Authorization"

// ProviderHandler answers a 401 by discarding the cached token and fetching
// a new one from its TokenProvider.
type ProviderHandler struct {
	cache  *TokenCache
	scheme string
	log    logger.LogManager
}

// ProviderHandlerOption configures a ProviderHandler.
type ProviderHandlerOption func(*ProviderHandler)

// WithScheme sets the Authorization scheme. Default "Bearer".
func WithScheme(scheme string) ProviderHandlerOption {
	return func(h *ProviderHandler) { h.scheme = scheme }
}

// WithHandlerLogger sets the logger.
func WithHandlerLogger(l logger.LogManager) ProviderHandlerOption {
	return func(h *ProviderHandler) {
		if l != nil {
			h.log = l
		}
	}
}

// NewProviderHandler caches tokens from provider, refreshing refreshBuffer
// before they expire.
func NewProviderHandler(provider TokenProvider, refreshBuffer time.Duration, opts ...ProviderHandlerOption) *ProviderHandler {
	h := &ProviderHandler{
		cache:  NewTokenCache(provider, refreshBuffer),
		scheme: "Bearer",
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Prime installs a token on f before its first call.
func (h *ProviderHandler) Prime(ctx context.Context, f *fetch.Fetch) error {
	token, err := h.cache.GetToken(ctx)
	if err != nil {
		return coreerrors.Wrap(err, "failed to get token")
	}
	f.SetDefaultHeader(headerAuthorization, authorizationValue(h.scheme, token))
	return nil
}

// HandleAuthFailure implements fetch.AuthFailureHandler.
func (h *ProviderHandler) HandleAuthFailure(ctx context.Context, f *fetch.Fetch) (bool, error) {
	h.log.InfoFCtx(ctx, "received 401, invalidating token")
	h.cache.Invalidate()
	if err := h.Prime(ctx, f); err != nil {
		return false, err
	}
	return true, nil
}

var _ fetch.AuthFailureHandler = (*ProviderHandler)(nil)

func authorizationValue(scheme, token string) string {
	if scheme == "" {
		return token
	}
	return scheme + " " + token
}
