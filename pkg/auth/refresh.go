package auth

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	coreerrors "github.com/milan604/restfetch/pkg/errors"
	"github.com/milan604/restfetch/pkg/fetch"
	"github.com/milan604/restfetch/pkg/logger"
)

// ErrNoRefreshToken is returned when the store holds no refresh token.
var ErrNoRefreshToken = coreerrors.New("no refresh token stored")

// TokenPair is what a refresh endpoint hands back.
type TokenPair struct {
	AuthToken    string `json:"authToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshResponse accepts both a flat token pair and the
// {"data":{"item":{...}}} envelope.
type RefreshResponse struct {
	TokenPair
	Data *struct {
		Item TokenPair `json:"item"`
	} `json:"data,omitempty"`
}

// Tokens returns whichever shape the server used.
func (r RefreshResponse) Tokens() TokenPair {
	if r.AuthToken == "" && r.Data != nil {
		return r.Data.Item
	}
	return r.TokenPair
}

// RefreshTokenHandler answers a 401 by exchanging the stored refresh token
// for a new auth token at RefreshURL.
//
// Concurrent 401s are not coordinated: each one reads the stored refresh
// token and exchanges it. Against a server that rotates single-use refresh
// tokens only the first exchange succeeds and the others fail with the
// server's rejection.
type RefreshTokenHandler struct {
	refreshURL string
	store      TokenStore
	scheme     string
	requireJWT bool
	log        logger.LogManager

	mu        sync.RWMutex
	expiresAt time.Time
}

// RefreshOption configures a RefreshTokenHandler.
type RefreshOption func(*RefreshTokenHandler)

// WithRefreshScheme sets the Authorization scheme. Default "Bearer".
func WithRefreshScheme(scheme string) RefreshOption {
	return func(h *RefreshTokenHandler) { h.scheme = scheme }
}

// RequireJWT rejects auth tokens that do not parse as JWTs.
func RequireJWT() RefreshOption {
	return func(h *RefreshTokenHandler) { h.requireJWT = true }
}

// WithRefreshLogger sets the logger.
func WithRefreshLogger(l logger.LogManager) RefreshOption {
	return func(h *RefreshTokenHandler) {
		if l != nil {
			h.log = l
		}
	}
}

// NewRefreshTokenHandler creates a handler that posts {"refreshToken": ...}
// to refreshURL. A nil store means an empty MemoryStore.
func NewRefreshTokenHandler(refreshURL string, store TokenStore, opts ...RefreshOption) *RefreshTokenHandler {
	if store == nil {
		store = NewMemoryStore("")
	}
	h := &RefreshTokenHandler{
		refreshURL: refreshURL,
		store:      store,
		scheme:     "Bearer",
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleAuthFailure implements fetch.AuthFailureHandler. The refresh call
// itself never triggers another refresh. A nil handler declines.
func (h *RefreshTokenHandler) HandleAuthFailure(ctx context.Context, f *fetch.Fetch) (bool, error) {
	if h == nil {
		return false, nil
	}
	refreshToken, err := h.store.RefreshToken(ctx)
	if err != nil {
		return false, err
	}
	if refreshToken == "" {
		return false, ErrNoRefreshToken
	}

	resp, err := fetch.ExecAction[RefreshResponse](ctx, f, h.refreshURL,
		map[string]string{"refreshToken": refreshToken},
		fetch.SkipRetryOnAuthFailure(),
		fetch.WithAuthHeader(false),
	)
	if err != nil {
		h.log.WarnFCtx(ctx, "token refresh failed: %v", err)
		return false, err
	}

	tokens := resp.Tokens()
	if tokens.AuthToken == "" {
		return false, coreerrors.New("refresh response carried no auth token")
	}

	expiresAt, err := tokenExpiry(tokens.AuthToken)
	if err != nil && h.requireJWT {
		return false, coreerrors.Wrap(err, "refreshed auth token is not a JWT")
	}
	h.mu.Lock()
	h.expiresAt = expiresAt
	h.mu.Unlock()

	f.SetDefaultHeader(headerAuthorization, authorizationValue(h.scheme, tokens.AuthToken))

	if tokens.RefreshToken != "" && tokens.RefreshToken != refreshToken {
		if err := h.store.SaveRefreshToken(ctx, tokens.RefreshToken); err != nil {
			// the new auth token is already installed, so the call can still be retried
			h.log.WarnFCtx(ctx, "failed to store rotated refresh token: %v", err)
		}
	}

	h.log.InfoFCtx(ctx, "auth token refreshed (expires %s)", formatExpiry(expiresAt))
	return true, nil
}

// ExpiresAt is the expiry of the last installed auth token, zero if unknown.
func (h *RefreshTokenHandler) ExpiresAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.expiresAt
}

var _ fetch.AuthFailureHandler = (*RefreshTokenHandler)(nil)

// tokenExpiry reads exp from a JWT without verifying its signature; the
// issuing server verifies it on every call.
func tokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, err
	}
	return exp.Time, nil
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format(time.RFC3339)
}
