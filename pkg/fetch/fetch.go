package fetch

import (
	"context"
	"io"
	"net/http"
	"sync"

	fhttp "github.com/milan604/restfetch/pkg/http"
	"github.com/milan604/restfetch/pkg/logger"
)

// AuthFailureHandler is consulted at most once per call when it fails with
// 401. Returning true means credentials were refreshed and the call should be
// re-issued once.
type AuthFailureHandler interface {
	HandleAuthFailure(ctx context.Context, f *Fetch) (bool, error)
}

// AuthFailureHandlerFunc adapts a function to AuthFailureHandler.
type AuthFailureHandlerFunc func(ctx context.Context, f *Fetch) (bool, error)

func (fn AuthFailureHandlerFunc) HandleAuthFailure(ctx context.Context, f *Fetch) (bool, error) {
	return fn(ctx, f)
}

// Fetch wraps an HTTP client with default headers, cache/format header
// policy, error normalization and a one-shot retry after re-authentication.
// It is safe for concurrent use; default header writes are last-write-wins.
type Fetch struct {
	client      fhttp.Doer
	cache       CacheOption
	format      FormatOption
	authFailure AuthFailureHandler
	observers   []Observer
	logger      logger.LogManager

	mu             sync.RWMutex
	defaultHeaders Headers
}

// New creates a Fetch. Without options it uses CacheNoCache, FormatJSON, a
// default fhttp.Client and no auth-failure handler.
func New(opts ...Option) *Fetch {
	f := &Fetch{
		cache:          CacheNoCache,
		format:         FormatJSON,
		logger:         logger.Nop(),
		defaultHeaders: Headers{},
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = fhttp.NewClient(fhttp.WithLogger(f.logger))
	}
	return f
}

// Cache returns the cache policy fixed at construction.
func (f *Fetch) Cache() CacheOption { return f.cache }

// Format returns the format policy fixed at construction.
func (f *Fetch) Format() FormatOption { return f.format }

// Do issues method against uri and returns the raw response. Failures are
// always *Error, except as documented on Normalize. An io.Reader payload is
// read once up front so a retried attempt sends the same body.
func (f *Fetch) Do(ctx context.Context, method, uri string, payload any, opts ...RequestOption) (*fhttp.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ro := resolveRequestOptions(defaultsFor(method), opts)

	payload, err := replayable(payload)
	if err != nil {
		return nil, Normalize(err)
	}

	attempt := 0
	call := func() (*fhttp.Response, error) {
		attempt++
		info := CallInfo{Method: method, URI: uri, Attempt: attempt}
		callCtx, done := f.startCall(ctx, info)
		resp, err := f.client.Do(callCtx, &fhttp.Request{
			Method: method,
			URL:    uri,
			Header: f.buildHeaders(ro),
			Body:   payload,
		})
		done(resp, err)
		return resp, err
	}

	resp, err := call()
	if err == nil {
		return resp, nil
	}
	return f.handleErrorAndRetry(ctx, CallInfo{Method: method, URI: uri, Attempt: 1}, err, ro, call)
}

func (f *Fetch) handleErrorAndRetry(
	ctx context.Context,
	info CallInfo,
	err error,
	ro RequestOptions,
	call func() (*fhttp.Response, error),
) (*fhttp.Response, error) {
	if ro.SkipRetryOnAuthFailure || StatusCode(err) != http.StatusUnauthorized {
		return nil, Normalize(err)
	}

	if !f.handleAuthFailure(ctx, info) {
		return nil, Normalize(err)
	}

	f.logger.InfoFCtx(ctx, "credentials refreshed, retrying %s %s once", info.Method, info.URI)
	resp, retryErr := call()
	if retryErr != nil {
		return nil, Normalize(retryErr)
	}
	return resp, nil
}

func (f *Fetch) handleAuthFailure(ctx context.Context, info CallInfo) bool {
	if f.authFailure == nil {
		f.notifyAuthRetry(ctx, info, AuthRetryNoHandler)
		return false
	}
	ok, err := f.authFailure.HandleAuthFailure(ctx, f)
	switch {
	case err != nil:
		f.logger.WarnFCtx(ctx, "auth failure handler failed: %v", err)
		f.notifyAuthRetry(ctx, info, AuthRetryHandlerError)
		return false
	case !ok:
		f.notifyAuthRetry(ctx, info, AuthRetryDeclined)
		return false
	}
	f.notifyAuthRetry(ctx, info, AuthRetryRefreshed)
	return true
}

func replayable(payload any) (any, error) {
	r, ok := payload.(io.Reader)
	if !ok {
		return payload, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func defaultsFor(method string) RequestOptions {
	switch method {
	case http.MethodGet, http.MethodDelete, http.MethodHead, http.MethodOptions:
		return NoContentDefaults
	default:
		return ContentDefaults
	}
}
