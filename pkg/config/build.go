package config

import (
	"context"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/milan604/restfetch/pkg/auth"
	coreerrors "github.com/milan604/restfetch/pkg/errors"
	"github.com/milan604/restfetch/pkg/fetch"
	fhttp "github.com/milan604/restfetch/pkg/http"
	"github.com/milan604/restfetch/pkg/logger"
	"github.com/milan604/restfetch/pkg/observability"
	"github.com/milan604/restfetch/pkg/version"
)

// NewLogger builds the logger described by s.
func (s LogSettings) NewLogger() (logger.LogManager, error) {
	return logger.NewLogger(logger.LoggerOptions{Level: s.Level, Encoding: s.Encoding})
}

// Headers returns the configured default headers with canonical names, plus
// a User-Agent unless one is configured.
func (s FetchSettings) Headers() fetch.Headers {
	h := make(fetch.Headers, len(s.DefaultHeaders)+1)
	for name, value := range s.DefaultHeaders {
		h[http.CanonicalHeaderKey(name)] = value
	}
	if _, ok := h["User-Agent"]; !ok {
		h["User-Agent"] = version.UserAgent()
	}
	return h
}

// FetchOptions translates s into wrapper options.
func (s FetchSettings) FetchOptions(log logger.LogManager) ([]fetch.Option, error) {
	cache, err := fetch.ParseCacheOption(s.Cache)
	if err != nil {
		return nil, err
	}
	format, err := fetch.ParseFormatOption(s.Format)
	if err != nil {
		return nil, err
	}

	clientOpts := []fhttp.ClientOption{fhttp.WithLogger(log), fhttp.WithBaseURL(s.BaseURL)}
	if s.Timeout > 0 {
		clientOpts = append(clientOpts, fhttp.WithTimeout(s.Timeout))
	}
	if s.RequestIDHeader != "" {
		clientOpts = append(clientOpts, fhttp.WithRequestID(s.RequestIDHeader))
	}
	if s.Tracing.Enabled {
		clientOpts = append(clientOpts, fhttp.WithRequestHook(observability.InjectTraceContext))
	}

	return []fetch.Option{
		fetch.WithCache(cache),
		fetch.WithFormat(format),
		fetch.WithClient(fhttp.NewClient(clientOpts...)),
		fetch.WithDefaultHeaders(s.Headers()),
		fetch.WithLogger(log),
	}, nil
}

// NewFetch builds a wrapper from s. extra options (handler, observers) are
// applied after the configured ones.
func NewFetch(s FetchSettings, log logger.LogManager, extra ...fetch.Option) (*fetch.Fetch, error) {
	opts, err := s.FetchOptions(log)
	if err != nil {
		return nil, coreerrors.Wrap(err, "config: build wrapper")
	}
	return fetch.New(append(opts, extra...)...), nil
}

// NewTokenStore returns a RedisStore when RedisAddr is set, a MemoryStore
// otherwise. A configured RefreshToken seeds the store.
func (s AuthSettings) NewTokenStore(ctx context.Context) (auth.TokenStore, error) {
	var store auth.TokenStore
	if s.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: s.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, coreerrors.Wrapf(err, "config: redis %s unreachable", s.RedisAddr)
		}
		store = auth.NewRedisStore(client, s.RedisKey, s.RedisTTL)
	} else {
		store = auth.NewMemoryStore("")
	}

	if s.RefreshToken != "" {
		if err := store.SaveRefreshToken(ctx, s.RefreshToken); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// NewRefreshHandler returns a nil handler and no error when no refresh URL
// is configured, so the result can go straight to fetch.WithAuthFailureHandler.
func (s AuthSettings) NewRefreshHandler(ctx context.Context, log logger.LogManager) (fetch.AuthFailureHandler, error) {
	if s.RefreshURL == "" {
		return nil, nil
	}
	store, err := s.NewTokenStore(ctx)
	if err != nil {
		return nil, err
	}
	opts := []auth.RefreshOption{auth.WithRefreshLogger(log)}
	if s.RequireJWT {
		opts = append(opts, auth.RequireJWT())
	}
	return auth.NewRefreshTokenHandler(s.RefreshURL, store, opts...), nil
}

// WatchDefaultHeaders re-applies default_headers to f after every reload.
// An Authorization installed at runtime survives unless the file sets one.
func (c *Config) WatchDefaultHeaders(f *fetch.Fetch) {
	c.OnChange(func() {
		s, err := c.Load()
		if err != nil {
			c.log.WarnF("config: reload rejected: %v", err)
			return
		}
		headers := s.Headers()
		f.UpdateDefaultHeaders(keepAuthorization(headers))
		c.log.InfoF("config: default headers reloaded (%d)", len(headers))
	})
}

// keepAuthorization carries the live Authorization over into reloaded unless
// reloaded sets its own.
func keepAuthorization(reloaded fetch.Headers) func(fetch.Headers) fetch.Headers {
	return func(current fetch.Headers) fetch.Headers {
		if _, ok := reloaded["Authorization"]; ok {
			return reloaded
		}
		if v, ok := current["Authorization"]; ok {
			reloaded["Authorization"] = v
		}
		return reloaded
	}
}
