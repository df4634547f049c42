package fetch

import (
	"fmt"
	"strings"

	fhttp "github.com/milan604/restfetch/pkg/http"
	"github.com/milan604/restfetch/pkg/logger"
)

// CacheOption controls the Cache-Control header policy.
type CacheOption int

const (
	CacheDefault CacheOption = iota
	CacheNoCache
)

func (c CacheOption) String() string {
	switch c {
	case CacheDefault:
		return "default"
	case CacheNoCache:
		return "no-cache"
	default:
		return fmt.Sprintf("CacheOption(%d)", int(c))
	}
}

// ParseCacheOption accepts the names produced by CacheOption.String.
func ParseCacheOption(s string) (CacheOption, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "default":
		return CacheDefault, nil
	case "no-cache", "nocache":
		return CacheNoCache, nil
	}
	return CacheDefault, fmt.Errorf("unknown cache option %q", s)
}

// FormatOption controls the Accept and Content-Type header policy.
type FormatOption int

const (
	FormatDefault FormatOption = iota
	FormatJSON
)

func (f FormatOption) String() string {
	switch f {
	case FormatDefault:
		return "default"
	case FormatJSON:
		return "json"
	default:
		return fmt.Sprintf("FormatOption(%d)", int(f))
	}
}

// ParseFormatOption accepts the names produced by FormatOption.String.
func ParseFormatOption(s string) (FormatOption, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "default":
		return FormatDefault, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatDefault, fmt.Errorf("unknown format option %q", s)
}

// RequestOptions are the per-call header and retry flags.
type RequestOptions struct {
	IncludeAuthHeader        bool
	IncludeContentTypeHeader bool
	SkipRetryOnAuthFailure   bool
}

var (
	// NoContentDefaults apply to Read and Delete.
	NoContentDefaults = RequestOptions{IncludeAuthHeader: true, IncludeContentTypeHeader: true}
	// ContentDefaults apply to Add, Update, Patch and ExecAction.
	ContentDefaults = RequestOptions{IncludeAuthHeader: true, IncludeContentTypeHeader: false}
)

// RequestOption adjusts the verb's default RequestOptions for one call.
type RequestOption func(*RequestOptions)

// WithAuthHeader controls whether the default Authorization header is sent.
func WithAuthHeader(include bool) RequestOption {
	return func(o *RequestOptions) { o.IncludeAuthHeader = include }
}

// WithContentTypeHeader controls whether Content-Type: application/json is
// added under FormatJSON.
func WithContentTypeHeader(include bool) RequestOption {
	return func(o *RequestOptions) { o.IncludeContentTypeHeader = include }
}

// SkipRetryOnAuthFailure disables the auth-failure handler for one call.
// Calls made from inside a handler should set it.
func SkipRetryOnAuthFailure() RequestOption {
	return func(o *RequestOptions) { o.SkipRetryOnAuthFailure = true }
}

// WithRequestOptions replaces the verb default entirely.
func WithRequestOptions(opts RequestOptions) RequestOption {
	return func(o *RequestOptions) { *o = opts }
}

func resolveRequestOptions(base RequestOptions, opts []RequestOption) RequestOptions {
	out := base
	for _, opt := range opts {
		if opt != nil {
			opt(&out)
		}
	}
	return out
}

// Option configures a Fetch at construction.
type Option func(*Fetch)

// WithCache sets the cache policy. Default CacheNoCache.
func WithCache(c CacheOption) Option {
	return func(f *Fetch) { f.cache = c }
}

// WithFormat sets the format policy. Default FormatJSON.
func WithFormat(format FormatOption) Option {
	return func(f *Fetch) { f.format = format }
}

// WithClient sets the underlying client. Default is fhttp.NewClient().
func WithClient(c fhttp.Doer) Option {
	return func(f *Fetch) {
		if c != nil {
			f.client = c
		}
	}
}

// WithAuthFailureHandler registers the handler consulted on 401 responses.
func WithAuthFailureHandler(h AuthFailureHandler) Option {
	return func(f *Fetch) { f.authFailure = h }
}

// WithDefaultHeaders seeds the default header map.
func WithDefaultHeaders(h Headers) Option {
	return func(f *Fetch) { f.defaultHeaders = h.clone() }
}

// WithLogger sets the logger.
func WithLogger(l logger.LogManager) Option {
	return func(f *Fetch) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithObserver adds an observer notified of every attempt and auth retry.
func WithObserver(o Observer) Option {
	return func(f *Fetch) {
		if o != nil {
			f.observers = append(f.observers, o)
		}
	}
}
