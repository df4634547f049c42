package fetch

import (
	"net/http"

	"github.com/spf13/cast"
)

const (
	headerAuthorization = "Authorization"
	headerCacheControl  = "Cache-Control"
	headerAccept        = "Accept"
	headerContentType   = "Content-Type"

	mimeJSON = "application/json"
)

// Headers maps header names to string, number or boolean values.
type Headers map[string]any

func (h Headers) clone() Headers {
	out := make(Headers, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// DefaultHeaders returns a copy of the default headers.
func (f *Fetch) DefaultHeaders() Headers {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.defaultHeaders.clone()
}

// SetDefaultHeaders replaces the default headers with a copy of h.
func (f *Fetch) SetDefaultHeaders(h Headers) {
	c := h.clone()
	f.mu.Lock()
	f.defaultHeaders = c
	f.mu.Unlock()
}

// SetDefaultHeader sets a single default header.
func (f *Fetch) SetDefaultHeader(name string, value any) {
	f.mu.Lock()
	if f.defaultHeaders == nil {
		f.defaultHeaders = Headers{}
	}
	f.defaultHeaders[name] = value
	f.mu.Unlock()
}

// UpdateDefaultHeaders replaces the default headers with fn(current) under
// the write lock, so no concurrent header write lands between the read and
// the replace. current must not be retained, and fn must not call back into f.
func (f *Fetch) UpdateDefaultHeaders(fn func(current Headers) Headers) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaultHeaders = fn(f.defaultHeaders.clone()).clone()
}

// buildHeaders layers the cache and format policy over the defaults. Policy
// headers win over defaults of the same name.
func (f *Fetch) buildHeaders(opts RequestOptions) http.Header {
	f.mu.RLock()
	out := make(http.Header, len(f.defaultHeaders)+3)
	for name, value := range f.defaultHeaders {
		out.Set(name, cast.ToString(value))
	}
	f.mu.RUnlock()

	if f.cache == CacheNoCache {
		out.Set(headerCacheControl, "no-cache")
	}
	if f.format == FormatJSON {
		out.Set(headerAccept, mimeJSON)
		if opts.IncludeContentTypeHeader {
			out.Set(headerContentType, mimeJSON)
		}
	}
	if !opts.IncludeAuthHeader {
		out.Del(headerAuthorization)
	}
	return out
}
