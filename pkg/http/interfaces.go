package http

import (
	"context"
	"net/http"
)

// Doer is the single capability the fetch wrapper needs from a client.
type Doer interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// HTTPClient defines the interface for HTTP client operations.
// This interface allows for mocking and alternative implementations.
type HTTPClient interface {
	Doer

	// Get performs a GET request.
	Get(ctx context.Context, url string, header http.Header) (*Response, error)

	// Post performs a POST request with JSON body.
	Post(ctx context.Context, url string, body any, header http.Header) (*Response, error)

	// Put performs a PUT request with JSON body.
	Put(ctx context.Context, url string, body any, header http.Header) (*Response, error)

	// Patch performs a PATCH request with JSON body.
	Patch(ctx context.Context, url string, body any, header http.Header) (*Response, error)

	// Delete performs a DELETE request.
	Delete(ctx context.Context, url string, header http.Header) (*Response, error)
}

// Ensure Client implements HTTPClient interface.
var _ HTTPClient = (*Client)(nil)

// DoerFunc adapts a function to Doer.
type DoerFunc func(ctx context.Context, req *Request) (*Response, error)

func (f DoerFunc) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
