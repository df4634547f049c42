package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/milan604/restfetch/pkg/logger"
)

// HeaderRequestID is the default header used by WithRequestID.
const HeaderRequestID = "X-Request-ID"

// Client issues JSON requests and reports non-2xx responses as *Error.
type Client struct {
	httpClient      *http.Client
	baseURL         *url.URL
	logger          logger.LogManager
	requestIDHeader string
	requestHooks    []RequestHook
	responseHooks   []ResponseHook
}

// RequestHook is a function that can modify a request before it's sent.
type RequestHook func(*http.Request) error

// ResponseHook is a function that can inspect a response before its body is read.
type ResponseHook func(*http.Response) error

// ClientOption configures the HTTP client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithTimeout sets the timeout of the underlying http.Client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithBaseURL resolves relative request URLs against base.
// An unparsable base is ignored.
func WithBaseURL(base string) ClientOption {
	return func(c *Client) {
		if base == "" {
			return
		}
		if u, err := url.Parse(strings.TrimRight(base, "/") + "/"); err == nil {
			c.baseURL = u
		}
	}
}

// WithLogger sets a logger for the client.
func WithLogger(l logger.LogManager) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRequestID stamps every request with a request id header. The id comes
// from the context (logger.WithRequestID) or is generated.
func WithRequestID(header string) ClientOption {
	return func(c *Client) {
		if header == "" {
			header = HeaderRequestID
		}
		c.requestIDHeader = header
	}
}

// WithRequestHook adds a hook that runs before each request.
func WithRequestHook(hook RequestHook) ClientOption {
	return func(c *Client) {
		c.requestHooks = append(c.requestHooks, hook)
	}
}

// WithResponseHook adds a hook that runs after each response.
func WithResponseHook(hook ResponseHook) ClientOption {
	return func(c *Client) {
		c.responseHooks = append(c.responseHooks, hook)
	}
}

// NewClient creates a new HTTP client with the given options.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Do executes req. Any response outside 2xx is returned as *Error together
// with the decoded payload; transport failures are *Error without a response.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := c.applyRequestHooks(httpReq); err != nil {
		return nil, &Error{Message: err.Error(), Method: req.Method, URL: httpReq.URL.String(), Cause: err}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.DebugFCtx(ctx, "%s %s failed after %v: %v", req.Method, httpReq.URL, time.Since(start), err)
		return nil, &Error{Message: err.Error(), Method: req.Method, URL: httpReq.URL.String(), Cause: err}
	}
	defer resp.Body.Close()

	if err := c.applyResponseHooks(resp); err != nil {
		return nil, &Error{Message: err.Error(), Method: req.Method, URL: httpReq.URL.String(), Cause: err}
	}

	out, err := readResponse(resp)
	if err != nil {
		return nil, &Error{Message: err.Error(), Method: req.Method, URL: httpReq.URL.String(), Cause: err}
	}
	c.logger.DebugFCtx(ctx, "%s %s -> %d in %v", req.Method, httpReq.URL, out.StatusCode, time.Since(start))

	if out.StatusCode < 200 || out.StatusCode >= 300 {
		return nil, &Error{
			Message:    fmt.Sprintf("request failed with status code %d", out.StatusCode),
			Method:     req.Method,
			URL:        httpReq.URL.String(),
			StatusCode: out.StatusCode,
			Response:   out,
		}
	}
	return out, nil
}

func (c *Client) newRequest(ctx context.Context, req *Request) (*http.Request, error) {
	if req == nil {
		return nil, &Error{Message: "nil request"}
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target, err := c.resolve(req.URL)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("invalid url %q", req.URL), Method: method, URL: req.URL, Cause: err}
	}

	body, isJSON, err := encodeBody(req.Body)
	if err != nil {
		return nil, &Error{Message: "failed to marshal request body", Method: method, URL: target, Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &Error{Message: err.Error(), Method: method, URL: target, Cause: err}
	}
	for name, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}
	if isJSON && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if c.requestIDHeader != "" && httpReq.Header.Get(c.requestIDHeader) == "" {
		id := logger.RequestIDFromContext(ctx)
		if id == "" {
			id = uuid.New().String()
		}
		httpReq.Header.Set(c.requestIDHeader, id)
	}
	return httpReq, nil
}

func (c *Client) resolve(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if c.baseURL == nil || u.IsAbs() {
		return u.String(), nil
	}
	return c.baseURL.ResolveReference(&url.URL{
		Path:     strings.TrimLeft(u.Path, "/"),
		RawQuery: u.RawQuery,
		Fragment: u.Fragment,
	}).String(), nil
}

// applyRequestHooks applies all request hooks.
func (c *Client) applyRequestHooks(req *http.Request) error {
	for _, hook := range c.requestHooks {
		if err := hook(req); err != nil {
			return fmt.Errorf("request hook failed: %w", err)
		}
	}
	return nil
}

// applyResponseHooks applies all response hooks.
func (c *Client) applyResponseHooks(resp *http.Response) error {
	for _, hook := range c.responseHooks {
		if err := hook(resp); err != nil {
			return fmt.Errorf("response hook failed: %w", err)
		}
	}
	return nil
}

// encodeBody turns a request payload into a reader. Readers, byte slices and
// strings are sent as-is; anything else is JSON encoded.
func encodeBody(body any) (io.Reader, bool, error) {
	switch b := body.(type) {
	case nil:
		return nil, false, nil
	case io.Reader:
		return b, false, nil
	case []byte:
		return bytes.NewReader(b), false, nil
	case string:
		return strings.NewReader(b), false, nil
	case json.RawMessage:
		return bytes.NewReader(b), true, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, false, err
	}
	return bytes.NewReader(data), true, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, url string, header http.Header) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, URL: url, Header: header})
}

// Post performs a POST request with JSON body.
func (c *Client) Post(ctx context.Context, url string, body any, header http.Header) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, URL: url, Header: header, Body: body})
}

// Put performs a PUT request with JSON body.
func (c *Client) Put(ctx context.Context, url string, body any, header http.Header) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, URL: url, Header: header, Body: body})
}

// Patch performs a PATCH request with JSON body.
func (c *Client) Patch(ctx context.Context, url string, body any, header http.Header) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPatch, URL: url, Header: header, Body: body})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, url string, header http.Header) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, URL: url, Header: header})
}
