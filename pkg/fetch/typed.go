package fetch

import (
	"context"
	"encoding/json"
	"net/http"

	fhttp "github.com/milan604/restfetch/pkg/http"
)

// Read issues GET and decodes the response body into T.
func Read[T any](ctx context.Context, f *Fetch, uri string, opts ...RequestOption) (T, error) {
	return request[T](ctx, f, http.MethodGet, uri, nil, opts)
}

// Add issues PUT, the same verb as Update.
func Add[T any](ctx context.Context, f *Fetch, uri string, payload any, opts ...RequestOption) (T, error) {
	return request[T](ctx, f, http.MethodPut, uri, payload, opts)
}

// Update issues PUT.
func Update[T any](ctx context.Context, f *Fetch, uri string, payload any, opts ...RequestOption) (T, error) {
	return request[T](ctx, f, http.MethodPut, uri, payload, opts)
}

// Patch issues PATCH.
func Patch[T any](ctx context.Context, f *Fetch, uri string, payload any, opts ...RequestOption) (T, error) {
	return request[T](ctx, f, http.MethodPatch, uri, payload, opts)
}

// Delete issues DELETE.
func Delete[T any](ctx context.Context, f *Fetch, uri string, opts ...RequestOption) (T, error) {
	return request[T](ctx, f, http.MethodDelete, uri, nil, opts)
}

// ExecAction issues POST, for RPC style action endpoints.
func ExecAction[T any](ctx context.Context, f *Fetch, uri string, payload any, opts ...RequestOption) (T, error) {
	return request[T](ctx, f, http.MethodPost, uri, payload, opts)
}

func request[T any](ctx context.Context, f *Fetch, method, uri string, payload any, opts []RequestOption) (T, error) {
	var zero T
	resp, err := f.Do(ctx, method, uri, payload, opts...)
	if err != nil {
		return zero, err
	}
	return decodeBody[T](resp)
}

// decodeBody decodes JSON into T. An empty body yields the zero value;
// string and []byte targets also accept non-JSON bodies.
func decodeBody[T any](resp *fhttp.Response) (T, error) {
	var out T
	if resp == nil || len(resp.Body) == 0 {
		return out, nil
	}
	switch p := any(&out).(type) {
	case *[]byte:
		*p = append([]byte(nil), resp.Body...)
		return out, nil
	case *any:
		*p = resp.Data
		return out, nil
	case *string:
		if err := json.Unmarshal(resp.Body, p); err != nil {
			*p = string(resp.Body)
		}
		return out, nil
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return out, newError("unexpected condition: response body could not be decoded: "+err.Error(),
			resp.StatusCode, ErrorTypeUnexpected, ErrorSubTypeNone, resp.Data, err)
	}
	return out, nil
}
