package fetch

import (
	"context"
	"errors"
	"math"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fhttp "github.com/milan604/restfetch/pkg/http"
)

// foreignError stands in for an error from some other client.
type foreignError struct {
	payload any
	has     bool
}

func (e *foreignError) Error() string                { return "foreign failure" }
func (e *foreignError) ResponsePayload() (any, bool) { return e.payload, e.has }

func libError(status int, payload any) *fhttp.Error {
	return &fhttp.Error{
		Message:    "request failed with status code " + http.StatusText(status),
		StatusCode: status,
		Response:   &fhttp.Response{StatusCode: status, Data: payload},
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantType    ErrorType
		wantSubType ErrorSubType
		wantMessage string
		wantStatus  int
	}{
		{
			name:        "nil error",
			err:         nil,
			wantType:    ErrorTypeUnexpected,
			wantMessage: msgNilError,
		},
		{
			name:        "plain error without response",
			err:         context.DeadlineExceeded,
			wantType:    ErrorTypeUnexpected,
			wantMessage: `unexpected condition: error is "context deadline exceeded"`,
		},
		{
			name:        "structured payload",
			err:         libError(http.StatusConflict, map[string]any{"status": float64(409), "message": "version mismatch"}),
			wantType:    ErrorTypeThirdPartyLib,
			wantSubType: ErrorSubTypeStructuredPayload,
			wantMessage: "version mismatch",
			wantStatus:  http.StatusConflict,
		},
		{
			name:        "structured payload without message",
			err:         libError(http.StatusConflict, map[string]any{"status": "conflict"}),
			wantType:    ErrorTypeThirdPartyLib,
			wantSubType: ErrorSubTypeStructuredPayload,
			wantMessage: "request failed with status code Conflict",
			wantStatus:  http.StatusConflict,
		},
		{
			name:        "bare string payload",
			err:         libError(http.StatusBadGateway, "upstream unavailable"),
			wantType:    ErrorTypeThirdPartyLib,
			wantSubType: ErrorSubTypeUnstructuredPayload,
			wantMessage: "upstream unavailable",
			wantStatus:  http.StatusBadGateway,
		},
		{
			name:        "object without status or message",
			err:         libError(http.StatusBadRequest, map[string]any{"errors": []any{"name is required"}}),
			wantType:    ErrorTypeThirdPartyLib,
			wantSubType: ErrorSubTypeUnstructuredPayload,
			wantMessage: `REST API error: {"errors":["name is required"]}`,
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "falsy status and message",
			err:         libError(http.StatusBadRequest, map[string]any{"status": float64(0), "message": ""}),
			wantType:    ErrorTypeThirdPartyLib,
			wantSubType: ErrorSubTypeUnstructuredPayload,
			wantMessage: `REST API error: {"message":"","status":0}`,
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "empty payload",
			err:         libError(http.StatusUnauthorized, nil),
			wantType:    ErrorTypeThirdPartyLib,
			wantSubType: ErrorSubTypeUnstructuredPayload,
			wantMessage: "request failed with status code Unauthorized",
			wantStatus:  http.StatusUnauthorized,
		},
		{
			name:        "payload that cannot be serialized",
			err:         libError(http.StatusBadRequest, math.Inf(1)),
			wantType:    ErrorTypeThirdPartyLib,
			wantSubType: ErrorSubTypeUnstructuredPayload,
			wantMessage: msgNotSimple,
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "foreign error with empty payload",
			err:         &foreignError{has: true},
			wantType:    ErrorTypeUnexpected,
			wantMessage: msgEmptyPayload,
		},
		{
			name:        "foreign error with string payload",
			err:         &foreignError{payload: "legacy failure", has: true},
			wantType:    ErrorTypeUnexpected,
			wantMessage: "legacy failure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe, ok := IsError(Normalize(tt.err))
			require.True(t, ok)
			assert.Equal(t, tt.wantType, fe.ErrorType)
			assert.Equal(t, tt.wantSubType, fe.ErrorSubType)
			assert.Equal(t, tt.wantMessage, fe.Message)
			assert.Equal(t, tt.wantStatus, fe.Status)
			if tt.err != nil {
				assert.ErrorIs(t, fe, tt.err)
			}
		})
	}
}

func TestNormalizeKeepsPayload(t *testing.T) {
	payload := map[string]any{"message": "nope", "code": "E42"}
	fe, ok := IsError(Normalize(libError(http.StatusForbidden, payload)))
	require.True(t, ok)
	assert.Equal(t, payload, fe.Response)
}

func TestNormalizeReturnsUnclassifiableError(t *testing.T) {
	err := &foreignError{payload: map[string]any{"status": 418, "message": "teapot"}, has: true}
	assert.Same(t, err, Normalize(err))
}

func TestNormalizeIsIdempotent(t *testing.T) {
	first := Normalize(libError(http.StatusNotFound, "missing"))
	assert.Same(t, first, Normalize(first))
	assert.Same(t, first, Normalize(errors.Join(first)))
}

func TestErrorString(t *testing.T) {
	fe := &Error{Message: "missing", Status: 404, ErrorType: ErrorTypeThirdPartyLib}
	assert.Equal(t, "restfetch: ThirdPartyLibError (status 404): missing", fe.Error())

	fe = &Error{Message: "odd", ErrorType: ErrorTypeUnexpected}
	assert.Equal(t, "restfetch: UnexpectedError: odd", fe.Error())
	assert.Equal(t, "ErrorType(9)", ErrorType(9).String())
	assert.Equal(t, "StructuredPayload", ErrorSubTypeStructuredPayload.String())
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: 0},
		{name: "client status", err: libError(http.StatusTeapot, nil), want: http.StatusTeapot},
		{name: "payload number", err: &foreignError{payload: map[string]any{"status": float64(401)}, has: true}, want: 401},
		{name: "payload numeric string", err: &foreignError{payload: map[string]any{"status": " 401 "}, has: true}, want: 401},
		{name: "payload leading zero", err: &foreignError{payload: map[string]any{"status": "0401"}, has: true}, want: 401},
		{name: "payload empty string", err: &foreignError{payload: map[string]any{"status": ""}, has: true}, want: 0},
		{name: "payload word", err: &foreignError{payload: map[string]any{"status": "unauthorized"}, has: true}, want: 0},
		{name: "payload absent", err: &foreignError{payload: map[string]any{}, has: true}, want: 0},
		{name: "no response", err: errors.New("dial tcp: refused"), want: 0},
		{name: "normalized", err: &Error{Status: 503}, want: 503},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestForeign401TriggersHandler(t *testing.T) {
	var attempts int
	client := fhttp.DoerFunc(func(context.Context, *fhttp.Request) (*fhttp.Response, error) {
		attempts++
		if attempts == 1 {
			return nil, &foreignError{payload: map[string]any{"status": "401"}, has: true}
		}
		return &fhttp.Response{StatusCode: http.StatusOK, Body: []byte(`"ok"`), Data: "ok"}, nil
	})
	f := New(WithClient(client), WithAuthFailureHandler(AuthFailureHandlerFunc(
		func(context.Context, *Fetch) (bool, error) { return true, nil })))

	got, err := Read[string](context.Background(), f, "/x")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, attempts)
}
