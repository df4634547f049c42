package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fhttp "github.com/milan604/restfetch/pkg/http"
)

type toggle struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// authServer accepts "Bearer good" and answers 401 for anything else.
type authServer struct {
	*httptest.Server
	hits    atomic.Int32
	headers chan http.Header
}

func newAuthServer(t *testing.T) *authServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := &authServer{headers: make(chan http.Header, 256)}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		s.hits.Add(1)
		s.headers <- c.Request.Header.Clone()
		if c.GetHeader("Authorization") != "Bearer good" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": 401, "message": "token expired"})
			return
		}
		c.Next()
	})
	r.GET("/toggles", func(c *gin.Context) {
		c.JSON(http.StatusOK, []toggle{{Name: "beta", Enabled: true}})
	})
	r.PUT("/toggles/:name", func(c *gin.Context) {
		var in toggle
		_ = c.ShouldBindJSON(&in)
		in.Name = c.Param("name")
		c.JSON(http.StatusOK, in)
	})
	r.PATCH("/toggles/:name", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"method": c.Request.Method})
	})
	r.POST("/actions/run", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"method": c.Request.Method})
	})
	r.DELETE("/toggles/:name", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"deleted": c.Param("name")})
	})
	r.GET("/broken", func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "boom"})
	})

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

func (s *authServer) lastHeader(t *testing.T) http.Header {
	t.Helper()
	var h http.Header
	for {
		select {
		case h = <-s.headers:
		default:
			require.NotNil(t, h, "no request recorded")
			return h
		}
	}
}

func TestReadReturnsBody(t *testing.T) {
	srv := newAuthServer(t)
	f := New(WithDefaultHeaders(Headers{"Authorization": "Bearer good"}))

	got, err := Read[[]toggle](context.Background(), f, srv.URL+"/toggles")
	require.NoError(t, err)
	assert.Equal(t, []toggle{{Name: "beta", Enabled: true}}, got)

	raw, err := Read[any](context.Background(), f, srv.URL+"/toggles")
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"name": "beta", "enabled": true}}, raw)
}

func TestVerbs(t *testing.T) {
	srv := newAuthServer(t)
	f := New(WithDefaultHeaders(Headers{"Authorization": "Bearer good"}))
	ctx := context.Background()

	added, err := Add[toggle](ctx, f, srv.URL+"/toggles/alpha", toggle{Enabled: true})
	require.NoError(t, err)
	assert.Equal(t, toggle{Name: "alpha", Enabled: true}, added)

	updated, err := Update[toggle](ctx, f, srv.URL+"/toggles/alpha", toggle{Enabled: false})
	require.NoError(t, err)
	assert.Equal(t, toggle{Name: "alpha"}, updated)

	patched, err := Patch[map[string]string](ctx, f, srv.URL+"/toggles/alpha", map[string]bool{"enabled": true})
	require.NoError(t, err)
	assert.Equal(t, "PATCH", patched["method"])

	action, err := ExecAction[map[string]string](ctx, f, srv.URL+"/actions/run", nil)
	require.NoError(t, err)
	assert.Equal(t, "POST", action["method"])

	deleted, err := Delete[map[string]string](ctx, f, srv.URL+"/toggles/alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", deleted["deleted"])
}

func TestUnauthorizedWithoutHandler(t *testing.T) {
	srv := newAuthServer(t)
	f := New()

	_, err := Read[[]toggle](context.Background(), f, srv.URL+"/toggles")
	require.Error(t, err)

	fe, ok := IsError(err)
	require.True(t, ok)
	assert.Equal(t, ErrorTypeThirdPartyLib, fe.ErrorType)
	assert.Equal(t, ErrorSubTypeStructuredPayload, fe.ErrorSubType)
	assert.Equal(t, http.StatusUnauthorized, fe.Status)
	assert.Equal(t, "token expired", fe.Message)
	assert.True(t, IsUnauthorized(err))
	assert.EqualValues(t, 1, srv.hits.Load())
}

func TestUnauthorizedRetriesOnceAfterRefresh(t *testing.T) {
	srv := newAuthServer(t)

	var calls atomic.Int32
	handler := AuthFailureHandlerFunc(func(ctx context.Context, f *Fetch) (bool, error) {
		calls.Add(1)
		f.SetDefaultHeader("Authorization", "Bearer good")
		return true, nil
	})
	f := New(WithAuthFailureHandler(handler), WithDefaultHeaders(Headers{"Authorization": "Bearer stale"}))

	got, err := Read[[]toggle](context.Background(), f, srv.URL+"/toggles")
	require.NoError(t, err)
	assert.Equal(t, []toggle{{Name: "beta", Enabled: true}}, got)
	assert.EqualValues(t, 1, calls.Load())
	assert.EqualValues(t, 2, srv.hits.Load())
	assert.Equal(t, "Bearer good", srv.lastHeader(t).Get("Authorization"))
}

func TestRetryResendsReaderBody(t *testing.T) {
	srv := newAuthServer(t)
	handler := AuthFailureHandlerFunc(func(ctx context.Context, f *Fetch) (bool, error) {
		f.SetDefaultHeader("Authorization", "Bearer good")
		return true, nil
	})
	f := New(WithAuthFailureHandler(handler), WithDefaultHeaders(Headers{"Authorization": "Bearer stale"}))

	got, err := Update[toggle](context.Background(), f, srv.URL+"/toggles/alpha", strings.NewReader(`{"enabled":true}`))
	require.NoError(t, err)
	assert.Equal(t, toggle{Name: "alpha", Enabled: true}, got)
	assert.EqualValues(t, 2, srv.hits.Load())
}

func TestRetryFailureReflectsRetry(t *testing.T) {
	var attempts atomic.Int32
	client := fhttp.DoerFunc(func(ctx context.Context, req *fhttp.Request) (*fhttp.Response, error) {
		n := attempts.Add(1)
		if n == 1 {
			return nil, &fhttp.Error{
				Message:    "request failed with status code 401",
				StatusCode: http.StatusUnauthorized,
				Response:   &fhttp.Response{StatusCode: http.StatusUnauthorized, Data: "first"},
			}
		}
		return nil, &fhttp.Error{
			Message:    "request failed with status code 401",
			StatusCode: http.StatusUnauthorized,
			Response:   &fhttp.Response{StatusCode: http.StatusUnauthorized, Data: "second"},
		}
	})

	var calls atomic.Int32
	f := New(WithClient(client), WithAuthFailureHandler(AuthFailureHandlerFunc(
		func(context.Context, *Fetch) (bool, error) {
			calls.Add(1)
			return true, nil
		})))

	_, err := Read[any](context.Background(), f, "/anything")
	fe, ok := IsError(err)
	require.True(t, ok)
	assert.Equal(t, "second", fe.Message)
	assert.Equal(t, ErrorSubTypeUnstructuredPayload, fe.ErrorSubType)
	assert.EqualValues(t, 2, attempts.Load(), "no second retry")
	assert.EqualValues(t, 1, calls.Load(), "handler consulted once")
}

func TestHandlerDeclinesOrFails(t *testing.T) {
	srv := newAuthServer(t)

	tests := []struct {
		name    string
		handler AuthFailureHandlerFunc
	}{
		{name: "returns false", handler: func(context.Context, *Fetch) (bool, error) { return false, nil }},
		{name: "returns error", handler: func(context.Context, *Fetch) (bool, error) { return true, errors.New("refresh endpoint down") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := srv.hits.Load()
			f := New(WithAuthFailureHandler(tt.handler))

			_, err := Read[any](context.Background(), f, srv.URL+"/toggles")
			fe, ok := IsError(err)
			require.True(t, ok)
			assert.Equal(t, http.StatusUnauthorized, fe.Status)
			assert.Equal(t, ErrorTypeThirdPartyLib, fe.ErrorType)
			assert.EqualValues(t, 1, srv.hits.Load()-before)
		})
	}
}

func TestSkipRetryOnAuthFailure(t *testing.T) {
	srv := newAuthServer(t)

	var calls atomic.Int32
	f := New(WithAuthFailureHandler(AuthFailureHandlerFunc(func(context.Context, *Fetch) (bool, error) {
		calls.Add(1)
		return true, nil
	})))

	_, err := Read[any](context.Background(), f, srv.URL+"/toggles", SkipRetryOnAuthFailure())
	require.True(t, IsUnauthorized(err))
	assert.Zero(t, calls.Load())
}

func TestNon401NeverCallsHandler(t *testing.T) {
	srv := newAuthServer(t)

	var calls atomic.Int32
	f := New(
		WithDefaultHeaders(Headers{"Authorization": "Bearer good"}),
		WithAuthFailureHandler(AuthFailureHandlerFunc(func(context.Context, *Fetch) (bool, error) {
			calls.Add(1)
			return true, nil
		})),
	)

	_, err := Read[any](context.Background(), f, srv.URL+"/broken")
	fe, ok := IsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, fe.Status)
	assert.Equal(t, "boom", fe.Message)
	assert.Zero(t, calls.Load())
}

func TestDefaultHeaderReachesServer(t *testing.T) {
	srv := newAuthServer(t)
	f := New()
	f.SetDefaultHeader("Authorization", "Bearer good")
	f.SetDefaultHeader("X-Tenant", 42)

	_, err := Read[any](context.Background(), f, srv.URL+"/toggles")
	require.NoError(t, err)
	h := srv.lastHeader(t)
	assert.Equal(t, "Bearer good", h.Get("Authorization"))
	assert.Equal(t, "42", h.Get("X-Tenant"))
	assert.Equal(t, "no-cache", h.Get("Cache-Control"))
	assert.Equal(t, "application/json", h.Get("Accept"))

	_, err = Read[any](context.Background(), f, srv.URL+"/toggles", WithAuthHeader(false))
	require.True(t, IsUnauthorized(err))
	h = srv.lastHeader(t)
	assert.Empty(t, h.Get("Authorization"))
	assert.Equal(t, "42", h.Get("X-Tenant"))
}

func TestTransportFailureIsUnexpected(t *testing.T) {
	srv := newAuthServer(t)
	target := srv.URL
	srv.Close()

	_, err := Read[any](context.Background(), New(), target+"/toggles")
	fe, ok := IsError(err)
	require.True(t, ok)
	assert.Equal(t, ErrorTypeUnexpected, fe.ErrorType)
	assert.Zero(t, fe.Status)
	assert.Contains(t, fe.Message, "unexpected condition: error is")
}

func TestDecodeFailure(t *testing.T) {
	client := fhttp.DoerFunc(func(context.Context, *fhttp.Request) (*fhttp.Response, error) {
		return &fhttp.Response{StatusCode: http.StatusOK, Body: []byte("not json"), Data: "not json"}, nil
	})
	f := New(WithClient(client))

	_, err := Read[toggle](context.Background(), f, "/x")
	fe, ok := IsError(err)
	require.True(t, ok)
	assert.Equal(t, ErrorTypeUnexpected, fe.ErrorType)

	s, err := Read[string](context.Background(), f, "/x")
	require.NoError(t, err)
	assert.Equal(t, "not json", s)

	b, err := Read[[]byte](context.Background(), f, "/x")
	require.NoError(t, err)
	assert.Equal(t, []byte("not json"), b)
}

func TestConcurrentCallsAndHeaderWrites(t *testing.T) {
	srv := newAuthServer(t)
	f := New(WithDefaultHeaders(Headers{"Authorization": "Bearer good"}))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := Read[any](context.Background(), f, srv.URL+"/toggles")
			assert.NoError(t, err)
		}()
		go func(i int) {
			defer wg.Done()
			f.SetDefaultHeader("X-Seq", i)
		}(i)
	}
	wg.Wait()
}
