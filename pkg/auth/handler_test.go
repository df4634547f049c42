package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milan604/restfetch/pkg/fetch"
	fhttp "github.com/milan604/restfetch/pkg/http"
)

// sessionServer issues short-lived JWTs and rotates refresh tokens.
type sessionServer struct {
	*httptest.Server

	mu           sync.Mutex
	authToken    string
	refreshToken string
	issued       int
	flat         bool
	opaque       bool

	refreshHits    atomic.Int32
	refreshHadAuth atomic.Bool
}

func newSessionServer(t *testing.T) *sessionServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := &sessionServer{authToken: "never-valid", refreshToken: "rt-0"}

	r := gin.New()
	r.POST("/auth/refresh", func(c *gin.Context) {
		s.refreshHits.Add(1)
		if c.GetHeader("Authorization") != "" {
			s.refreshHadAuth.Store(true)
		}
		var in struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = c.ShouldBindJSON(&in)

		s.mu.Lock()
		defer s.mu.Unlock()
		if in.RefreshToken != s.refreshToken {
			c.JSON(http.StatusUnauthorized, gin.H{"status": 401, "message": "invalid refresh token"})
			return
		}
		s.issued++
		s.authToken = s.mint()
		s.refreshToken = "rt-" + string(rune('0'+s.issued))

		pair := gin.H{"authToken": s.authToken, "refreshToken": s.refreshToken}
		if s.flat {
			c.JSON(http.StatusOK, pair)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"item": pair}})
	})
	r.GET("/me", func(c *gin.Context) {
		s.mu.Lock()
		want := "Bearer " + s.authToken
		s.mu.Unlock()
		if c.GetHeader("Authorization") != want {
			c.JSON(http.StatusUnauthorized, gin.H{"status": 401, "message": "token expired"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": "ada"})
	})

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

func (s *sessionServer) mint() string {
	if s.opaque {
		return "opaque-" + string(rune('0'+s.issued))
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ada",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		return ""
	}
	return token
}

func (s *sessionServer) fetch(h fetch.AuthFailureHandler) *fetch.Fetch {
	return fetch.New(
		fetch.WithClient(fhttp.NewClient(fhttp.WithBaseURL(s.URL))),
		fetch.WithAuthFailureHandler(h),
		fetch.WithDefaultHeaders(fetch.Headers{"Authorization": "Bearer stale"}),
	)
}

func TestRefreshHandlerRetriesWithNewToken(t *testing.T) {
	srv := newSessionServer(t)
	store := NewMemoryStore("rt-0")
	h := NewRefreshTokenHandler("/auth/refresh", store)
	f := srv.fetch(h)

	me, err := fetch.Read[map[string]string](context.Background(), f, "/me")
	require.NoError(t, err)
	assert.Equal(t, "ada", me["user"])

	assert.EqualValues(t, 1, srv.refreshHits.Load())
	assert.False(t, srv.refreshHadAuth.Load())

	rt, _ := store.RefreshToken(context.Background())
	assert.Equal(t, "rt-1", rt)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), h.ExpiresAt(), 5*time.Second)
	assert.Equal(t, "Bearer "+srv.authToken, f.DefaultHeaders()["Authorization"])
}

func TestRefreshHandlerFlatResponse(t *testing.T) {
	srv := newSessionServer(t)
	srv.flat = true
	f := srv.fetch(NewRefreshTokenHandler("/auth/refresh", NewMemoryStore("rt-0")))

	_, err := fetch.Read[map[string]string](context.Background(), f, "/me")
	require.NoError(t, err)
}

func TestRefreshHandlerRejectedRefreshToken(t *testing.T) {
	srv := newSessionServer(t)
	f := srv.fetch(NewRefreshTokenHandler("/auth/refresh", NewMemoryStore("rt-revoked")))

	_, err := fetch.Read[map[string]string](context.Background(), f, "/me")
	require.Error(t, err)

	fe, ok := fetch.IsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, fe.Status)
	assert.Equal(t, "token expired", fe.Message)
	// the refresh call itself answers 401 but must not recurse
	assert.EqualValues(t, 1, srv.refreshHits.Load())
}

func TestRefreshHandlerWithoutStoredToken(t *testing.T) {
	srv := newSessionServer(t)
	h := NewRefreshTokenHandler("/auth/refresh", nil)

	ok, err := h.HandleAuthFailure(context.Background(), srv.fetch(h))
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrNoRefreshToken)
	assert.EqualValues(t, 0, srv.refreshHits.Load())
}

func TestNilRefreshHandlerDeclines(t *testing.T) {
	var h *RefreshTokenHandler

	ok, err := h.HandleAuthFailure(context.Background(), fetch.New())
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestRefreshHandlerOpaqueToken(t *testing.T) {
	srv := newSessionServer(t)
	srv.opaque = true

	lenient := NewRefreshTokenHandler("/auth/refresh", NewMemoryStore("rt-0"))
	ok, err := lenient.HandleAuthFailure(context.Background(), srv.fetch(lenient))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, lenient.ExpiresAt().IsZero())

	strict := NewRefreshTokenHandler("/auth/refresh", NewMemoryStore("rt-1"), RequireJWT())
	f := srv.fetch(strict)
	ok, err = strict.HandleAuthFailure(context.Background(), f)
	assert.False(t, ok)
	assert.Error(t, err)
	assert.Equal(t, "Bearer stale", f.DefaultHeaders()["Authorization"])
}

func TestRefreshResponseTokens(t *testing.T) {
	flat := RefreshResponse{TokenPair: TokenPair{AuthToken: "a", RefreshToken: "r"}}
	assert.Equal(t, TokenPair{AuthToken: "a", RefreshToken: "r"}, flat.Tokens())

	var nested RefreshResponse
	nested.Data = &struct {
		Item TokenPair `json:"item"`
	}{Item: TokenPair{AuthToken: "b"}}
	assert.Equal(t, "b", nested.Tokens().AuthToken)
}

func TestProviderHandlerRefreshesOn401(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/jobs", func(c *gin.Context) {
		if c.GetHeader("Authorization") != "Token tok-2" {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "revoked"})
			return
		}
		c.JSON(http.StatusOK, []string{"nightly"})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	p, calls := countingProvider(time.Hour)
	h := NewProviderHandler(p, time.Minute, WithScheme("Token"))
	f := fetch.New(
		fetch.WithClient(fhttp.NewClient(fhttp.WithBaseURL(srv.URL))),
		fetch.WithAuthFailureHandler(h),
	)
	require.NoError(t, h.Prime(context.Background(), f))
	assert.Equal(t, "Token tok-1", f.DefaultHeaders()["Authorization"])

	jobs, err := fetch.Read[[]string](context.Background(), f, "/jobs")
	require.NoError(t, err)
	assert.Equal(t, []string{"nightly"}, jobs)
	assert.EqualValues(t, 2, calls.Load())
}
