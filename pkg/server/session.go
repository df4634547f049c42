package server

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const subjectKey = "restfetch_subject"

// SessionAPI issues short-lived HS256 auth tokens and rotating refresh
// tokens. Error bodies are {"status": N, "message": "..."}.
type SessionAPI struct {
	secret   []byte
	tokenTTL time.Duration
	users    map[string]string

	mu      sync.Mutex
	refresh map[string]string // refresh token -> subject
	now     func() time.Time
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// NewSessionAPI accepts the given username/password pairs.
func NewSessionAPI(secret []byte, tokenTTL time.Duration, users map[string]string) *SessionAPI {
	if tokenTTL <= 0 {
		tokenTTL = time.Minute
	}
	return &SessionAPI{
		secret:   secret,
		tokenTTL: tokenTTL,
		users:    users,
		refresh:  map[string]string{},
		now:      time.Now,
	}
}

// Register mounts POST /auth/login and POST /auth/refresh.
func (s *SessionAPI) Register(r gin.IRouter) {
	r.POST("/auth/login", s.login)
	r.POST("/auth/refresh", s.rotate)
}

func (s *SessionAPI) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "username and password are required")
		return
	}
	if pw, ok := s.users[req.Username]; !ok || pw != req.Password {
		abort(c, http.StatusUnauthorized, "invalid credentials")
		return
	}
	s.respondWithTokens(c, req.Username)
}

func (s *SessionAPI) rotate(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "refreshToken is required")
		return
	}
	s.mu.Lock()
	subject, ok := s.refresh[req.RefreshToken]
	delete(s.refresh, req.RefreshToken)
	s.mu.Unlock()
	if !ok {
		abort(c, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	s.respondWithTokens(c, subject)
}

func (s *SessionAPI) respondWithTokens(c *gin.Context, subject string) {
	now := s.now()
	authToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		ID:        uuid.NewString(),
	}).SignedString(s.secret)
	if err != nil {
		abort(c, http.StatusInternalServerError, "failed to sign token")
		return
	}

	refreshToken := uuid.NewString()
	s.mu.Lock()
	s.refresh[refreshToken] = subject
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"item": gin.H{
		"authToken":    authToken,
		"refreshToken": refreshToken,
	}}})
}

// RequireJWT rejects requests without a valid, unexpired bearer token.
func (s *SessionAPI) RequireJWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || raw == "" {
			abort(c, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(raw, claims,
			func(*jwt.Token) (any, error) { return s.secret, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(s.now),
		)
		if err != nil {
			abort(c, http.StatusUnauthorized, "token expired or invalid")
			return
		}
		c.Set(subjectKey, claims.Subject)
		c.Next()
	}
}

// Subject is the token subject set by RequireJWT.
func Subject(c *gin.Context) string {
	return c.GetString(subjectKey)
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"status": status, "message": msg})
}
