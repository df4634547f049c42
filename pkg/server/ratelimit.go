package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds both configuration and runtime state for per-IP
// rate limiting.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
	// IdleTTL evicts limiters of clients not seen for this long. 0 keeps them.
	IdleTTL time.Duration

	limit   rate.Limit
	mu      sync.Mutex
	clients map[string]*clientLimiter
	now     func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimitConfig(enabled bool, rps float64, burst int, idleTTL time.Duration) *RateLimitConfig {
	return &RateLimitConfig{
		Enabled: enabled,
		RPS:     rps,
		Burst:   burst,
		IdleTTL: idleTTL,
		limit:   rate.Limit(rps),
		clients: map[string]*clientLimiter{},
		now:     time.Now,
	}
}

// allow reports whether ip may proceed, evicting idle clients on the way.
func (rl *RateLimitConfig) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if rl.IdleTTL > 0 {
		for key, cl := range rl.clients {
			if now.Sub(cl.lastSeen) > rl.IdleTTL {
				delete(rl.clients, key)
			}
		}
	}

	cl, ok := rl.clients[ip]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.Burst)}
		rl.clients[ip] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

func (rl *RateLimitConfig) trackedClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func remoteIP(c *gin.Context) string {
	// X-Forwarded-For may be a list; the first entry is the client
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
	}
	if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
		return host
	}
	return c.ClientIP()
}

// Middleware answers 429 once a client exceeds its limit.
func (rl *RateLimitConfig) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Enabled {
			c.Next()
			return
		}
		if !rl.allow(remoteIP(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"status": http.StatusTooManyRequests, "message": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
