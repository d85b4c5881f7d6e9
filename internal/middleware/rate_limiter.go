package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const clientEvictAfter = 3 * time.Minute

type RateLimiterConfig struct {
	Rate  rate.Limit
	Burst int
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keys token buckets by client IP so one busy front-desk
// terminal cannot starve booking traffic from other clinics.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	config  RateLimiterConfig
}

func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*client),
		config:  config,
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.config.Rate, rl.config.Burst)}
		rl.clients[ip] = c
	}
	c.lastSeen = time.Now()

	if len(rl.clients) > 1000 {
		rl.evictStale()
	}

	return c.limiter.Allow()
}

// evictStale runs under rl.mu.
func (rl *RateLimiter) evictStale() {
	cutoff := time.Now().Add(-clientEvictAfter)
	for ip, c := range rl.clients {
		if c.lastSeen.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Code:    http.StatusTooManyRequests,
				Message: "rate limit exceeded",
				TraceID: c.GetString(ContextRequestID),
			})
			return
		}
		c.Next()
	}
}
