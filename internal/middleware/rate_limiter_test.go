package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newLimitedRouter(cfg RateLimiterConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(NewRateLimiter(cfg).RateLimit())
	engine.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return engine
}

func doRequest(engine *gin.Engine, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = ip + ":51234"
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestRateLimitBlocksAfterBurst(t *testing.T) {
	engine := newLimitedRouter(RateLimiterConfig{Rate: 1, Burst: 1})

	assert.Equal(t, http.StatusOK, doRequest(engine, "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(engine, "10.0.0.1").Code)
}

func TestRateLimitIsPerClient(t *testing.T) {
	engine := newLimitedRouter(RateLimiterConfig{Rate: 1, Burst: 1})

	assert.Equal(t, http.StatusOK, doRequest(engine, "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(engine, "10.0.0.1").Code)

	// A different terminal is unaffected by the throttled one.
	assert.Equal(t, http.StatusOK, doRequest(engine, "10.0.0.2").Code)
}

func TestRateLimitEvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1})
	rl.allow("10.0.0.1")
	rl.clients["10.0.0.1"].lastSeen = time.Now().Add(-2 * clientEvictAfter)

	rl.mu.Lock()
	rl.evictStale()
	rl.mu.Unlock()

	assert.Empty(t, rl.clients)
}
