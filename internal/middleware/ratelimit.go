package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agep/exam-backend/internal/response"
)

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(c *gin.Context) string

// ByClientIP charges requests to the client address.
func ByClientIP(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// ByUser charges requests to the authenticated user, falling back to the
// client address.
func ByUser(c *gin.Context) string {
	if claims := GetClaims(c); claims != nil && claims.UserID > 0 {
		return "user:" + strconv.Itoa(claims.UserID)
	}
	return ByClientIP(c)
}

// RateLimiter implements a simple keyed token bucket rate limiter.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // Tokens per interval
	interval time.Duration // Refill interval
	key      KeyFunc
	now      func() time.Time
}

type visitor struct {
	tokens   int
	lastSeen time.Time
}

// NewRateLimiter creates a RateLimiter (e.g., 20 requests per minute).
// A nil key charges by client IP.
func NewRateLimiter(rate int, interval time.Duration, key KeyFunc) *RateLimiter {
	if key == nil {
		key = ByClientIP
	}
	if rate <= 0 {
		rate = 1
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		interval: interval,
		key:      key,
		now:      time.Now,
	}
}

// Run evicts idle buckets until done is closed.
func (rl *RateLimiter) Run(done <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// Middleware returns a Gin middleware that rate-limits requests by key.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(rl.key(c)) {
			c.Header("Retry-After", strconv.Itoa(int(rl.interval.Seconds())))
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, exists := rl.visitors[key]
	if !exists {
		v = &visitor{tokens: rl.rate, lastSeen: now}
		rl.visitors[key] = v
	}

	// Refill tokens based on elapsed time.
	refill := int(now.Sub(v.lastSeen)/rl.interval) * rl.rate
	if refill > 0 {
		v.tokens = min(v.tokens+refill, rl.rate)
		v.lastSeen = now
	}

	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > 3*rl.interval {
			delete(rl.visitors, key)
		}
	}
}
