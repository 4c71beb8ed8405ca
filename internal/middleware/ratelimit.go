package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atrai/atrai-backend-go/pkg/response"
)

// RateLimiter is a sliding window limiter keyed by caller
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // Maximum requests per window
	window   time.Duration // Time window
}

// NewRateLimiter creates a new rate limiter and starts its janitor.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
	go rl.cleanup()
	return rl
}

// cleanup drops callers whose window has emptied
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for now := range ticker.C {
		rl.mu.Lock()
		for key, times := range rl.requests {
			if valid := rl.prune(times, now); len(valid) == 0 {
				delete(rl.requests, key)
			} else {
				rl.requests[key] = valid
			}
		}
		rl.mu.Unlock()
	}
}

// prune keeps the timestamps still inside the window
func (rl *RateLimiter) prune(times []time.Time, now time.Time) []time.Time {
	valid := times[:0]
	for _, t := range times {
		if now.Sub(t) < rl.window {
			valid = append(valid, t)
		}
	}
	return valid
}

// Allow records a request for key and reports whether it fits the window.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	valid := rl.prune(rl.requests[key], now)
	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}
	rl.requests[key] = append(valid, now)
	return true
}

// RateLimit limits requests per caller: the user set by an earlier Auth,
// otherwise the client IP.
func RateLimit(limit int, window time.Duration) gin.HandlerFunc {
	limiter := NewRateLimiter(limit, window)
	retryAfter := strconv.Itoa(int(window.Seconds()))

	return func(c *gin.Context) {
		key := c.GetString(UserKey)
		if key == "" {
			key = c.ClientIP()
		}

		if !limiter.Allow(key) {
			c.Header("Retry-After", retryAfter)
			response.Abort(c, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}

		c.Next()
	}
}
