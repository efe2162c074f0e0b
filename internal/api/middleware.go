package api

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const requestIDKey = "request_id"

// RequestIDMiddleware assigns each request a correlation ID, honoring one
// supplied by the caller so upstream orchestrators can trace their calls
// through the audit trail.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)
		c.Next()
	}
}

// RateLimitMiddleware enforces a per-client token bucket. Zero or negative
// ratePerSecond disables limiting.
func RateLimitMiddleware(ratePerSecond float64, burst int) gin.HandlerFunc {
	if ratePerSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst < 1 {
		burst = 1
	}

	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		mu.Lock()
		limiter, ok := limiters[clientIP]
		if !ok {
			limiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
			limiters[clientIP] = limiter
		}
		mu.Unlock()

		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}
