package httpkit

import (
	"net/http"
	"sync"

	"summercamp_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc picks the bucket a request is counted against.
type KeyFunc func(c *gin.Context) string

// ByClientIP buckets requests by client address.
func ByClientIP(c *gin.Context) string { return c.ClientIP() }

// ByService buckets by the service claim set by ServiceTokenRequired and falls
// back to the client address when no claim is present.
func ByService(c *gin.Context) string {
	if name := c.GetString(ContextServiceKey); name != "" {
		return "svc:" + name
	}
	return c.ClientIP()
}

// RateLimiter keeps one token bucket per key.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	key      KeyFunc
	log      *logger.Logger
}

// NewRateLimiter returns a limiter that allows limit events per second per key
// with the given burst. A nil key defaults to ByClientIP.
func NewRateLimiter(limit rate.Limit, burst int, key KeyFunc, log *logger.Logger) *RateLimiter {
	if key == nil {
		key = ByClientIP
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
		key:      key,
		log:      log,
	}
}

// Allow reports whether one more event for key fits in its bucket.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// Middleware rejects requests over the limit with 429.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.Allow(l.key(c)) {
			c.Next()
			return
		}
		if l.log != nil {
			l.log.RateLimitExceeded(c.ClientIP(), c.Request.URL.Path)
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
	}
}
