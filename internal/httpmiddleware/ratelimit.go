package httpmiddleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	defaultCacheSize = 5000
	defaultCacheTTL  = time.Hour
)

// IPRateLimiter keeps one token bucket per client IP. Idle IPs fall out of
// the cache after an hour.
type IPRateLimiter struct {
	ips   *expirable.LRU[string, *rate.Limiter]
	limit rate.Limit
	burst int
}

// NewIPRateLimiter allows perSecond requests per IP with the given burst. A
// non-positive burst defaults to perSecond, and never drops below 1.
func NewIPRateLimiter(perSecond float64, burst int) *IPRateLimiter {
	if burst <= 0 {
		burst = int(perSecond)
	}
	burst = max(burst, 1)
	return &IPRateLimiter{
		ips:   expirable.NewLRU[string, *rate.Limiter](defaultCacheSize, nil, defaultCacheTTL),
		limit: rate.Limit(perSecond),
		burst: burst,
	}
}

func (l *IPRateLimiter) limiter(ip string) *rate.Limiter {
	if lim, ok := l.ips.Get(ip); ok {
		return lim
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.ips.Add(ip, lim)
	return lim
}

// Allow reports whether one more request from ip is admitted.
func (l *IPRateLimiter) Allow(ip string) bool {
	if ip == "" {
		ip = "unknown"
	}
	return l.limiter(ip).Allow()
}

// GinMiddleware returns gin handler enforcing per-IP limits.
func (l *IPRateLimiter) GinMiddleware() gin.HandlerFunc {
	if l.limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}
