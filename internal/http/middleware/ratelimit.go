// README: Per-client-IP token bucket rate limiting.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterIdle     = 10 * time.Minute
	limiterSweepLen = 10000
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type ipLimiters struct {
	mu     sync.Mutex
	byIP   map[string]*ipLimiter
	perSec rate.Limit
	burst  int
}

func (l *ipLimiters) get(ip string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.byIP) >= limiterSweepLen {
		for k, v := range l.byIP {
			if now.Sub(v.lastSeen) > limiterIdle {
				delete(l.byIP, k)
			}
		}
	}
	e, ok := l.byIP[ip]
	if !ok {
		e = &ipLimiter{limiter: rate.NewLimiter(l.perSec, l.burst)}
		l.byIP[ip] = e
	}
	e.lastSeen = now
	return e.limiter
}

// RateLimit allows perSecond requests per client IP with the given burst.
// perSecond <= 0 disables limiting.
func RateLimit(perSecond float64, burst int) gin.HandlerFunc {
	if perSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst < 1 {
		burst = 1
	}
	limiters := &ipLimiters{byIP: map[string]*ipLimiter{}, perSec: rate.Limit(perSecond), burst: burst}
	return func(c *gin.Context) {
		if !limiters.get(c.ClientIP(), time.Now()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
