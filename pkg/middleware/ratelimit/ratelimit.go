package ratelimit

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
	"github.com/noah-isme/course-enrollment-api/pkg/response"
)

// KeyFunc extracts the bucket key for a request.
type KeyFunc func(c *gin.Context) string

// ClientIP buckets requests by client address.
func ClientIP(c *gin.Context) string {
	return c.ClientIP()
}

// Limiter keeps one token bucket per key.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*entry
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New builds a limiter allowing perMinute requests per key with the given burst.
func New(perMinute, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*entry),
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
		idleTTL:  10 * time.Minute,
		now:      time.Now,
	}
}

// Allow reports whether one more request for key fits in its bucket.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	l.evictIdle(now)
	return e.limiter.AllowN(now, 1)
}

func (l *Limiter) evictIdle(now time.Time) {
	if len(l.limiters) < 1024 {
		return
	}
	for key, e := range l.limiters {
		if now.Sub(e.lastSeen) > l.idleTTL {
			delete(l.limiters, key)
		}
	}
}

// Middleware rejects requests over the limit with 429. A nil limiter or a
// non-positive rate disables limiting.
func Middleware(l *Limiter, key KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || l.limit <= 0 {
			c.Next()
			return
		}
		if key == nil {
			key = ClientIP
		}
		if !l.Allow(key(c)) {
			response.Error(c, appErrors.ErrRateLimited)
			c.Abort()
			return
		}
		c.Next()
	}
}
