package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/cppla/photoshare/utils"
)

type rateLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

type ipLimiters struct {
	mu      sync.Mutex
	entries map[string]*rateLimiter
	limit   rate.Limit
	burst   int
}

// RateLimitMiddleware applies a simple IP based rate limiter using a token bucket.
// Each call owns its buckets, so route groups can be limited independently.
func RateLimitMiddleware(perMinute int) gin.HandlerFunc {
	perMinute = max(perMinute, 1)
	l := &ipLimiters{
		entries: map[string]*rateLimiter{},
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   max(perMinute/2, 1),
	}

	return func(ctx *gin.Context) {
		if !l.get(ctx.ClientIP()).Allow() {
			utils.Error(ctx, http.StatusTooManyRequests, 42901, "rate limit exceeded")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

func (l *ipLimiters) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for k, entry := range l.entries {
		if now.After(entry.expires) {
			delete(l.entries, k)
		}
	}

	if entry, ok := l.entries[key]; ok {
		entry.expires = now.Add(5 * time.Minute)
		return entry.limiter
	}
	entry := &rateLimiter{
		limiter: rate.NewLimiter(l.limit, l.burst),
		expires: now.Add(5 * time.Minute),
	}
	l.entries[key] = entry
	return entry.limiter
}
