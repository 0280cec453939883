package httpserver

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	limiterTTL          = time.Hour
	limiterCleanupEvery = 10 * time.Minute
)

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// ipRateLimiter keeps one token bucket per client IP.
type ipRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	disabled bool
}

// newIPRateLimiter builds a limiter allowing rps requests per second per IP.
// rps <= 0 disables limiting. Stale buckets are swept until ctx ends.
func newIPRateLimiter(ctx context.Context, rps, burst int) *ipRateLimiter {
	if rps <= 0 {
		return &ipRateLimiter{disabled: true}
	}
	if burst <= 0 {
		burst = rps
	}
	l := &ipRateLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
	go l.cleanupLoop(ctx)
	return l
}

func (l *ipRateLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = e
	}
	e.lastAccess = time.Now()
	return e.limiter
}

func (l *ipRateLimiter) middleware(next http.Handler) http.Handler {
	if l.disabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.get(clientIP(r)).Allow() {
			writeError(w, http.StatusTooManyRequests, "Too many requests. Please slow down.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *ipRateLimiter) cleanupLoop(ctx context.Context) {
	if ctx == nil {
		return
	}
	ticker := time.NewTicker(limiterCleanupEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep(time.Now().Add(-limiterTTL))
		case <-ctx.Done():
			return
		}
	}
}

// sweep drops buckets untouched since cutoff.
func (l *ipRateLimiter) sweep(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, e := range l.limiters {
		if e.lastAccess.Before(cutoff) {
			delete(l.limiters, key)
			removed++
		}
	}
	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("cleaned up stale rate limiters")
	}
}

// clientIP strips the port from RemoteAddr (already rewritten by RealIP).
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
