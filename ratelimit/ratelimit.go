// Package ratelimit implements the per-client-IP rate limiter consulted
// before any stateful work, grounded on the mutex-protected per-key limiter
// map of the original implementation's guard_rate_limiter, reimplemented
// with golang.org/x/time/rate in place of the Rust ratelimit_meter crate
// (which has no direct equivalent anywhere in the retrieved pack).
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Limiter is a single shared structure, behind a lock, mapping client IP to
// its own token-bucket rate limiter.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*entry

	rateLimit rate.Limit
	burst     int
}

// New builds a Limiter allowing, per IP, requestsPerSecond sustained
// throughput with a short burst allowance.
func New(requestsPerSecond float64, burst int) *Limiter {
	return &Limiter{
		limiters:  map[string]*entry{},
		rateLimit: rate.Limit(requestsPerSecond),
		burst:     burst,
	}
}

// Allow reports whether a request from ip may proceed, consuming one token
// from ip's bucket if so.
func (l *Limiter) Allow(ip string) bool {
	l.mu.Lock()
	e, ok := l.limiters[ip]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.rateLimit, l.burst)}
		l.limiters[ip] = e
	}
	e.lastAccess = time.Now()
	lim := e.limiter
	l.mu.Unlock()
	return lim.Allow()
}

// Sweep drops per-IP limiters that have been idle since before now-maxIdle,
// bounding the map's memory growth under many distinct client IPs.
func (l *Limiter) Sweep(maxIdle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().Add(-maxIdle)
	for ip, e := range l.limiters {
		if e.lastAccess.Before(cutoff) {
			delete(l.limiters, ip)
		}
	}
}
