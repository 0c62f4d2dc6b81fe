package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// DefaultRateLimitConfig returns default rate limiting settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
	}
}

// ipRateLimiter is a GCRA limiter keyed by client. Each admitted request
// advances the key's theoretical arrival time by one emission interval;
// requests that would push it past the burst tolerance are rejected. One
// timestamp per key is all the state it needs.
type ipRateLimiter struct {
	mu        sync.Mutex
	next      map[string]time.Time
	interval  time.Duration
	tolerance time.Duration
	now       func() time.Time
	lastSweep time.Time
}

// sweepInterval bounds how often take scans the key map for stale
// entries.
const sweepInterval = time.Minute

func newIPRateLimiter(cfg RateLimitConfig) *ipRateLimiter {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	interval := time.Duration(float64(time.Second) / rps)

	// Tolerance of (burst-1) intervals admits exactly BurstSize requests
	// back to back from a cold start.
	tolerance := time.Duration(cfg.BurstSize-1) * interval
	if tolerance < 0 {
		tolerance = 0
	}

	return &ipRateLimiter{
		next:      make(map[string]time.Time),
		interval:  interval,
		tolerance: tolerance,
		now:       time.Now,
	}
}

// take reports whether the key may proceed now and, when it may not, the
// whole seconds to wait before retrying.
func (l *ipRateLimiter) take(key string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= sweepInterval {
		l.sweep(now)
	}

	tat := l.next[key]
	if tat.Before(now) {
		tat = now
	}

	if ahead := tat.Sub(now); ahead > l.tolerance {
		wait := ahead - l.tolerance
		return false, int(wait/time.Second) + 1
	}

	l.next[key] = tat.Add(l.interval)
	return true, 0
}

// sweep drops keys whose theoretical arrival time has passed. take
// treats a missing key and a past one identically, so eviction never
// changes an admission decision. Caller holds the mutex.
func (l *ipRateLimiter) sweep(now time.Time) {
	for k, tat := range l.next {
		if tat.Before(now) {
			delete(l.next, k)
		}
	}
	l.lastSweep = now
}

// RateLimit returns a rate limiting middleware keyed by client IP, prefixed
// with the tenant when one is known so tenants do not share budgets behind
// one proxy.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	limiter := newIPRateLimiter(cfg)
	limitHeader := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', 0, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.RealIP()
			if tenantID, ok := c.Get("jwt_tenant_id").(string); ok && tenantID != "" {
				key = tenantID + ":" + key
			}

			ok, wait := limiter.take(key)
			headers := c.Response().Header()
			headers.Set("X-RateLimit-Limit", limitHeader)
			if !ok {
				headers.Set("Retry-After", strconv.Itoa(wait))
				headers.Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}

			return next(c)
		}
	}
}
