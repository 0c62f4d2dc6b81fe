package middleware

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/cardia/cardia/internal/platform/auth"
)

type breakGlassContextKey string

const (
	breakGlassKey       breakGlassContextKey = "break_glass"
	breakGlassReasonKey breakGlassContextKey = "break_glass_reason"
)

const (
	breakGlassMaxPerHour    = 10
	breakGlassCleanupPeriod = 5 * time.Minute
)

// overrideLog holds the grant times of a single user's recent break-glass
// overrides, oldest first.
type overrideLog struct {
	grants []time.Time
}

// Grant times are appended in call order, so the log stays sorted and
// pruning can cut at the first entry still inside the window.
func (l *overrideLog) prune(cutoff time.Time) {
	live := sort.Search(len(l.grants), func(i int) bool {
		return l.grants[i].After(cutoff)
	})
	if live > 0 {
		l.grants = append(l.grants[:0], l.grants[live:]...)
	}
}

// breakGlassRateLimit caps break-glass overrides per user over a sliding
// one-hour window.
type breakGlassRateLimit struct {
	mu    sync.Mutex
	users map[string]*overrideLog
}

func newBreakGlassRateLimit() *breakGlassRateLimit {
	return &breakGlassRateLimit{users: make(map[string]*overrideLog)}
}

// allow reports whether the user may invoke another override at now, and
// records the grant when it does. The clock is the caller's so tests can
// drive time.
func (rl *breakGlassRateLimit) allow(userID string, now time.Time, maxPerHour int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	log := rl.users[userID]
	if log == nil {
		log = &overrideLog{}
		rl.users[userID] = log
	}
	log.prune(now.Add(-time.Hour))
	if len(log.grants) >= maxPerHour {
		return false
	}
	log.grants = append(log.grants, now)
	return true
}

// cleanup drops users whose overrides have all aged out, so idle users do
// not accumulate in the map.
func (rl *breakGlassRateLimit) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-time.Hour)
	for userID, log := range rl.users {
		log.prune(cutoff)
		if len(log.grants) == 0 {
			delete(rl.users, userID)
		}
	}
}

// isClinicalPath reports whether the path carries clinical data, which is
// where the override applies.
func isClinicalPath(path string) bool {
	return strings.HasPrefix(path, "/api/v1/")
}

// elevate returns roles with "admin" included, without duplicating it.
func elevate(roles []string) []string {
	for _, r := range roles {
		if r == "admin" {
			return roles
		}
	}
	return append(roles, "admin")
}

// BreakGlass implements the emergency access override. A request carrying a
// non-empty X-Break-Glass header on an /api/v1 path is elevated to the admin
// role so that role checks downstream pass, capped at ten overrides per user
// per hour. Every override lands in the log at WARN with the stated reason
// and the user's original roles. The override needs an authenticated user,
// so the middleware must sit after auth and before any role enforcement.
func BreakGlass(logger zerolog.Logger) echo.MiddlewareFunc {
	rl := newBreakGlassRateLimit()
	go func() {
		ticker := time.NewTicker(breakGlassCleanupPeriod)
		defer ticker.Stop()
		for range ticker.C {
			rl.cleanup(time.Now())
		}
	}()
	return breakGlassMiddleware(logger, rl, time.Now)
}

// breakGlassMiddleware wires an explicit limiter and clock for tests.
func breakGlassMiddleware(logger zerolog.Logger, rl *breakGlassRateLimit, nowFn func() time.Time) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			reason := strings.TrimSpace(req.Header.Get("X-Break-Glass"))
			if reason == "" || !isClinicalPath(req.URL.Path) {
				return next(c)
			}

			ctx := req.Context()
			userID := auth.UserIDFromContext(ctx)
			if userID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "break-glass requires authentication")
			}

			now := nowFn()
			if !rl.allow(userID, now, breakGlassMaxPerHour) {
				return echo.NewHTTPError(http.StatusTooManyRequests,
					"break-glass rate limit exceeded: maximum 10 requests per user per hour")
			}

			originalRoles := auth.RolesFromContext(ctx)
			ctx = context.WithValue(ctx, breakGlassKey, true)
			ctx = context.WithValue(ctx, breakGlassReasonKey, reason)
			ctx = context.WithValue(ctx, auth.UserRolesKey, elevate(originalRoles))
			c.SetRequest(req.WithContext(ctx))

			logger.Warn().
				Str("type", "break_glass").
				Str("user_id", userID).
				Strs("original_roles", originalRoles).
				Str("break_glass_reason", reason).
				Str("path", req.URL.Path).
				Str("method", req.Method).
				Str("remote_ip", c.RealIP()).
				Time("timestamp", now).
				Msg("break_glass_override")

			return next(c)
		}
	}
}

// IsBreakGlass reports whether the request runs under a break-glass override.
func IsBreakGlass(ctx context.Context) bool {
	v, _ := ctx.Value(breakGlassKey).(bool)
	return v
}

// BreakGlassReason returns the reason stated in the X-Break-Glass header, or
// "" when no override is active.
func BreakGlassReason(ctx context.Context) string {
	v, _ := ctx.Value(breakGlassReasonKey).(string)
	return v
}
