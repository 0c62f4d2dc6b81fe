package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/cardia/cardia/internal/platform/auth"
)

var bgBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func bgRequest(path string) *http.Request {
	return httptest.NewRequest(http.MethodGet, path, nil)
}

func asUser(req *http.Request, userID string, roles ...string) *http.Request {
	ctx := context.WithValue(req.Context(), auth.UserIDKey, userID)
	ctx = context.WithValue(ctx, auth.UserRolesKey, roles)
	return req.WithContext(ctx)
}

func bgAt(logger zerolog.Logger, rl *breakGlassRateLimit, at time.Time) echo.MiddlewareFunc {
	return breakGlassMiddleware(logger, rl, func() time.Time { return at })
}

// runBreakGlass sends one request through the middleware and returns the
// context the downstream handler observed.
func runBreakGlass(mw echo.MiddlewareFunc, req *http.Request) (context.Context, error) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen context.Context
	err := mw(func(c echo.Context) error {
		seen = c.Request().Context()
		return c.NoContent(http.StatusOK)
	})(c)
	return seen, err
}

func hasRole(roles []string, want string) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}

func TestBreakGlass_ElevatesAndRecordsReason(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	rl := newBreakGlassRateLimit()

	req := asUser(bgRequest("/api/v1/assessments/a-1"), "doc-1", "clinician")
	req.Header.Set("X-Break-Glass", "cardiac arrest")

	ctx, err := runBreakGlass(bgAt(logger, rl, bgBase), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !IsBreakGlass(ctx) {
		t.Error("expected break-glass flag in context")
	}
	if got := BreakGlassReason(ctx); got != "cardiac arrest" {
		t.Errorf("reason = %q, want %q", got, "cardiac arrest")
	}

	roles := auth.RolesFromContext(ctx)
	if !hasRole(roles, "admin") || !hasRole(roles, "clinician") {
		t.Errorf("roles = %v, want clinician plus admin", roles)
	}

	if out := buf.String(); !strings.Contains(out, "cardiac arrest") || !strings.Contains(out, "break_glass_override") {
		t.Errorf("expected override warning with reason in log, got %s", out)
	}
}

func TestBreakGlass_AdminRoleNotDuplicated(t *testing.T) {
	rl := newBreakGlassRateLimit()

	req := asUser(bgRequest("/api/v1/assessments/a-1"), "admin-1", "admin")
	req.Header.Set("X-Break-Glass", "emergency")

	ctx, err := runBreakGlass(bgAt(zerolog.Nop(), rl, bgBase), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	count := 0
	for _, r := range auth.RolesFromContext(ctx) {
		if r == "admin" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("admin role appears %d times, want 1", count)
	}
}

func TestBreakGlass_PathGating(t *testing.T) {
	tests := []struct {
		path   string
		active bool
	}{
		{"/api/v1/assessments", true},
		{"/api/v1/assessments/a-1", true},
		{"/api/v1/patients/p-1/assessments", true},
		{"/health", false},
		{"/metrics", false},
		{"/api/v2/assessments", false},
		{"/api/v1", false},
	}

	for _, tt := range tests {
		rl := newBreakGlassRateLimit()
		req := asUser(bgRequest(tt.path), "doc-2", "clinician")
		req.Header.Set("X-Break-Glass", "emergency")

		ctx, err := runBreakGlass(bgAt(zerolog.Nop(), rl, bgBase), req)
		if err != nil {
			t.Fatalf("path %s: unexpected error: %v", tt.path, err)
		}
		if IsBreakGlass(ctx) != tt.active {
			t.Errorf("path %s: override active = %v, want %v", tt.path, IsBreakGlass(ctx), tt.active)
		}
	}
}

func TestBreakGlass_IgnoredWithoutReason(t *testing.T) {
	tests := []struct {
		name   string
		set    bool
		header string
	}{
		{"no header", false, ""},
		{"empty header", true, ""},
		{"whitespace only", true, "   "},
	}

	for _, tt := range tests {
		rl := newBreakGlassRateLimit()
		req := asUser(bgRequest("/api/v1/assessments/a-1"), "doc-3", "clinician")
		if tt.set {
			req.Header.Set("X-Break-Glass", tt.header)
		}

		ctx, err := runBreakGlass(bgAt(zerolog.Nop(), rl, bgBase), req)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if IsBreakGlass(ctx) {
			t.Errorf("%s: override should not activate", tt.name)
		}
		if hasRole(auth.RolesFromContext(ctx), "admin") {
			t.Errorf("%s: roles should stay unelevated", tt.name)
		}
	}
}

func TestBreakGlass_RequiresAuthenticatedUser(t *testing.T) {
	rl := newBreakGlassRateLimit()

	req := bgRequest("/api/v1/assessments/a-1")
	req.Header.Set("X-Break-Glass", "emergency")

	_, err := runBreakGlass(bgAt(zerolog.Nop(), rl, bgBase), req)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %v", err)
	}
	if httpErr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", httpErr.Code)
	}
}

func TestBreakGlass_HourlyLimit(t *testing.T) {
	rl := newBreakGlassRateLimit()

	fire := func(userID string, at time.Time) error {
		req := asUser(bgRequest("/api/v1/assessments/a-1"), userID, "clinician")
		req.Header.Set("X-Break-Glass", "emergency")
		_, err := runBreakGlass(bgAt(zerolog.Nop(), rl, at), req)
		return err
	}

	for i := 0; i < breakGlassMaxPerHour; i++ {
		if err := fire("doc-4", bgBase.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("override %d: unexpected error: %v", i+1, err)
		}
	}

	err := fire("doc-4", bgBase.Add(10*time.Second))
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("override %d: expected echo.HTTPError, got %v", breakGlassMaxPerHour+1, err)
	}
	if httpErr.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", httpErr.Code)
	}

	// Budgets are per user.
	if err := fire("doc-5", bgBase); err != nil {
		t.Errorf("different user should not share the budget: %v", err)
	}

	// The window slides, so an hour later the first user is back under it.
	if err := fire("doc-4", bgBase.Add(time.Hour+time.Second)); err != nil {
		t.Errorf("expected budget back after an hour: %v", err)
	}
}

func TestBreakGlassRateLimit_CleanupDropsIdleUsers(t *testing.T) {
	rl := newBreakGlassRateLimit()
	for i := 0; i < 5; i++ {
		rl.allow("idle-user", bgBase.Add(time.Duration(i)*time.Second), breakGlassMaxPerHour)
	}

	rl.cleanup(bgBase.Add(2 * time.Hour))

	rl.mu.Lock()
	remaining := len(rl.users)
	rl.mu.Unlock()
	if remaining != 0 {
		t.Errorf("expected idle users dropped, %d remain", remaining)
	}

	if !rl.allow("idle-user", bgBase.Add(2*time.Hour), breakGlassMaxPerHour) {
		t.Error("expected a fresh budget after cleanup")
	}
}

func TestBreakGlassContextHelpers_Defaults(t *testing.T) {
	ctx := context.Background()
	if IsBreakGlass(ctx) {
		t.Error("IsBreakGlass should be false on an empty context")
	}
	if got := BreakGlassReason(ctx); got != "" {
		t.Errorf("BreakGlassReason = %q, want empty", got)
	}
}
