package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

// revocationServer mounts the revocation routes under /api/v1 behind a stub
// middleware that stamps every request with the given roles.
func revocationServer(store *TokenRevocationStore, roles ...string) *echo.Echo {
	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := context.WithValue(c.Request().Context(), UserRolesKey, roles)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	RegisterRevocationRoutes(e.Group("/api/v1"), store)
	return e
}

func revocationRequest(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRevokeTokenEndpoint(t *testing.T) {
	store := NewTokenRevocationStore()
	defer store.Close()
	e := revocationServer(store, "admin")

	rec := revocationRequest(e, http.MethodPost, "/api/v1/auth/revoke",
		`{"jti":"tok-1","expires_at":"2099-01-01T00:00:00Z"}`)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204 (body: %s)", rec.Code, rec.Body.String())
	}
	if !store.IsRevoked("tok-1") {
		t.Error("tok-1 not revoked")
	}
}

func TestRevokeTokenEndpoint_DefaultExpiry(t *testing.T) {
	store := NewTokenRevocationStore()
	defer store.Close()
	e := revocationServer(store, "admin")

	rec := revocationRequest(e, http.MethodPost, "/api/v1/auth/revoke", `{"jti":"tok-1"}`)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	entries := store.Entries()
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if d := time.Until(entries[0].ExpiresAt); d < 55*time.Minute || d > 65*time.Minute {
		t.Errorf("default expiry %v from now, want about an hour", d)
	}
}

func TestRevokeTokenEndpoint_MissingJTI(t *testing.T) {
	store := NewTokenRevocationStore()
	defer store.Close()
	e := revocationServer(store, "admin")

	rec := revocationRequest(e, http.MethodPost, "/api/v1/auth/revoke", `{"user_id":"u-1"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "jti is required") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestRevokeTokenEndpoint_MalformedBody(t *testing.T) {
	store := NewTokenRevocationStore()
	defer store.Close()
	e := revocationServer(store, "admin")

	rec := revocationRequest(e, http.MethodPost, "/api/v1/auth/revoke", `{"jti":`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRevokeTokenEndpoint_TiesTokenToUser(t *testing.T) {
	store := NewTokenRevocationStore()
	defer store.Close()
	e := revocationServer(store, "admin")

	rec := revocationRequest(e, http.MethodPost, "/api/v1/auth/revoke",
		`{"jti":"tok-1","user_id":"u-42","expires_at":"2099-01-01T00:00:00Z"}`)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := store.RevokeAllForUser("u-42"); got != 1 {
		t.Errorf("u-42 token count = %d, want 1", got)
	}
}

func TestRevokeUserEndpoint(t *testing.T) {
	store := NewTokenRevocationStore()
	defer store.Close()
	store.RevokeForUser("tok-1", "u-1", time.Now().Add(time.Hour))
	store.RevokeForUser("tok-2", "u-1", time.Now().Add(time.Hour))
	e := revocationServer(store, "admin")

	rec := revocationRequest(e, http.MethodPost, "/api/v1/auth/revoke-user", `{"user_id":"u-1"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}
	var resp revokeUserResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RevokedCount != 2 {
		t.Errorf("revoked_count = %d, want 2", resp.RevokedCount)
	}
}

func TestRevokeUserEndpoint_MissingUserID(t *testing.T) {
	store := NewTokenRevocationStore()
	defer store.Close()
	e := revocationServer(store, "admin")

	rec := revocationRequest(e, http.MethodPost, "/api/v1/auth/revoke-user", `{}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "user_id is required") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestListRevocationsEndpoint(t *testing.T) {
	store := NewTokenRevocationStore()
	defer store.Close()
	store.RevokeForUser("tok-b", "u-1", time.Now().Add(time.Hour))
	store.Revoke("tok-a", time.Now().Add(time.Hour))
	e := revocationServer(store, "admin")

	rec := revocationRequest(e, http.MethodGet, "/api/v1/auth/revocations", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp revocationListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 2 {
		t.Errorf("count = %d, want 2", resp.Count)
	}
	if len(resp.Entries) != 2 || resp.Entries[0].JTI != "tok-a" || resp.Entries[1].JTI != "tok-b" {
		t.Errorf("entries = %+v, want tok-a then tok-b", resp.Entries)
	}
	if resp.Entries[1].UserID != "u-1" {
		t.Errorf("entries[1].UserID = %q, want \"u-1\"", resp.Entries[1].UserID)
	}
}

func TestRevocationEndpoints_NonAdminForbidden(t *testing.T) {
	store := NewTokenRevocationStore()
	defer store.Close()
	e := revocationServer(store, "clinician")

	endpoints := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPost, "/api/v1/auth/revoke", `{"jti":"tok-1"}`},
		{http.MethodPost, "/api/v1/auth/revoke-user", `{"user_id":"u-1"}`},
		{http.MethodGet, "/api/v1/auth/revocations", ""},
	}
	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			rec := revocationRequest(e, ep.method, ep.path, ep.body)
			if rec.Code != http.StatusForbidden {
				t.Errorf("status = %d, want 403", rec.Code)
			}
		})
	}
	if store.Count() != 0 {
		t.Errorf("store gained %d entries from forbidden requests", store.Count())
	}
}
