package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// APIKeyMiddlewareOption configures the API key middleware.
type APIKeyMiddlewareOption func(*apiKeyMiddlewareCfg)

type apiKeyMiddlewareCfg struct {
	enforceScopes bool
}

// WithScopeEnforcement toggles scope checks against the request's resource
// and method.
func WithScopeEnforcement(enforce bool) APIKeyMiddlewareOption {
	return func(cfg *apiKeyMiddlewareCfg) {
		cfg.enforceScopes = enforce
	}
}

// APIKeyMiddleware authenticates requests that carry an API key, either in
// X-API-Key or as a Bearer token with the key prefix. Requests without a key
// fall through untouched so the JWT middleware can take over.
func APIKeyMiddleware(manager *APIKeyManager, opts ...APIKeyMiddlewareOption) echo.MiddlewareFunc {
	cfg := &apiKeyMiddlewareCfg{}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rawKey := apiKeyFromRequest(c)
			if rawKey == "" {
				return next(c)
			}

			key, err := manager.ValidateKey(c.Request().Context(), rawKey)
			if err != nil {
				return apiKeyAuthError(err)
			}

			if cfg.enforceScopes && len(key.Scopes) > 0 {
				if err := enforceAPIKeyScopes(c, key.Scopes); err != nil {
					return err
				}
			}

			// Downstream tenant resolution reads jwt_tenant_id the same
			// way it does for JWTs.
			c.Set("api_key_id", key.ID)
			c.Set("jwt_tenant_id", key.TenantID)
			c.Set("client_id", key.ClientID)
			c.Set("scopes", key.Scopes)

			return next(c)
		}
	}
}

// apiKeyFromRequest returns the raw key from X-API-Key, or from a Bearer
// token carrying the key prefix. Anything else yields "".
func apiKeyFromRequest(c echo.Context) string {
	if apiKey := c.Request().Header.Get("X-API-Key"); apiKey != "" {
		return apiKey
	}

	scheme, token, found := strings.Cut(c.Request().Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	if strings.HasPrefix(token, apiKeyPrefix) {
		return token
	}
	return ""
}

func apiKeyAuthError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidKey):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid api key")
	case errors.Is(err, ErrKeyRevoked):
		return echo.NewHTTPError(http.StatusUnauthorized, "api key revoked")
	case errors.Is(err, ErrKeyExpired):
		return echo.NewHTTPError(http.StatusUnauthorized, "api key expired")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "api key validation error")
	}
}

// enforceAPIKeyScopes requires a scope covering "<resource>.<operation>" for
// the request.
func enforceAPIKeyScopes(c echo.Context, scopes []string) error {
	resource := extractScopeResource(c.Request().URL.Path)
	if resource == "" {
		// Infrastructure endpoint, no scope enforcement.
		return nil
	}

	required := resource + "." + httpMethodToScopeOperation(c.Request().Method)
	for _, scope := range scopes {
		if matchScope(scope, required) {
			return nil
		}
	}

	return echo.NewHTTPError(http.StatusForbidden,
		fmt.Sprintf("insufficient scope: requires %s", required))
}

// extractScopeResource pulls the collection segment out of /api/v1/... paths.
// Patient history routes read assessments, so they map to that resource.
func extractScopeResource(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) < 3 || parts[0] != "api" || parts[1] != "v1" {
		return ""
	}
	if parts[2] == "patients" {
		return "assessments"
	}
	return parts[2]
}

func httpMethodToScopeOperation(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		return "read"
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return "write"
	default:
		return "read"
	}
}
