package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// ABACPolicy defines an attribute-based access control policy for one API
// resource. Read and write role lists are kept separate so analysts can be
// granted read access without the ability to create or delete records.
type ABACPolicy struct {
	Resource   string   `json:"resource"`
	ReadRoles  []string `json:"read_roles"`
	WriteRoles []string `json:"write_roles"`
}

// ABACEngine evaluates attribute-based access control policies.
type ABACEngine struct {
	policies []ABACPolicy
}

// NewABACEngine creates a new ABAC engine with the given policies.
func NewABACEngine(policies []ABACPolicy) *ABACEngine {
	return &ABACEngine{policies: policies}
}

// DefaultPolicies returns the default access policies. Clinicians record and
// manage assessments, analysts get read-only access for cohort work, and
// administrative resources are admin-only.
func DefaultPolicies() []ABACPolicy {
	return []ABACPolicy{
		{Resource: "assessments", ReadRoles: []string{"admin", "clinician", "analyst"}, WriteRoles: []string{"admin", "clinician"}},
		{Resource: "patients", ReadRoles: []string{"admin", "clinician", "analyst"}, WriteRoles: []string{"admin", "clinician"}},
		{Resource: "model", ReadRoles: []string{"admin", "clinician", "analyst"}, WriteRoles: []string{"admin"}},
		{Resource: "webhooks", ReadRoles: []string{"admin"}, WriteRoles: []string{"admin"}},
		{Resource: "admin", ReadRoles: []string{"admin"}, WriteRoles: []string{"admin"}},
		{Resource: "auth", ReadRoles: []string{"admin"}, WriteRoles: []string{"admin"}},
	}
}

// Evaluate checks whether the roles in ctx allow the given action ("read" or
// "write") on the resource.
func (e *ABACEngine) Evaluate(ctx context.Context, resource, action string) *ABACDecision {
	roles := RolesFromContext(ctx)

	// Admin bypass
	for _, r := range roles {
		if r == "admin" {
			return &ABACDecision{Allowed: true, Reason: "admin role"}
		}
	}

	for _, policy := range e.policies {
		if policy.Resource != resource {
			continue
		}

		allowed := policy.ReadRoles
		if action == "write" {
			allowed = policy.WriteRoles
		}
		for _, allowedRole := range allowed {
			for _, userRole := range roles {
				if userRole == allowedRole {
					return &ABACDecision{Allowed: true, Reason: "policy match"}
				}
			}
		}
		return &ABACDecision{Allowed: false, Reason: "insufficient role for " + resource + " " + action}
	}

	// No policy found - default deny
	return &ABACDecision{Allowed: false, Reason: "no policy for " + resource}
}

// ABACDecision represents the result of an ABAC policy evaluation.
type ABACDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// ABACMiddleware returns middleware that enforces ABAC policies on versioned
// API routes. Requests outside /api/v1 pass through untouched.
func ABACMiddleware(engine *ABACEngine) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			resource := extractABACResource(c.Path())
			if resource == "" {
				return next(c)
			}

			action := abacAction(c.Request().Method, c.Path())
			decision := engine.Evaluate(c.Request().Context(), resource, action)
			if !decision.Allowed {
				return echo.NewHTTPError(http.StatusForbidden, decision.Reason)
			}

			return next(c)
		}
	}
}

// abacAction maps a request to a policy action. Previews derive without
// persisting, so they count as reads despite arriving as POSTs.
func abacAction(method, routePath string) string {
	if strings.HasSuffix(routePath, "/preview") || strings.HasSuffix(routePath, "/preview/batch") {
		return "read"
	}
	return httpMethodToScopeOperation(method)
}

// extractABACResource extracts the policy resource from a path like
// /api/v1/assessments/123.
func extractABACResource(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "v1" {
		return parts[2]
	}
	return ""
}
