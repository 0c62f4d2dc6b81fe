package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireRole admits users holding any of the listed roles. Admins always
// pass.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if hasAnyRole(RolesFromContext(c.Request().Context()), roles) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

func hasAnyRole(held, wanted []string) bool {
	for _, role := range held {
		if role == "admin" {
			return true
		}
		for _, w := range wanted {
			if role == w {
				return true
			}
		}
	}
	return false
}

// RequireScope admits users whose scopes cover "<resource>.<operation>",
// e.g. "assessments.read". Wildcard grants apply.
func RequireScope(resource, operation string) echo.MiddlewareFunc {
	required := resource + "." + operation

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, scope := range ScopesFromContext(c.Request().Context()) {
				if matchScope(scope, required) {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required scope: %s", required))
		}
	}
}

// matchScope reports whether a granted scope covers the required one.
// "*" wildcards either side of the dot: "*.*" covers everything,
// "assessments.*" covers any operation on assessments.
func matchScope(granted, required string) bool {
	if granted == required {
		return true
	}

	gRes, gOp, ok := strings.Cut(granted, ".")
	if !ok {
		return false
	}
	rRes, rOp, ok := strings.Cut(required, ".")
	if !ok {
		return false
	}

	return (gRes == rRes || gRes == "*") && (gOp == rOp || gOp == "*")
}
