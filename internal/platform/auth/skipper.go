package auth

import (
	"github.com/labstack/echo/v4"
)

// IsPublicPath reports whether path is an infrastructure endpoint that must
// stay reachable without credentials or tenant context.
func IsPublicPath(path string) bool {
	switch path {
	case "/health", "/health/db", "/metrics":
		return true
	}
	return false
}

// AuthSkipper plugs IsPublicPath into the JWT and dev auth middlewares as
// their Skipper.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Path())
}
