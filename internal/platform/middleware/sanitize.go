package middleware

import (
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// maxHeaderValueSize caps any single header value at 8KB.
const maxHeaderValueSize = 8192

var (
	// sqlProbe matches are logged for monitoring, never blocked.
	sqlProbe = regexp.MustCompile(`(?i)('+\s*;\s*DROP\b|UNION\s+SELECT\b|'\s+OR\s+1\s*=\s*1|1\s*=\s*1)`)

	scriptProbe = regexp.MustCompile(`(?i)(<script|javascript\s*:|on\w+\s*=)`)
)

// Sanitize screens requests for common injection patterns before they reach
// a handler. Anything suspicious is rejected with a 400 and a short reason.
func Sanitize() echo.MiddlewareFunc {
	return SanitizeWithLogger(zerolog.Nop())
}

// SanitizeWithLogger is Sanitize with a logger attached for the non-blocking
// SQL pattern warnings.
func SanitizeWithLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if reason := screenPath(req.URL.Path, req.URL.RawPath); reason != "" {
				return rejectRequest(c, reason)
			}
			if reason := screenHeaders(req.Header); reason != "" {
				return rejectRequest(c, reason)
			}
			if reason := screenQuery(c, logger); reason != "" {
				return rejectRequest(c, reason)
			}
			return next(c)
		}
	}
}

// screenPath catches traversal and null bytes in both the decoded and the
// raw form of the path, since either may carry the encoded variant.
func screenPath(path, rawPath string) string {
	if rawPath == "" {
		rawPath = path
	}
	if hasTraversal(path) || hasTraversal(rawPath) {
		return "Path traversal detected"
	}
	if hasNullByte(path) || hasNullByte(rawPath) {
		return "Null byte injection detected"
	}
	return ""
}

func screenHeaders(h http.Header) string {
	for name, values := range h {
		for _, v := range values {
			if len(v) > maxHeaderValueSize {
				return "Header value exceeds maximum size: " + name
			}
			if strings.ContainsAny(v, "\r\n") {
				return "Header injection detected: " + name
			}
		}
	}
	return ""
}

func screenQuery(c echo.Context, logger zerolog.Logger) string {
	for key, values := range c.Request().URL.Query() {
		for _, v := range values {
			if hasNullByte(v) || hasNullByte(key) {
				return "Null byte injection detected in query parameter"
			}
			if sqlProbe.MatchString(v) {
				logger.Warn().
					Str("param", key).
					Str("path", c.Request().URL.Path).
					Str("remote_ip", c.RealIP()).
					Msg("potential SQL injection pattern in query parameter")
			}
			if scriptProbe.MatchString(v) || scriptProbe.MatchString(key) {
				return "Script injection detected in query parameter"
			}
		}
	}
	return ""
}

// hasTraversal reports dot-dot sequences in raw, encoded, and double-encoded
// forms.
func hasTraversal(s string) bool {
	if strings.Contains(s, "..") {
		return true
	}
	lower := strings.ToLower(s)
	return strings.Contains(lower, "%2e%2e") || strings.Contains(lower, "%252e")
}

func hasNullByte(s string) bool {
	return strings.ContainsRune(s, '\x00') || strings.Contains(strings.ToLower(s), "%00")
}

// rejectRequest returns a 400 Bad Request naming the rejected pattern.
func rejectRequest(c echo.Context, reason string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{
		"message": reason,
	})
}

// SanitizeString strips null bytes and control characters (except \n, \r
// and \t) from a value and trims surrounding whitespace. Handlers use it
// for field-level cleanup of free-text input.
func SanitizeString(input string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\x00' {
			return -1
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, input)
	return strings.TrimSpace(cleaned)
}
