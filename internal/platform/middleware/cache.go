package middleware

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// CacheConfig controls the HTTP caching headers emitted for GET and HEAD
// responses. Responses carry PHI, so the defaults keep caches private and
// short-lived; freshness beyond that is negotiated through ETags.
type CacheConfig struct {
	// MaxAge is the Cache-Control max-age in seconds.
	MaxAge int
	// Private marks responses as cacheable only by the requesting client.
	Private bool
	// NoStore forbids storing the response entirely. Overrides MaxAge.
	NoStore bool
	// VaryHeaders lists request headers the response varies on.
	VaryHeaders []string
	// ExcludePrefixes skips caching for any path starting with one of
	// these prefixes.
	ExcludePrefixes []string
}

// DefaultCacheConfig returns the policy used for the assessment API:
// private, one minute of freshness, varying on Accept and Authorization.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxAge:      60,
		Private:     true,
		VaryHeaders: []string{"Accept", "Authorization"},
	}
}

func (cfg CacheConfig) cacheControl() string {
	if cfg.NoStore {
		return "no-store"
	}
	scope := "public"
	if cfg.Private {
		scope = "private"
	}
	return fmt.Sprintf("%s, max-age=%d", scope, cfg.MaxAge)
}

func (cfg CacheConfig) excluded(path string) bool {
	for _, prefix := range cfg.ExcludePrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// responseBuffer captures a handler's body and status so the middleware can
// hash the body before anything reaches the wire.
type responseBuffer struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func newResponseBuffer(w http.ResponseWriter) *responseBuffer {
	return &responseBuffer{ResponseWriter: w, status: http.StatusOK}
}

func (b *responseBuffer) Write(p []byte) (int, error) {
	return b.body.Write(p)
}

func (b *responseBuffer) WriteHeader(status int) {
	b.status = status
}

func (b *responseBuffer) Flush() {}

// release sends the captured status and body to the real writer.
func (b *responseBuffer) release() error {
	b.ResponseWriter.WriteHeader(b.status)
	if b.body.Len() == 0 {
		return nil
	}
	_, err := b.ResponseWriter.Write(b.body.Bytes())
	return err
}

// ETagMiddleware hashes successful GET/HEAD bodies into a weak ETag, sets
// Cache-Control and Vary per cfg, and answers If-None-Match revalidations
// with 304 Not Modified.
func ETagMiddleware(cfg CacheConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet && req.Method != http.MethodHead {
				return next(c)
			}
			if cfg.excluded(req.URL.Path) {
				return next(c)
			}

			res := c.Response()
			origWriter := res.Writer
			buf := newResponseBuffer(origWriter)
			res.Writer = buf

			err := next(c)
			res.Writer = origWriter
			if err != nil {
				return err
			}
			// Pass through errors and bodyless statuses untouched.
			if buf.status >= 400 || buf.status == http.StatusNotModified || buf.status == http.StatusNoContent {
				return buf.release()
			}

			res.Header().Set("Cache-Control", cfg.cacheControl())
			if len(cfg.VaryHeaders) > 0 {
				res.Header().Set("Vary", strings.Join(cfg.VaryHeaders, ", "))
			}

			// Handlers that set their own validator keep it.
			etag := res.Header().Get("ETag")
			if etag == "" {
				etag = weakETag(buf.body.Bytes())
				res.Header().Set("ETag", etag)
			}

			if match := req.Header.Get("If-None-Match"); match != "" && etagMatch(match, etag) {
				origWriter.WriteHeader(http.StatusNotModified)
				return nil
			}
			return buf.release()
		}
	}
}

// ConditionalRequestMiddleware evaluates If-Modified-Since, If-None-Match,
// and If-Match against the Last-Modified and ETag headers the handler set,
// answering 304 Not Modified or 412 Precondition Failed as appropriate.
func ConditionalRequestMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()

			origWriter := res.Writer
			buf := newResponseBuffer(origWriter)
			res.Writer = buf

			err := next(c)
			res.Writer = origWriter
			if err != nil {
				return err
			}

			if since := req.Header.Get("If-Modified-Since"); since != "" {
				if notModifiedSince(since, res.Header().Get("Last-Modified")) {
					origWriter.WriteHeader(http.StatusNotModified)
					return nil
				}
			}
			if match := req.Header.Get("If-None-Match"); match != "" {
				if etag := res.Header().Get("ETag"); etag != "" && etagMatch(match, etag) {
					origWriter.WriteHeader(http.StatusNotModified)
					return nil
				}
			}
			if match := req.Header.Get("If-Match"); match != "" {
				if etag := res.Header().Get("ETag"); etag != "" && !etagMatch(match, etag) {
					origWriter.WriteHeader(http.StatusPreconditionFailed)
					return nil
				}
			}
			return buf.release()
		}
	}
}

// notModifiedSince reports whether lastModified is at or before the
// If-Modified-Since timestamp. Unparseable values never match.
func notModifiedSince(ifModifiedSince, lastModified string) bool {
	if lastModified == "" {
		return false
	}
	since, err := http.ParseTime(ifModifiedSince)
	if err != nil {
		return false
	}
	modified, err := http.ParseTime(lastModified)
	if err != nil {
		return false
	}
	return !modified.After(since)
}

// weakETag derives a weak validator from the response body.
func weakETag(body []byte) string {
	sum := sha256.Sum256(body)
	return fmt.Sprintf(`W/"%x"`, sum[:16])
}

// etagMatch reports whether the If-None-Match or If-Match header value
// matches etag. Handles comma-separated lists, the "*" wildcard, and weak
// comparison (W/"x" matches "x").
func etagMatch(headerVal, etag string) bool {
	headerVal = strings.TrimSpace(headerVal)
	if headerVal == "*" {
		return true
	}
	for _, candidate := range strings.Split(headerVal, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == strings.TrimPrefix(etag, "W/") {
			return true
		}
	}
	return false
}
