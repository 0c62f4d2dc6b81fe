package middleware

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// BodyLimit caps request body sizes and returns 413 when a cap is crossed.
// defaultLimit covers most endpoints; batchLimit covers POST bodies on
// /preview/batch routes, which carry up to 100 patient records per call.
//
// Sizes are strings like "1M", "512K" or "2G"; a bare number is bytes.
func BodyLimit(defaultLimit, batchLimit string) echo.MiddlewareFunc {
	standard := parseSize(defaultLimit)
	batch := parseSize(batchLimit)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}

			limit := standard
			if req.Method == http.MethodPost && strings.HasSuffix(req.URL.Path, "/preview/batch") {
				limit = batch
			}

			// Declared length allows rejecting before reading anything.
			if req.ContentLength > limit {
				return errBodyTooLarge(limit)
			}

			// The counting reader catches bodies with a missing or
			// dishonest Content-Length.
			req.Body = &cappedBody{src: req.Body, max: limit}
			return next(c)
		}
	}
}

// cappedBody counts bytes as the handler reads them and fails the read that
// crosses the cap.
type cappedBody struct {
	src     io.ReadCloser
	max     int64
	read    int64
	tripped bool
}

func (b *cappedBody) Read(p []byte) (int, error) {
	if b.tripped {
		return 0, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}

	// Clamp each read to one byte past the cap so overflow is observable.
	if room := b.max - b.read + 1; int64(len(p)) > room {
		p = p[:room]
	}

	n, err := b.src.Read(p)
	b.read += int64(n)
	if b.read > b.max {
		b.tripped = true
		return 0, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}

	return n, err
}

func (b *cappedBody) Close() error {
	return b.src.Close()
}

func errBodyTooLarge(limit int64) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
		fmt.Sprintf("request body exceeds maximum allowed size of %d bytes", limit))
}

// parseSize converts a human-readable size such as "1M", "512K" or "2GB" to
// bytes. Unparseable or negative input falls back to 1 MB.
func parseSize(s string) int64 {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "B")

	var unit int64 = 1
	switch {
	case strings.HasSuffix(s, "K"):
		unit = 1 << 10
	case strings.HasSuffix(s, "M"):
		unit = 1 << 20
	case strings.HasSuffix(s, "G"):
		unit = 1 << 30
	}
	if unit > 1 {
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 1 << 20
	}
	return n * unit
}
