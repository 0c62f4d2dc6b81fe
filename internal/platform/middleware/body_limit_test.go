package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

// runBodyLimit sends req through mw into a handler that drains the body,
// reporting whether the handler ran.
func runBodyLimit(t *testing.T, mw echo.MiddlewareFunc, req *http.Request) (bool, error) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	reached := false
	err := mw(func(c echo.Context) error {
		if _, err := io.ReadAll(c.Request().Body); err != nil {
			return err
		}
		reached = true
		return c.NoContent(http.StatusOK)
	})(c)
	return reached, err
}

func want413(t *testing.T, err error) *echo.HTTPError {
	t.Helper()
	if err == nil {
		t.Fatal("want 413 error, got nil")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("error type = %T, want *echo.HTTPError", err)
	}
	if httpErr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want %d", httpErr.Code, http.StatusRequestEntityTooLarge)
	}
	return httpErr
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1M", 1 << 20},
		{"10M", 10 << 20},
		{"1MB", 1 << 20},
		{"512K", 512 << 10},
		{"2G", 2 << 30},
		{"2GB", 2 << 30},
		{"4096", 4096},
		{"100B", 100},
		{" 2M ", 2 << 20},
		{"1m", 1 << 20},
		{"", 1 << 20},
		{"lots", 1 << 20},
		{"-1M", 1 << 20},
	}

	for _, tt := range tests {
		if got := parseSize(tt.in); got != tt.want {
			t.Errorf("parseSize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestBodyLimit_PassesSmallBody(t *testing.T) {
	body := strings.NewReader(`{"patient_id":"p-1","record":{"age":50}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assessments", body)

	reached, err := runBodyLimit(t, BodyLimit("1M", "10M"), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reached {
		t.Error("handler did not run")
	}
}

func TestBodyLimit_RejectsByDeclaredLength(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 2048)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assessments", bytes.NewReader(payload))

	reached, err := runBodyLimit(t, BodyLimit("1K", "10M"), req)
	httpErr := want413(t, err)
	if reached {
		t.Error("handler ran despite oversize body")
	}

	msg, _ := httpErr.Message.(string)
	if !strings.Contains(msg, "1024") {
		t.Errorf("message = %q, want the limit named", msg)
	}
}

func TestBodyLimit_BatchRouteGetsBatchLimit(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 2048)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assessments/preview/batch", bytes.NewReader(payload))

	// 2 KB clears the 10M batch cap even though it exceeds the 1K default.
	reached, err := runBodyLimit(t, BodyLimit("1K", "10M"), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reached {
		t.Error("handler did not run")
	}
}

func TestBodyLimit_BatchLimitOnlyForPost(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 2048)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/assessments/preview/batch", bytes.NewReader(payload))

	_, err := runBodyLimit(t, BodyLimit("1K", "10M"), req)
	want413(t, err)
}

func TestBodyLimit_RejectsBatchOverBatchLimit(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 2048)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assessments/preview/batch", bytes.NewReader(payload))

	_, err := runBodyLimit(t, BodyLimit("512", "1K"), req)
	want413(t, err)
}

func TestBodyLimit_NoBodyPassesThrough(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/assessments", nil)

	reached, err := runBodyLimit(t, BodyLimit("1M", "10M"), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reached {
		t.Error("handler did not run")
	}
}

func TestBodyLimit_CatchesUndeclaredLengthMidRead(t *testing.T) {
	payload := bytes.Repeat([]byte("a"), 1024)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assessments", bytes.NewReader(payload))
	req.ContentLength = -1

	reached, err := runBodyLimit(t, BodyLimit("512", "10M"), req)
	want413(t, err)
	if reached {
		t.Error("handler completed despite oversize body")
	}
}

func TestCappedBody_StaysTrippedAfterOverflow(t *testing.T) {
	src := io.NopCloser(strings.NewReader("0123456789"))
	body := &cappedBody{src: src, max: 4}

	if _, err := io.ReadAll(body); err == nil {
		t.Fatal("want error reading past cap")
	}

	buf := make([]byte, 4)
	if _, err := body.Read(buf); err == nil {
		t.Error("want error on read after trip")
	}
}
