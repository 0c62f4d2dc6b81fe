package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func runTimeout(t *testing.T, limit time.Duration, handler echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/assessments", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return rec, RequestTimeout(limit)(handler)(c)
}

func TestRequestTimeout_FastHandlerSeesDeadline(t *testing.T) {
	rec, err := runTimeout(t, 30*time.Second, func(c echo.Context) error {
		deadline, ok := c.Request().Context().Deadline()
		if !ok {
			t.Error("request context has no deadline")
		} else if until := time.Until(deadline); until > 30*time.Second || until < 29*time.Second {
			t.Errorf("deadline %v away, want about 30s", until)
		}
		return c.String(http.StatusOK, "ok")
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequestTimeout_Returns504OnExpiry(t *testing.T) {
	rec, err := runTimeout(t, 40*time.Millisecond, func(c echo.Context) error {
		select {
		case <-time.After(5 * time.Second):
			return c.String(http.StatusOK, "ok")
		case <-c.Request().Context().Done():
			return c.Request().Context().Err()
		}
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusGatewayTimeout)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if body["message"] != "request processing exceeded the allowed time limit" {
		t.Errorf("message = %q", body["message"])
	}
}

func TestRequestTimeout_CommittedResponseLeftAlone(t *testing.T) {
	rec, err := runTimeout(t, 40*time.Millisecond, func(c echo.Context) error {
		if err := c.String(http.StatusOK, "partial"); err != nil {
			return err
		}
		time.Sleep(200 * time.Millisecond)
		return nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want committed %d untouched", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "partial" {
		t.Errorf("body = %q, want \"partial\"", rec.Body.String())
	}
}

func TestRequestTimeout_HandlerErrorPassesThrough(t *testing.T) {
	_, err := runTimeout(t, 5*time.Second, func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	})

	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("error type = %T, want *echo.HTTPError", err)
	}
	if httpErr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", httpErr.Code, http.StatusNotFound)
	}
}
