package telemetry

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// Span is one completed request record. Status is "ok" or "error";
// a 5xx response marks the span as error.
type Span struct {
	TraceID string            `json:"trace_id"`
	SpanID  string            `json:"span_id"`
	Name    string            `json:"name"`
	Start   time.Time         `json:"start"`
	End     time.Time         `json:"end"`
	Status  string            `json:"status"`
	Attrs   map[string]string `json:"attrs"`
}

// Duration is the span's wall-clock time.
func (s Span) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// spanRing is a fixed-capacity buffer. Writes past capacity overwrite
// the oldest entry.
type spanRing struct {
	mu   sync.Mutex
	buf  []Span
	next int
	full bool
}

func newSpanRing(capacity int) *spanRing {
	return &spanRing{buf: make([]Span, capacity)}
}

func (r *spanRing) append(s Span) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = s
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

// spans returns the buffered spans oldest first.
func (r *spanRing) spans() []Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		out := make([]Span, r.next)
		copy(out, r.buf[:r.next])
		return out
	}
	out := make([]Span, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	out = append(out, r.buf[:r.next]...)
	return out
}

// Spans returns a copy of the buffered spans, oldest first.
func (p *Provider) Spans() []Span {
	return p.spans.spans()
}

// TracingMiddleware records a Span per request. The span name uses the
// route pattern, not the raw path, so all IDs collapse into one series.
func (p *Provider) TracingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if p.cfg.DisableTracing {
				return next(c)
			}

			start := time.Now()
			err := next(c)
			if err != nil && !c.Response().Committed {
				c.Error(err)
			}
			end := time.Now()

			req := c.Request()
			route := c.Path()
			if route == "" {
				route = req.URL.Path
			}
			status := c.Response().Status

			attrs := map[string]string{
				"http.method":      req.Method,
				"http.route":       route,
				"http.status_code": strconv.Itoa(status),
				"http.target":      req.URL.Path,
			}
			if tenant, ok := c.Get("tenant_id").(string); ok && tenant != "" {
				attrs["tenant.id"] = tenant
			}

			outcome := "ok"
			if status >= 500 {
				outcome = "error"
			}

			p.spans.append(Span{
				TraceID: randomHex(16),
				SpanID:  randomHex(8),
				Name:    req.Method + " " + route,
				Start:   start,
				End:     end,
				Status:  outcome,
				Attrs:   attrs,
			})
			return err
		}
	}
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
