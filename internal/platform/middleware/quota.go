package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cardia/cardia/internal/platform/auth"
)

// QuotaPlan describes the request budget for a tier of API clients. A zero
// value on any dimension means that dimension is not enforced.
//
// Quotas are cost-weighted rather than counted per request: derivation
// endpoints consume more of the budget than plain reads, so a client that
// only runs batch previews exhausts its plan far sooner than one paging
// through stored assessments.
type QuotaPlan struct {
	Name          string `json:"name"`
	PerMinute     int    `json:"per_minute"`
	PerDay        int    `json:"per_day"`
	MaxConcurrent int    `json:"max_concurrent"`
}

// QuotaDecision is the outcome of a single Acquire call.
type QuotaDecision struct {
	OK         bool   `json:"ok"`
	Plan       string `json:"plan"`
	Limit      int    `json:"limit"`
	Remaining  int    `json:"remaining"`
	RetryAfter int    `json:"retry_after"`
}

// QuotaUsage is a point-in-time snapshot of a client's consumption.
type QuotaUsage struct {
	ClientID      string `json:"client_id"`
	Plan          string `json:"plan"`
	MinuteUsed    int    `json:"minute_used"`
	MinuteLimit   int    `json:"minute_limit"`
	DayUsed       int    `json:"day_used"`
	DayLimit      int    `json:"day_limit"`
	Inflight      int    `json:"inflight"`
	MaxConcurrent int    `json:"max_concurrent"`
}

// Endpoint costs. Derivation work dominates this service, so the budget
// charges previews and creates well above reads, and the batch endpoint
// at its full fan-out.
const (
	costRead         = 1
	costDerivation   = 5
	costBatchPreview = 25
)

// DefaultQuotaPlans returns the built-in plans. "standard" is the fallback
// for unassigned clients.
func DefaultQuotaPlans() []QuotaPlan {
	return []QuotaPlan{
		{Name: "standard", PerMinute: 120, PerDay: 20000, MaxConcurrent: 8},
		{Name: "clinic", PerMinute: 600, PerDay: 100000, MaxConcurrent: 32},
		{Name: "partner", PerMinute: 3000, PerDay: 0, MaxConcurrent: 128},
	}
}

// clientWindow tracks one client's consumption. All fields are guarded by
// the limiter mutex; windows reset lazily on the next acquire after expiry.
type clientWindow struct {
	minuteStart time.Time
	minuteUsed  int
	dayStart    time.Time
	dayUsed     int
	inflight    int
	lastSeen    time.Time
}

// QuotaLimiter enforces per-client cost-weighted quotas. Safe for concurrent
// use by parallel request handlers.
type QuotaLimiter struct {
	mu       sync.Mutex
	plans    map[string]QuotaPlan
	assigned map[string]string
	windows  map[string]*clientWindow
	now      func() time.Time
}

// NewQuotaLimiter creates a limiter pre-loaded with the default plans.
func NewQuotaLimiter() *QuotaLimiter {
	l := &QuotaLimiter{
		plans:    make(map[string]QuotaPlan),
		assigned: make(map[string]string),
		windows:  make(map[string]*clientWindow),
		now:      time.Now,
	}
	for _, p := range DefaultQuotaPlans() {
		l.plans[p.Name] = p
	}
	return l
}

// RegisterPlan adds or replaces a plan by name.
func (l *QuotaLimiter) RegisterPlan(p QuotaPlan) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.plans[p.Name] = p
}

// AssignPlan binds clientID to the named plan.
func (l *QuotaLimiter) AssignPlan(clientID, planName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.plans[planName]; !ok {
		return fmt.Errorf("quota plan %q not found", planName)
	}
	l.assigned[clientID] = planName
	return nil
}

// PlanFor returns the plan in effect for clientID, falling back to
// "standard" for unassigned clients and unknown assignments.
func (l *QuotaLimiter) PlanFor(clientID string) QuotaPlan {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.planForLocked(clientID)
}

func (l *QuotaLimiter) planForLocked(clientID string) QuotaPlan {
	if name, ok := l.assigned[clientID]; ok {
		if p, ok := l.plans[name]; ok {
			return p
		}
	}
	return l.plans["standard"]
}

// windowForLocked returns the client's window, creating and rolling it as
// needed. Caller holds l.mu.
func (l *QuotaLimiter) windowForLocked(clientID string, now time.Time) *clientWindow {
	w, ok := l.windows[clientID]
	if !ok {
		w = &clientWindow{minuteStart: now, dayStart: now}
		l.windows[clientID] = w
	}
	if now.Sub(w.minuteStart) >= time.Minute {
		w.minuteStart = now
		w.minuteUsed = 0
	}
	if now.Sub(w.dayStart) >= 24*time.Hour {
		w.dayStart = now
		w.dayUsed = 0
	}
	w.lastSeen = now
	return w
}

// Acquire charges cost units against clientID's plan. On success it returns
// an allowing decision and a release function that MUST be called when the
// request finishes; on denial the release function is a no-op.
func (l *QuotaLimiter) Acquire(clientID string, cost int) (QuotaDecision, func()) {
	if cost < 1 {
		cost = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	plan := l.planForLocked(clientID)
	w := l.windowForLocked(clientID, now)

	d := QuotaDecision{Plan: plan.Name, Limit: plan.PerMinute}

	if plan.MaxConcurrent > 0 && w.inflight >= plan.MaxConcurrent {
		d.Remaining = l.remainingLocked(plan, w)
		d.RetryAfter = 1
		return d, func() {}
	}
	if plan.PerMinute > 0 && w.minuteUsed+cost > plan.PerMinute {
		d.RetryAfter = ceilSeconds(w.minuteStart.Add(time.Minute).Sub(now))
		return d, func() {}
	}
	if plan.PerDay > 0 && w.dayUsed+cost > plan.PerDay {
		d.RetryAfter = ceilSeconds(w.dayStart.Add(24 * time.Hour).Sub(now))
		return d, func() {}
	}

	w.minuteUsed += cost
	w.dayUsed += cost
	w.inflight++

	d.OK = true
	d.Remaining = l.remainingLocked(plan, w)

	released := false
	return d, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if !released && w.inflight > 0 {
			w.inflight--
		}
		released = true
	}
}

// remainingLocked reports the minute budget left, or -1 when unmetered.
func (l *QuotaLimiter) remainingLocked(plan QuotaPlan, w *clientWindow) int {
	if plan.PerMinute <= 0 {
		return -1
	}
	r := plan.PerMinute - w.minuteUsed
	if r < 0 {
		r = 0
	}
	return r
}

// Usage returns a snapshot of clientID's consumption under its current plan.
func (l *QuotaLimiter) Usage(clientID string) QuotaUsage {
	l.mu.Lock()
	defer l.mu.Unlock()

	plan := l.planForLocked(clientID)
	w := l.windowForLocked(clientID, l.now())
	return QuotaUsage{
		ClientID:      clientID,
		Plan:          plan.Name,
		MinuteUsed:    w.minuteUsed,
		MinuteLimit:   plan.PerMinute,
		DayUsed:       w.dayUsed,
		DayLimit:      plan.PerDay,
		Inflight:      w.inflight,
		MaxConcurrent: plan.MaxConcurrent,
	}
}

// ResetClient discards clientID's consumption window. The plan assignment
// is kept.
func (l *QuotaLimiter) ResetClient(clientID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, clientID)
}

// StartCleanup drops windows idle for more than a day, checking every
// interval until ctx is cancelled. Runs in its own goroutine.
func (l *QuotaLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.mu.Lock()
				cutoff := l.now().Add(-24 * time.Hour)
				for id, w := range l.windows {
					if w.inflight == 0 && w.lastSeen.Before(cutoff) {
						delete(l.windows, id)
					}
				}
				l.mu.Unlock()
			}
		}
	}()
}

// requestCost maps a request to its quota cost. Batch previews are charged
// at their full fan-out; single derivations above reads; everything else
// at the base rate.
func requestCost(method, path string) int {
	if method != http.MethodPost {
		return costRead
	}
	switch {
	case strings.HasSuffix(path, "/assessments/preview/batch"):
		return costBatchPreview
	case strings.HasSuffix(path, "/assessments/preview"), strings.HasSuffix(path, "/assessments"):
		return costDerivation
	default:
		return costRead
	}
}

// quotaClientID resolves the identity a quota is charged to: API key,
// explicit client header, authenticated user, then client IP.
func quotaClientID(c echo.Context) string {
	if s, ok := c.Get("api_key_id").(string); ok && s != "" {
		return s
	}
	if h := c.Request().Header.Get("X-Client-ID"); h != "" {
		return h
	}
	if uid := auth.UserIDFromContext(c.Request().Context()); uid != "" {
		return uid
	}
	return c.RealIP()
}

// QuotaMiddleware enforces per-client quota plans. Denials return 429 with
// Retry-After; every response carries the client's minute budget in
// X-Quota-Limit and X-Quota-Remaining.
func QuotaMiddleware(l *QuotaLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			clientID := quotaClientID(c)
			cost := requestCost(req.Method, req.URL.Path)

			d, release := l.Acquire(clientID, cost)
			defer release()

			h := c.Response().Header()
			h.Set("X-Quota-Limit", strconv.Itoa(d.Limit))
			h.Set("X-Quota-Remaining", strconv.Itoa(d.Remaining))

			if !d.OK {
				h.Set("Retry-After", strconv.Itoa(d.RetryAfter))
				return echo.NewHTTPError(http.StatusTooManyRequests, "quota exceeded for plan "+d.Plan)
			}
			return next(c)
		}
	}
}

// ceilSeconds converts d to whole seconds, rounding up, minimum 1.
func ceilSeconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		return 1
	}
	return s
}

// QuotaHandler exposes admin endpoints for plan and client quota management.
type QuotaHandler struct {
	limiter *QuotaLimiter
}

// NewQuotaHandler creates a handler backed by the given limiter.
func NewQuotaHandler(l *QuotaLimiter) *QuotaHandler {
	return &QuotaHandler{limiter: l}
}

// RegisterRoutes mounts the quota admin endpoints on the given group.
func (h *QuotaHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/quotas/plans", h.ListPlans)
	g.PUT("/quotas/plans", h.UpsertPlan)
	g.GET("/quotas/clients/:id", h.ClientUsage)
	g.PUT("/quotas/clients/:id/plan", h.AssignClientPlan)
	g.DELETE("/quotas/clients/:id", h.ResetClient)
}

// ListPlans returns every registered plan.
func (h *QuotaHandler) ListPlans(c echo.Context) error {
	h.limiter.mu.Lock()
	plans := make([]QuotaPlan, 0, len(h.limiter.plans))
	for _, p := range h.limiter.plans {
		plans = append(plans, p)
	}
	h.limiter.mu.Unlock()
	return c.JSON(http.StatusOK, plans)
}

// UpsertPlan creates or replaces a plan from the request body.
func (h *QuotaHandler) UpsertPlan(c echo.Context) error {
	var plan QuotaPlan
	if err := c.Bind(&plan); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid plan: "+err.Error())
	}
	if plan.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "plan name is required")
	}
	h.limiter.RegisterPlan(plan)
	return c.JSON(http.StatusOK, plan)
}

// ClientUsage returns the consumption snapshot for one client.
func (h *QuotaHandler) ClientUsage(c echo.Context) error {
	return c.JSON(http.StatusOK, h.limiter.Usage(c.Param("id")))
}

// AssignClientPlan binds a client to a plan.
func (h *QuotaHandler) AssignClientPlan(c echo.Context) error {
	clientID := c.Param("id")
	var body struct {
		Plan string `json:"plan"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body: "+err.Error())
	}
	if err := h.limiter.AssignPlan(clientID, body.Plan); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{
		"client_id": clientID,
		"plan":      body.Plan,
	})
}

// ResetClient discards a client's consumption window.
func (h *QuotaHandler) ResetClient(c echo.Context) error {
	clientID := c.Param("id")
	h.limiter.ResetClient(clientID)
	return c.JSON(http.StatusOK, map[string]string{
		"client_id": clientID,
		"status":    "reset",
	})
}
