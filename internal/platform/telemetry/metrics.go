package telemetry

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// Metric names, already in Prometheus form.
const (
	metricRequestsTotal    = "http_requests_total"
	metricRequestDuration  = "http_request_duration_seconds"
	metricRequestsInFlight = "http_requests_in_flight"
	metricRequestSize      = "http_request_size_bytes"
	metricResponseSize     = "http_response_size_bytes"
	metricOperations       = "api_operations_total"

	gaugeDBPoolActive = "db_pool_active_connections"
	gaugeDBPoolIdle   = "db_pool_idle_connections"
	gaugeAssessments  = "assessments_stored_total"
)

var (
	durationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}
	sizeBuckets     = []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576}
)

// Labels renders key/value pairs as a Prometheus label body, e.g.
// Labels("method", "GET", "status", "200") => `method="GET",status="200"`.
// Pairs keep their given order so series keys stay stable across calls.
func Labels(kv ...string) string {
	var b []byte
	for i := 0; i+1 < len(kv); i += 2 {
		if len(b) > 0 {
			b = append(b, ',')
		}
		b = append(b, kv[i]...)
		b = append(b, '=')
		b = strconv.AppendQuote(b, kv[i+1])
	}
	return string(b)
}

// histogram holds per-bucket counts plus sum and total. counts has one
// extra slot for +Inf. Guarded by the registry mutex.
type histogram struct {
	bounds []float64
	counts []uint64
	sum    float64
	total  uint64
}

func newHist(bounds []float64) *histogram {
	return &histogram{bounds: bounds, counts: make([]uint64, len(bounds)+1)}
}

func (h *histogram) observe(v float64) {
	i := sort.SearchFloat64s(h.bounds, v)
	h.counts[i]++
	h.sum += v
	h.total++
}

// registry is the single metric store. One RWMutex over everything: the
// write rates here are per-request, not per-packet, so contention is not
// a concern and the invariants stay simple.
type registry struct {
	mu         sync.RWMutex
	counters   map[string]map[string]int64      // name -> label body -> value
	gauges     map[string]int64                 // name -> value
	histograms map[string]map[string]*histogram // name -> label body -> hist
	bounds     map[string][]float64
}

func newRegistry() *registry {
	return &registry{
		counters:   make(map[string]map[string]int64),
		gauges:     make(map[string]int64),
		histograms: make(map[string]map[string]*histogram),
		bounds:     make(map[string][]float64),
	}
}

func (r *registry) addCounter(name, labels string, delta int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	series, ok := r.counters[name]
	if !ok {
		series = make(map[string]int64)
		r.counters[name] = series
	}
	series[labels] += delta
}

func (r *registry) counterValue(name, labels string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[name][labels]
}

func (r *registry) setGauge(name string, v int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges[name] = v
}

func (r *registry) addGauge(name string, delta int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges[name] += delta
}

func (r *registry) gaugeValue(name string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gauges[name]
}

func (r *registry) observe(name, labels string, v float64, bounds []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	series, ok := r.histograms[name]
	if !ok {
		series = make(map[string]*histogram)
		r.histograms[name] = series
		r.bounds[name] = bounds
	}
	h, ok := series[labels]
	if !ok {
		h = newHist(bounds)
		series[labels] = h
	}
	h.observe(v)
}

// histogramStats returns the count and sum of one histogram series.
func (r *registry) histogramStats(name, labels string) (uint64, float64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h := r.histograms[name][labels]
	if h == nil {
		return 0, 0
	}
	return h.total, h.sum
}

// HistogramCount returns the observation count of one histogram series.
func (p *Provider) HistogramCount(name, labels string) uint64 {
	n, _ := p.reg.histogramStats(name, labels)
	return n
}

// HistogramSum returns the observation sum of one histogram series.
func (p *Provider) HistogramSum(name, labels string) float64 {
	_, s := p.reg.histogramStats(name, labels)
	return s
}

// MetricsMiddleware records request count, duration, in-flight count, and
// body sizes for every request.
func (p *Provider) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if p.cfg.DisableMetrics {
				return next(c)
			}

			p.reg.addGauge(metricRequestsInFlight, 1)
			start := time.Now()
			err := next(c)
			if err != nil && !c.Response().Committed {
				// Resolve the error now so the status label is real.
				c.Error(err)
			}
			elapsed := time.Since(start).Seconds()
			p.reg.addGauge(metricRequestsInFlight, -1)

			req := c.Request()
			route := c.Path()
			if route == "" {
				route = req.URL.Path
			}
			labels := Labels(
				"method", req.Method,
				"route", route,
				"status", strconv.Itoa(c.Response().Status),
			)

			p.reg.addCounter(metricRequestsTotal, labels, 1)
			p.reg.observe(metricRequestDuration, labels, elapsed, durationBuckets)
			if req.ContentLength > 0 {
				p.reg.observe(metricRequestSize, "", float64(req.ContentLength), sizeBuckets)
			}
			if size := c.Response().Size; size > 0 {
				p.reg.observe(metricResponseSize, "", float64(size), sizeBuckets)
			}
			return err
		}
	}
}
