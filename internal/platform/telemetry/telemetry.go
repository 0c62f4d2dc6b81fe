// Package telemetry is the in-process observability layer: span records
// for every request, a metric registry (counters, gauges, histograms),
// and a Prometheus text exposition endpoint. It deliberately avoids an
// external metrics SDK; the registry is a mutex-guarded map and spans
// live in a bounded ring buffer.
package telemetry

import (
	"context"
	"time"
)

// Config configures a Provider. Zero values enable everything with a
// 512-span ring buffer.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// SpanBufferSize caps the tracing ring buffer. Oldest spans are
	// overwritten once the buffer is full.
	SpanBufferSize int

	DisableTracing bool
	DisableMetrics bool
}

const defaultSpanBufferSize = 512

// Provider owns the span buffer and the metric registry. One instance
// per process, created in main and shared by the middleware.
type Provider struct {
	cfg       Config
	spans     *spanRing
	reg       *registry
	startedAt time.Time
}

// New creates a Provider.
func New(cfg Config) *Provider {
	if cfg.SpanBufferSize <= 0 {
		cfg.SpanBufferSize = defaultSpanBufferSize
	}
	return &Provider{
		cfg:       cfg,
		spans:     newSpanRing(cfg.SpanBufferSize),
		reg:       newRegistry(),
		startedAt: time.Now(),
	}
}

// Shutdown releases the provider. Metrics live in memory only, so there
// is nothing to flush; the method exists to keep shutdown symmetric with
// the other platform components.
func (p *Provider) Shutdown(_ context.Context) error {
	return nil
}

// Resource returns the identity attributes attached to this process,
// surfaced on the metrics endpoint as an info-style series.
func (p *Provider) Resource() map[string]string {
	return map[string]string{
		"service":     p.cfg.ServiceName,
		"version":     p.cfg.ServiceVersion,
		"environment": p.cfg.Environment,
	}
}

// CountOperation increments the api_operations_total counter for one
// domain operation, e.g. ("assessments", "create").
func (p *Provider) CountOperation(resource, operation string) {
	p.reg.addCounter(metricOperations, Labels("resource", resource, "operation", operation), 1)
}

// HealthRecorder updates the slow-moving health gauges published by the
// background refresher in main.
type HealthRecorder struct {
	reg *registry
}

// Health returns the gauge recorder for pool and row-count metrics.
func (p *Provider) Health() *HealthRecorder {
	return &HealthRecorder{reg: p.reg}
}

func (h *HealthRecorder) SetDBPoolActive(n int64)     { h.reg.setGauge(gaugeDBPoolActive, n) }
func (h *HealthRecorder) SetDBPoolIdle(n int64)       { h.reg.setGauge(gaugeDBPoolIdle, n) }
func (h *HealthRecorder) SetAssessmentsTotal(n int64) { h.reg.setGauge(gaugeAssessments, n) }

// CounterValue returns the current value of a labeled counter series.
func (p *Provider) CounterValue(name, labels string) int64 {
	return p.reg.counterValue(name, labels)
}

// GaugeValue returns the current value of a gauge.
func (p *Provider) GaugeValue(name string) int64 {
	return p.reg.gaugeValue(name)
}
