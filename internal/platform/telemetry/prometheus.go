package telemetry

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
)

var metricHelp = map[string]string{
	metricRequestsTotal:    "Total HTTP requests by method, route, and status.",
	metricRequestDuration:  "HTTP request duration in seconds.",
	metricRequestsInFlight: "HTTP requests currently being served.",
	metricRequestSize:      "HTTP request body size in bytes.",
	metricResponseSize:     "HTTP response body size in bytes.",
	metricOperations:       "Domain operations by resource and operation.",
	gaugeDBPoolActive:      "Acquired connections in the database pool.",
	gaugeDBPoolIdle:        "Idle connections in the database pool.",
	gaugeAssessments:       "Stored assessments in the default tenant.",
}

// PrometheusHandler serves the registry in Prometheus text exposition
// format. Series are emitted in sorted order so scrapes are diffable.
func (p *Provider) PrometheusHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		var b strings.Builder
		p.writeBuildInfo(&b)
		p.reg.expose(&b)
		return c.String(http.StatusOK, b.String())
	}
}

func (p *Provider) writeBuildInfo(b *strings.Builder) {
	res := p.Resource()
	fmt.Fprintf(b, "# HELP %s_build_info Build and deployment identity.\n", sanitizeName(p.cfg.ServiceName))
	fmt.Fprintf(b, "# TYPE %s_build_info gauge\n", sanitizeName(p.cfg.ServiceName))
	fmt.Fprintf(b, "%s_build_info{%s} 1\n\n", sanitizeName(p.cfg.ServiceName),
		Labels("service", res["service"], "version", res["version"], "environment", res["environment"]))
}

func sanitizeName(s string) string {
	return strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(s)
}

func (r *registry) expose(b *strings.Builder) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range sortedKeys(r.counters) {
		writeHeader(b, name, "counter")
		series := r.counters[name]
		for _, labels := range sortedKeys(series) {
			fmt.Fprintf(b, "%s%s %d\n", name, labelSuffix(labels), series[labels])
		}
		b.WriteByte('\n')
	}

	for _, name := range sortedKeys(r.gauges) {
		writeHeader(b, name, "gauge")
		fmt.Fprintf(b, "%s %d\n\n", name, r.gauges[name])
	}

	for _, name := range sortedKeys(r.histograms) {
		writeHeader(b, name, "histogram")
		series := r.histograms[name]
		bounds := r.bounds[name]
		for _, labels := range sortedKeys(series) {
			writeHistogram(b, name, labels, series[labels], bounds)
		}
		b.WriteByte('\n')
	}
}

func writeHeader(b *strings.Builder, name, typ string) {
	if help, ok := metricHelp[name]; ok {
		fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	}
	fmt.Fprintf(b, "# TYPE %s %s\n", name, typ)
}

func writeHistogram(b *strings.Builder, name, labels string, h *histogram, bounds []float64) {
	var cum uint64
	for i, bound := range bounds {
		cum += h.counts[i]
		fmt.Fprintf(b, "%s_bucket{%sle=\"%g\"} %d\n", name, labelPrefix(labels), bound, cum)
	}
	fmt.Fprintf(b, "%s_bucket{%sle=\"+Inf\"} %d\n", name, labelPrefix(labels), h.total)
	fmt.Fprintf(b, "%s_sum%s %g\n", name, labelSuffix(labels), h.sum)
	fmt.Fprintf(b, "%s_count%s %d\n", name, labelSuffix(labels), h.total)
}

func labelSuffix(labels string) string {
	if labels == "" {
		return ""
	}
	return "{" + labels + "}"
}

func labelPrefix(labels string) string {
	if labels == "" {
		return ""
	}
	return labels + ","
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
