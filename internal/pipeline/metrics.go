// ABOUTME: Prometheus instrumentation stage and the /metrics exposition handler
// ABOUTME: Uses a private registry so tests and multiple servers never collide

package pipeline

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors exported by the server.
type Metrics struct {
	registry *prometheus.Registry

	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	inFlight     prometheus.Gauge
	capabilities *prometheus.GaugeVec
	rateLimited  prometheus.Counter
	authRejected prometheus.Counter
}

// knownPaths bounds label cardinality; everything else is reported as "other".
var knownPaths = map[string]bool{
	"/mcp":         true,
	"/healthz":     true,
	"/health":      true,
	"/health/deep": true,
	"/version":     true,
	"/_info":       true,
	"/metrics":     true,
}

// NewMetrics registers the server collectors plus the Go and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcp",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mcp",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mcp",
			Name:      "http_requests_in_flight",
			Help:      "Requests currently being served.",
		}),
		capabilities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mcp",
			Name:      "capabilities_registered",
			Help:      "Registered capabilities by kind.",
		}, []string{"kind"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mcp",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		authRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mcp",
			Name:      "auth_rejected_total",
			Help:      "Requests rejected by bearer authentication.",
		}),
	}
	reg.MustRegister(
		m.requests, m.duration, m.inFlight, m.capabilities, m.rateLimited, m.authRejected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SetCapabilities records how many capabilities of kind are registered.
func (m *Metrics) SetCapabilities(kind string, n int) {
	m.capabilities.WithLabelValues(kind).Set(float64(n))
}

// Stage instruments every request passing through it.
func (m *Metrics) Stage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if !knownPaths[path] {
			path = "other"
		}

		m.inFlight.Inc()
		defer m.inFlight.Dec()

		rec := newStatusRecorder(w)
		start := time.Now()
		next.ServeHTTP(rec, r)

		m.duration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		m.requests.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		switch rec.status {
		case http.StatusTooManyRequests:
			m.rateLimited.Inc()
		case http.StatusUnauthorized, http.StatusForbidden:
			m.authRejected.Inc()
		}
	})
}
