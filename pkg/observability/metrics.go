package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Decision label values for authorization metrics.
const (
	DecisionAllow   = "allow"
	DecisionDeny    = "deny"
	DecisionInvalid = "invalid"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	AuthzDecisionsTotal   *prometheus.CounterVec
	AuthzDecisionDuration *prometheus.HistogramVec

	// Org tree cache metrics
	TreeRefreshTotal *prometheus.CounterVec
	TreeUnits        prometheus.Gauge

	// Identity resolution metrics
	IdentityLookupsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics on a fresh
// registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "charhub_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "charhub_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "charhub_authz_decisions_total",
				Help: "Authorization decisions by resource, operation and outcome",
			},
			[]string{"resource", "operation", "decision"},
		),
		AuthzDecisionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "charhub_authz_decision_duration_seconds",
				Help:    "Authorization decision latency in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
			},
			[]string{"resource", "operation"},
		),
		TreeRefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "charhub_orgtree_refresh_total",
				Help: "Org tree cache refreshes by result",
			},
			[]string{"result"},
		),
		TreeUnits: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "charhub_orgtree_units",
				Help: "Number of org units in the cached tree",
			},
		),
		IdentityLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "charhub_identity_lookups_total",
				Help: "Identity resolutions by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthzDecisionsTotal,
		m.AuthzDecisionDuration,
		m.TreeRefreshTotal,
		m.TreeUnits,
		m.IdentityLookupsTotal,
	)
	return m
}

// Handler returns the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordDecision counts one authorization decision.
func (m *Metrics) RecordDecision(resource, operation, decision string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.AuthzDecisionsTotal.WithLabelValues(resource, operation, decision).Inc()
	m.AuthzDecisionDuration.WithLabelValues(resource, operation).Observe(elapsed.Seconds())
}

// RecordIdentityLookup counts one identity resolution by result.
func (m *Metrics) RecordIdentityLookup(result string) {
	if m == nil {
		return
	}
	m.IdentityLookupsTotal.WithLabelValues(result).Inc()
}

// InstrumentHandler wraps an HTTP handler with request counting and timing.
// The path label uses the route template, not the raw URL, to bound
// cardinality.
func (m *Metrics) InstrumentHandler(routePath string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, routePath, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, routePath).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
