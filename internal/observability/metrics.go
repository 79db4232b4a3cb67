package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Decision outcomes recorded by RecordDecision.
const (
	OutcomeAllowed         = "allowed"
	OutcomeDenied          = "denied"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeError           = "error"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	accessDecisions    *prometheus.CounterVec
	auditWriteFailures *prometheus.CounterVec
	sessionLookups     *prometheus.CounterVec
}

// NewMetrics initialises the registry and the base collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "observa_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "observa_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "observa_access_decisions_total",
		Help: "Access-control decisions by outcome and action.",
	}, []string{"outcome", "action"})
	auditFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "observa_audit_write_failures_total",
		Help: "Audit entries that could not be appended, by action.",
	}, []string{"action"})
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "observa_session_lookups_total",
		Help: "Session validations by result.",
	}, []string{"result"})
	registry.MustRegister(requests, duration, decisions, auditFailures, lookups)
	return &Metrics{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:      requests,
		requestDuration:    duration,
		accessDecisions:    decisions,
		auditWriteFailures: auditFailures,
		sessionLookups:     lookups,
	}
}

// Handler returns the http.Handler serving /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// RecordDecision counts one access decision.
func (m *Metrics) RecordDecision(outcome, action string) {
	if m == nil {
		return
	}
	if action == "" {
		action = "view"
	}
	m.accessDecisions.WithLabelValues(outcome, action).Inc()
}

// RecordAuditFailure counts an audit append that did not persist.
func (m *Metrics) RecordAuditFailure(action string) {
	if m == nil {
		return
	}
	m.auditWriteFailures.WithLabelValues(action).Inc()
}

// RecordSessionLookup counts one session validation by result (valid, missing, expired, inactive, error).
func (m *Metrics) RecordSessionLookup(result string) {
	if m == nil {
		return
	}
	m.sessionLookups.WithLabelValues(result).Inc()
}

// Registerer exposes the registry for additional collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
