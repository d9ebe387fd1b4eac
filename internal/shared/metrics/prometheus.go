// Package metrics exposes Prometheus metrics for the platform.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	claimsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claims_submitted_total",
			Help: "Total number of insurance claims submitted",
		},
		[]string{"category"},
	)

	claimStatusChanged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claim_status_changed_total",
			Help: "Total number of claim status transitions",
		},
		[]string{"from_status", "to_status"},
	)

	towRequestsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tow_requests_created_total",
			Help: "Total number of tow requests created",
		},
		[]string{"vehicle_type"},
	)

	towRequestsMatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tow_requests_matched_total",
			Help: "Total number of tow requests matched to an operator",
		},
	)

	incidentsReported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "incidents_reported_total",
			Help: "Total number of incident reports",
		},
		[]string{"priority"},
	)

	auditEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_entries_total",
			Help: "Total number of audit entries recorded",
		},
		[]string{"action"},
	)

	guardDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guard_decisions_total",
			Help: "Total number of route guard decisions",
		},
		[]string{"decision"},
	)

	roleResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "role_resolutions_total",
			Help: "Total number of role resolver lookups",
		},
		[]string{"outcome"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath caps path cardinality for metrics labels.
func normalizePath(path string) string {
	if len(path) > 100 {
		return "/api/..."
	}
	return path
}

// --- Business metric helpers ---

// ClaimSubmitted records a claim submission
func ClaimSubmitted(category string) {
	claimsSubmitted.WithLabelValues(category).Inc()
}

// ClaimStatusChanged records a claim status transition
func ClaimStatusChanged(fromStatus, toStatus string) {
	claimStatusChanged.WithLabelValues(fromStatus, toStatus).Inc()
}

// TowRequestCreated records a tow request creation
func TowRequestCreated(vehicleType string) {
	towRequestsCreated.WithLabelValues(vehicleType).Inc()
}

// TowRequestMatched records an operator match
func TowRequestMatched() {
	towRequestsMatched.Inc()
}

// IncidentReported records an incident report
func IncidentReported(priority string) {
	incidentsReported.WithLabelValues(priority).Inc()
}

// AuditEntryRecorded records an audit entry append
func AuditEntryRecorded(action string) {
	auditEntriesTotal.WithLabelValues(action).Inc()
}

// GuardDecision records a route guard outcome (allow or redirect)
func GuardDecision(decision string) {
	guardDecisions.WithLabelValues(decision).Inc()
}

// RoleResolution records a resolver lookup outcome (hit, miss, error)
func RoleResolution(outcome string) {
	roleResolutions.WithLabelValues(outcome).Inc()
}
