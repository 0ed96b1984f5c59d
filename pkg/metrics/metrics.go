package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Assignment metrics
	AssignmentsTotal    *prometheus.CounterVec
	AssignmentConflicts *prometheus.CounterVec
	AssignmentFailures  *prometheus.CounterVec

	// Access metrics
	PermissionDenied *prometheus.CounterVec
	LoginAttempts    *prometheus.CounterVec

	// Database metrics
	DBConnections *prometheus.GaugeVec

	// Cache metrics
	CacheEntriesPurged prometheus.Counter
}

// New creates a Metrics instance registered on reg. A nil reg means the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		HTTPResponseSize: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 5000, 10000, 50000, 100000, 500000, 1000000},
			},
			[]string{"method", "path"},
		),

		AssignmentsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lead_assignments_total",
				Help: "Total number of lead assignments created",
			},
			[]string{"type", "path"}, // auto/manual/transfer, rule/rule_fallback/system_fallback/manual
		),
		AssignmentConflicts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lead_assignment_conflicts_total",
				Help: "Conditional writes lost to a concurrent assignment",
			},
			[]string{"operation"},
		),
		AssignmentFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lead_assignment_failures_total",
				Help: "Assignment operations that returned an error",
			},
			[]string{"operation", "code"},
		),

		PermissionDenied: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rbac_permission_denied_total",
				Help: "Requests refused by role checks",
			},
			[]string{"role", "resource", "action"},
		),
		LoginAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "login_attempts_total",
				Help: "Total number of login attempts",
			},
			[]string{"status"}, // success, failed
		),

		DBConnections: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "db_connections",
				Help: "Database connections by state",
			},
			[]string{"state"}, // open, in_use, idle
		),

		CacheEntriesPurged: f.NewCounter(prometheus.CounterOpts{
			Name: "cache_entries_purged_total",
			Help: "Expired in-memory cache entries removed by the purge job",
		}),
	}
}

// Middleware creates an Echo middleware for Prometheus metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			err := next(c)
			if err != nil {
				// Let echo write the response so the recorded status is final.
				c.Error(err)
			}

			// Route pattern, not the raw path, keeps label cardinality bounded.
			path := c.Path()
			status := strconv.Itoa(c.Response().Status)
			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, status).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, status).Observe(time.Since(start).Seconds())
			m.HTTPResponseSize.WithLabelValues(req.Method, path).Observe(float64(c.Response().Size))

			return nil
		}
	}
}

// RecordAssignment counts a created assignment by type and selection path.
func (m *Metrics) RecordAssignment(assignmentType, path string) {
	m.AssignmentsTotal.WithLabelValues(assignmentType, path).Inc()
}

// RecordAssignmentConflict counts a lost conditional write.
func (m *Metrics) RecordAssignmentConflict(operation string) {
	m.AssignmentConflicts.WithLabelValues(operation).Inc()
}

// RecordAssignmentFailure counts an assignment operation that failed with code.
func (m *Metrics) RecordAssignmentFailure(operation, code string) {
	m.AssignmentFailures.WithLabelValues(operation, code).Inc()
}

// RecordPermissionDenied counts a request refused by the role gate.
func (m *Metrics) RecordPermissionDenied(role, resource, action string) {
	m.PermissionDenied.WithLabelValues(role, resource, action).Inc()
}

// RecordLoginAttempt increments login attempts counter
func (m *Metrics) RecordLoginAttempt(success bool) {
	status := "failed"
	if success {
		status = "success"
	}
	m.LoginAttempts.WithLabelValues(status).Inc()
}

// UpdateDBConnections sets the connection pool gauges.
func (m *Metrics) UpdateDBConnections(open, inUse, idle int) {
	m.DBConnections.WithLabelValues("open").Set(float64(open))
	m.DBConnections.WithLabelValues("in_use").Set(float64(inUse))
	m.DBConnections.WithLabelValues("idle").Set(float64(idle))
}

// RecordCachePurge adds n purged entries.
func (m *Metrics) RecordCachePurge(n int) {
	m.CacheEntriesPurged.Add(float64(n))
}
