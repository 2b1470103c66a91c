package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets  = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	checkDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
)

// Metrics holds all Prometheus metric instruments for the dashboard service.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Run lifecycle metrics
	RunStartsTotal      prometheus.Counter
	RunCompletionsTotal *prometheus.CounterVec
	RunFailuresTotal    prometheus.Counter
	RunStepDuration     *prometheus.HistogramVec
	RunsInFlight        prometheus.Gauge

	// Check backend metrics
	CheckRequestsTotal   *prometheus.CounterVec
	CheckRequestDuration prometheus.Histogram

	// Telemetry and overrides
	TelemetryEventsTotal *prometheus.CounterVec
	OverridesTotal       *prometheus.CounterVec
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kybdash_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kybdash_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),

		RunStartsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kybdash_run_starts_total",
			Help: "Total number of started check runs.",
		}),
		RunCompletionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kybdash_run_completions_total",
			Help: "Total number of completed check runs by risk band.",
		}, []string{"risk_band"}),
		RunFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kybdash_run_failures_total",
			Help: "Total number of failed check runs.",
		}),
		RunStepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kybdash_run_step_duration_seconds",
			Help:    "Simulated step duration in seconds.",
			Buckets: checkDurationBuckets,
		}, []string{"step_id"}),
		RunsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kybdash_runs_in_flight",
			Help: "Number of runs currently in flight.",
		}),

		CheckRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kybdash_check_requests_total",
			Help: "Total number of risk-check backend requests.",
		}, []string{"status"}),
		CheckRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kybdash_check_request_duration_seconds",
			Help:    "Risk-check backend request duration in seconds.",
			Buckets: checkDurationBuckets,
		}),

		TelemetryEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kybdash_telemetry_events_total",
			Help: "Total number of emitted telemetry events.",
		}, []string{"event"}),
		OverridesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kybdash_risk_band_overrides_total",
			Help: "Total number of manual risk-band overrides by new band.",
		}, []string{"risk_band"}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.RunStartsTotal,
		m.RunCompletionsTotal,
		m.RunFailuresTotal,
		m.RunStepDuration,
		m.RunsInFlight,
		m.CheckRequestsTotal,
		m.CheckRequestDuration,
		m.TelemetryEventsTotal,
		m.OverridesTotal,
	)

	return m
}

// --- Recording helpers ---

// RecordRunStart records the start of a run.
func (m *Metrics) RecordRunStart() {
	m.RunStartsTotal.Inc()
	m.RunsInFlight.Inc()
}

// RecordRunCompletion records a successful run completion.
func (m *Metrics) RecordRunCompletion(riskBand string) {
	m.RunCompletionsTotal.WithLabelValues(riskBand).Inc()
	m.RunsInFlight.Dec()
}

// RecordRunFailure records a failed run.
func (m *Metrics) RecordRunFailure() {
	m.RunFailuresTotal.Inc()
	m.RunsInFlight.Dec()
}

// RecordRunStep records the duration of one simulated step.
func (m *Metrics) RecordRunStep(stepID string, duration time.Duration) {
	m.RunStepDuration.WithLabelValues(stepID).Observe(duration.Seconds())
}

// RecordCheckRequest records a risk-check backend request.
func (m *Metrics) RecordCheckRequest(status int, duration time.Duration) {
	m.CheckRequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	m.CheckRequestDuration.Observe(duration.Seconds())
}

// RecordTelemetryEvent counts an emitted telemetry event.
func (m *Metrics) RecordTelemetryEvent(event string) {
	m.TelemetryEventsTotal.WithLabelValues(event).Inc()
}

// RecordOverride records a manual risk-band override.
func (m *Metrics) RecordOverride(riskBand string) {
	m.OverridesTotal.WithLabelValues(riskBand).Inc()
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics
// using chi's route pattern (not the actual URL path) to avoid label
// cardinality explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		pattern := routePattern(r)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(sw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture the status code.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}
