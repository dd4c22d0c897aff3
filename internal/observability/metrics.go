package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets    = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	backendDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
)

// Metrics holds all Prometheus metric instruments for the client engine.
type Metrics struct {
	// Gateway HTTP metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Form protocol metrics.
	FormRequestsTotal     *prometheus.CounterVec
	FormRequestDuration   *prometheus.HistogramVec
	FormPendingQueueDepth prometheus.Gauge
	FormLogonsTotal       *prometheus.CounterVec

	// MI protocol metrics.
	MIRequestsTotal   *prometheus.CounterVec
	MIRequestDuration *prometheus.HistogramVec
	CSRFRefreshTotal  *prometheus.CounterVec

	// ION protocol metrics.
	IONRequestsTotal     *prometheus.CounterVec
	IONTokenRefreshTotal *prometheus.CounterVec
	IONRetriesTotal      prometheus.Counter

	// Translation cache metrics.
	TranslationCacheHitsTotal   prometheus.Counter
	TranslationCacheMissesTotal prometheus.Counter

	// Executor metrics.
	BackendCircuitBreakerState prometheus.Gauge
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridlink_http_requests_total",
			Help: "Total number of gateway HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gridlink_http_request_duration_seconds",
			Help:    "Gateway HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),

		FormRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridlink_form_requests_total",
			Help: "Total number of Form protocol requests.",
		}, []string{"command", "status"}),
		FormRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gridlink_form_request_duration_seconds",
			Help:    "Form protocol request duration in seconds.",
			Buckets: backendDurationBuckets,
		}, []string{"command"}),
		FormPendingQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridlink_form_pending_queue_depth",
			Help: "Number of Form requests queued while no session exists.",
		}),
		FormLogonsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridlink_form_logons_total",
			Help: "Total number of Form logon attempts.",
		}, []string{"status"}),

		MIRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridlink_mi_requests_total",
			Help: "Total number of MI transaction calls.",
		}, []string{"program", "transaction", "status"}),
		MIRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gridlink_mi_request_duration_seconds",
			Help:    "MI transaction duration in seconds.",
			Buckets: backendDurationBuckets,
		}, []string{"program"}),
		CSRFRefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridlink_csrf_refresh_total",
			Help: "Total number of CSRF token refresh calls.",
		}, []string{"status"}),

		IONRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridlink_ion_requests_total",
			Help: "Total number of ION API requests.",
		}, []string{"status"}),
		IONTokenRefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridlink_ion_token_refresh_total",
			Help: "Total number of ION OAuth context refreshes.",
		}, []string{"status"}),
		IONRetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridlink_ion_retries_total",
			Help: "Total number of transparent ION retries after 401.",
		}),

		TranslationCacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridlink_translation_cache_hits_total",
			Help: "Total translation cache hits.",
		}),
		TranslationCacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridlink_translation_cache_misses_total",
			Help: "Total translation cache misses.",
		}),

		BackendCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridlink_backend_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.FormRequestsTotal,
		m.FormRequestDuration,
		m.FormPendingQueueDepth,
		m.FormLogonsTotal,
		m.MIRequestsTotal,
		m.MIRequestDuration,
		m.CSRFRefreshTotal,
		m.IONRequestsTotal,
		m.IONTokenRefreshTotal,
		m.IONRetriesTotal,
		m.TranslationCacheHitsTotal,
		m.TranslationCacheMissesTotal,
		m.BackendCircuitBreakerState,
	)

	return m
}

// --- Recording helpers ---

// RecordHTTPRequest records gateway HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
}

// RecordFormRequest records one Form protocol round trip.
func (m *Metrics) RecordFormRequest(command, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.FormRequestsTotal.WithLabelValues(command, status).Inc()
	m.FormRequestDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordMIRequest records one MI transaction round trip.
func (m *Metrics) RecordMIRequest(program, transaction, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.MIRequestsTotal.WithLabelValues(program, transaction, status).Inc()
	m.MIRequestDuration.WithLabelValues(program).Observe(duration.Seconds())
}

// RecordCSRFRefresh records one security-token refresh attempt.
func (m *Metrics) RecordCSRFRefresh(status string) {
	if m == nil {
		return
	}
	m.CSRFRefreshTotal.WithLabelValues(status).Inc()
}

// RecordIONRequest records one ION API round trip.
func (m *Metrics) RecordIONRequest(status string, retried bool) {
	if m == nil {
		return
	}
	m.IONRequestsTotal.WithLabelValues(status).Inc()
	if retried {
		m.IONRetriesTotal.Inc()
	}
}

// RecordIONTokenRefresh records one OAuth context refresh attempt.
func (m *Metrics) RecordIONTokenRefresh(status string) {
	if m == nil {
		return
	}
	m.IONTokenRefreshTotal.WithLabelValues(status).Inc()
}

// SetPendingQueueDepth publishes the current pending-request queue depth.
func (m *Metrics) SetPendingQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.FormPendingQueueDepth.Set(float64(depth))
}

// RecordLogon records the outcome of one logon attempt.
func (m *Metrics) RecordLogon(status string) {
	if m == nil {
		return
	}
	m.FormLogonsTotal.WithLabelValues(status).Inc()
}

// RecordTranslationLookup records a translation cache hit or miss.
func (m *Metrics) RecordTranslationLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.TranslationCacheHitsTotal.Inc()
	} else {
		m.TranslationCacheMissesTotal.Inc()
	}
}

// SetBreakerState publishes the executor circuit breaker state.
func (m *Metrics) SetBreakerState(state int) {
	if m == nil {
		return
	}
	m.BackendCircuitBreakerState.Set(float64(state))
}
