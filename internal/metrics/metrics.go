// Package metrics exposes Prometheus instrumentation for search and model calls.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry with every caseindex collector.
type Metrics struct {
	registry *prometheus.Registry

	searchRequests  *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	modelCalls      *prometheus.CounterVec
	candidates      prometheus.Histogram
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	searchRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caseindex",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total search requests by outcome.",
		},
		[]string{"status"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "caseindex",
			Subsystem: "search",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each search stage in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)
	modelCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caseindex",
			Name:      "model_calls_total",
			Help:      "Calls to external model services by outcome.",
		},
		[]string{"service", "status"},
	)
	candidates := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "caseindex",
			Name:      "candidates",
			Help:      "Distribution of first-stage candidates per search.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34, 55},
		},
	)
	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caseindex",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "caseindex",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "caseindex",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
		},
	)

	registry.MustRegister(
		searchRequests,
		stageDuration,
		modelCalls,
		candidates,
		httpRequests,
		httpDuration,
		requestInFlight,
	)

	return &Metrics{
		registry:        registry,
		searchRequests:  searchRequests,
		stageDuration:   stageDuration,
		modelCalls:      modelCalls,
		candidates:      candidates,
		httpRequests:    httpRequests,
		httpDuration:    httpDuration,
		requestInFlight: requestInFlight,
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ModelCall counts one call to an external model service.
func (m *Metrics) ModelCall(service, status string) {
	if m == nil {
		return
	}
	m.modelCalls.WithLabelValues(service, status).Inc()
}

// SearchRequest counts one finished search.
func (m *Metrics) SearchRequest(status string) {
	if m == nil {
		return
	}
	m.searchRequests.WithLabelValues(status).Inc()
}

// ObserveStage records how long a search stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveCandidates records the first-stage candidate count.
func (m *Metrics) ObserveCandidates(n int) {
	if m == nil {
		return
	}
	m.candidates.Observe(float64(n))
}

// Middleware instruments HTTP handlers. routePattern maps a request to a
// low-cardinality path label.
func (m *Metrics) Middleware(routePattern func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			m.requestInFlight.Inc()
			defer m.requestInFlight.Dec()

			next.ServeHTTP(recorder, r)

			path := r.URL.Path
			if routePattern != nil {
				if p := routePattern(r); p != "" {
					path = p
				}
			}
			m.httpRequests.WithLabelValues(r.Method, path, strconv.Itoa(recorder.statusCode)).Inc()
			m.httpDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
