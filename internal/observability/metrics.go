package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	submissionsTotal      *prometheus.CounterVec
	storageFailuresTotal  *prometheus.CounterVec
	evaluationsInProgress prometheus.Gauge
	eventStreamClients    prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rubiai_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rubiai_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rubiai_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rubiai_submissions_total",
			Help: "Finished submissions by evaluation strategy and outcome.",
		}, []string{"strategy", "outcome"})

		storageFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rubiai_storage_failures_total",
			Help: "Storage read/write failures absorbed by fallbacks.",
		}, []string{"store", "operation"})

		evaluationsInProgress = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rubiai_evaluations_in_progress",
			Help: "Submissions currently being evaluated.",
		})

		eventStreamClients = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rubiai_event_stream_clients",
			Help: "Connected evaluation event stream sockets.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			submissionsTotal,
			storageFailuresTotal,
			evaluationsInProgress,
			eventStreamClients,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// Submissions exposes the counter of finished submissions.
func Submissions() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsTotal
}

// StorageFailures exposes the counter of absorbed storage failures.
func StorageFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return storageFailuresTotal
}

// EvaluationsInProgress exposes the gauge of running submissions.
func EvaluationsInProgress() prometheus.Gauge {
	RegisterMetrics()
	return evaluationsInProgress
}

// EventStreamClients exposes the gauge of connected event stream sockets.
func EventStreamClients() prometheus.Gauge {
	RegisterMetrics()
	return eventStreamClients
}
