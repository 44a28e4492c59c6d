package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	requestsTotal         *prometheus.CounterVec
	latencySeconds        *prometheus.HistogramVec
	errorsTotal           *prometheus.CounterVec
	gradeDerivationsTotal *prometheus.CounterVec
	gradeEventsTotal      *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unirec_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		latencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "unirec_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unirec_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		gradeDerivationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unirec_grade_derivations_total",
			Help: "Total number of grade derivation pipeline runs.",
		}, []string{"outcome"})

		gradeEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unirec_grade_events_total",
			Help: "Total number of grade lifecycle events broadcast.",
		}, []string{"type"})

		prometheus.MustRegister(requestsTotal, latencySeconds, errorsTotal, gradeDerivationsTotal, gradeEventsTotal)
	})
}

// Requests exposes the counter for API requests.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsTotal
}

// Latency exposes the latency histogram for API requests.
func Latency() *prometheus.HistogramVec {
	RegisterMetrics()
	return latencySeconds
}

// Errors exposes the counter for API error responses.
func Errors() *prometheus.CounterVec {
	RegisterMetrics()
	return errorsTotal
}

// GradeDerivations exposes the counter for grade derivation runs.
func GradeDerivations() *prometheus.CounterVec {
	RegisterMetrics()
	return gradeDerivationsTotal
}

// GradeEvents exposes the counter for broadcast grade events.
func GradeEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return gradeEventsTotal
}
