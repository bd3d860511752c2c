// Package metrics provides the centralized Prometheus metrics registry for the shin service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Solve outcomes
const (
	OutcomeConverged  = "converged"
	OutcomeCapped     = "capped"
	OutcomeNonFinite  = "non_finite"
	OutcomeClosedForm = "closed_form"
)

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	SolvesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shin",
		Name:      "solves_total",
		Help:      "Total number of Shin solves by outcome",
	}, []string{"outcome"})
	RacesDemarginedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shin",
		Name:      "races_demargined_total",
		Help:      "Total number of stored races de-margined",
	}, []string{"status"})
	APIRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shin",
		Name:      "api_requests_total",
		Help:      "Total number of API requests by path and status code",
	}, []string{"path", "code"})
)

// Gauge metrics
var (
	LastZ = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "shin",
		Name:      "last_z",
		Help:      "Most recent finite insider trading fraction",
	})
	CacheHitRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "shin",
		Name:      "cache_hit_ratio",
		Help:      "Result cache hit ratio",
	})
)

// Histogram metrics
var (
	SolveIterations = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "shin",
		Name:      "solve_iterations",
		Help:      "Reported iteration count per solve",
		Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
	SolveDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "shin",
		Name:      "solve_duration_seconds",
		Help:      "Duration of Shin solves in seconds",
		Buckets:   []float64{1e-6, 5e-6, 1e-5, 5e-5, 1e-4, 5e-4, 1e-3, 1e-2},
	})
	APIRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "shin",
		Name:      "api_request_duration_seconds",
		Help:      "Latency of API requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"path"})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(SolvesTotal)
		registry.MustRegister(RacesDemarginedTotal)
		registry.MustRegister(APIRequestsTotal)

		registry.MustRegister(LastZ)
		registry.MustRegister(CacheHitRatio)

		registry.MustRegister(SolveIterations)
		registry.MustRegister(SolveDuration)
		registry.MustRegister(APIRequestDuration)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return InitRegistry()
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordSolve records a completed solve. z is only exported when finite.
func RecordSolve(outcome string, z float64, iterations int, durationSeconds float64) {
	SolvesTotal.WithLabelValues(outcome).Inc()
	SolveIterations.Observe(float64(iterations))
	SolveDuration.Observe(durationSeconds)
	if outcome != OutcomeNonFinite {
		LastZ.Set(z)
	}
}

// RecordRaceDemargined records a stored race processed by the service.
func RecordRaceDemargined(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	RacesDemarginedTotal.WithLabelValues(status).Inc()
}

// RecordAPIRequest records a served API request.
func RecordAPIRequest(path string, code int, durationSeconds float64) {
	APIRequestsTotal.WithLabelValues(path, strconv.Itoa(code)).Inc()
	APIRequestDuration.WithLabelValues(path).Observe(durationSeconds)
}

// UpdateCacheHitRatio updates the cache hit ratio gauge.
func UpdateCacheHitRatio(ratio float64) {
	CacheHitRatio.Set(ratio)
}
