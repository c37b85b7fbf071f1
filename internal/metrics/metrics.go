// Package metrics exposes Prometheus collectors for the pipeline.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchAttemptsTotal     *prometheus.CounterVec
	documentsTotal         *prometheus.CounterVec
	bytesFetchedTotal      *prometheus.CounterVec
	activeWorkers          prometheus.Gauge
	rateLimitDelaysSeconds *prometheus.HistogramVec
	recordsAssembledTotal  *prometheus.CounterVec
	recordsDroppedTotal    *prometheus.CounterVec

	once sync.Once
)

// Init registers the collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_fetch_attempts_total",
				Help: "Fetch attempts, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		documentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_documents_total",
				Help: "Documents reaching a terminal state, labeled by source and status.",
			},
			[]string{"source", "status"},
		)

		bytesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_bytes_fetched_total",
				Help: "Payload bytes fetched, labeled by source.",
			},
			[]string{"source"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "corpus_active_workers",
				Help: "Workers currently executing a fetch.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "corpus_rate_limit_delays_seconds",
				Help:    "Rate limiter wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"source"},
		)

		recordsAssembledTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_records_assembled_total",
				Help: "Training records assembled, labeled by variant.",
			},
			[]string{"variant"},
		)

		recordsDroppedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_records_dropped_total",
				Help: "Training records dropped by validation, labeled by variant.",
			},
			[]string{"variant"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetchAttempt counts one attempt with the given outcome.
func ObserveFetchAttempt(source, outcome string) {
	if fetchAttemptsTotal != nil {
		fetchAttemptsTotal.WithLabelValues(source, outcome).Inc()
	}
}

// ObserveDocument counts one (entry, format) reaching a terminal status.
func ObserveDocument(source, status string, bytesFetched int) {
	if documentsTotal == nil {
		return
	}
	documentsTotal.WithLabelValues(source, status).Inc()
	if bytesFetched > 0 {
		bytesFetchedTotal.WithLabelValues(source).Add(float64(bytesFetched))
	}
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	if activeWorkers != nil {
		activeWorkers.Inc()
	}
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	if activeWorkers != nil {
		activeWorkers.Dec()
	}
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(source string, duration time.Duration) {
	if rateLimitDelaysSeconds != nil {
		rateLimitDelaysSeconds.WithLabelValues(source).Observe(duration.Seconds())
	}
}

// ObserveAssembled counts assembled records for a variant.
func ObserveAssembled(variant string, n int) {
	if recordsAssembledTotal != nil && n > 0 {
		recordsAssembledTotal.WithLabelValues(variant).Add(float64(n))
	}
}

// ObserveDropped counts validation-dropped records for a variant.
func ObserveDropped(variant string, n int) {
	if recordsDroppedTotal != nil && n > 0 {
		recordsDroppedTotal.WithLabelValues(variant).Add(float64(n))
	}
}
