// Package metrics exposes Prometheus collectors for the ingestion service.
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
	ingestItemsTotal        *prometheus.CounterVec
	fetchRequestsTotal      *prometheus.CounterVec
	fetchRetriesTotal       prometheus.Counter
	cryResolutionsTotal     *prometheus.CounterVec
	fetchThrottleSecs       prometheus.Histogram
	ingestActiveWorkers     prometheus.Gauge
	ingestItemDurationsSecs prometheus.Histogram
	ingestRunsTotal         *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		ingestItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_items_total",
				Help: "Total number of catalog items processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		fetchRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_fetch_requests_total",
				Help: "Total number of upstream HTTP requests, labeled by status class.",
			},
			[]string{"status_class"},
		)

		fetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_fetch_retries_total",
				Help: "Total number of retried upstream HTTP requests.",
			},
		)

		fetchThrottleSecs = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingest_fetch_throttle_seconds",
				Help:    "Histogram of delays introduced by the per-host rate limiter.",
				Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5},
			},
		)

		cryResolutionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_cry_resolutions_total",
				Help: "Total number of cry resolutions, labeled by outcome (hit, miss, cached).",
			},
			[]string{"outcome"},
		)

		ingestActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ingest_active_workers",
				Help: "Number of workers currently processing a catalog item.",
			},
		)

		ingestItemDurationsSecs = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingest_item_duration_seconds",
				Help:    "Histogram of per-item processing latencies.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		)

		ingestRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_runs_total",
				Help: "Total number of ingestion runs, labeled by kind and status.",
			},
			[]string{"kind", "status"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveItem records the outcome and duration of one processed item.
func ObserveItem(outcome string, duration time.Duration) {
	if ingestItemsTotal == nil {
		return
	}
	ingestItemsTotal.WithLabelValues(outcome).Inc()
	ingestItemDurationsSecs.Observe(duration.Seconds())
}

// ObserveFetch increments the fetch counter for the given status code.
// Code 0 denotes a network-level failure.
func ObserveFetch(code int) {
	if fetchRequestsTotal == nil {
		return
	}
	fetchRequestsTotal.WithLabelValues(classifyStatus(code)).Inc()
}

// ObserveFetchRetry increments the retry counter.
func ObserveFetchRetry() {
	if fetchRetriesTotal == nil {
		return
	}
	fetchRetriesTotal.Inc()
}

// ObserveThrottle records a delay imposed by the per-host rate limiter.
func ObserveThrottle(delay time.Duration) {
	if fetchThrottleSecs == nil {
		return
	}
	fetchThrottleSecs.Observe(delay.Seconds())
}

// ObserveCryResolution increments the cry resolution counter.
func ObserveCryResolution(outcome string) {
	if cryResolutionsTotal == nil {
		return
	}
	cryResolutionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRun increments the run counter for the given kind and status.
func ObserveRun(kind, status string) {
	if ingestRunsTotal == nil {
		return
	}
	ingestRunsTotal.WithLabelValues(kind, status).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	if ingestActiveWorkers == nil {
		return
	}
	ingestActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	if ingestActiveWorkers == nil {
		return
	}
	ingestActiveWorkers.Dec()
}

func classifyStatus(code int) string {
	switch {
	case code == 0:
		return "network_error"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "other"
	}
}
