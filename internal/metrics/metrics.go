// Package metrics exposes Prometheus collectors for the card service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cardGenerationsTotal        *prometheus.CounterVec
	cardGenerationSeconds       prometheus.Histogram
	acquisitionAttemptsTotal    *prometheus.CounterVec
	acquisitionDurationSeconds  *prometheus.HistogramVec
	exportAttemptsTotal         *prometheus.CounterVec
	screenshotFallbackSwapTotal prometheus.Counter
	httpRequestsTotal           *prometheus.CounterVec
	httpRequestDurationSeconds  *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		cardGenerationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "card_generations_total",
				Help: "Total number of card generation attempts, labeled by terminal status.",
			},
			[]string{"status"},
		)

		cardGenerationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "card_generation_duration_seconds",
				Help:    "Histogram of end-to-end card generation latencies.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		)

		acquisitionAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "card_acquisition_attempts_total",
				Help: "Total asset acquisition attempts, labeled by asset, source, and outcome.",
			},
			[]string{"asset", "source", "outcome"},
		)

		acquisitionDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "card_acquisition_duration_seconds",
				Help:    "Histogram of per-asset acquisition latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"asset"},
		)

		exportAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "card_export_attempts_total",
				Help: "Total image export attempts, labeled by format, variant, and outcome.",
			},
			[]string{"format", "variant", "outcome"},
		)

		screenshotFallbackSwapTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "card_screenshot_fallback_swaps_total",
				Help: "Times the render surface swapped from the primary to the backup screenshot source.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveGeneration records one finished generation attempt.
func ObserveGeneration(status string, duration time.Duration) {
	cardGenerationsTotal.WithLabelValues(status).Inc()
	cardGenerationSeconds.Observe(duration.Seconds())
}

// ObserveAcquisition increments the attempt counter for one asset source.
func ObserveAcquisition(asset, source, outcome string) {
	acquisitionAttemptsTotal.WithLabelValues(asset, source, outcome).Inc()
}

// ObserveAcquisitionDuration records how long one asset acquisition took.
func ObserveAcquisitionDuration(asset string, duration time.Duration) {
	acquisitionDurationSeconds.WithLabelValues(asset).Observe(duration.Seconds())
}

// ObserveExport increments the export attempt counter.
func ObserveExport(format, variant, outcome string) {
	exportAttemptsTotal.WithLabelValues(format, variant, outcome).Inc()
}

// ObserveFallbackSwap counts a primary-to-backup screenshot swap.
func ObserveFallbackSwap() {
	screenshotFallbackSwapTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
