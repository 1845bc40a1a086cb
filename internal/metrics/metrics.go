// Package metrics exposes Prometheus collectors for the scraper.
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
	scraperFetchesTotal        *prometheus.CounterVec
	scraperFetchDuration       *prometheus.HistogramVec
	scraperDocumentsTotal      *prometheus.CounterVec
	scraperThrottleDelay       prometheus.Gauge
	scraperLedgerEntries       prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Document outcomes recorded by ObserveDocument.
const (
	OutcomeDiscovered = "discovered"
	OutcomeDropped    = "dropped"
	OutcomeFault      = "fault"
	OutcomeUploaded   = "uploaded"
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scraperFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_fetches_total",
				Help: "Total number of site requests, labeled by method and status code.",
			},
			[]string{"method", "code"},
		)

		scraperFetchDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_fetch_duration_seconds",
				Help:    "Histogram of site request latencies, labeled by method.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"method"},
		)

		scraperDocumentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_documents_total",
				Help: "Total number of documents, labeled by pipeline outcome and stage.",
			},
			[]string{"outcome", "stage"},
		)

		scraperThrottleDelay = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scraper_throttle_delay_seconds",
				Help: "Current delay between two site requests.",
			},
		)

		scraperLedgerEntries = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scraper_ledger_entries",
				Help: "Number of entries held by the event ledger.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of status server requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of status server latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one site request. A zero code means no response was received.
func ObserveFetch(method string, code int, duration time.Duration) {
	Init()
	scraperFetchesTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	scraperFetchDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// ObserveDocument records a document outcome.
func ObserveDocument(outcome, stage string) {
	Init()
	scraperDocumentsTotal.WithLabelValues(outcome, stage).Inc()
}

// SetThrottleDelay publishes the current throttle delay.
func SetThrottleDelay(delay time.Duration) {
	Init()
	scraperThrottleDelay.Set(delay.Seconds())
}

// SetLedgerEntries publishes the ledger size.
func SetLedgerEntries(n int) {
	Init()
	scraperLedgerEntries.Set(float64(n))
}

// ObserveHTTPRequest increments the status server request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
