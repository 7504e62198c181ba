// Package metrics defines the Prometheus metric collectors used across the
// search service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestsInFlight  prometheus.Gauge
	SearchQueriesTotal    *prometheus.CounterVec
	SearchLatency         *prometheus.HistogramVec
	SearchResultsCount    prometheus.Histogram
	CacheHitsTotal        prometheus.Counter
	CacheMissesTotal      prometheus.Counter
	FeedLoadsTotal        *prometheus.CounterVec
	SnapshotRecords       *prometheus.GaugeVec
	AutocompleteSessions  prometheus.Gauge
	AutocompleteEvalTotal prometheus.Counter
	CircuitBreakerState   *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. Passing nil
// registers with the default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of matching records per search query, before pagination.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500, 1000},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of response cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of response cache misses.",
			},
		),
		FeedLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feed_loads_total",
				Help: "Data feed load attempts by source and status.",
			},
			[]string{"source", "status"},
		),
		SnapshotRecords: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "snapshot_records",
				Help: "Records in the active snapshot by kind.",
			},
			[]string{"kind"},
		),
		AutocompleteSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "autocomplete_sessions_active",
				Help: "Open autocomplete websocket sessions.",
			},
		),
		AutocompleteEvalTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "autocomplete_evaluations_total",
				Help: "Debounced autocomplete evaluations.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.FeedLoadsTotal,
		m.SnapshotRecords,
		m.AutocompleteSessions,
		m.AutocompleteEvalTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for g, or for the
// default gatherer when g is nil.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
