package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Actor platform metrics
	ActorCalls    *prometheus.CounterVec
	ActorDuration *prometheus.HistogramVec
	ActorFailures *prometheus.CounterVec
	ActorRetries  *prometheus.CounterVec

	// Fetch pipeline metrics
	BrandCacheLookups *prometheus.CounterVec
	BrandCacheWrites  *prometheus.CounterVec
	FetchOutcomes     *prometheus.CounterVec
	FetchDuration     *prometheus.HistogramVec
	RecordsSkipped    *prometheus.CounterVec
	SearchHistoryHits *prometheus.CounterVec
}

// New registers all collectors with reg. Pass prometheus.DefaultRegisterer in
// the server and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		ActorCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actor_calls_total",
				Help: "Total number of actor platform calls",
			},
			[]string{"operation", "status"},
		),

		ActorDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "actor_call_duration_seconds",
				Help:    "Actor platform call duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"operation"},
		),

		ActorFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actor_failures_total",
				Help: "Total number of classified actor platform failures",
			},
			[]string{"operation", "error_kind"},
		),

		ActorRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actor_retries_total",
				Help: "Total number of retried actor platform calls",
			},
			[]string{"operation", "error_kind"},
		),

		BrandCacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brand_cache_lookups_total",
				Help: "Brand cache lookups by result",
			},
			[]string{"provider", "result"},
		),

		BrandCacheWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brand_cache_writes_total",
				Help: "Brand cache save attempts by result",
			},
			[]string{"provider", "result"},
		),

		FetchOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetch_outcomes_total",
				Help: "Fetch-by-brand outcomes by provenance or error kind",
			},
			[]string{"provider", "outcome"},
		),

		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fetch_duration_seconds",
				Help:    "End-to-end fetch-by-brand duration in seconds",
				Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"provider"},
		),

		RecordsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "normalizer_records_skipped_total",
				Help: "Raw records that could not be normalized",
			},
			[]string{"provider", "reason"},
		),

		SearchHistoryHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_history_lookups_total",
				Help: "Search history lookups by result",
			},
			[]string{"provider", "result"},
		),
	}
}

// HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Actor call metrics
func (m *Metrics) RecordActorCall(operation, status string, duration time.Duration) {
	m.ActorCalls.WithLabelValues(operation, status).Inc()
	m.ActorDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// Actor failure metrics
func (m *Metrics) RecordActorFailure(operation, kind string) {
	m.ActorFailures.WithLabelValues(operation, kind).Inc()
}

func (m *Metrics) RecordActorRetry(operation, kind string) {
	m.ActorRetries.WithLabelValues(operation, kind).Inc()
}

func (m *Metrics) RecordBrandCacheLookup(provider string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.BrandCacheLookups.WithLabelValues(provider, result).Inc()
}

func (m *Metrics) RecordBrandCacheWrite(provider, result string) {
	m.BrandCacheWrites.WithLabelValues(provider, result).Inc()
}

// Fetch outcome metrics; outcome is a brand source or an error kind
func (m *Metrics) RecordFetch(provider, outcome string, duration time.Duration) {
	m.FetchOutcomes.WithLabelValues(provider, outcome).Inc()
	m.FetchDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func (m *Metrics) RecordSkippedRecord(provider, reason string) {
	m.RecordsSkipped.WithLabelValues(provider, reason).Inc()
}

func (m *Metrics) RecordSearchHistoryLookup(provider string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.SearchHistoryHits.WithLabelValues(provider, result).Inc()
}

// HTTP requests in flight counter
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// HTTP requests in flight counter
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}
