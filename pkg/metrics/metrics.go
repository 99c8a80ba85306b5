// Package metrics defines the Prometheus metric collectors used across the
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	ChatRepliesTotal     *prometheus.CounterVec
	MatchQueriesTotal    *prometheus.CounterVec
	MatchLatency         prometheus.Histogram
	MatchConfidence      prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CorpusRebuildsTotal  *prometheus.CounterVec
	CorpusDiseases       prometheus.Gauge
	CorpusVocabulary     prometheus.Gauge
	OracleCallsTotal     *prometheus.CounterVec
	OracleCircuitState   prometheus.Gauge
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
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
		ChatRepliesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_replies_total",
				Help: "Total chat replies by answering strategy (match, lookup, oracle, default).",
			},
			[]string{"strategy"},
		),
		MatchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "match_queries_total",
				Help: "Total symptom match queries by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		MatchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "match_latency_seconds",
				Help:    "Symptom match latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
		),
		MatchConfidence: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "match_top_confidence",
				Help:    "Confidence of the top match per non-empty result.",
				Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of reply cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of reply cache misses.",
			},
		),
		CorpusRebuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_rebuilds_total",
				Help: "Total corpus index rebuilds by status.",
			},
			[]string{"status"},
		),
		CorpusDiseases: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "corpus_diseases",
				Help: "Number of disease records in the current index.",
			},
		),
		CorpusVocabulary: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "corpus_vocabulary_terms",
				Help: "Number of distinct terms in the current index vocabulary.",
			},
		),
		OracleCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oracle_calls_total",
				Help: "Total generative-AI oracle fallback calls by status.",
			},
			[]string{"status"},
		),
		OracleCircuitState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "oracle_circuit_state",
				Help: "Oracle circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.ChatRepliesTotal,
		m.MatchQueriesTotal,
		m.MatchLatency,
		m.MatchConfidence,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CorpusRebuildsTotal,
		m.CorpusDiseases,
		m.CorpusVocabulary,
		m.OracleCallsTotal,
		m.OracleCircuitState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
