// Package metrics provides Prometheus metrics for the digest pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Pipeline
	runsTotal         *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
	stageEvents       *prometheus.GaugeVec
	filterRejections  *prometheus.CounterVec
	shortlistSize     prometheus.Gauge
	lastRunUnix       prometheus.Gauge
	warningsTotal     *prometheus.CounterVec
	combinedScoreHist prometheus.Histogram

	// Embeddings
	embeddingCacheHits   prometheus.Counter
	embeddingCacheMisses prometheus.Counter
	embeddingBatches     prometheus.Counter
	embeddingFailures    prometheus.Counter

	// Providers
	providerErrors  *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "sortie",
		subsystem:        "pipeline",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one block per collector
	auto := promauto.With(m.registry)

	m.runsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "runs_total",
		Help:      "Pipeline runs by outcome",
	}, []string{"outcome"})

	m.stageDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stage_duration_milliseconds",
		Help:      "Duration of each pipeline stage in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"stage"})

	m.stageEvents = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stage_events",
		Help:      "Events leaving each stage in the last run",
	}, []string{"stage"})

	m.filterRejections = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "filter_rejections_total",
		Help:      "Events rejected by the hard filters, by predicate",
	}, []string{"reason"})

	m.shortlistSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "shortlist_size",
		Help:      "Size of the last shortlist",
	})

	m.lastRunUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "last_run_unix",
		Help:      "Unix timestamp of the last completed run",
	})

	m.warningsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "warnings_total",
		Help:      "Run-level warnings by kind",
	}, []string{"kind"})

	m.combinedScoreHist = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "combined_score",
		Help:      "Distribution of combined scores of shortlisted events",
		Buckets:   []float64{-0.5, 0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
	})

	m.embeddingCacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "embedding_cache_hits_total",
		Help:      "Texts served from the embedding cache",
	})

	m.embeddingCacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "embedding_cache_misses_total",
		Help:      "Texts sent to the embedding provider",
	})

	m.embeddingBatches = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "embedding_batches_total",
		Help:      "Batch calls made to the embedding provider",
	})

	m.embeddingFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "embedding_failures_total",
		Help:      "Texts that could not be embedded and fell back to a neutral score",
	})

	m.providerErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "provider_errors_total",
		Help:      "External provider failures by provider",
	}, []string{"provider"})

	m.providerLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "provider_latency_milliseconds",
		Help:      "External provider call latency in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"provider"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_by_endpoint_total",
		Help:      "Total number of errors by endpoint",
	}, []string{"endpoint", "method", "error_type"})
}

// RecordRun counts a finished run with the given outcome (ok, empty, failed).
func RecordRun(outcome string) {
	globalManager.runsTotal.WithLabelValues(outcome).Inc()
}

// RecordStageDuration observes how long a stage took.
func RecordStageDuration(stage string, ms float64) {
	globalManager.stageDuration.WithLabelValues(stage).Observe(ms)
}

// UpdateStageEvents sets how many events left a stage.
func UpdateStageEvents(stage string, n int) {
	globalManager.stageEvents.WithLabelValues(stage).Set(float64(n))
}

// RecordFilterRejections adds n rejections for a predicate.
func RecordFilterRejections(reason string, n int) {
	if n <= 0 {
		return
	}
	globalManager.filterRejections.WithLabelValues(reason).Add(float64(n))
}

// UpdateShortlistSize sets the last shortlist size.
func UpdateShortlistSize(n int) {
	globalManager.shortlistSize.Set(float64(n))
}

// UpdateLastRun sets the last run timestamp.
func UpdateLastRun(unix int64) {
	globalManager.lastRunUnix.Set(float64(unix))
}

// RecordWarning counts a run-level warning.
func RecordWarning(kind string) {
	globalManager.warningsTotal.WithLabelValues(kind).Inc()
}

// ObserveCombinedScore records a shortlisted event's combined score.
func ObserveCombinedScore(score float64) {
	globalManager.combinedScoreHist.Observe(score)
}

// RecordEmbeddingCache adds cache hits and misses.
func RecordEmbeddingCache(hits, misses int) {
	globalManager.embeddingCacheHits.Add(float64(hits))
	globalManager.embeddingCacheMisses.Add(float64(misses))
}

// RecordEmbeddingBatch counts a batch call to the provider.
func RecordEmbeddingBatch() {
	globalManager.embeddingBatches.Inc()
}

// RecordEmbeddingFailures adds texts that fell back to a neutral score.
func RecordEmbeddingFailures(n int) {
	if n <= 0 {
		return
	}
	globalManager.embeddingFailures.Add(float64(n))
}

// RecordProviderError counts a failed call to an external provider.
func RecordProviderError(provider string) {
	globalManager.providerErrors.WithLabelValues(provider).Inc()
}

// RecordProviderLatency observes an external provider call.
func RecordProviderLatency(provider string, ms float64) {
	globalManager.providerLatency.WithLabelValues(provider).Observe(ms)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
