// Package metrics provides Prometheus metrics for the kayfabe rating service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultNamespace = "kayfabe"
	defaultSubsystem = "rating"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Replay metrics - rating engine throughput
	matchesScored        prometheus.Counter
	matchesSkipped       *prometheus.CounterVec
	observationsWritten  prometheus.Counter
	replayCommits        prometheus.Counter
	replayRuns           *prometheus.CounterVec
	replayDuration       prometheus.Histogram
	replayLastUnix       prometheus.Gauge
	scoreCacheSize       prometheus.Gauge
	scoreCacheMisses     prometheus.Counter
	rankingQueryLatency  *prometheus.HistogramVec
	rankedWrestlers      prometheus.Gauge
	aggregatorCacheEntry prometheus.Gauge

	// Queue metrics - replay job queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	duplicateRequests  prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        defaultNamespace,
		subsystem:        defaultSubsystem,
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.matchesScored = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches_scored_total",
		Help:      "Total number of matches that produced score observations",
	})

	m.matchesSkipped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches_skipped_total",
		Help:      "Total number of matches skipped during replay by reason",
	}, []string{"reason"})

	m.observationsWritten = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "observations_written_total",
		Help:      "Total number of score observations committed",
	})

	m.replayCommits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "replay_commits_total",
		Help:      "Total number of observation batches committed",
	})

	m.replayRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "replay_runs_total",
		Help:      "Total number of replay runs by status",
	}, []string{"status"})

	m.replayDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "replay_duration_seconds",
		Help:      "Duration of replay runs in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
	})

	m.replayLastUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "replay_last_success_unix",
		Help:      "Unix time of the last successful replay",
	})

	m.scoreCacheSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "score_cache_size",
		Help:      "Number of wrestlers held in the score cache of the last replay",
	})

	m.scoreCacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "score_cache_misses_total",
		Help:      "Score lookups that had to be seeded from storage or the baseline",
	})

	m.rankingQueryLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ranking_query_latency_milliseconds",
		Help:      "Latency of windowed ranking queries in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"query"})

	m.rankedWrestlers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ranked_wrestlers",
		Help:      "Number of wrestlers in the most recently loaded ranking window",
	})

	m.aggregatorCacheEntry = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "aggregator_cache_entries",
		Help:      "Number of memoized ranking aggregators held by the service",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Current number of pending replay requests",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Capacity of the replay request queue",
	})

	m.queueEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueued_total",
		Help:      "Total number of replay requests enqueued",
	})

	m.queueDequeued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_dequeued_total",
		Help:      "Total number of replay requests dequeued by the worker",
	})

	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_errors_total",
		Help:      "Total number of rejected replay requests (full or closed queue)",
	})

	m.duplicateRequests = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "duplicate_requests_total",
		Help:      "Replay requests dropped because their id was already seen",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Errors grouped by component and error type",
		},
		[]string{"component", "error_type"},
	)
}

// Replay metrics.

func RecordMatchScored()                 { globalManager.matchesScored.Inc() }
func RecordMatchSkipped(reason string)   { globalManager.matchesSkipped.WithLabelValues(reason).Inc() }
func RecordObservationsWritten(n int)    { globalManager.observationsWritten.Add(float64(n)) }
func RecordReplayCommit()                { globalManager.replayCommits.Inc() }
func UpdateScoreCacheSize(n int)         { globalManager.scoreCacheSize.Set(float64(n)) }
func RecordScoreCacheMiss()              { globalManager.scoreCacheMisses.Inc() }
func UpdateRankedWrestlers(n int)        { globalManager.rankedWrestlers.Set(float64(n)) }
func UpdateAggregatorCacheEntries(n int) { globalManager.aggregatorCacheEntry.Set(float64(n)) }

// RecordReplayRun records the outcome and duration of a replay run.
func RecordReplayRun(status string, took time.Duration) {
	globalManager.replayRuns.WithLabelValues(status).Inc()
	globalManager.replayDuration.Observe(took.Seconds())
	if status == "ok" {
		globalManager.replayLastUnix.Set(float64(time.Now().Unix()))
	}
}

// RecordRankingQueryLatency records a ranking query latency in milliseconds.
func RecordRankingQueryLatency(query string, latencyMs float64) {
	globalManager.rankingQueryLatency.WithLabelValues(query).Observe(latencyMs)
}

// Queue metrics.

func UpdateQueueSize(size int)         { globalManager.queueSize.Set(float64(size)) }
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }
func RecordQueueEnqueue()              { globalManager.queueEnqueued.Inc() }
func RecordQueueDequeue()              { globalManager.queueDequeued.Inc() }
func RecordQueueEnqueueError()         { globalManager.queueEnqueueErrors.Inc() }
func RecordDuplicateRequest()          { globalManager.duplicateRequests.Inc() }

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error for a specific component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
