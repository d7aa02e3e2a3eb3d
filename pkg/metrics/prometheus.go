// Package metrics provides Prometheus metrics for the fanspend service.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Exclusion reasons used as the "reason" label on excluded transactions.
const (
	ReasonNoMatch    = "no_match"
	ReasonIneligible = "ineligible"
	ReasonZeroPoints = "zero_points"
)

// confidenceBuckets cover the [0,1] similarity range with extra resolution
// around the acceptance threshold.
var confidenceBuckets = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.55, 0.6, 0.65, 0.7, 0.8, 0.9, 1.0} //nolint:gochecknoglobals // fixed bucket layout

// Manager owns all Prometheus collectors for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Pipeline
	transactionsScored   prometheus.Counter
	transactionsMatched  prometheus.Counter
	transactionsExcluded *prometheus.CounterVec
	pointsAwarded        *prometheus.CounterVec
	matchConfidence      prometheus.Histogram
	pipelineLatency      prometheus.Histogram
	sponsorIndexSize     prometheus.Gauge
	sponsorsDropped      prometheus.Counter

	// Ingest
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec
	ingestDuplicates   prometheus.Counter
	workerCount        prometheus.Gauge
	workerLatency      prometheus.Histogram
	workerErrors       *prometheus.CounterVec

	// Refresh
	refreshRuns   *prometheus.CounterVec
	refreshUsers  prometheus.Counter
	refreshLatest prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager. Without WithPrometheusRegistry the
// collectors are registered on the default registerer.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "fanspend",
		subsystem:        "core",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	m.transactionsScored = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "transactions_scored_total",
		Help: "Transactions that were awarded fan-spend points",
	})
	m.transactionsMatched = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "transactions_matched_total",
		Help: "Transactions whose merchant matched a sponsor above threshold",
	})
	m.transactionsExcluded = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "transactions_excluded_total",
		Help: "Transactions excluded from scored output by reason",
	}, []string{"reason"})
	m.pointsAwarded = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "points_awarded_total",
		Help: "Fan-spend points awarded by league",
	}, []string{"league"})
	m.matchConfidence = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    "match_confidence",
		Help:    "Best-candidate similarity per transaction",
		Buckets: confidenceBuckets,
	})
	m.pipelineLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    "pipeline_latency_milliseconds",
		Help:    "Wall time of one scoring pipeline run",
		Buckets: m.histogramBuckets,
	})
	m.sponsorIndexSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "sponsor_index_size",
		Help: "Number of sponsor names in the most recently built index",
	})
	m.sponsorsDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "sponsor_entries_dropped_total",
		Help: "Malformed sponsor rows dropped in permissive mode",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "ingest", ConstLabels: labels,
		Name: "queue_size",
		Help: "Current number of pending ingest jobs",
	})
	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "ingest", ConstLabels: labels,
		Name: "queue_capacity",
		Help: "Maximum number of pending ingest jobs",
	})
	m.queueEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "ingest", ConstLabels: labels,
		Name: "enqueued_total",
		Help: "Ingest jobs accepted onto the queue",
	})
	m.queueEnqueueErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "ingest", ConstLabels: labels,
		Name: "enqueue_errors_total",
		Help: "Ingest jobs rejected by the queue",
	}, []string{"reason"})
	m.ingestDuplicates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "ingest", ConstLabels: labels,
		Name: "duplicate_transactions_total",
		Help: "Aggregator rows skipped because their transaction id was already seen",
	})
	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "ingest", ConstLabels: labels,
		Name: "worker_count",
		Help: "Number of ingest workers",
	})
	m.workerLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "ingest", ConstLabels: labels,
		Name:    "worker_latency_milliseconds",
		Help:    "Time to persist and rescore one ingest job",
		Buckets: m.histogramBuckets,
	})
	m.workerErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "ingest", ConstLabels: labels,
		Name: "worker_errors_total",
		Help: "Ingest job failures by stage",
	}, []string{"stage"})

	m.refreshRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "refresh", ConstLabels: labels,
		Name: "runs_total",
		Help: "Scheduled ledger refresh runs by outcome",
	}, []string{"outcome"})
	m.refreshUsers = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "refresh", ConstLabels: labels,
		Name: "users_total",
		Help: "Users whose points ledger was recomputed",
	})
	m.refreshLatest = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "refresh", ConstLabels: labels,
		Name: "last_success_unixtime",
		Help: "Unix time of the last successful refresh run",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "http", ConstLabels: labels,
		Name: "requests_total",
		Help: "HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "http", ConstLabels: labels,
		Name:    "request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
}

// Enabled reports whether recording is active.
func (m *Manager) Enabled() bool { return m.enabled }

func on() bool { return globalManager != nil && globalManager.enabled }

// RecordTransactionScored counts an included transaction and its points.
func RecordTransactionScored(league string, points int64) {
	if !on() {
		return
	}
	globalManager.transactionsScored.Inc()
	globalManager.pointsAwarded.WithLabelValues(league).Add(float64(points))
}

// RecordTransactionMatched counts a transaction that passed the threshold.
func RecordTransactionMatched() {
	if on() {
		globalManager.transactionsMatched.Inc()
	}
}

// RecordTransactionsExcluded counts n transactions excluded for reason.
func RecordTransactionsExcluded(reason string, n int) {
	if on() && n > 0 {
		globalManager.transactionsExcluded.WithLabelValues(reason).Add(float64(n))
	}
}

// ObserveMatchConfidence records the best-candidate similarity.
func ObserveMatchConfidence(confidence float64) {
	if on() {
		globalManager.matchConfidence.Observe(confidence)
	}
}

// RecordPipelineLatency records one pipeline run duration.
func RecordPipelineLatency(latencyMs float64) {
	if on() {
		globalManager.pipelineLatency.Observe(latencyMs)
	}
}

// UpdateSponsorIndexSize sets the size of the latest sponsor index.
func UpdateSponsorIndexSize(size int) {
	if on() {
		globalManager.sponsorIndexSize.Set(float64(size))
	}
}

// RecordSponsorsDropped counts malformed sponsor rows dropped during build.
func RecordSponsorsDropped(n int) {
	if on() && n > 0 {
		globalManager.sponsorsDropped.Add(float64(n))
	}
}

// UpdateQueueSize sets the ingest backlog.
func UpdateQueueSize(size int) {
	if on() {
		globalManager.queueSize.Set(float64(size))
	}
}

// UpdateQueueCapacity sets the ingest queue bound.
func UpdateQueueCapacity(capacity int) {
	if on() {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

// RecordQueueEnqueue counts an accepted ingest job.
func RecordQueueEnqueue() {
	if on() {
		globalManager.queueEnqueued.Inc()
	}
}

// RecordQueueEnqueueError counts a rejected ingest job.
func RecordQueueEnqueueError(reason string) {
	if on() {
		globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
	}
}

// RecordIngestDuplicates counts aggregator rows skipped as already seen.
func RecordIngestDuplicates(n int) {
	if on() && n > 0 {
		globalManager.ingestDuplicates.Add(float64(n))
	}
}

// UpdateWorkerCount sets the number of ingest workers.
func UpdateWorkerCount(count int) {
	if on() {
		globalManager.workerCount.Set(float64(count))
	}
}

// RecordWorkerLatency records the time spent on one ingest job.
func RecordWorkerLatency(latencyMs float64) {
	if on() {
		globalManager.workerLatency.Observe(latencyMs)
	}
}

// RecordWorkerError counts an ingest job failure at the given stage.
func RecordWorkerError(stage string) {
	if on() {
		globalManager.workerErrors.WithLabelValues(stage).Inc()
	}
}

// RecordRefreshRun counts a refresh run; outcome is "ok" or "error".
func RecordRefreshRun(outcome string, users int) {
	if !on() {
		return
	}
	globalManager.refreshRuns.WithLabelValues(outcome).Inc()
	globalManager.refreshUsers.Add(float64(users))
	if outcome == "ok" {
		globalManager.refreshLatest.Set(float64(time.Now().Unix()))
	}
}

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if on() {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records an HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	if on() {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
	}
}

// GetRegistry returns the registry backing the package-level recorders.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

var runtimeOnce sync.Once //nolint:gochecknoglobals // guards one-time registration

// RegisterRuntimeCollectors adds the Go runtime and process collectors to
// the service registry. Safe to call more than once.
func RegisterRuntimeCollectors() {
	runtimeOnce.Do(func() {
		customRegistry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}
