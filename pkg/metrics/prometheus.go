// Package metrics provides Prometheus metrics for the gameproof verification service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// latencyBuckets are milliseconds; verification spans sub-millisecond
// replays up to multi-second extraction calls.
var latencyBuckets = []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000} //nolint:gochecknoglobals

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Core business metrics
	uploads             *prometheus.CounterVec
	uploadBytes         prometheus.Histogram
	verifications       *prometheus.CounterVec
	verificationLatency prometheus.Histogram
	stageLatency        *prometheus.HistogramVec
	correlation         prometheus.Histogram
	scores              prometheus.Histogram
	signaturesIssued    prometheus.Counter
	pendingSubmissions  prometheus.Gauge

	// Submission store metrics
	storeLatency *prometheus.HistogramVec
	storeSwept   prometheus.Counter

	// Leaderboard metrics
	leaderboardEntries      prometheus.Gauge
	leaderboardUpdates      prometheus.Counter
	repositoryUpdateLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram

	// Worker pool metrics
	workerCapacity          prometheus.Gauge
	workerRunning           prometheus.Gauge
	workerWaiting           prometheus.Gauge
	workerRejected          prometheus.Counter
	workerProcessingLatency prometheus.Histogram

	// Notification metrics
	notifications    *prometheus.CounterVec
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDequeued    prometheus.Counter
	queueRejected    *prometheus.CounterVec
	queueUtilization prometheus.Gauge

	// HTTP performance metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System performance metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "gameproof",
		subsystem:        "verifier",
		histogramBuckets: latencyBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	m.uploads = m.counterVec("uploads_total", "Blobs accepted into the submission store by kind", "kind")
	m.uploadBytes = m.histogram("upload_bytes", "Size of uploaded blobs in bytes",
		prometheus.ExponentialBuckets(1024, 4, 10))
	m.verifications = m.counterVec("verifications_total", "Finished verification attempts by outcome and reason",
		"outcome", "reason")
	m.verificationLatency = m.histogram("verification_latency_milliseconds",
		"End to end verification latency in milliseconds", m.histogramBuckets)
	m.stageLatency = m.histogramVec("stage_latency_milliseconds",
		"Latency of each verification stage in milliseconds", m.histogramBuckets, "stage")
	m.correlation = m.histogram("correlation", "Similarity between video and input signals",
		prometheus.LinearBuckets(-1, 0.1, 21))
	m.scores = m.histogram("replay_score", "Scores produced by the replay simulator",
		prometheus.ExponentialBuckets(1, 2, 12))
	m.signaturesIssued = m.counter("signatures_issued_total", "Attestations signed")
	m.pendingSubmissions = m.gauge("pending_submissions", "Identities with at least one pending blob")

	m.storeLatency = m.histogramVec("store_latency_milliseconds",
		"Submission store operation latency in milliseconds", m.histogramBuckets, "backend", "op")
	m.storeSwept = m.counter("store_swept_total", "Stale submissions removed by the janitor")

	m.leaderboardEntries = m.gauge("leaderboard_entries", "Identities on the leaderboard")
	m.leaderboardUpdates = m.counter("leaderboard_updates_total", "Leaderboard best score improvements")
	m.repositoryUpdateLatency = m.histogram("repository_update_latency_milliseconds",
		"Leaderboard update latency in milliseconds", m.histogramBuckets)
	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds",
		"Leaderboard query latency in milliseconds", m.histogramBuckets)

	m.workerCapacity = m.gauge("worker_capacity", "Maximum concurrent verifications")
	m.workerRunning = m.gauge("worker_running", "Verifications currently running")
	m.workerWaiting = m.gauge("worker_waiting", "Verifications waiting for a worker")
	m.workerRejected = m.counter("worker_rejected_total", "Verifications rejected because the pool was full")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds",
		"Time a verification spent on a worker in milliseconds", m.histogramBuckets)

	m.notifications = m.counterVec("notifications_total", "Outcome notifications by result", "result")
	m.queueSize = m.gauge("notify_queue_size", "Outcomes waiting to be published")
	m.queueCapacity = m.gauge("notify_queue_capacity", "Capacity of the outcome queue")
	m.queueEnqueued = m.counter("notify_queue_enqueued_total", "Outcomes accepted by the queue")
	m.queueDequeued = m.counter("notify_queue_dequeued_total", "Outcomes handed to the publisher")
	m.queueRejected = m.counterVec("notify_queue_rejected_total", "Outcomes dropped by the queue", "reason")
	m.queueUtilization = m.gauge("notify_queue_utilization_ratio", "Queue fill ratio (0-1)")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", m.histogramBuckets, "endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and type",
		"component", "error_type")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint, method and type",
		"endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap memory in use")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Most recent GC pause in milliseconds",
		[]float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50})
}

// Business metrics.

// RecordUpload counts an accepted blob.
func RecordUpload(kind string, size int) {
	globalManager.uploads.WithLabelValues(kind).Inc()
	globalManager.uploadBytes.Observe(float64(size))
}

// RecordVerification counts a finished attempt and its latency.
func RecordVerification(outcome, reason string, latencyMs float64) {
	globalManager.verifications.WithLabelValues(outcome, reason).Inc()
	globalManager.verificationLatency.Observe(latencyMs)
}

// RecordStageLatency records the time spent in a verification stage.
func RecordStageLatency(stage string, latencyMs float64) {
	globalManager.stageLatency.WithLabelValues(stage).Observe(latencyMs)
}

// RecordCorrelation records a computed similarity.
func RecordCorrelation(v float64) {
	globalManager.correlation.Observe(v)
}

// RecordScore records a replay score.
func RecordScore(score uint64) {
	globalManager.scores.Observe(float64(score))
}

// RecordSignatureIssued counts a signed attestation.
func RecordSignatureIssued() {
	globalManager.signaturesIssued.Inc()
}

// UpdatePendingSubmissions sets the pending submission gauge.
func UpdatePendingSubmissions(n int) {
	globalManager.pendingSubmissions.Set(float64(n))
}

// Submission store metrics.

// RecordStoreLatency records a store operation.
func RecordStoreLatency(backend, op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(backend, op).Observe(latencyMs)
}

// RecordStoreSwept counts submissions removed by a sweep.
func RecordStoreSwept(n int) {
	globalManager.storeSwept.Add(float64(n))
}

// Leaderboard metrics.

// UpdateLeaderboardEntries sets the leaderboard size.
func UpdateLeaderboardEntries(n int) {
	globalManager.leaderboardEntries.Set(float64(n))
}

// RecordLeaderboardUpdate counts an improved best score.
func RecordLeaderboardUpdate() {
	globalManager.leaderboardUpdates.Inc()
}

// RecordRepositoryUpdateLatency records leaderboard update latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records leaderboard query latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// Worker pool metrics.

// UpdateWorkerCapacity sets the pool size.
func UpdateWorkerCapacity(n int) {
	globalManager.workerCapacity.Set(float64(n))
}

// UpdateWorkerRunning sets the number of busy workers.
func UpdateWorkerRunning(n int64) {
	globalManager.workerRunning.Set(float64(n))
}

// UpdateWorkerWaiting sets the number of queued verifications.
func UpdateWorkerWaiting(n uint64) {
	globalManager.workerWaiting.Set(float64(n))
}

// RecordWorkerRejected counts a verification turned away by a full pool.
func RecordWorkerRejected() {
	globalManager.workerRejected.Inc()
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// Notification metrics.

// RecordNotification counts a publish attempt by result ("sent", "failed").
func RecordNotification(result string) {
	globalManager.notifications.WithLabelValues(result).Inc()
}

// UpdateQueueCapacity sets the outcome queue capacity.
func UpdateQueueCapacity(n int) {
	globalManager.queueCapacity.Set(float64(n))
}

// UpdateQueueSize sets the current queue depth and its fill ratio.
func UpdateQueueSize(size, capacity int) {
	globalManager.queueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// RecordQueueEnqueue counts an accepted outcome.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue counts an outcome handed to the publisher.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueRejected counts a dropped outcome ("closed", "full", "cancelled").
func RecordQueueRejected(reason string) {
	globalManager.queueRejected.WithLabelValues(reason).Inc()
}

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error metrics.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System metrics.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
