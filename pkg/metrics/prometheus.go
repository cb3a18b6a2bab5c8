// Package metrics provides Prometheus metrics for the risk engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Scoring
	assessmentsTotal   *prometheus.CounterVec
	assessmentLatency  prometheus.Histogram
	degradedFactors    *prometheus.CounterVec
	riskLevels         *prometheus.CounterVec
	populationRuns     prometheus.Counter
	populationSkipped  prometheus.Counter
	populationDuration prometheus.Histogram

	// Interventions
	interventionsCreated *prometheus.CounterVec
	interventionsSkipped *prometheus.CounterVec
	workflowRuns         *prometheus.CounterVec
	publishErrors        prometheus.Counter

	// Analytics
	analyticsDegraded *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec

	// Fan-out pool and queue
	queueSize      prometheus.Gauge
	queueCapacity  prometheus.Gauge
	workerActive   prometheus.Gauge
	workerLatency  prometheus.Histogram
	workerErrors   prometheus.Counter
	workerJobsDone prometheus.Counter

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton recorder used by package-level helpers

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // isolated from default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "sigte",
		subsystem:        "risk",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
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

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) initializeMetrics() {
	m.assessmentsTotal = m.counterVec("assessments_total", "Student risk assessments by outcome", "outcome")
	m.assessmentLatency = m.histogram("assessment_latency_milliseconds", "Latency of a single student assessment")
	m.degradedFactors = m.counterVec("degraded_factors_total", "Factors that fell back to their neutral default", "factor")
	m.riskLevels = m.counterVec("risk_level_total", "Assessments by resulting risk level", "level")
	m.populationRuns = m.counter("population_runs_total", "Population analyses executed")
	m.populationSkipped = m.counter("population_skipped_total", "Students skipped during population analyses")
	m.populationDuration = m.histogram("population_duration_milliseconds", "Duration of a population analysis")

	m.interventionsCreated = m.counterVec("interventions_created_total", "Intervention records created by type", "type")
	m.interventionsSkipped = m.counterVec("interventions_skipped_total", "Workflow candidates skipped by reason", "reason")
	m.workflowRuns = m.counterVec("workflow_runs_total", "Intervention workflow runs by trigger", "trigger")
	m.publishErrors = m.counter("publish_errors_total", "Failed intervention event publications")

	m.analyticsDegraded = m.counterVec("analytics_degraded_total", "Dashboard sub-computations that fell back to empty values", "section")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.httpErrors = m.counterVec("http_errors_total", "HTTP error responses by endpoint and type", "endpoint", "error_type")

	m.queueSize = m.gauge("queue_size", "Jobs waiting in the fan-out queue")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the fan-out queue")
	m.workerActive = m.gauge("worker_active", "Workers currently running a batch")
	m.workerLatency = m.histogram("worker_job_latency_milliseconds", "Latency of a single fan-out job")
	m.workerErrors = m.counter("worker_errors_total", "Fan-out jobs that returned an error")
	m.workerJobsDone = m.counter("worker_jobs_total", "Fan-out jobs completed")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Allocated heap bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordAssessment counts an assessment outcome (ok, not_found, error).
func RecordAssessment(outcome string, latencyMs float64) {
	globalManager.assessmentsTotal.WithLabelValues(outcome).Inc()
	globalManager.assessmentLatency.Observe(latencyMs)
}

// RecordDegradedFactor counts a factor that used its neutral default.
func RecordDegradedFactor(factor string) {
	globalManager.degradedFactors.WithLabelValues(factor).Inc()
}

// RecordRiskLevel counts an assessment by risk level.
func RecordRiskLevel(level string) {
	globalManager.riskLevels.WithLabelValues(level).Inc()
}

// RecordPopulationRun records a finished population analysis.
func RecordPopulationRun(skipped int, durationMs float64) {
	globalManager.populationRuns.Inc()
	globalManager.populationSkipped.Add(float64(skipped))
	globalManager.populationDuration.Observe(durationMs)
}

// RecordInterventionCreated counts a persisted intervention.
func RecordInterventionCreated(kind string) {
	globalManager.interventionsCreated.WithLabelValues(kind).Inc()
}

// RecordInterventionSkipped counts a workflow candidate that produced no record.
func RecordInterventionSkipped(reason string) {
	globalManager.interventionsSkipped.WithLabelValues(reason).Inc()
}

// RecordWorkflowRun counts a workflow run by trigger (api, schedule).
func RecordWorkflowRun(trigger string) {
	globalManager.workflowRuns.WithLabelValues(trigger).Inc()
}

// RecordPublishError counts a failed event publication.
func RecordPublishError() {
	globalManager.publishErrors.Inc()
}

// RecordAnalyticsDegraded counts a dashboard section served from its empty default.
func RecordAnalyticsDegraded(section string) {
	globalManager.analyticsDegraded.WithLabelValues(section).Inc()
}

// RecordHTTPRequest records an HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordHTTPError records an HTTP error response.
func RecordHTTPError(endpoint, errorType string) {
	globalManager.httpErrors.WithLabelValues(endpoint, errorType).Inc()
}

// UpdateQueueSize sets the current fan-out queue length.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the fan-out queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// AddWorkerActive adjusts the number of running workers.
func AddWorkerActive(delta int) {
	globalManager.workerActive.Add(float64(delta))
}

// RecordWorkerJob records a completed fan-out job.
func RecordWorkerJob(latencyMs float64, failed bool) {
	globalManager.workerJobsDone.Inc()
	globalManager.workerLatency.Observe(latencyMs)
	if failed {
		globalManager.workerErrors.Inc()
	}
}

// UpdateSystemMemoryUsage sets the allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Handler serves the custom registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(customRegistry, promhttp.HandlerOpts{})
}
