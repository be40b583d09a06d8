// Package metrics provides Prometheus metrics for the consortium engine service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// defaultBuckets are millisecond latency buckets.
var defaultBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000} //nolint:gochecknoglobals // read-only defaults

// Manager owns every metric of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Evaluation
	evaluations        *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	degradedInputs     *prometheus.CounterVec
	complianceFailures *prometheus.CounterVec
	creditBasis        *prometheus.CounterVec
	shareCheckProblems prometheus.Counter

	// Rule sets
	rulesReloads *prometheus.CounterVec
	ruleSets     prometheus.Gauge

	// Queue and workers
	queueSize      prometheus.Gauge
	queueCapacity  prometheus.Gauge
	queueEnqueued  prometheus.Counter
	queueRejected  *prometheus.CounterVec
	workers        prometheus.Gauge
	jobDuration    prometheus.Histogram
	batchJobs      *prometheus.CounterVec
	savedResults   prometheus.Gauge
	errorsByOrigin *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	memoryUsage prometheus.Gauge
	goroutines  prometheus.Gauge
	gcPause     prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "consortium",
		subsystem:        "engine",
		histogramBuckets: defaultBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.evaluations = auto.NewCounterVec(
		m.counterOpts("evaluations_total", "Evaluations by rule set key and outcome"),
		[]string{"jurisdiction", "tier", "outcome"},
	)
	m.evaluationDuration = auto.NewHistogram(
		m.histogramOpts("evaluation_duration_milliseconds", "Time spent in one evaluation"),
	)
	m.degradedInputs = auto.NewCounterVec(
		m.counterOpts("degraded_inputs_total", "Missing or stale inputs seen during scoring"),
		[]string{"field"},
	)
	m.complianceFailures = auto.NewCounterVec(
		m.counterOpts("compliance_failures_total", "Compliance checks that did not pass"),
		[]string{"check"},
	)
	m.creditBasis = auto.NewCounterVec(
		m.counterOpts("credit_basis_total", "Management scores by chosen basis"),
		[]string{"basis"},
	)
	m.shareCheckProblems = auto.NewCounter(
		m.counterOpts("share_check_problems_total", "Members whose share exceeds the permissible maximum"),
	)

	m.rulesReloads = auto.NewCounterVec(
		m.counterOpts("rules_reloads_total", "Rule table reloads by outcome"),
		[]string{"outcome"},
	)
	m.ruleSets = auto.NewGauge(m.gaugeOpts("rule_sets", "Rule sets currently loaded"))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Jobs waiting in the batch queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Capacity of the batch queue"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueued_total", "Jobs accepted by the batch queue"))
	m.queueRejected = auto.NewCounterVec(
		m.counterOpts("queue_rejected_total", "Jobs refused by the batch queue"),
		[]string{"reason"},
	)
	m.workers = auto.NewGauge(m.gaugeOpts("workers", "Running batch workers"))
	m.jobDuration = auto.NewHistogram(
		m.histogramOpts("job_duration_milliseconds", "Time spent processing one batch job"),
	)
	m.batchJobs = auto.NewCounterVec(
		m.counterOpts("batch_jobs_total", "Processed batch jobs by outcome"),
		[]string{"outcome"},
	)
	m.savedResults = auto.NewGauge(m.gaugeOpts("saved_results", "Evaluation results held by the store"))
	m.errorsByOrigin = auto.NewCounterVec(
		m.counterOpts("errors_total", "Errors by component and type"),
		[]string{"component", "type"},
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status code"),
		[]string{"endpoint", "method", "code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request latency"),
		[]string{"endpoint", "method", "code"},
	)

	m.memoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_bytes", "Heap bytes allocated"))
	m.goroutines = auto.NewGauge(m.gaugeOpts("system_goroutines", "Live goroutines"))
	m.gcPause = auto.NewHistogram(m.histogramOpts("system_gc_pause_milliseconds", "Average GC pause"))
}

// RecordEvaluation counts one evaluation and observes its duration.
func (m *Manager) RecordEvaluation(jurisdiction, tier, outcome string, durationMs float64) {
	m.evaluations.WithLabelValues(jurisdiction, tier, outcome).Inc()
	m.evaluationDuration.Observe(durationMs)
}

// RecordDegradedInput counts a missing or stale input field.
func (m *Manager) RecordDegradedInput(field string) { m.degradedInputs.WithLabelValues(field).Inc() }

// RecordComplianceFailure counts a failed compliance check.
func (m *Manager) RecordComplianceFailure(check string) {
	m.complianceFailures.WithLabelValues(check).Inc()
}

// RecordCreditBasis counts the basis chosen for a management score.
func (m *Manager) RecordCreditBasis(basis string) { m.creditBasis.WithLabelValues(basis).Inc() }

// RecordShareCheckProblem counts a member over its maximum share.
func (m *Manager) RecordShareCheckProblem() { m.shareCheckProblems.Inc() }

// RecordRulesReload counts a rule table reload.
func (m *Manager) RecordRulesReload(outcome string) { m.rulesReloads.WithLabelValues(outcome).Inc() }

// UpdateRuleSets sets the number of loaded rule sets.
func (m *Manager) UpdateRuleSets(n int) { m.ruleSets.Set(float64(n)) }

// UpdateQueueSize sets the current queue length.
func (m *Manager) UpdateQueueSize(n int) { m.queueSize.Set(float64(n)) }

// UpdateQueueCapacity sets the queue capacity.
func (m *Manager) UpdateQueueCapacity(n int) { m.queueCapacity.Set(float64(n)) }

// RecordQueueEnqueue counts an accepted job.
func (m *Manager) RecordQueueEnqueue() { m.queueEnqueued.Inc() }

// RecordQueueRejected counts a refused job.
func (m *Manager) RecordQueueRejected(reason string) { m.queueRejected.WithLabelValues(reason).Inc() }

// UpdateWorkerCount sets the number of running workers.
func (m *Manager) UpdateWorkerCount(n int) { m.workers.Set(float64(n)) }

// RecordJob counts a processed batch job and observes its duration.
func (m *Manager) RecordJob(outcome string, durationMs float64) {
	m.batchJobs.WithLabelValues(outcome).Inc()
	m.jobDuration.Observe(durationMs)
}

// UpdateSavedResults sets the number of stored results.
func (m *Manager) UpdateSavedResults(n int) { m.savedResults.Set(float64(n)) }

// RecordError counts an error raised by component.
func (m *Manager) RecordError(component, errorType string) {
	m.errorsByOrigin.WithLabelValues(component, errorType).Inc()
}

// RecordHTTPRequest counts a request and observes its latency.
func (m *Manager) RecordHTTPRequest(endpoint, method, code string, durationMs float64) {
	m.httpRequests.WithLabelValues(endpoint, method, code).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, code).Observe(durationMs)
}

// UpdateSystemMemoryUsage sets the allocated heap size.
func (m *Manager) UpdateSystemMemoryUsage(bytes uint64) { m.memoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the goroutine count.
func (m *Manager) UpdateSystemGoroutineCount(n int) { m.goroutines.Set(float64(n)) }

// RecordSystemGCPauseTime observes an average GC pause.
func (m *Manager) RecordSystemGCPauseTime(ms float64) { m.gcPause.Observe(ms) }

// Package-level helpers record on the global manager.

// RecordEvaluation counts one evaluation and observes its duration.
func RecordEvaluation(jurisdiction, tier, outcome string, durationMs float64) {
	globalManager.RecordEvaluation(jurisdiction, tier, outcome, durationMs)
}

// RecordDegradedInput counts a missing or stale input field.
func RecordDegradedInput(field string) { globalManager.RecordDegradedInput(field) }

// RecordComplianceFailure counts a failed compliance check.
func RecordComplianceFailure(check string) { globalManager.RecordComplianceFailure(check) }

// RecordCreditBasis counts the basis chosen for a management score.
func RecordCreditBasis(basis string) { globalManager.RecordCreditBasis(basis) }

// RecordShareCheckProblem counts a member over its maximum share.
func RecordShareCheckProblem() { globalManager.RecordShareCheckProblem() }

// RecordRulesReload counts a rule table reload.
func RecordRulesReload(outcome string) { globalManager.RecordRulesReload(outcome) }

// UpdateRuleSets sets the number of loaded rule sets.
func UpdateRuleSets(n int) { globalManager.UpdateRuleSets(n) }

// UpdateQueueSize sets the current queue length.
func UpdateQueueSize(n int) { globalManager.UpdateQueueSize(n) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(n int) { globalManager.UpdateQueueCapacity(n) }

// RecordQueueEnqueue counts an accepted job.
func RecordQueueEnqueue() { globalManager.RecordQueueEnqueue() }

// RecordQueueRejected counts a refused job.
func RecordQueueRejected(reason string) { globalManager.RecordQueueRejected(reason) }

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(n int) { globalManager.UpdateWorkerCount(n) }

// RecordJob counts a processed batch job and observes its duration.
func RecordJob(outcome string, durationMs float64) { globalManager.RecordJob(outcome, durationMs) }

// UpdateSavedResults sets the number of stored results.
func UpdateSavedResults(n int) { globalManager.UpdateSavedResults(n) }

// RecordError counts an error raised by component.
func RecordError(component, errorType string) { globalManager.RecordError(component, errorType) }

// RecordHTTPRequest counts a request and observes its latency.
func RecordHTTPRequest(endpoint, method, code string, durationMs float64) {
	globalManager.RecordHTTPRequest(endpoint, method, code, durationMs)
}

// UpdateSystemMemoryUsage sets the allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.UpdateSystemMemoryUsage(bytes) }

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(n int) { globalManager.UpdateSystemGoroutineCount(n) }

// RecordSystemGCPauseTime observes an average GC pause.
func RecordSystemGCPauseTime(ms float64) { globalManager.RecordSystemGCPauseTime(ms) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
