// Package metrics provides Prometheus metrics for the bullrun game engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Gameplay
	handsSubmitted     prometheus.Counter
	handsRejected      *prometheus.CounterVec
	packsOpened        *prometheus.CounterVec
	participants       prometheus.Gauge
	scoringPassLatency prometheus.Histogram

	// Round lifecycle
	roundStatus     prometheus.Gauge
	roundsCompleted prometheus.Counter
	rewardErrors    prometheus.Counter
	prizePool       prometheus.Gauge

	// Price feed
	priceFetches      *prometheus.CounterVec
	priceFetchLatency prometheus.Histogram
	priceFallback     prometheus.Gauge

	// Event bus
	listenerErrors *prometheus.CounterVec

	// Settlement pipeline
	settlementBatches   *prometheus.CounterVec
	settlementQueueSize prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
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
		namespace:        "bullrun",
		subsystem:        "engine",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
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

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.handsSubmitted = m.counter("hands_submitted_total", "Total number of hands accepted into a round")
	m.handsRejected = m.counterVec("hands_rejected_total", "Total number of rejected hand submissions by reason", "reason")
	m.packsOpened = m.counterVec("packs_opened_total", "Total number of packs opened by pack type", "type")
	m.participants = m.gauge("participants", "Number of hands in the current round")
	m.scoringPassLatency = m.histogram("scoring_pass_latency_milliseconds", "Latency of a full rescoring and ranking pass")

	m.roundStatus = m.gauge("round_status", "Current round status (0 waiting, 1 active, 2 calculating, 3 ended)")
	m.roundsCompleted = m.counter("rounds_completed_total", "Total number of rounds finalized")
	m.rewardErrors = m.counter("reward_errors_total", "Total number of rounds whose reward computation failed")
	m.prizePool = m.gauge("prize_pool", "Prize pool distributed in the last finalized round")

	m.priceFetches = m.counterVec("price_fetch_total", "Price source fetch attempts by result", "result")
	m.priceFetchLatency = m.histogram("price_fetch_latency_milliseconds", "Latency of price source fetches")
	m.priceFallback = m.gauge("price_fallback_active", "1 when the asset cache is serving fallback data")

	m.listenerErrors = m.counterVec("listener_errors_total", "Subscriber failures during event dispatch by event kind", "event")

	m.settlementBatches = m.counterVec("settlement_batches_total", "Settlement batch deliveries by result", "result")
	m.settlementQueueSize = m.gauge("settlement_queue_size", "Settlement batches waiting for delivery")

	m.httpRequests = promauto.With(m.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and error type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Current memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Current number of goroutines")
}

// RecordHandSubmitted records an accepted hand.
func RecordHandSubmitted() {
	globalManager.handsSubmitted.Inc()
}

// RecordHandRejected records a rejected hand with the given reason.
func RecordHandRejected(reason string) {
	globalManager.handsRejected.WithLabelValues(reason).Inc()
}

// RecordPackOpened records an opened pack of the given type.
func RecordPackOpened(packType string) {
	globalManager.packsOpened.WithLabelValues(packType).Inc()
}

// UpdateParticipants sets the number of hands in the current round.
func UpdateParticipants(count int) {
	globalManager.participants.Set(float64(count))
}

// RecordScoringPassLatency records the duration of a rescoring pass.
func RecordScoringPassLatency(latencyMs float64) {
	globalManager.scoringPassLatency.Observe(latencyMs)
}

// UpdateRoundStatus sets the numeric round status.
func UpdateRoundStatus(status int) {
	globalManager.roundStatus.Set(float64(status))
}

// RecordRoundCompleted records a finalized round and its distributed pool.
func RecordRoundCompleted(pool float64) {
	globalManager.roundsCompleted.Inc()
	globalManager.prizePool.Set(pool)
}

// RecordRewardError records a failed reward computation.
func RecordRewardError() {
	globalManager.rewardErrors.Inc()
}

// RecordPriceFetch records a price fetch attempt. Result is "ok", "error" or "timeout".
func RecordPriceFetch(result string, latencyMs float64) {
	globalManager.priceFetches.WithLabelValues(result).Inc()
	globalManager.priceFetchLatency.Observe(latencyMs)
}

// UpdatePriceFallback toggles the fallback gauge.
func UpdatePriceFallback(active bool) {
	if active {
		globalManager.priceFallback.Set(1)
		return
	}
	globalManager.priceFallback.Set(0)
}

// RecordListenerError records a subscriber failure for an event kind.
func RecordListenerError(event string) {
	globalManager.listenerErrors.WithLabelValues(event).Inc()
}

// RecordSettlementBatch records a settlement delivery. Result is "delivered", "retry" or "dropped".
func RecordSettlementBatch(result string) {
	globalManager.settlementBatches.WithLabelValues(result).Inc()
}

// UpdateSettlementQueueSize sets the settlement backlog gauge.
func UpdateSettlementQueueSize(size int) {
	globalManager.settlementQueueSize.Set(float64(size))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error for a component and error type.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage updates memory usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount updates goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
