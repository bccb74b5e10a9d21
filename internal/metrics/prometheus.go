package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics contains all Prometheus metrics for the cache monitor
type PrometheusMetrics struct {
	// Polling metrics
	PollingCyclesTotal    *prometheus.CounterVec
	PollingCycleDuration  *prometheus.HistogramVec
	CacheEventsSeenTotal  *prometheus.CounterVec
	LastSyncedBlock       *prometheus.GaugeVec
	ContractStateFailures *prometheus.CounterVec

	// Selection and bidding metrics
	ContractsSelectedTotal *prometheus.CounterVec
	ContractsSkippedTotal  *prometheus.CounterVec
	BidAssessmentsTotal    *prometheus.CounterVec

	// Batch submission metrics
	BatchesSubmittedTotal *prometheus.CounterVec
	BatchRetriesTotal     prometheus.Counter
	BatchDuration         prometheus.Histogram

	// Alerting metrics
	AlertsTriggeredTotal  *prometheus.CounterVec
	AlertsSuppressedTotal prometheus.Counter

	// Connection metrics
	RPCFailoversTotal *prometheus.CounterVec

	// Notification metrics
	NotificationsSentTotal    *prometheus.CounterVec
	NotificationFailuresTotal *prometheus.CounterVec

	// API metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Application health metrics
	ApplicationUptime  prometheus.Gauge
	ContractsMonitored *prometheus.GaugeVec
}

// NewPrometheusMetrics creates and registers all Prometheus metrics
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		PollingCyclesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cachemon_polling_cycles_total",
				Help: "Total number of polling cycles per blockchain",
			},
			[]string{"blockchain", "status"},
		),

		PollingCycleDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cachemon_polling_cycle_duration_seconds",
				Help:    "Duration of one polling cycle",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"blockchain"},
		),

		CacheEventsSeenTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cachemon_cache_events_seen_total",
				Help: "Total cache manager events decoded from logs",
			},
			[]string{"blockchain", "kind"},
		),

		LastSyncedBlock: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cachemon_last_synced_block",
				Help: "Checkpoint block number per blockchain",
			},
			[]string{"blockchain"},
		),

		ContractStateFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cachemon_contract_state_failures_total",
				Help: "Per-contract cache state fetches that failed",
			},
			[]string{"blockchain"},
		),

		ContractsSelectedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cachemon_contracts_selected_total",
				Help: "Contracts selected for automated bidding",
			},
			[]string{"blockchain"},
		),

		ContractsSkippedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cachemon_contracts_skipped_total",
				Help: "Contracts excluded from bidding by skip reason",
			},
			[]string{"blockchain", "reason"},
		),

		BidAssessmentsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cachemon_bid_assessments_total",
				Help: "Bid safety assessments by outcome",
			},
			[]string{"blockchain", "outcome"},
		),

		BatchesSubmittedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cachemon_batches_submitted_total",
				Help: "Batch submissions by final status",
			},
			[]string{"blockchain", "status"},
		),

		BatchRetriesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "cachemon_batch_retries_total",
				Help: "Total batch submission retries",
			},
		),

		BatchDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cachemon_batch_duration_seconds",
				Help:    "Duration of one batch submission including retries",
				Buckets: prometheus.DefBuckets,
			},
		),

		AlertsTriggeredTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cachemon_alerts_triggered_total",
				Help: "Alerts fired by alert type",
			},
			[]string{"type"},
		),

		AlertsSuppressedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "cachemon_alerts_suppressed_total",
				Help: "Alert triggers suppressed by cooldown or count cap",
			},
		),

		RPCFailoversTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cachemon_rpc_failovers_total",
				Help: "Failovers from a primary RPC endpoint to a backup",
			},
			[]string{"blockchain"},
		),

		NotificationsSentTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cachemon_notifications_sent_total",
				Help: "Notifications delivered per channel",
			},
			[]string{"channel"},
		),

		NotificationFailuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cachemon_notification_failures_total",
				Help: "Notification deliveries that failed after retries",
			},
			[]string{"channel"},
		),

		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cachemon_http_requests_total",
				Help: "HTTP API requests",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cachemon_http_request_duration_seconds",
				Help:    "Duration of HTTP API requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		ApplicationUptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "cachemon_uptime_seconds",
				Help: "Seconds since the application started",
			},
		),

		ContractsMonitored: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cachemon_contracts_monitored",
				Help: "Number of monitored contracts per blockchain",
			},
			[]string{"blockchain"},
		),
	}
}

// RecordPollingCycle records one finished polling cycle
func (m *PrometheusMetrics) RecordPollingCycle(blockchain string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.PollingCyclesTotal.WithLabelValues(blockchain, status).Inc()
	m.PollingCycleDuration.WithLabelValues(blockchain).Observe(duration.Seconds())
}

// RecordCacheEvent counts one decoded cache manager event
func (m *PrometheusMetrics) RecordCacheEvent(blockchain, kind string) {
	m.CacheEventsSeenTotal.WithLabelValues(blockchain, kind).Inc()
}

// UpdateLastSyncedBlock updates the checkpoint gauge
func (m *PrometheusMetrics) UpdateLastSyncedBlock(blockchain string, block uint64) {
	m.LastSyncedBlock.WithLabelValues(blockchain).Set(float64(block))
}

// RecordContractStateFailure counts one isolated per-contract fetch failure
func (m *PrometheusMetrics) RecordContractStateFailure(blockchain string) {
	m.ContractStateFailures.WithLabelValues(blockchain).Inc()
}

// RecordSelection records one selection pass
func (m *PrometheusMetrics) RecordSelection(blockchain string, selected int, skipped map[string]int) {
	m.ContractsSelectedTotal.WithLabelValues(blockchain).Add(float64(selected))
	for reason, count := range skipped {
		m.ContractsSkippedTotal.WithLabelValues(blockchain, reason).Add(float64(count))
	}
}

// RecordBidAssessment records one bid safety assessment
func (m *PrometheusMetrics) RecordBidAssessment(blockchain string, eligible bool) {
	outcome := "eligible"
	if !eligible {
		outcome = "ineligible"
	}
	m.BidAssessmentsTotal.WithLabelValues(blockchain, outcome).Inc()
}

// RecordBatch records the terminal outcome of one batch
func (m *PrometheusMetrics) RecordBatch(blockchain string, success bool, retries int, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.BatchesSubmittedTotal.WithLabelValues(blockchain, status).Inc()
	if retries > 0 {
		m.BatchRetriesTotal.Add(float64(retries))
	}
	m.BatchDuration.Observe(duration.Seconds())
}

// RecordAlertTriggered counts one fired alert
func (m *PrometheusMetrics) RecordAlertTriggered(alertType string) {
	m.AlertsTriggeredTotal.WithLabelValues(alertType).Inc()
}

// RecordAlertSuppressed counts one suppressed trigger
func (m *PrometheusMetrics) RecordAlertSuppressed() {
	m.AlertsSuppressedTotal.Inc()
}

// RecordRPCFailover counts one primary-to-backup endpoint switch
func (m *PrometheusMetrics) RecordRPCFailover(blockchain string) {
	m.RPCFailoversTotal.WithLabelValues(blockchain).Inc()
}

// RecordNotificationSent counts one delivered notification
func (m *PrometheusMetrics) RecordNotificationSent(channel string) {
	m.NotificationsSentTotal.WithLabelValues(channel).Inc()
}

// RecordNotificationFailure counts one notification that failed for good
func (m *PrometheusMetrics) RecordNotificationFailure(channel string) {
	m.NotificationFailuresTotal.WithLabelValues(channel).Inc()
}

// RecordHTTPRequest records an API request
func (m *PrometheusMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateApplicationUptime updates the uptime gauge
func (m *PrometheusMetrics) UpdateApplicationUptime(startTime time.Time) {
	m.ApplicationUptime.Set(time.Since(startTime).Seconds())
}

// UpdateContractsMonitored updates the monitored contract gauge
func (m *PrometheusMetrics) UpdateContractsMonitored(blockchain string, count int) {
	m.ContractsMonitored.WithLabelValues(blockchain).Set(float64(count))
}
