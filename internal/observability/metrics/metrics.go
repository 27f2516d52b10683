package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricPrefix = "hydro_"

	resultSuccess = "success"
	resultError   = "error"

	commandResultAcked  = "acked"
	commandResultFailed = "failed"
)

var (
	registerOnce sync.Once

	readingsTotal *prometheus.CounterVec
	decodeIssues  *prometheus.CounterVec

	feedConnected  prometheus.Gauge
	feedReconnects prometheus.Counter

	historyEntries        prometheus.Gauge
	historyRefreshTotal   *prometheus.CounterVec
	historyRefreshLatency *prometheus.HistogramVec

	parameterStatus *prometheus.GaugeVec

	alertsFired      *prometheus.CounterVec
	alertsSuppressed *prometheus.CounterVec
	alertsDropped    prometheus.Counter
	notifyErrors     *prometheus.CounterVec

	commandRequests prometheus.Counter
	commandResults  *prometheus.CounterVec

	seriesExportTotal   *prometheus.CounterVec
	seriesExportLatency *prometheus.HistogramVec
)

var knownStatuses = []string{"satisfactory", "too_high", "too_low", "sensor_error", "unknown"}

// Init registers dashboard metrics and DB-backed gauges when db is set.
func Init(db *sql.DB, logger *zap.SugaredLogger) {
	registerOnce.Do(func() {
		readingsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "readings_total",
				Help: "Live readings by outcome",
			},
			[]string{"outcome"},
		)
		decodeIssues = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "decode_issues_total",
				Help: "Store records rejected or trimmed during decode by reason",
			},
			[]string{"reason"},
		)

		feedConnected = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "feed_connected",
				Help: "1 while the live feed subscription is connected",
			},
		)
		feedReconnects = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "feed_reconnects_total",
				Help: "Live feed reconnect attempts",
			},
		)

		historyEntries = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "history_entries",
				Help: "Entries in the current history snapshot",
			},
		)
		historyRefreshTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "history_refresh_total",
				Help: "History snapshot fetches by result",
			},
			[]string{"result"},
		)
		historyRefreshLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "history_refresh_latency_seconds",
				Help:    "History snapshot fetch latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		parameterStatus = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "parameter_status",
				Help: "1 for the current classification status of each parameter",
			},
			[]string{"parameter", "status"},
		)

		alertsFired = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_fired_total",
				Help: "Alerts fired by parameter and kind",
			},
			[]string{"parameter", "kind"},
		)
		alertsSuppressed = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_suppressed_total",
				Help: "Alerts suppressed by the cooldown by parameter and kind",
			},
			[]string{"parameter", "kind"},
		)
		alertsDropped = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_dropped_total",
				Help: "Alerts dropped because the delivery queue was full",
			},
		)
		notifyErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notify_errors_total",
				Help: "Notification delivery errors by sink",
			},
			[]string{"sink"},
		)

		commandRequests = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "pump_command_requests_total",
				Help: "Total issued pump commands",
			},
		)
		commandResults = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "pump_command_results_total",
				Help: "Pump command results by status",
			},
			[]string{"status"},
		)

		seriesExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "series_export_total",
				Help: "Series exports by format and result",
			},
			[]string{"format", "result"},
		)
		seriesExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "series_export_latency_seconds",
				Help:    "Series export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			readingsTotal,
			decodeIssues,
			feedConnected,
			feedReconnects,
			historyEntries,
			historyRefreshTotal,
			historyRefreshLatency,
			parameterStatus,
			alertsFired,
			alertsSuppressed,
			alertsDropped,
			notifyErrors,
			commandRequests,
			commandResults,
			seriesExportTotal,
			seriesExportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// IncReading counts a live reading by outcome (accepted, stale).
func IncReading(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	if readingsTotal != nil {
		readingsTotal.WithLabelValues(outcome).Inc()
	}
}

// IncDecodeIssue counts a decode issue.
func IncDecodeIssue(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if decodeIssues != nil {
		decodeIssues.WithLabelValues(reason).Inc()
	}
}

// SetFeedConnected records the live feed state.
func SetFeedConnected(connected bool) {
	if feedConnected == nil {
		return
	}
	if connected {
		feedConnected.Set(1)
		return
	}
	feedConnected.Set(0)
}

// IncFeedReconnect counts a reconnect attempt.
func IncFeedReconnect() {
	if feedReconnects != nil {
		feedReconnects.Inc()
	}
}

// ObserveHistoryRefresh records a history fetch.
func ObserveHistoryRefresh(result string, entries int, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if historyRefreshTotal != nil {
		historyRefreshTotal.WithLabelValues(result).Inc()
	}
	if historyRefreshLatency != nil {
		historyRefreshLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
	if result == resultSuccess && historyEntries != nil {
		historyEntries.Set(float64(entries))
	}
}

// SetParameterStatus marks status as current for parameter.
func SetParameterStatus(parameter, status string) {
	if parameterStatus == nil || parameter == "" {
		return
	}
	for _, known := range knownStatuses {
		value := 0.0
		if known == status {
			value = 1
		}
		parameterStatus.WithLabelValues(parameter, known).Set(value)
	}
}

// IncAlertFired counts a fired alert.
func IncAlertFired(parameter, kind string) {
	if alertsFired != nil {
		alertsFired.WithLabelValues(parameter, kind).Inc()
	}
}

// IncAlertSuppressed counts an alert swallowed by the cooldown.
func IncAlertSuppressed(parameter, kind string) {
	if alertsSuppressed != nil {
		alertsSuppressed.WithLabelValues(parameter, kind).Inc()
	}
}

// IncAlertDropped counts an alert dropped before delivery.
func IncAlertDropped() {
	if alertsDropped != nil {
		alertsDropped.Inc()
	}
}

// IncNotifyError counts a delivery failure for sink.
func IncNotifyError(sink string) {
	if sink == "" {
		sink = "unknown"
	}
	if notifyErrors != nil {
		notifyErrors.WithLabelValues(sink).Inc()
	}
}

// IncCommandIssued increments issued command counter.
func IncCommandIssued() {
	if commandRequests != nil {
		commandRequests.Inc()
	}
}

// IncCommandResult increments command result counter.
func IncCommandResult(status string) {
	if status == "" {
		status = "unknown"
	}
	if commandResults != nil {
		commandResults.WithLabelValues(status).Inc()
	}
}

// ObserveSeriesExport records export latency and result.
func ObserveSeriesExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if seriesExportTotal != nil {
		seriesExportTotal.WithLabelValues(format, result).Inc()
	}
	if seriesExportLatency != nil {
		seriesExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	CommandResultAcked  = commandResultAcked
	CommandResultFailed = commandResultFailed
)
