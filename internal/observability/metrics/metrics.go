package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "coldrig_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	recordsProcessed *prometheus.CounterVec
	alarmsTotal      *prometheus.CounterVec
	evalErrors       *prometheus.CounterVec

	activeSessions prometheus.Gauge
	sessionsTotal  *prometheus.CounterVec

	reportExportTotal   *prometheus.CounterVec
	reportExportLatency *prometheus.HistogramVec
)

// Init registers monitoring metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		recordsProcessed = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "records_processed_total",
				Help: "Total sensor records evaluated by workstation",
			},
			[]string{"workstation"},
		)
		alarmsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alarms_total",
				Help: "Total alarms emitted by severity",
			},
			[]string{"severity"},
		)
		evalErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rule_eval_errors_total",
				Help: "Total skipped rule evaluations by rule",
			},
			[]string{"rule"},
		)

		activeSessions = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "active_sessions",
				Help: "Sessions currently running",
			},
		)
		sessionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sessions_total",
				Help: "Total sessions by terminal result",
			},
			[]string{"result"},
		)

		reportExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total report exports by format and result",
			},
			[]string{"format", "result"},
		)
		reportExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			recordsProcessed,
			alarmsTotal,
			evalErrors,
			activeSessions,
			sessionsTotal,
			reportExportTotal,
			reportExportLatency,
		)
	})
}

// AddRecordsProcessed increments the processed record counter.
func AddRecordsProcessed(workstation string, count int) {
	if count <= 0 {
		return
	}
	if workstation == "" {
		workstation = "unknown"
	}
	if recordsProcessed != nil {
		recordsProcessed.WithLabelValues(workstation).Add(float64(count))
	}
}

// IncAlarm increments the alarm counter for a severity.
func IncAlarm(severity string) {
	if severity == "" {
		severity = "unknown"
	}
	if alarmsTotal != nil {
		alarmsTotal.WithLabelValues(severity).Inc()
	}
}

// IncEvalError counts a skipped rule evaluation.
func IncEvalError(ruleID string) {
	if ruleID == "" {
		ruleID = "unknown"
	}
	if evalErrors != nil {
		evalErrors.WithLabelValues(ruleID).Inc()
	}
}

// SessionStarted bumps the running session gauge.
func SessionStarted() {
	if activeSessions != nil {
		activeSessions.Inc()
	}
}

// SessionFinished drops the gauge and records the terminal result.
func SessionFinished(result string) {
	if result == "" {
		result = resultSuccess
	}
	if activeSessions != nil {
		activeSessions.Dec()
	}
	if sessionsTotal != nil {
		sessionsTotal.WithLabelValues(result).Inc()
	}
}

// ObserveReportExport records export latency and result.
func ObserveReportExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportExportTotal != nil {
		reportExportTotal.WithLabelValues(format, result).Inc()
	}
	if reportExportLatency != nil {
		reportExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported result constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
