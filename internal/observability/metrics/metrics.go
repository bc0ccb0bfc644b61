package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricPrefix = "climate_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	alertEventsTotal     *prometheus.CounterVec
	alertSuppressedTotal prometheus.Counter
	alertFailuresTotal   prometheus.Counter

	statsCacheTotal *prometheus.CounterVec
	statsLatency    *prometheus.HistogramVec

	exportTotal *prometheus.CounterVec

	notifyTotal *prometheus.CounterVec
)

// Init registers metrics and, when db is set, connection pool gauges.
func Init(db *sql.DB, logger *zap.Logger) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total ingest requests by transport and result",
			},
			[]string{"transport", "result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total ingest errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		alertEventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_events_total",
				Help: "Total alert lifecycle events by type",
			},
			[]string{"event"},
		)
		alertSuppressedTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_suppressed_total",
				Help: "Breaches not recorded because the room already had an active alert",
			},
		)
		alertFailuresTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_insert_failures_total",
				Help: "Alert inserts that failed after a reading was stored",
			},
		)

		statsCacheTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "stats_cache_total",
				Help: "Statistics cache lookups by outcome",
			},
			[]string{"outcome"},
		)
		statsLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "stats_latency_seconds",
				Help:    "Statistics aggregation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total exports by format and result",
			},
			[]string{"format", "result"},
		)

		notifyTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notify_total",
				Help: "Outbound alert notifications by channel and result",
			},
			[]string{"channel", "result"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestErrors,
			ingestLatency,
			alertEventsTotal,
			alertSuppressedTotal,
			alertFailuresTotal,
			statsCacheTotal,
			statsLatency,
			exportTotal,
			notifyTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

func registerDBMetrics(db *sql.DB, logger *zap.Logger) {
	gauge := func(name, help string, read func(sql.DBStats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: metricPrefix + name, Help: help},
			func() float64 { return read(db.Stats()) },
		)
	}
	collectors := []prometheus.Collector{
		gauge("db_open_connections", "Open database connections", func(s sql.DBStats) float64 { return float64(s.OpenConnections) }),
		gauge("db_in_use_connections", "Database connections in use", func(s sql.DBStats) float64 { return float64(s.InUse) }),
		gauge("db_wait_count", "Total waits for a database connection", func(s sql.DBStats) float64 { return float64(s.WaitCount) }),
	}
	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil && logger != nil {
			logger.Warn("db metric register failed", zap.Error(err))
		}
	}
}

// ObserveIngest records ingest request duration and result.
func ObserveIngest(transport, result string, duration time.Duration) {
	if transport == "" {
		transport = "http"
	}
	if result == "" {
		result = resultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(transport, result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncIngestError increments ingest error counter.
func IncIngestError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// IncAlertEvent increments alert lifecycle counters.
func IncAlertEvent(event string) {
	if event == "" {
		event = "unknown"
	}
	if alertEventsTotal != nil {
		alertEventsTotal.WithLabelValues(event).Inc()
	}
}

// IncAlertSuppressed counts a breach absorbed by deduplication.
func IncAlertSuppressed() {
	if alertSuppressedTotal != nil {
		alertSuppressedTotal.Inc()
	}
}

// IncAlertFailure counts a failed alert insert.
func IncAlertFailure() {
	if alertFailuresTotal != nil {
		alertFailuresTotal.Inc()
	}
}

// IncStatsCache records a cache hit or miss.
func IncStatsCache(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	if statsCacheTotal != nil {
		statsCacheTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveStats records aggregation latency and result.
func ObserveStats(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if statsLatency != nil {
		statsLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncExport counts an export by format.
func IncExport(format, result string) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
}

// IncNotify counts an outbound notification.
func IncNotify(channel, result string) {
	if channel == "" {
		channel = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if notifyTotal != nil {
		notifyTotal.WithLabelValues(channel, result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
