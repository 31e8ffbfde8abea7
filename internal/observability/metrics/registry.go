package metrics

import (
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DBQueryDuration measures repository operations in seconds
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation"},
	)

	// DBQueryErrorsTotal counts failed repository operations
	DBQueryErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_query_errors_total",
			Help: "Total number of failed database queries",
		},
		[]string{"operation"},
	)

	// DBConnections reports pool connections by state
	DBConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_connections",
			Help: "Database pool connections by state",
		},
		[]string{"state"}, // state: in_use|idle|open
	)

	// DBWaitCount is the cumulative number of waits for a pool connection
	DBWaitCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connection_wait_count",
			Help: "Cumulative number of connections waited for",
		},
	)
)

// RecordDBQuery observes one repository operation. A non-nil err also
// increments the error counter.
func RecordDBQuery(operation string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrorsTotal.WithLabelValues(operation).Inc()
	}
}

// UpdateDBConnectionStats copies pool statistics into the gauges.
func UpdateDBConnectionStats(stats sql.DBStats) {
	DBConnections.WithLabelValues("in_use").Set(float64(stats.InUse))
	DBConnections.WithLabelValues("idle").Set(float64(stats.Idle))
	DBConnections.WithLabelValues("open").Set(float64(stats.OpenConnections))
	DBWaitCount.Set(float64(stats.WaitCount))
}
