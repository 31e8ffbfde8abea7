package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"schoolnotify/internal/domain/entity"
	"schoolnotify/internal/pkg/config"
)

// WorkerMetrics holds the worker's configuration and stats job metrics.
//
// Job metrics:
//   - worker_stats_job_runs_total{status}: runs by status (success, failure)
//   - worker_stats_job_duration_seconds: run duration
//   - worker_stats_job_last_success_timestamp: Unix time of the last successful run
//
// Delivery gauges, refreshed by every successful run over the configured window:
//   - notify_window_notifications_total
//   - notify_window_notifications_delivered
//   - notify_window_delivery_rate_percent
type WorkerMetrics struct {
	*config.ConfigMetrics

	StatsJobRunsTotal          *prometheus.CounterVec
	StatsJobDurationSeconds    prometheus.Histogram
	StatsJobLastSuccessSeconds prometheus.Gauge

	WindowTotal        prometheus.Gauge
	WindowDelivered    prometheus.Gauge
	WindowDeliveryRate prometheus.Gauge
}

// NewWorkerMetrics registers the worker metrics with reg, or with the default
// registerer when reg is nil. Call it once per registry.
func NewWorkerMetrics(reg prometheus.Registerer) *WorkerMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics(reg, "worker"),

		StatsJobRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_stats_job_runs_total",
			Help: "Total delivery stats job runs by status",
		}, []string{"status"}),
		StatsJobDurationSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_stats_job_duration_seconds",
			Help:    "Duration of delivery stats job runs",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}),
		StatsJobLastSuccessSeconds: f.NewGauge(prometheus.GaugeOpts{
			Name: "worker_stats_job_last_success_timestamp",
			Help: "Unix timestamp of the last successful delivery stats run",
		}),

		WindowTotal: f.NewGauge(prometheus.GaugeOpts{
			Name: "notify_window_notifications_total",
			Help: "In-app notifications created within the stats window",
		}),
		WindowDelivered: f.NewGauge(prometheus.GaugeOpts{
			Name: "notify_window_notifications_delivered",
			Help: "In-app notifications within the stats window that have been read",
		}),
		WindowDeliveryRate: f.NewGauge(prometheus.GaugeOpts{
			Name: "notify_window_delivery_rate_percent",
			Help: "Read rate of in-app notifications within the stats window (0-100)",
		}),
	}
}

// RecordJobRun counts one stats job run with status success or failure.
func (m *WorkerMetrics) RecordJobRun(status string) {
	m.StatsJobRunsTotal.WithLabelValues(status).Inc()
}

// RecordJobDuration observes the duration of one run in seconds.
func (m *WorkerMetrics) RecordJobDuration(seconds float64) {
	m.StatsJobDurationSeconds.Observe(seconds)
}

// RecordLastSuccess stamps the last successful run with the current time.
func (m *WorkerMetrics) RecordLastSuccess() {
	m.StatsJobLastSuccessSeconds.SetToCurrentTime()
}

// SetWindowStats publishes the latest window summary.
func (m *WorkerMetrics) SetWindowStats(s *entity.DeliveryStats) {
	m.WindowTotal.Set(float64(s.TotalNotifications))
	m.WindowDelivered.Set(float64(s.DeliveredNotifications))
	m.WindowDeliveryRate.Set(float64(s.DeliveryRate))
}
