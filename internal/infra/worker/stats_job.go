package worker

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"schoolnotify/internal/domain/entity"
	"schoolnotify/internal/observability/logging"
	"schoolnotify/internal/observability/metrics"
)

// StatsSource computes delivery statistics over [from, to).
type StatsSource interface {
	GetDeliveryStats(ctx context.Context, from, to *time.Time) (*entity.DeliveryStats, error)
}

// StatsJob summarises the trailing window of in-app records and exports the
// result as gauges.
type StatsJob struct {
	Stats   StatsSource
	Window  time.Duration
	Timeout time.Duration
	Metrics *WorkerMetrics
	Logger  *slog.Logger

	// DB, when set, has its pool statistics exported on every run.
	DB *sql.DB

	// Now defaults to time.Now.
	Now func() time.Time
}

// Run executes one pass. The window ends at the current time.
func (j *StatsJob) Run(ctx context.Context) error {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	start := time.Now()
	to := now().UTC()
	from := to.Add(-j.Window)

	if j.DB != nil {
		metrics.UpdateDBConnectionStats(j.DB.Stats())
	}

	stats, err := j.Stats.GetDeliveryStats(ctx, &from, &to)
	j.Metrics.RecordJobDuration(time.Since(start).Seconds())
	if err != nil {
		j.Metrics.RecordJobRun("failure")
		logger.Error("delivery stats failed",
			slog.Duration("window", j.Window),
			slog.String("error", logging.SanitizeError(err)))
		return fmt.Errorf("delivery stats: %w", err)
	}

	j.Metrics.RecordJobRun("success")
	j.Metrics.RecordLastSuccess()
	j.Metrics.SetWindowStats(stats)

	logger.Info("delivery stats updated",
		slog.Time("from", from),
		slog.Time("to", to),
		slog.Int64("total", stats.TotalNotifications),
		slog.Int64("delivered", stats.DeliveredNotifications),
		slog.Int("delivery_rate", stats.DeliveryRate),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Schedule registers job on a new cron in cfg's time zone. The caller starts
// and stops the returned cron. Runs never overlap.
func Schedule(cfg *WorkerConfig, job *StatsJob) (*cron.Cron, error) {
	c := cron.New(
		cron.WithLocation(cfg.Location()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(cfg.StatsSchedule, func() {
		_ = job.Run(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("schedule stats job: %w", err)
	}
	return c, nil
}
