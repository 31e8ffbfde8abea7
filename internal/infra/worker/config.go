package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"schoolnotify/internal/pkg/config"
)

// WorkerConfig holds the settings of the long-running worker process.
//
// Environment variables:
//   - STATS_CRON_SCHEDULE: five-field cron expression or descriptor (default "*/15 * * * *")
//   - WORKER_TIMEZONE: IANA zone the schedule is evaluated in (default "UTC")
//   - STATS_WINDOW: trailing window summarised by each stats run, 1m to 90 days (default 24h)
//   - STATS_TIMEOUT: upper bound of one stats run, 1s to 10m (default 30s)
//   - WORKER_HTTP_PORT: API, webhook and metrics listener (default 8080)
//   - WORKER_HEALTH_PORT: probe listener (default 9091)
//   - WORKER_SHUTDOWN_TIMEOUT: graceful shutdown budget, 1s to 2m (default 15s)
type WorkerConfig struct {
	StatsSchedule   string
	Timezone        string
	StatsWindow     time.Duration
	StatsTimeout    time.Duration
	HTTPPort        int
	HealthPort      int
	ShutdownTimeout time.Duration
}

const (
	minStatsWindow = time.Minute
	maxStatsWindow = 90 * 24 * time.Hour
)

// DefaultConfig returns the built-in worker settings.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		StatsSchedule:   "*/15 * * * *",
		Timezone:        "UTC",
		StatsWindow:     24 * time.Hour,
		StatsTimeout:    30 * time.Second,
		HTTPPort:        8080,
		HealthPort:      9091,
		ShutdownTimeout: 15 * time.Second,
	}
}

// Validate reports every invalid field at once.
func (c *WorkerConfig) Validate() error {
	var errs []error
	if err := config.ValidateCronSchedule(c.StatsSchedule); err != nil {
		errs = append(errs, fmt.Errorf("stats schedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := config.ValidateDuration(c.StatsWindow, minStatsWindow, maxStatsWindow); err != nil {
		errs = append(errs, fmt.Errorf("stats window: %w", err))
	}
	if err := config.ValidateDuration(c.StatsTimeout, time.Second, 10*time.Minute); err != nil {
		errs = append(errs, fmt.Errorf("stats timeout: %w", err))
	}
	if err := validPort(c.HTTPPort); err != nil {
		errs = append(errs, fmt.Errorf("http port: %w", err))
	}
	if err := validPort(c.HealthPort); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}
	if c.HTTPPort == c.HealthPort {
		errs = append(errs, fmt.Errorf("http port and health port are both %d", c.HTTPPort))
	}
	if err := config.ValidateDuration(c.ShutdownTimeout, time.Second, 2*time.Minute); err != nil {
		errs = append(errs, fmt.Errorf("shutdown timeout: %w", err))
	}
	return errors.Join(errs...)
}

// Location returns the schedule's time zone, or UTC if Timezone is unusable.
func (c *WorkerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func validPort(p int) error {
	return config.ValidateIntRange(p, 1024, 65535)
}

// LoadConfigFromEnv reads the worker settings from the environment. It never
// fails: a rejected value keeps its default, is logged at Warn and counted in
// metrics. A port clash falls back to both default ports.
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) *WorkerConfig {
	cfg := DefaultConfig()
	fallback := false

	note := func(field, warning string, applied bool) {
		if !applied {
			return
		}
		fallback = true
		metrics.RecordFallback(field)
		logger.Warn("configuration fallback applied",
			slog.String("field", field),
			slog.String("warning", warning))
	}

	s := config.LoadEnvWithFallback("STATS_CRON_SCHEDULE", cfg.StatsSchedule, config.ValidateCronSchedule)
	cfg.StatsSchedule = s.Value
	note("stats_schedule", s.Warning, s.FallbackApplied)

	s = config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone)
	cfg.Timezone = s.Value
	note("timezone", s.Warning, s.FallbackApplied)

	d := config.LoadEnvDuration("STATS_WINDOW", cfg.StatsWindow, func(v time.Duration) error {
		return config.ValidateDuration(v, minStatsWindow, maxStatsWindow)
	})
	cfg.StatsWindow = d.Value
	note("stats_window", d.Warning, d.FallbackApplied)

	d = config.LoadEnvDuration("STATS_TIMEOUT", cfg.StatsTimeout, func(v time.Duration) error {
		return config.ValidateDuration(v, time.Second, 10*time.Minute)
	})
	cfg.StatsTimeout = d.Value
	note("stats_timeout", d.Warning, d.FallbackApplied)

	p := config.LoadEnvInt("WORKER_HTTP_PORT", cfg.HTTPPort, validPort)
	cfg.HTTPPort = p.Value
	note("http_port", p.Warning, p.FallbackApplied)

	p = config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, validPort)
	cfg.HealthPort = p.Value
	note("health_port", p.Warning, p.FallbackApplied)

	if cfg.HTTPPort == cfg.HealthPort {
		def := DefaultConfig()
		note("ports", fmt.Sprintf("http and health ports both %d, falling back to %d and %d",
			cfg.HTTPPort, def.HTTPPort, def.HealthPort), true)
		cfg.HTTPPort, cfg.HealthPort = def.HTTPPort, def.HealthPort
	}

	d = config.LoadEnvDuration("WORKER_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout, func(v time.Duration) error {
		return config.ValidateDuration(v, time.Second, 2*time.Minute)
	})
	cfg.ShutdownTimeout = d.Value
	note("shutdown_timeout", d.Warning, d.FallbackApplied)

	metrics.SetFallbackActive(fallback)
	metrics.RecordLoadTimestamp()
	return &cfg
}
