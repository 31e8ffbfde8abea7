// Command worker runs the long-lived notifier process: the operational HTTP
// API with the WhatsApp webhook, a probe server, and the scheduled delivery
// statistics job.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"schoolnotify/internal/config"
	handlerhttp "schoolnotify/internal/handler/http"
	"schoolnotify/internal/handler/http/whatsapp"
	pgRepo "schoolnotify/internal/infra/adapter/persistence/postgres"
	"schoolnotify/internal/infra/db"
	workerPkg "schoolnotify/internal/infra/worker"
	"schoolnotify/internal/observability/logging"
	"schoolnotify/internal/observability/tracing"
	"schoolnotify/internal/usecase/notify"
	pkgconfig "schoolnotify/pkg/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional; values already in the environment win.
	_ = godotenv.Load()

	logger := logging.NewLogger()
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("worker stopped with error", slog.String("error", logging.SanitizeError(err)))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := tracing.Setup(version, pkgconfig.GetEnvFloat("TRACE_SAMPLE_RATIO", 1))
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", slog.Any("error", err))
		}
	}()

	metrics := workerPkg.NewWorkerMetrics(nil)
	cfg := workerPkg.LoadConfigFromEnv(logger, metrics)
	logger.Info("worker configuration loaded",
		slog.String("stats_schedule", cfg.StatsSchedule),
		slog.String("timezone", cfg.Timezone),
		slog.Duration("stats_window", cfg.StatsWindow),
		slog.Int("http_port", cfg.HTTPPort),
		slog.Int("health_port", cfg.HealthPort))

	database, err := initDatabase(ctx, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	channelsCfg, err := config.LoadChannelsConfig()
	if err != nil {
		return err
	}
	records := pgRepo.NewDeliveryRecordRepo(database)
	channels := notify.BuildChannels(channelsCfg, records)
	svc := notify.NewService(channels, records, notify.ServiceConfig{DispatchTimeout: channelsCfg.DispatchTimeout, SettleGrace: channelsCfg.SettleGrace})
	logger.Info("notification service initialized",
		slog.Int("channels", len(channels)),
		slog.String("email_transport", channelsCfg.EmailTransportName()),
		slog.String("unconfigured_policy", string(channelsCfg.UnconfiguredPolicy)))

	health := workerPkg.NewHealthServer(fmt.Sprintf(":%d", cfg.HealthPort), logger)
	health.AddCheck("database", database.PingContext)
	go func() {
		if err := health.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	var webhook *whatsapp.Handler
	if token := channelsCfg.WhatsApp.Client.VerifyToken; token != "" {
		webhook = whatsapp.NewHandler(token, whatsapp.LogSink(logger),
			whatsapp.WithAppSecret(channelsCfg.WhatsApp.Client.AppSecret))
		if channelsCfg.WhatsApp.Client.AppSecret == "" {
			logger.Warn("whatsapp webhook accepts unsigned events: WHATSAPP_APP_SECRET not set")
		}
	} else {
		logger.Info("whatsapp webhook disabled: WHATSAPP_VERIFY_TOKEN not set")
	}

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: handlerhttp.NewRouter(handlerhttp.RouterDeps{
			Logger:   logger,
			DB:       database,
			Notifier: svc,
			Records:  records,
			WhatsApp: webhook,
			Version:  version,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	job := &workerPkg.StatsJob{
		Stats:   svc,
		Window:  cfg.StatsWindow,
		Timeout: cfg.StatsTimeout,
		Metrics: metrics,
		Logger:  logger,
		DB:      database,
	}
	scheduler, err := workerPkg.Schedule(cfg, job)
	if err != nil {
		return err
	}
	scheduler.Start()
	go func() { _ = job.Run(ctx) }()

	health.SetReady(true)
	logger.Info("worker started",
		slog.String("version", version),
		slog.String("schedule", cfg.StatsSchedule),
		slog.String("timezone", cfg.Timezone))

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("http server failed", slog.Any("error", err))
	}

	health.SetReady(false)
	<-scheduler.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	logger.Info("worker stopped")
	return nil
}

func initDatabase(ctx context.Context, logger *slog.Logger) (*sql.DB, error) {
	database, err := db.Open(ctx)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(ctx, database); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if pkgconfig.GetEnvBool("SEED_DEMO_DATA", false) {
		if err := db.SeedDemo(ctx, database); err != nil {
			_ = database.Close()
			return nil, err
		}
		logger.Info("demo recipients seeded")
	}
	return database, nil
}
