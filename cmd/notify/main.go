// Command notify sends one notification to recipients resolved from the
// database and prints the delivery report.
//
// Usage:
//
//	notify -group class-3b -title "Trip" -message "Coach leaves at 8:15"
//	notify -ids 1,4 -title "Absence" -message "..." -type absence -sms -output json
//
// Exit codes: 0 sent, 1 failure, 2 no recipients matched.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"schoolnotify/internal/config"
	pgRepo "schoolnotify/internal/infra/adapter/persistence/postgres"
	"schoolnotify/internal/infra/db"
	"schoolnotify/internal/observability/logging"
	"schoolnotify/internal/usecase/notify"
)

const (
	exitOK           = 0
	exitFailure      = 1
	exitNoRecipients = 2
)

func main() {
	_ = godotenv.Load()
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	logger := logging.NewTextLogger()
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	database, err := db.Open(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", logging.SanitizeError(err))
		return exitFailure
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	recipients, err := pgRepo.NewRecipientRepo(database).Resolve(ctx, opts.target)
	if err != nil {
		fmt.Fprintf(stderr, "Error: resolve recipients: %s\n", logging.SanitizeError(err))
		return exitFailure
	}

	channelsCfg, err := config.LoadChannelsConfig()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	records := pgRepo.NewDeliveryRecordRepo(database)
	svc := notify.NewService(notify.BuildChannels(channelsCfg, records), records,
		notify.ServiceConfig{DispatchTimeout: channelsCfg.DispatchTimeout, SettleGrace: channelsCfg.SettleGrace})

	logger.Info("sending notification",
		slog.Int("recipients", len(recipients)),
		slog.String("group", opts.target.Group),
		slog.Int("ids", len(opts.target.RecipientIDs)))

	report, err := svc.SendNotification(ctx, recipients, opts.title, opts.message, opts.send)
	switch {
	case errors.Is(err, notify.ErrNoRecipients):
		fmt.Fprintln(stderr, "Error: no recipients matched")
		return exitNoRecipients
	case err != nil:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	if err := writeReport(stdout, opts.output, report); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	return exitOK
}

// defaultTimeout bounds resolution plus dispatch for one invocation.
const defaultTimeout = 5 * time.Minute
