// Package logging provides structured logging helpers on top of log/slog.
//
// Binaries build the root logger with NewLogger (JSON) or NewTextLogger and
// install it with slog.SetDefault. LOG_LEVEL selects debug, info, warn or
// error. Loggers scoped to a dispatch or HTTP request carry its request_id via
// WithRequestID.
//
// Provider credentials never reach log output in clear text; wrap DSNs, URLs
// and tokens in SanitizeSecret before logging them.
//
//	logger := logging.NewLogger()
//	slog.SetDefault(logger)
//	logger.Info("database configured", slog.String("dsn", logging.SanitizeSecret(dsn)))
package logging
