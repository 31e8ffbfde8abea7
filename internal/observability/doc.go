// Package observability groups the logging, metrics and tracing helpers.
//
// Subpackages:
//   - logging: slog construction, request-scoped loggers, secret masking
//   - metrics: database query and connection pool metrics
//   - tracing: the schoolnotify tracer and HTTP span middleware
package observability
