// Package tracing provides OpenTelemetry tracing integration.
//
// Spans are created through the global tracer provider. The worker installs
// the SDK provider with Setup; until then every span is a no-op.
//
// The dispatcher opens a notify.Dispatch span per call with one
// notify.channel.<kind> child per channel. HTTP handlers are wrapped with
// Middleware, which continues W3C trace context from request headers.
package tracing
