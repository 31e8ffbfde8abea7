package whatsapp

import (
	"context"
	"log/slog"

	"schoolnotify/internal/infra/notifier"
	"schoolnotify/internal/observability/logging"
)

// LogSink returns an EventSink that writes each event to logger. Phone
// numbers are masked and message bodies are not logged.
func LogSink(logger *slog.Logger) EventSink {
	return func(ctx context.Context, ev Event) {
		l := logging.WithRequestID(ctx, logger)
		switch ev.Kind {
		case EventMessage:
			l.Info("whatsapp inbound message",
				slog.String("phone_number_id", ev.PhoneNumberID),
				slog.String("from", notifier.MaskSecret(ev.Message.From)),
				slog.String("message_id", ev.Message.ID),
				slog.String("type", ev.Message.Type))
		case EventStatus:
			attrs := []any{
				slog.String("phone_number_id", ev.PhoneNumberID),
				slog.String("message_id", ev.Status.ID),
				slog.String("status", ev.Status.Status),
				slog.String("recipient", notifier.MaskSecret(ev.Status.RecipientID)),
			}
			if len(ev.Status.Errors) > 0 {
				attrs = append(attrs,
					slog.Int("error_code", ev.Status.Errors[0].Code),
					slog.String("error_title", ev.Status.Errors[0].Title))
				l.Warn("whatsapp delivery failed", attrs...)
				return
			}
			l.Info("whatsapp delivery status", attrs...)
		}
	}
}
