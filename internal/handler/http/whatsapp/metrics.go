package whatsapp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// webhookEventsTotal tracks events handed to the sink
	webhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsapp_webhook_events_total",
			Help: "Total number of WhatsApp webhook events received",
		},
		[]string{"kind"}, // kind: message|status
	)

	// webhookStatusesTotal tracks delivery statuses reported by WhatsApp
	webhookStatusesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsapp_webhook_statuses_total",
			Help: "Total number of WhatsApp delivery statuses by state",
		},
		[]string{"status"},
	)

	// webhookVerificationsTotal tracks subscription handshakes
	webhookVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsapp_webhook_verifications_total",
			Help: "Total number of WhatsApp webhook verification attempts",
		},
		[]string{"result"}, // result: accepted|rejected
	)

	// webhookRejectedTotal tracks POST bodies that could not be decoded
	webhookRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whatsapp_webhook_rejected_total",
			Help: "Total number of malformed WhatsApp webhook payloads",
		},
	)
)

func recordEvent(ev Event) {
	webhookEventsTotal.WithLabelValues(string(ev.Kind)).Inc()
	if ev.Status != nil && ev.Status.Status != "" {
		webhookStatusesTotal.WithLabelValues(ev.Status.Status).Inc()
	}
}
