package http

import (
	"database/sql"
	"log/slog"
	"net/http"

	"schoolnotify/internal/handler/http/requestid"
	"schoolnotify/internal/handler/http/whatsapp"
	"schoolnotify/internal/usecase/notify"
)

// maxBodyBytes caps every request body. The webhook applies its own limit
// of the same size.
const maxBodyBytes = whatsapp.MaxBodyBytes

// RouterDeps are the collaborators of NewRouter. Nil optional fields leave
// their routes unregistered.
type RouterDeps struct {
	Logger   *slog.Logger
	DB       *sql.DB
	Notifier notify.Service
	Records  ReadMarker
	WhatsApp *whatsapp.Handler
	Version  string
}

// NewRouter builds the worker's HTTP handler.
//
//	GET  /health                   database + channel summary
//	GET  /health/live              liveness
//	GET  /health/ready             readiness (database ping)
//	GET  /health/channels          per-provider channel report
//	GET  /metrics                  Prometheus
//	GET  /stats?from=&to=          delivery statistics
//	POST /notifications/{id}/read  read receipt
//	GET  /webhooks/whatsapp        subscription handshake
//	POST /webhooks/whatsapp        inbound events
func NewRouter(d RouterDeps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	health := &HealthHandler{DB: d.DB, Version: d.Version}
	if d.Notifier != nil {
		health.Channels = d.Notifier
		mux.Handle("GET /health/channels", &ChannelHealthHandler{Channels: d.Notifier})
		mux.Handle("GET /stats", &StatsHandler{Stats: d.Notifier})
	}
	mux.Handle("GET /health", health)
	mux.Handle("GET /health/live", LiveHandler{})
	mux.Handle("GET /health/ready", &ReadyHandler{DB: d.DB})
	mux.Handle("GET /metrics", MetricsHandler())

	if d.Records != nil {
		mux.Handle("POST /notifications/{id}/read", &MarkReadHandler{Records: d.Records})
	}
	if d.WhatsApp != nil {
		whatsapp.Register(mux, d.WhatsApp)
	}

	return Chain(mux,
		requestid.Middleware,
		Recover(logger),
		Logging(logger),
		MetricsMiddleware,
		LimitRequestBody(maxBodyBytes),
	)
}
