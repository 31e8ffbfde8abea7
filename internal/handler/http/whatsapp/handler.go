// Package whatsapp serves the WhatsApp Business webhook: the subscription
// handshake and delivery of inbound messages and status updates to a sink.
package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"schoolnotify/internal/handler/http/requestid"
	"schoolnotify/internal/handler/http/respond"
	"schoolnotify/internal/observability/logging"
	"schoolnotify/internal/observability/tracing"
)

// Path is the route the webhook is registered on.
const Path = "/webhooks/whatsapp"

// MaxBodyBytes limits POST payloads.
const MaxBodyBytes = 1 << 20

// SignatureHeader carries the HMAC-SHA256 of the raw body, keyed with the
// app secret, as "sha256=<hex>".
const SignatureHeader = "X-Hub-Signature-256"

// Handler answers GET verification and POST event delivery.
type Handler struct {
	verifyToken string
	appSecret   string
	sink        EventSink
}

// Option configures a Handler.
type Option func(*Handler)

// WithAppSecret requires every POST to carry a valid SignatureHeader.
// An empty secret leaves signature checking off.
func WithAppSecret(secret string) Option {
	return func(h *Handler) {
		h.appSecret = secret
	}
}

// NewHandler creates a webhook handler. An empty verifyToken rejects every
// verification attempt. A nil sink drops events after counting them.
func NewHandler(verifyToken string, sink EventSink, opts ...Option) *Handler {
	h := &Handler{verifyToken: verifyToken, sink: sink}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts h on mux at Path with request id and tracing middleware.
func Register(mux *http.ServeMux, h *Handler) {
	wrapped := requestid.Middleware(tracing.Middleware(h))
	mux.Handle("GET "+Path, wrapped)
	mux.Handle("POST "+Path, wrapped)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.verify(w, r)
	case http.MethodPost:
		h.receive(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		respond.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// verify implements the subscription handshake. Both the hub.* names used
// by Meta and bare names are accepted.
func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := firstParam(q.Get("hub.mode"), q.Get("mode"))
	token := firstParam(q.Get("hub.verify_token"), q.Get("token"))
	challenge := firstParam(q.Get("hub.challenge"), q.Get("challenge"))

	if h.verifyToken == "" || mode != "subscribe" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.verifyToken)) != 1 {
		webhookVerificationsTotal.WithLabelValues("rejected").Inc()
		logging.WithRequestID(r.Context(), slog.Default()).Warn("whatsapp webhook verification rejected",
			slog.String("mode", mode),
			slog.Bool("token_configured", h.verifyToken != ""))
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	webhookVerificationsTotal.WithLabelValues("accepted").Inc()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	logger := logging.WithRequestID(r.Context(), slog.Default())

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		webhookRejectedTotal.Inc()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		respond.Error(w, http.StatusBadRequest, "unreadable payload")
		return
	}

	if h.appSecret != "" && !validSignature(h.appSecret, payload, r.Header.Get(SignatureHeader)) {
		webhookRejectedTotal.Inc()
		logger.Warn("whatsapp webhook signature rejected",
			slog.Bool("signature_present", r.Header.Get(SignatureHeader) != ""))
		respond.Error(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		webhookRejectedTotal.Inc()
		logger.Warn("malformed whatsapp webhook payload", slog.Any("error", err))
		respond.Error(w, http.StatusBadRequest, "malformed payload")
		return
	}

	events := env.Events()
	for _, ev := range events {
		recordEvent(ev)
		if h.sink != nil {
			h.sink(r.Context(), ev)
		}
	}

	logger.Debug("whatsapp webhook processed",
		slog.String("object", env.Object),
		slog.Int("events", len(events)))
	respond.JSON(w, http.StatusOK, map[string]any{"status": "ok", "events": len(events)})
}

// validSignature checks header against HMAC-SHA256(secret, payload).
func validSignature(secret string, payload []byte, header string) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(got, mac.Sum(nil))
}

func firstParam(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
