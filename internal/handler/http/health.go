// Package http serves the operational HTTP surface of the notifier: health
// probes, Prometheus metrics, delivery statistics, read receipts and the
// WhatsApp webhook.
package http

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"schoolnotify/internal/handler/http/respond"
	"schoolnotify/internal/usecase/notify"
)

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// HealthResponse represents the JSON response for health check endpoints.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"` // RFC 3339, UTC
	Checks    map[string]CheckStatus `json:"checks"`
	Version   string                 `json:"version,omitempty"`
}

// CheckStatus represents the status of a single health check.
type CheckStatus struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// HealthHandler reports database connectivity and channel health. Only the
// database decides the HTTP status; degraded channels are informational.
type HealthHandler struct {
	DB       *sql.DB
	Channels ChannelHealthReporter
	Version  string
}

// ChannelHealthReporter is implemented by notify.Service.
type ChannelHealthReporter interface {
	GetChannelHealth() []notify.ChannelHealthStatus
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]CheckStatus, 2)
	status, code := statusHealthy, http.StatusOK

	if h.DB != nil {
		db := checkDatabase(ctx, h.DB)
		checks["database"] = db
		if db.Status == statusUnhealthy {
			status, code = statusUnhealthy, http.StatusServiceUnavailable
		} else if db.Status == statusDegraded {
			status = statusDegraded
		}
	} else {
		checks["database"] = CheckStatus{Status: statusUnhealthy, Message: "not configured"}
		status, code = statusUnhealthy, http.StatusServiceUnavailable
	}

	if h.Channels != nil {
		ch := summarizeChannels(h.Channels.GetChannelHealth())
		checks["channels"] = ch
		if ch.Status != statusHealthy && status == statusHealthy {
			status = statusDegraded
		}
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	respond.JSON(w, code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Version:   h.Version,
	})
}

// checkDatabase pings db and reports pool usage. A pool at 80% or more of
// its limit is degraded.
func checkDatabase(ctx context.Context, db *sql.DB) CheckStatus {
	if err := db.PingContext(ctx); err != nil {
		return CheckStatus{Status: statusUnhealthy, Message: "ping failed"}
	}

	stats := db.Stats()
	details := map[string]any{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	}

	if stats.MaxOpenConnections == 0 {
		return CheckStatus{Status: statusDegraded, Message: "connection pool limit not configured", Details: details}
	}

	utilization := float64(stats.InUse) / float64(stats.MaxOpenConnections) * 100
	details["utilization_percent"] = utilization
	if utilization >= 80.0 {
		return CheckStatus{Status: statusDegraded, Message: "connection pool utilization above 80%", Details: details}
	}
	return CheckStatus{Status: statusHealthy, Details: details}
}

// summarizeChannels is healthy when every registered channel is, unhealthy
// when none is, degraded otherwise.
func summarizeChannels(statuses []notify.ChannelHealthStatus) CheckStatus {
	details := make(map[string]any, len(statuses))
	registered, healthy := 0, 0
	for _, s := range statuses {
		if !s.Registered {
			details[string(s.Channel)] = "not registered"
			continue
		}
		registered++
		if s.Healthy {
			healthy++
			details[string(s.Channel)] = statusHealthy
		} else {
			details[string(s.Channel)] = statusUnhealthy
		}
	}

	switch {
	case registered > 0 && healthy == registered:
		return CheckStatus{Status: statusHealthy, Details: details}
	case healthy == 0:
		return CheckStatus{Status: statusUnhealthy, Message: "no healthy channel", Details: details}
	default:
		return CheckStatus{Status: statusDegraded, Details: details}
	}
}

// ChannelHealthHandler serves the full provider-level channel report.
type ChannelHealthHandler struct {
	Channels ChannelHealthReporter
}

// ChannelHealthResponse is the body of /health/channels.
type ChannelHealthResponse struct {
	Status    string                       `json:"status"`
	Timestamp string                       `json:"timestamp"`
	Channels  []notify.ChannelHealthStatus `json:"channels"`
}

func (h *ChannelHealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	statuses := h.Channels.GetChannelHealth()
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	respond.JSON(w, http.StatusOK, ChannelHealthResponse{
		Status:    summarizeChannels(statuses).Status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Channels:  statuses,
	})
}

// ReadyHandler answers readiness probes: 200 once the database answers.
type ReadyHandler struct {
	DB *sql.DB
}

func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.DB == nil {
		http.Error(w, "database not configured", http.StatusServiceUnavailable)
		return
	}
	if err := h.DB.PingContext(ctx); err != nil {
		http.Error(w, "database not ready", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// LiveHandler answers liveness probes.
type LiveHandler struct{}

func (LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("alive"))
}
