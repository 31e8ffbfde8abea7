package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"schoolnotify/internal/domain/entity"
	"schoolnotify/internal/handler/http/respond"
)

// StatsProvider is implemented by notify.Service.
type StatsProvider interface {
	GetDeliveryStats(ctx context.Context, from, to *time.Time) (*entity.DeliveryStats, error)
}

// StatsHandler serves GET /stats?from=&to=. Bounds are RFC 3339 timestamps
// or YYYY-MM-DD dates (UTC midnight) and either may be omitted.
type StatsHandler struct {
	Stats StatsProvider
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseBound("from", q.Get("from"))
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := parseBound("to", q.Get("to"))
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	stats, err := h.Stats.GetDeliveryStats(r.Context(), from, to)
	if err != nil {
		code := http.StatusInternalServerError
		if isInvalidInput(err) {
			code = http.StatusBadRequest
		}
		respond.SafeError(w, code, err)
		return
	}
	respond.JSON(w, http.StatusOK, stats)
}

func parseBound(name, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, &entity.ValidationError{Field: name, Message: fmt.Sprintf("%s must be an RFC 3339 timestamp or YYYY-MM-DD date", name)}
}
