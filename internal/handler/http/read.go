package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"schoolnotify/internal/domain/entity"
	"schoolnotify/internal/handler/http/pathutil"
	"schoolnotify/internal/handler/http/respond"
)

// ReadMarker is implemented by the delivery record repository.
type ReadMarker interface {
	MarkRead(ctx context.Context, id int64, at time.Time) error
}

// MarkReadHandler serves POST /notifications/{id}/read. Marking an already
// read record again moves read_at forward and still answers 204.
type MarkReadHandler struct {
	Records ReadMarker
	Now     func() time.Time
}

func (h *MarkReadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ParseID(r.PathValue("id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}

	if err := h.Records.MarkRead(r.Context(), id, now().UTC()); err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "notification not found")
			return
		}
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func isInvalidInput(err error) bool {
	var ve *entity.ValidationError
	return errors.Is(err, entity.ErrInvalidInput) || errors.As(err, &ve)
}
