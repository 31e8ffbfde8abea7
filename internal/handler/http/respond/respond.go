// Package respond writes JSON responses and maps domain errors to safe
// client-facing messages.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"schoolnotify/internal/domain/entity"
	"schoolnotify/internal/observability/logging"
)

// JSON writes a JSON response with the given status code and data.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			// headers are already sent
			slog.Default().Error("failed to encode JSON response",
				slog.Int("status_code", code),
				slog.Any("error", err))
		}
	}
}

// Error writes {"error": msg}.
func Error(w http.ResponseWriter, code int, msg string) {
	JSON(w, code, map[string]string{"error": msg})
}

// SafeError writes err for the client when it is a domain error the caller
// may see (validation, invalid input, not found). Anything else, and every
// 5xx, is logged with secrets masked and answered "internal server error".
func SafeError(w http.ResponseWriter, code int, err error) {
	if err == nil {
		return
	}

	if code < 500 && isClientSafe(err) {
		Error(w, code, err.Error())
		return
	}

	slog.Default().Error("internal server error",
		slog.String("status", http.StatusText(code)),
		slog.Int("code", code),
		slog.String("error", logging.SanitizeError(err)))
	Error(w, code, "internal server error")
}

func isClientSafe(err error) bool {
	var ve *entity.ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, entity.ErrInvalidInput) ||
		errors.Is(err, entity.ErrNotFound)
}
