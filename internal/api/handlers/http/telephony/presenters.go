package telephony

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"careAlert/pkg/e"
)

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, e.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, e.ErrTelephonyDisabled):
		status = http.StatusServiceUnavailable
	case errors.Is(err, e.ErrDeadline):
		status = http.StatusGatewayTimeout
	default:
		status = http.StatusBadGateway
	}

	h.log(r).Error("telephony request failed",
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Any("error", err),
	)
	h.writeJSON(w, status, map[string]any{"success": false, "error": err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("json encode failed", slog.Any("error", err))
	}
}
