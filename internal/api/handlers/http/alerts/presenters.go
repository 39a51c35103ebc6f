package alerts

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"careAlert/internal/domain"
	"careAlert/internal/middleware"
	"careAlert/pkg/e"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)

	l := h.log(r)
	attrs := []any{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Any("error", err),
	}
	if status >= http.StatusInternalServerError {
		l.Error("handler error", attrs...)
	} else {
		l.Warn("request rejected", attrs...)
	}

	h.writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps error sentinels onto HTTP codes. Client errors keep their
// message, server errors are reported generically.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, e.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, e.ErrInvalidCoordinates):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, e.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, e.ErrInvalidTransition),
		errors.Is(err, e.ErrDuplicateResponder),
		errors.Is(err, e.ErrConflict),
		errors.Is(err, e.ErrUniqueViolation):
		return http.StatusConflict, err.Error()
	case errors.Is(err, e.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, e.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, e.ErrDeadline):
		return http.StatusGatewayTimeout, "deadline exceeded"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	return p, ok
}

func (h *Handler) alertID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.log(r).Warn("invalid id", slog.String("id", idStr), slog.String("error", err.Error()))
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) log(r *http.Request) *slog.Logger {
	reqID := chimw.GetReqID(r.Context())
	if reqID == "" {
		return h.logger
	}
	return h.logger.With(slog.String("request_id", reqID))
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("json encode failed", slog.Any("error", err))
	}
}
