package alerts

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"careAlert/internal/domain"
	"careAlert/internal/middleware"
	"careAlert/internal/subscription"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

//go:generate mockgen -source=handlers.go -destination=mocks/mock.go
type Lifecycle interface {
	CreateAlert(ctx context.Context, p domain.Principal, req domain.CreateAlertRequest) (*domain.Alert, error)
	GetAlert(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Alert, error)
	RespondToAlert(ctx context.Context, p domain.Principal, id uuid.UUID, req domain.RespondRequest) (*domain.Alert, bool, error)
	UpdateResponderStatus(ctx context.Context, p domain.Principal, id uuid.UUID, status domain.ResponderStatus) (*domain.Alert, error)
	ResolveAlert(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Alert, error)
	CancelAlert(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Alert, error)
	PatientHistory(ctx context.Context, p domain.Principal, patientID string) ([]*domain.Alert, error)
}

type StatsGetter interface {
	GetStats(ctx context.Context, req domain.StatsRequest) (*domain.AlertStats, error)
}

type Subscriptions interface {
	SubscribeCaregiver(ctx context.Context, f subscription.CaregiverFilter, onUpdate func([]domain.Alert)) (func(), error)
	SubscribeAlert(ctx context.Context, alertID uuid.UUID, onUpdate func(*domain.Alert)) (func(), error)
}

type UserGetter interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

type Handler struct {
	logger *slog.Logger
	Alerts Lifecycle
	Stats  StatsGetter
	Subs   Subscriptions
	Users  UserGetter
}

func NewHandler(logger *slog.Logger, alerts Lifecycle, stats StatsGetter, subs Subscriptions, users UserGetter) *Handler {
	return &Handler{
		logger: logger,
		Alerts: alerts,
		Stats:  stats,
		Subs:   subs,
		Users:  users,
	}
}

func (h *Handler) AlertCreate(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	req, err := middleware.BindJSON[domain.CreateAlertRequest](r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	alert, err := h.Alerts.CreateAlert(r.Context(), p, req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	l.Info("alert raised", slog.String("alert_id", alert.ID.String()), slog.String("patient_id", p.UserID))
	h.writeJSON(w, http.StatusCreated, alert)
}

func (h *Handler) AlertGet(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := h.alertID(w, r)
	if !ok {
		return
	}

	alert, err := h.Alerts.GetAlert(r.Context(), p, id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, alert)
}

func (h *Handler) AlertRespond(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := h.alertID(w, r)
	if !ok {
		return
	}

	req, err := middleware.BindJSON[domain.RespondRequest](r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	alert, already, err := h.Alerts.RespondToAlert(r.Context(), p, id, req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if already {
		l.Info("caregiver already responding", slog.String("alert_id", id.String()), slog.String("caregiver_id", p.UserID))
	}
	h.writeJSON(w, http.StatusOK, domain.RespondResponse{Alert: alert, AlreadyResponding: already})
}

func (h *Handler) ResponderUpdate(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := h.alertID(w, r)
	if !ok {
		return
	}

	req, err := middleware.BindJSON[domain.UpdateResponderRequest](r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	alert, err := h.Alerts.UpdateResponderStatus(r.Context(), p, id, req.Status)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, alert)
}

func (h *Handler) AlertResolve(w http.ResponseWriter, r *http.Request) {
	h.close(w, r, h.Alerts.ResolveAlert)
}

func (h *Handler) AlertCancel(w http.ResponseWriter, r *http.Request) {
	h.close(w, r, h.Alerts.CancelAlert)
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request, fn func(context.Context, domain.Principal, uuid.UUID) (*domain.Alert, error)) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := h.alertID(w, r)
	if !ok {
		return
	}

	alert, err := fn(r.Context(), p, id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, alert)
}

func (h *Handler) PatientAlerts(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	patientID := chi.URLParam(r, "id")

	list, err := h.Alerts.PatientHistory(r.Context(), p, patientID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	out := domain.ListAlertsResponse{Alerts: make([]domain.Alert, 0, len(list)), Total: len(list)}
	for _, a := range list {
		out.Alerts = append(out.Alerts, *a)
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) AlertStats(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("AlertStats", slog.String("query", r.URL.RawQuery), slog.String("remote", r.RemoteAddr))

	minutesStr := r.URL.Query().Get("minutes")
	if minutesStr == "" {
		minutesStr = "60"
	}

	minutes, err := strconv.Atoi(minutesStr)
	if err != nil || minutes <= 0 || minutes > 1440 {
		l.Warn("invalid minutes", slog.String("minutes", minutesStr))
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "minutes must be 1-1440"})
		return
	}

	stats, err := h.Stats.GetStats(r.Context(), domain.StatsRequest{Minutes: minutes})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}
