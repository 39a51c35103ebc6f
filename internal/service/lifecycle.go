package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"careAlert/internal/domain"
	"careAlert/internal/geo"
	"careAlert/pkg/e"

	"github.com/google/uuid"
)

type alertLifecycle struct {
	store  *AlertStore
	dir    Directory
	router Router
	logger *slog.Logger
	now    func() time.Time

	// routing runs detached from the request so a slow directory never
	// delays the patient's confirmation
	routeTimeout time.Duration
}

func NewAlertLifecycle(store *AlertStore, dir Directory, router Router, logger *slog.Logger) AlertLifecycleService {
	return &alertLifecycle{
		store:        store,
		dir:          dir,
		router:       router,
		logger:       logger,
		now:          time.Now,
		routeTimeout: 30 * time.Second,
	}
}

func (s *alertLifecycle) CreateAlert(ctx context.Context, p domain.Principal, req domain.CreateAlertRequest) (*domain.Alert, error) {
	if !p.IsPatient() {
		return nil, fmt.Errorf("only patients can create alerts: %w", e.ErrForbidden)
	}

	alert, err := s.store.Create(ctx, p.UserID, req.Location(), req.Severity)
	if err != nil {
		s.logger.Error("create alert failed", slog.String("patient_id", p.UserID), slog.Any("error", err))
		return nil, err
	}

	s.logger.Info("alert created",
		slog.String("alert_id", alert.ID.String()),
		slog.String("patient_id", alert.PatientID),
		slog.String("severity", string(alert.Severity)),
	)

	routed := alert.Clone()
	go func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.routeTimeout)
		defer cancel()
		s.router.RouteNewAlert(rctx, routed)
	}()

	return alert, nil
}

func (s *alertLifecycle) GetAlert(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Alert, error) {
	alert, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.IsPatient() && alert.PatientID != p.UserID {
		return nil, fmt.Errorf("alert %s belongs to another patient: %w", id, e.ErrForbidden)
	}
	return alert, nil
}

// RespondToAlert records a caregiver's acknowledgment. The bool result is
// true when the caregiver was already responding; callers treat that as success.
func (s *alertLifecycle) RespondToAlert(ctx context.Context, p domain.Principal, id uuid.UUID, req domain.RespondRequest) (*domain.Alert, bool, error) {
	if !p.IsCaregiver() {
		return nil, false, fmt.Errorf("only caregivers can respond to alerts: %w", e.ErrForbidden)
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}

	caregiver, err := s.dir.GetUser(ctx, p.UserID)
	if err != nil {
		return nil, false, fmt.Errorf("caregiver %s: %w", p.UserID, err)
	}

	loc := req.Location()
	if loc == nil {
		loc = caregiver.Location
	}
	distance, eta := geo.Estimate(current.Location, loc)

	responder := domain.Responder{
		CaregiverID:   caregiver.ID,
		CaregiverName: caregiver.Name,
		ResponseTime:  s.now().UTC(),
		EtaMinutes:    eta,
		DistanceMiles: distance,
		Status:        domain.ResponderAcknowledged,
	}

	alert, err := s.store.AppendResponder(ctx, id, responder)
	if err == nil {
		s.logger.Info("caregiver responding",
			slog.String("alert_id", id.String()),
			slog.String("caregiver_id", caregiver.ID),
			slog.Float64("distance_miles", distance),
			slog.Int("eta_minutes", eta),
		)
		return alert, false, nil
	}
	if !errors.Is(err, e.ErrDuplicateResponder) {
		return nil, false, err
	}

	// already on the list: a notified entry is promoted, anything further is a no-op
	latest, gerr := s.store.Get(ctx, id)
	if gerr != nil {
		return nil, false, gerr
	}
	existing, _ := latest.Responder(caregiver.ID)
	if existing.Status != domain.ResponderNotified {
		return latest, true, nil
	}
	alert, err = s.store.UpdateResponderStatus(ctx, id, caregiver.ID, domain.ResponderAcknowledged)
	if err != nil {
		return nil, false, err
	}
	return alert, false, nil
}

func (s *alertLifecycle) UpdateResponderStatus(ctx context.Context, p domain.Principal, id uuid.UUID, status domain.ResponderStatus) (*domain.Alert, error) {
	if !p.IsCaregiver() {
		return nil, fmt.Errorf("only caregivers can update response status: %w", e.ErrForbidden)
	}
	alert, err := s.store.UpdateResponderStatus(ctx, id, p.UserID, status)
	if err != nil {
		return nil, err
	}
	s.logger.Info("responder status updated",
		slog.String("alert_id", id.String()),
		slog.String("caregiver_id", p.UserID),
		slog.String("status", string(status)),
	)
	return alert, nil
}

func (s *alertLifecycle) ResolveAlert(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Alert, error) {
	return s.finish(ctx, p, id, domain.AlertResolved)
}

func (s *alertLifecycle) CancelAlert(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Alert, error) {
	return s.finish(ctx, p, id, domain.AlertCancelled)
}

// finish closes an alert. Allowed for the alert's own patient or any caregiver.
func (s *alertLifecycle) finish(ctx context.Context, p domain.Principal, id uuid.UUID, status domain.AlertStatus) (*domain.Alert, error) {
	if p.IsPatient() {
		current, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.PatientID != p.UserID {
			return nil, fmt.Errorf("alert %s belongs to another patient: %w", id, e.ErrForbidden)
		}
	} else if !p.IsCaregiver() {
		return nil, fmt.Errorf("%s not allowed for %s: %w", status, p.UserType, e.ErrForbidden)
	}

	alert, err := s.store.SetAlertStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	s.logger.Info("alert closed",
		slog.String("alert_id", id.String()),
		slog.String("status", string(status)),
		slog.String("by", p.UserID),
	)
	return alert, nil
}

func (s *alertLifecycle) PatientHistory(ctx context.Context, p domain.Principal, patientID string) ([]*domain.Alert, error) {
	if p.IsPatient() && p.UserID != patientID {
		return nil, fmt.Errorf("history of another patient: %w", e.ErrForbidden)
	}
	if !p.IsPatient() && !p.IsCaregiver() {
		return nil, fmt.Errorf("history not allowed for %s: %w", p.UserType, e.ErrForbidden)
	}
	return s.store.QueryByPatient(ctx, patientID)
}
