package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"careAlert/internal/domain"
	"careAlert/internal/metrics"
	"careAlert/pkg/e"

	"github.com/google/uuid"
)

// AlertStore is the authoritative record of alerts. Every mutation is
// committed through AlertRepository.Mutate and only then announced to the
// change publisher and the event stream.
type AlertStore struct {
	repo    AlertRepository
	dir     Directory
	changes ChangePublisher
	events  EventPublisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewAlertStore(
	repo AlertRepository,
	dir Directory,
	changes ChangePublisher,
	events EventPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *AlertStore {
	return &AlertStore{
		repo:    repo,
		dir:     dir,
		changes: changes,
		events:  events,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Create snapshots the patient's name and stores a new active alert.
func (s *AlertStore) Create(ctx context.Context, patientID string, loc domain.Coord, severity domain.Severity) (*domain.Alert, error) {
	const op = "service.AlertStore.Create"

	if severity == "" {
		severity = domain.SeverityEmergency
	}
	if !severity.Valid() {
		return nil, fmt.Errorf("%s: severity %q: %w", op, severity, e.ErrInvalidInput)
	}
	if !validCoord(loc) {
		return nil, fmt.Errorf("%s: %w", op, e.ErrInvalidCoordinates)
	}

	patient, err := s.dir.GetUser(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("%s: patient %s: %w", op, patientID, err)
	}

	alert := domain.NewAlert(patient, loc, severity, s.now())
	if err := s.repo.Insert(ctx, alert); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.AlertCreated(string(severity))
	s.committed(ctx, domain.EventAlertCreated, alert, "")
	return alert, nil
}

func (s *AlertStore) Get(ctx context.Context, id uuid.UUID) (*domain.Alert, error) {
	return s.repo.Get(ctx, id)
}

func (s *AlertStore) AppendResponder(ctx context.Context, id uuid.UUID, r domain.Responder) (*domain.Alert, error) {
	alert, err := s.repo.Mutate(ctx, id, func(a *domain.Alert) error {
		return a.AppendResponder(r)
	})
	s.metrics.Transition("append_responder", err)
	if err != nil {
		return nil, err
	}
	s.committed(ctx, domain.EventResponderAdded, alert, r.CaregiverID)
	return alert, nil
}

func (s *AlertStore) UpdateResponderStatus(ctx context.Context, id uuid.UUID, caregiverID string, status domain.ResponderStatus) (*domain.Alert, error) {
	alert, err := s.repo.Mutate(ctx, id, func(a *domain.Alert) error {
		return a.UpdateResponderStatus(caregiverID, status)
	})
	s.metrics.Transition("responder_status", err)
	if err != nil {
		return nil, err
	}
	s.committed(ctx, domain.EventResponderStatus, alert, caregiverID)
	return alert, nil
}

func (s *AlertStore) SetAlertStatus(ctx context.Context, id uuid.UUID, status domain.AlertStatus) (*domain.Alert, error) {
	alert, err := s.repo.Mutate(ctx, id, func(a *domain.Alert) error {
		return a.SetStatus(status, s.now())
	})
	s.metrics.Transition("alert_"+string(status), err)
	if err != nil {
		return nil, err
	}

	switch status {
	case domain.AlertResolved:
		s.committed(ctx, domain.EventAlertResolved, alert, "")
	case domain.AlertCancelled:
		s.committed(ctx, domain.EventAlertCancelled, alert, "")
	default:
		s.publishChange(ctx, alert.ID)
	}
	return alert, nil
}

// CancelIfActive cancels an alert only while it is still active. The status
// is checked under the same per-alert serialization as the write, so an
// alert acknowledged concurrently is left alone with e.ErrInvalidTransition.
func (s *AlertStore) CancelIfActive(ctx context.Context, id uuid.UUID) (*domain.Alert, error) {
	alert, err := s.repo.Mutate(ctx, id, func(a *domain.Alert) error {
		if a.Status != domain.AlertActive {
			return fmt.Errorf("alert %s is %s: %w", a.ID, a.Status, e.ErrInvalidTransition)
		}
		return a.SetStatus(domain.AlertCancelled, s.now())
	})
	s.metrics.Transition("alert_"+string(domain.AlertCancelled), err)
	if err != nil {
		return nil, err
	}
	s.committed(ctx, domain.EventAlertCancelled, alert, "")
	return alert, nil
}

// QueryActiveAndResponded returns open alerts, newest first.
func (s *AlertStore) QueryActiveAndResponded(ctx context.Context) ([]*domain.Alert, error) {
	return s.repo.ListByStatus(ctx, domain.AlertActive, domain.AlertResponded)
}

// QueryByPatient returns a patient's full history, newest first.
func (s *AlertStore) QueryByPatient(ctx context.Context, patientID string) ([]*domain.Alert, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

func (s *AlertStore) CountSince(ctx context.Context, since time.Time) (map[domain.AlertStatus]int64, error) {
	return s.repo.CountSince(ctx, since)
}

func (s *AlertStore) committed(ctx context.Context, t domain.EventType, alert *domain.Alert, caregiverID string) {
	s.publishChange(ctx, alert.ID)

	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, domain.NewAlertEvent(t, alert, caregiverID, s.now())); err != nil {
		s.logger.Warn("publish alert event failed",
			slog.String("type", string(t)),
			slog.String("alert_id", alert.ID.String()),
			slog.Any("error", err),
		)
	}
}

func (s *AlertStore) publishChange(ctx context.Context, id uuid.UUID) {
	if s.changes == nil {
		return
	}
	if err := s.changes.Publish(ctx, id); err != nil {
		s.logger.Warn("publish alert change failed",
			slog.String("alert_id", id.String()),
			slog.Any("error", err),
		)
	}
}

func validCoord(c domain.Coord) bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}
