package service

import (
	"context"
	"time"

	"careAlert/internal/domain"

	"github.com/google/uuid"
)

//go:generate mockgen -source=service.go -destination=mocks/mock.go

// AlertRepository is the persistence abstraction behind AlertStore.
// Mutate must serialize callers per alert id: fn runs against the latest
// committed state and its result is committed only if fn returns nil.
type AlertRepository interface {
	Insert(ctx context.Context, alert *domain.Alert) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Alert, error)
	Mutate(ctx context.Context, id uuid.UUID, fn func(alert *domain.Alert) error) (*domain.Alert, error)
	ListByStatus(ctx context.Context, statuses ...domain.AlertStatus) ([]*domain.Alert, error)
	ListByPatient(ctx context.Context, patientID string) ([]*domain.Alert, error)
	CountSince(ctx context.Context, since time.Time) (map[domain.AlertStatus]int64, error)
}

// StatsRepository counts alerts raised inside a trailing window.
type StatsRepository interface {
	CountSince(ctx context.Context, since time.Time) (map[domain.AlertStatus]int64, error)
}

// Directory resolves users, their locations and caregiver assignments.
type Directory interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	ListCaregivers(ctx context.Context) ([]domain.User, error)
}

// NotificationSink accepts notification records for asynchronous delivery.
type NotificationSink interface {
	Enqueue(ctx context.Context, n domain.Notification) error
}

// ChangePublisher is told about every committed alert mutation.
type ChangePublisher interface {
	Publish(ctx context.Context, alertID uuid.UUID) error
}

// EventPublisher forwards lifecycle events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.AlertEvent) error
}

// Router picks the caregivers a new alert is announced to.
type Router interface {
	RouteNewAlert(ctx context.Context, alert *domain.Alert) []string
}

// TelephonyRelay places calls and texts through the telephony provider.
type TelephonyRelay interface {
	PlaceCall(ctx context.Context, to, message string) (domain.CallResult, error)
	SendSMS(ctx context.Context, to, body string) (domain.SMSResult, error)
}

// Use-cases exposed to the transport layer.
type AlertLifecycleService interface {
	CreateAlert(ctx context.Context, p domain.Principal, req domain.CreateAlertRequest) (*domain.Alert, error)
	GetAlert(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Alert, error)
	RespondToAlert(ctx context.Context, p domain.Principal, id uuid.UUID, req domain.RespondRequest) (*domain.Alert, bool, error)
	UpdateResponderStatus(ctx context.Context, p domain.Principal, id uuid.UUID, status domain.ResponderStatus) (*domain.Alert, error)
	ResolveAlert(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Alert, error)
	CancelAlert(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Alert, error)
	PatientHistory(ctx context.Context, p domain.Principal, patientID string) ([]*domain.Alert, error)
}

// Статистика
type StatsService interface {
	GetStats(ctx context.Context, req domain.StatsRequest) (*domain.AlertStats, error)
}

type Service struct {
	Alerts    AlertLifecycleService
	Stats     StatsService
	Telephony TelephonyRelay
}

func NewService(
	alerts AlertLifecycleService,
	stats StatsService,
	telephony TelephonyRelay,
) *Service {
	return &Service{
		Alerts:    alerts,
		Stats:     stats,
		Telephony: telephony,
	}
}
