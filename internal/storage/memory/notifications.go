package memory

import (
	"context"
	"sync"

	"careAlert/internal/domain"
)

// NotificationStore records delivered notifications per caregiver.
type NotificationStore struct {
	mu    sync.Mutex
	items []domain.Notification
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{}
}

func (s *NotificationStore) Save(ctx context.Context, n domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.items = append(s.items, n)
	s.mu.Unlock()
	return nil
}

func (s *NotificationStore) ListByCaregiver(ctx context.Context, caregiverID string) ([]domain.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Notification, 0)
	for i := len(s.items) - 1; i >= 0; i-- {
		if s.items[i].CaregiverID == caregiverID {
			out = append(out, s.items[i])
		}
	}
	return out, nil
}
