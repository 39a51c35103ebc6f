package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"careAlert/internal/domain"
	"careAlert/pkg/e"

	"github.com/google/uuid"
)

// AlertRepository keeps alerts in process memory. Mutations on one alert are
// serialized by that alert's own lock; different alerts proceed in parallel.
type AlertRepository struct {
	mu     sync.RWMutex
	alerts map[uuid.UUID]*entry
}

type entry struct {
	mu    sync.Mutex
	alert *domain.Alert
}

func NewAlertRepository() *AlertRepository {
	return &AlertRepository{alerts: make(map[uuid.UUID]*entry)}
}

func (r *AlertRepository) Insert(ctx context.Context, alert *domain.Alert) error {
	const op = "memory.Alert.Insert"
	if err := ctx.Err(); err != nil {
		return e.WrapError(ctx, op, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.alerts[alert.ID]; ok {
		return fmt.Errorf("%s: %w", op, e.ErrUniqueViolation)
	}
	r.alerts[alert.ID] = &entry{alert: alert.Clone()}
	return nil
}

func (r *AlertRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Alert, error) {
	const op = "memory.Alert.Get"
	en, err := r.lookup(ctx, op, id)
	if err != nil {
		return nil, err
	}
	en.mu.Lock()
	defer en.mu.Unlock()
	return en.alert.Clone(), nil
}

// Mutate runs fn on a private copy and swaps it in only when fn succeeds,
// so a rejected transition leaves the stored alert untouched.
func (r *AlertRepository) Mutate(ctx context.Context, id uuid.UUID, fn func(*domain.Alert) error) (*domain.Alert, error) {
	const op = "memory.Alert.Mutate"
	en, err := r.lookup(ctx, op, id)
	if err != nil {
		return nil, err
	}

	en.mu.Lock()
	defer en.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, e.WrapError(ctx, op, err)
	}
	next := en.alert.Clone()
	if err := fn(next); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	en.alert = next
	return next.Clone(), nil
}

func (r *AlertRepository) ListByStatus(ctx context.Context, statuses ...domain.AlertStatus) ([]*domain.Alert, error) {
	want := make(map[domain.AlertStatus]struct{}, len(statuses))
	for _, s := range statuses {
		want[s] = struct{}{}
	}
	return r.filter(ctx, "memory.Alert.ListByStatus", func(a *domain.Alert) bool {
		_, ok := want[a.Status]
		return ok
	})
}

func (r *AlertRepository) ListByPatient(ctx context.Context, patientID string) ([]*domain.Alert, error) {
	return r.filter(ctx, "memory.Alert.ListByPatient", func(a *domain.Alert) bool {
		return a.PatientID == patientID
	})
}

func (r *AlertRepository) CountSince(ctx context.Context, since time.Time) (map[domain.AlertStatus]int64, error) {
	alerts, err := r.filter(ctx, "memory.Alert.CountSince", func(a *domain.Alert) bool {
		return !a.Timestamp.Before(since)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[domain.AlertStatus]int64)
	for _, a := range alerts {
		out[a.Status]++
	}
	return out, nil
}

func (r *AlertRepository) lookup(ctx context.Context, op string, id uuid.UUID) (*entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, e.WrapError(ctx, op, err)
	}
	r.mu.RLock()
	en, ok := r.alerts[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: alert %s: %w", op, id, e.ErrNotFound)
	}
	return en, nil
}

// filter returns matching snapshots newest first.
func (r *AlertRepository) filter(ctx context.Context, op string, keep func(*domain.Alert) bool) ([]*domain.Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, e.WrapError(ctx, op, err)
	}

	r.mu.RLock()
	entries := make([]*entry, 0, len(r.alerts))
	for _, en := range r.alerts {
		entries = append(entries, en)
	}
	r.mu.RUnlock()

	out := make([]*domain.Alert, 0)
	for _, en := range entries {
		en.mu.Lock()
		a := en.alert.Clone()
		en.mu.Unlock()
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}
