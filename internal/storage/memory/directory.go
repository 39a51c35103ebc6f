package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"careAlert/internal/domain"
	"careAlert/pkg/e"
)

// Directory is an in-memory user directory, used for local runs and tests.
type Directory struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func NewDirectory(users ...domain.User) *Directory {
	d := &Directory{users: make(map[string]domain.User, len(users))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *Directory) Upsert(ctx context.Context, u domain.User) error {
	if err := ctx.Err(); err != nil {
		return e.WrapError(ctx, "memory.Directory.Upsert", err)
	}
	d.mu.Lock()
	d.users[u.ID] = copyUser(u)
	d.mu.Unlock()
	return nil
}

func (d *Directory) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, e.WrapError(ctx, "memory.Directory.GetUser", err)
	}
	d.mu.RLock()
	u, ok := d.users[id]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, e.ErrNotFound)
	}
	cp := copyUser(u)
	return &cp, nil
}

func (d *Directory) ListCaregivers(ctx context.Context) ([]domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, e.WrapError(ctx, "memory.Directory.ListCaregivers", err)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]domain.User, 0)
	for _, u := range d.users {
		if u.UserType == domain.UserCaregiver {
			out = append(out, copyUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func copyUser(u domain.User) domain.User {
	if u.Location != nil {
		loc := *u.Location
		u.Location = &loc
	}
	u.AssignedPatients = append([]string(nil), u.AssignedPatients...)
	return u
}
