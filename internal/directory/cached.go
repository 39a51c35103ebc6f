package directory

import (
	"context"
	"fmt"
	"time"

	"careAlert/internal/domain"
	"careAlert/pkg/e"

	gocache "github.com/patrickmn/go-cache"
)

// Source is the backing directory being cached.
type Source interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	ListCaregivers(ctx context.Context) ([]domain.User, error)
}

const caregiversKey = "caregivers"

// Cached keeps recent directory reads in process. Users are read on every
// request for auth and the caregiver list on every new alert, while the
// directory itself changes rarely.
type Cached struct {
	src   Source
	cache *gocache.Cache
}

func NewCached(src Source, ttl time.Duration) *Cached {
	return &Cached{
		src:   src,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (c *Cached) GetUser(ctx context.Context, id string) (*domain.User, error) {
	key := "user:" + id
	if v, ok := c.cache.Get(key); ok {
		u := copyUser(v.(domain.User))
		return &u, nil
	}
	u, err := c.src.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, copyUser(*u))
	return u, nil
}

func (c *Cached) ListCaregivers(ctx context.Context) ([]domain.User, error) {
	if v, ok := c.cache.Get(caregiversKey); ok {
		return copyUsers(v.([]domain.User)), nil
	}
	users, err := c.src.ListCaregivers(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(caregiversKey, copyUsers(users))
	return users, nil
}

// Upsert writes through to the source and drops the stale cache entries.
func (c *Cached) Upsert(ctx context.Context, u domain.User) error {
	up, ok := c.src.(Upserter)
	if !ok {
		return fmt.Errorf("directory.Cached.Upsert: source %T is read-only: %w", c.src, e.ErrInternal)
	}
	if err := up.Upsert(ctx, u); err != nil {
		return err
	}
	c.invalidate(u.ID)
	return nil
}

// invalidate drops everything cached for one user plus the caregiver list.
func (c *Cached) invalidate(id string) {
	c.cache.Delete("user:" + id)
	c.cache.Delete(caregiversKey)
}

func copyUsers(in []domain.User) []domain.User {
	out := make([]domain.User, len(in))
	for i, u := range in {
		out[i] = copyUser(u)
	}
	return out
}

func copyUser(u domain.User) domain.User {
	if u.Location != nil {
		loc := *u.Location
		u.Location = &loc
	}
	u.AssignedPatients = append([]string(nil), u.AssignedPatients...)
	return u
}
