package postgres

import (
	"context"
	"errors"
	"log/slog"

	"careAlert/internal/domain"
	"careAlert/pkg/e"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepo is the Postgres-backed Directory.
type UserRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewUserRepo(pool *pgxpool.Pool, logger *slog.Logger) *UserRepo {
	return &UserRepo{pool: pool, logger: logger}
}

const userColumns = `id, name, user_type, phone, lat, lng, assigned_patients`

func (p *UserRepo) GetUser(ctx context.Context, id string) (*domain.User, error) {
	const op = "postgres.User.Get"

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(p.pool.QueryRow(ctx, query, id))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			p.logger.Error("db query failed", slog.String("op", op), slog.Any("error", err))
		}
		return nil, e.WrapError(ctx, op, err)
	}
	return u, nil
}

func (p *UserRepo) ListCaregivers(ctx context.Context) ([]domain.User, error) {
	const op = "postgres.User.ListCaregivers"

	query := `SELECT ` + userColumns + ` FROM users WHERE user_type = 'caregiver' ORDER BY id`
	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		p.logger.Error("db query failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			p.logger.Error("row scan failed", slog.String("op", op), slog.Any("error", err))
			return nil, e.WrapError(ctx, op, err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		p.logger.Error("rows err", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	return users, nil
}

// Upsert is used to seed the directory; profile editing lives elsewhere.
func (p *UserRepo) Upsert(ctx context.Context, u domain.User) error {
	const op = "postgres.User.Upsert"

	var lat, lng *float64
	if u.Location != nil {
		lat, lng = &u.Location.Lat, &u.Location.Lng
	}
	assigned := u.AssignedPatients
	if assigned == nil {
		assigned = []string{}
	}

	const query = `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			user_type = EXCLUDED.user_type,
			phone = EXCLUDED.phone,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			assigned_patients = EXCLUDED.assigned_patients
	`
	if _, err := p.pool.Exec(ctx, query, u.ID, u.Name, u.UserType, u.Phone, lat, lng, assigned); err != nil {
		p.logger.Error("db exec failed", slog.String("op", op), slog.Any("error", err))
		return e.WrapError(ctx, op, err)
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u        domain.User
		lat, lng *float64
	)
	if err := row.Scan(&u.ID, &u.Name, &u.UserType, &u.Phone, &lat, &lng, &u.AssignedPatients); err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		u.Location = &domain.Coord{Lat: *lat, Lng: *lng}
	}
	return &u, nil
}
