package postgres

import (
	"context"
	"log/slog"

	"careAlert/internal/domain"
	"careAlert/pkg/e"

	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewNotificationRepo(pool *pgxpool.Pool, logger *slog.Logger) *NotificationRepo {
	return &NotificationRepo{pool: pool, logger: logger}
}

// Save is idempotent on the notification id so a redelivered queue item
// does not produce a second record.
func (p *NotificationRepo) Save(ctx context.Context, n domain.Notification) error {
	const op = "postgres.Notification.Save"

	const query = `
		INSERT INTO notifications (id, caregiver_id, alert_id, type, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := p.pool.Exec(ctx, query, n.ID, n.CaregiverID, n.AlertID, n.Type, n.Status, n.CreatedAt)
	if err != nil {
		p.logger.Error("db exec failed", slog.String("op", op), slog.Any("error", err))
		return e.WrapError(ctx, op, err)
	}
	return nil
}

func (p *NotificationRepo) ListByCaregiver(ctx context.Context, caregiverID string) ([]domain.Notification, error) {
	const op = "postgres.Notification.ListByCaregiver"

	const query = `
		SELECT id, caregiver_id, alert_id, type, status, created_at
		FROM notifications
		WHERE caregiver_id = $1
		ORDER BY created_at DESC
	`
	rows, err := p.pool.Query(ctx, query, caregiverID)
	if err != nil {
		p.logger.Error("db query failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	defer rows.Close()

	out := make([]domain.Notification, 0)
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.CaregiverID, &n.AlertID, &n.Type, &n.Status, &n.CreatedAt); err != nil {
			p.logger.Error("row scan failed", slog.String("op", op), slog.Any("error", err))
			return nil, e.WrapError(ctx, op, err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		p.logger.Error("rows err", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	return out, nil
}
