package postgres

import (
	"context"
	"log/slog"
	"time"

	"careAlert/internal/domain"
	"careAlert/pkg/e"
)

// CountSince groups alerts raised at or after since by their current status.
func (p *AlertRepo) CountSince(ctx context.Context, since time.Time) (map[domain.AlertStatus]int64, error) {
	const op = "postgres.Alert.CountSince"

	const query = `
		SELECT status, COUNT(*)
		FROM alerts
		WHERE created_at >= $1
		GROUP BY status
	`

	rows, err := p.pool.Query(ctx, query, since)
	if err != nil {
		p.logger.Error("db query failed",
			slog.String("op", op),
			slog.Any("error", err),
			slog.Time("since", since),
		)
		return nil, e.WrapError(ctx, op, err)
	}
	defer rows.Close()

	out := make(map[domain.AlertStatus]int64)
	for rows.Next() {
		var (
			status domain.AlertStatus
			cnt    int64
		)
		if err := rows.Scan(&status, &cnt); err != nil {
			p.logger.Error("row scan failed", slog.String("op", op), slog.Any("error", err))
			return nil, e.WrapError(ctx, op, err)
		}
		out[status] = cnt
	}
	if err := rows.Err(); err != nil {
		p.logger.Error("rows err", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	return out, nil
}
