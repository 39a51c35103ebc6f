package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"careAlert/internal/domain"
	"careAlert/pkg/e"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AlertRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewAlertRepo(pool *pgxpool.Pool, logger *slog.Logger) *AlertRepo {
	return &AlertRepo{pool: pool, logger: logger}
}

const alertColumns = `id, patient_id, patient_name, lat, lng, created_at, status, severity, responders, resolved_at, cancelled_at`

func (p *AlertRepo) Insert(ctx context.Context, alert *domain.Alert) error {
	const op = "postgres.Alert.Insert"

	responders, err := json.Marshal(alert.Responders)
	if err != nil {
		return fmt.Errorf("%s: marshal responders: %w", op, err)
	}

	const query = `
		INSERT INTO alerts (` + alertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = p.pool.Exec(ctx, query,
		alert.ID,
		alert.PatientID,
		alert.PatientName,
		alert.Location.Lat,
		alert.Location.Lng,
		alert.Timestamp,
		alert.Status,
		alert.Severity,
		responders,
		alert.ResolvedAt,
		alert.CancelledAt,
	)
	if err != nil {
		p.logger.Error("db exec failed", slog.String("op", op), slog.Any("error", err))
		return e.WrapError(ctx, op, err)
	}
	return nil
}

func (p *AlertRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Alert, error) {
	const op = "postgres.Alert.Get"

	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`
	alert, err := scanAlert(p.pool.QueryRow(ctx, query, id))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			p.logger.Error("db query failed", slog.String("op", op), slog.Any("error", err))
		}
		return nil, e.WrapError(ctx, op, err)
	}
	return alert, nil
}

// Mutate locks the alert row for the duration of fn, so concurrent writers
// to the same alert queue up behind each other. Other alerts are unaffected.
func (p *AlertRepo) Mutate(ctx context.Context, id uuid.UUID, fn func(*domain.Alert) error) (*domain.Alert, error) {
	const op = "postgres.Alert.Mutate"

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		p.logger.Error("begin tx failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1 FOR UPDATE`
	alert, err := scanAlert(tx.QueryRow(ctx, query, id))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			p.logger.Error("db select for update failed", slog.String("op", op), slog.Any("error", err))
		}
		return nil, e.WrapError(ctx, op, err)
	}

	if err := fn(alert); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	responders, err := json.Marshal(alert.Responders)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal responders: %w", op, err)
	}

	const update = `
		UPDATE alerts
		SET status = $2, responders = $3, resolved_at = $4, cancelled_at = $5
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, update, alert.ID, alert.Status, responders, alert.ResolvedAt, alert.CancelledAt); err != nil {
		p.logger.Error("db update failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		p.logger.Error("commit failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	return alert, nil
}

func (p *AlertRepo) ListByStatus(ctx context.Context, statuses ...domain.AlertStatus) ([]*domain.Alert, error) {
	const op = "postgres.Alert.ListByStatus"

	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE status = ANY($1) ORDER BY created_at DESC, id DESC`
	return p.list(ctx, op, query, names)
}

func (p *AlertRepo) ListByPatient(ctx context.Context, patientID string) ([]*domain.Alert, error) {
	const op = "postgres.Alert.ListByPatient"

	query := `SELECT ` + alertColumns + ` FROM alerts WHERE patient_id = $1 ORDER BY created_at DESC, id DESC`
	return p.list(ctx, op, query, patientID)
}

func (p *AlertRepo) list(ctx context.Context, op, query string, args ...any) ([]*domain.Alert, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		p.logger.Error("db query failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	defer rows.Close()

	alerts := make([]*domain.Alert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			p.logger.Error("row scan failed", slog.String("op", op), slog.Any("error", err))
			return nil, e.WrapError(ctx, op, err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		p.logger.Error("rows err", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	return alerts, nil
}

func scanAlert(row pgx.Row) (*domain.Alert, error) {
	var (
		a          domain.Alert
		responders []byte
	)
	if err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.PatientName,
		&a.Location.Lat,
		&a.Location.Lng,
		&a.Timestamp,
		&a.Status,
		&a.Severity,
		&responders,
		&a.ResolvedAt,
		&a.CancelledAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(responders, &a.Responders); err != nil {
		return nil, fmt.Errorf("unmarshal responders: %w", err)
	}
	if a.Responders == nil {
		a.Responders = []domain.Responder{}
	}
	a.Timestamp = a.Timestamp.UTC()
	return &a, nil
}
