package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id                text PRIMARY KEY,
	name              text NOT NULL,
	user_type         text NOT NULL CHECK (user_type IN ('patient', 'caregiver', 'volunteer')),
	phone             text NOT NULL DEFAULT '',
	lat               double precision,
	lng               double precision,
	assigned_patients text[] NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS alerts (
	id           uuid PRIMARY KEY,
	patient_id   text NOT NULL,
	patient_name text NOT NULL,
	lat          double precision NOT NULL,
	lng          double precision NOT NULL,
	created_at   timestamptz NOT NULL,
	status       text NOT NULL CHECK (status IN ('active', 'responded', 'resolved', 'cancelled')),
	severity     text NOT NULL CHECK (severity IN ('emergency', 'urgent', 'routine')),
	responders   jsonb NOT NULL DEFAULT '[]'::jsonb,
	resolved_at  timestamptz,
	cancelled_at timestamptz
);

CREATE INDEX IF NOT EXISTS alerts_status_created_idx ON alerts (status, created_at DESC);
CREATE INDEX IF NOT EXISTS alerts_patient_created_idx ON alerts (patient_id, created_at DESC);

CREATE TABLE IF NOT EXISTS notifications (
	id           uuid PRIMARY KEY,
	caregiver_id text NOT NULL,
	alert_id     uuid NOT NULL REFERENCES alerts (id),
	type         text NOT NULL,
	status       text NOT NULL,
	created_at   timestamptz NOT NULL
);

CREATE INDEX IF NOT EXISTS notifications_caregiver_idx ON notifications (caregiver_id, created_at DESC);
`

// Migrate creates the tables if they are missing. Safe to run on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
