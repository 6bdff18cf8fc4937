package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RunMigrations creates the schema this service reads. Statements are
// idempotent so repeated startups are safe. The tables are owned by the
// clinic management system; in production these already exist and the
// CREATE IF NOT EXISTS calls are no-ops.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS patients (
			id TEXT PRIMARY KEY,
			full_name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS appointments (
			id SERIAL PRIMARY KEY,
			patient_id TEXT NOT NULL REFERENCES patients(id),
			appointment_date TEXT NOT NULL,
			scheduled_at TIMESTAMPTZ NOT NULL,
			appointment_type TEXT NOT NULL DEFAULT '',
			present BOOLEAN NOT NULL DEFAULT FALSE,
			seated BOOLEAN NOT NULL DEFAULT FALSE,
			dismissed BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_date ON appointments(appointment_date)`,
		`CREATE TABLE IF NOT EXISTS patient_images (
			patient_id TEXT NOT NULL REFERENCES patients(id),
			timepoint TEXT NOT NULL,
			image_code TEXT NOT NULL,
			PRIMARY KEY (patient_id, timepoint, image_code)
		)`,
		`CREATE TABLE IF NOT EXISTS visits (
			id SERIAL PRIMARY KEY,
			patient_id TEXT NOT NULL REFERENCES patients(id),
			visit_date TIMESTAMPTZ NOT NULL,
			summary TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_visits_patient ON visits(patient_id, visit_date DESC)`,
	}

	for i, migration := range migrations {
		if _, err := pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
