package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shvan11/ShwNodApp-sub005/internal/domain"
	apperrors "github.com/Shvan11/ShwNodApp-sub005/internal/errors"
)

// PatientRepo implements domain.PatientDirectory backed by PostgreSQL.
type PatientRepo struct {
	pool *pgxpool.Pool
}

// NewPatientRepo creates a PatientRepo from the shared pool.
func NewPatientRepo(pool *pgxpool.Pool) *PatientRepo {
	return &PatientRepo{pool: pool}
}

const imageCodesQuery = `
SELECT image_code
FROM patient_images
WHERE patient_id = $1 AND timepoint = $2
ORDER BY image_code`

// LookupTimepointImageCodes lists the imaging codes captured for a patient
// at one timepoint.
func (r *PatientRepo) LookupTimepointImageCodes(ctx context.Context, patientID, timepoint string) ([]string, error) {
	rows, err := r.pool.Query(ctx, imageCodesQuery, patientID, timepoint)
	if err != nil {
		return nil, fmt.Errorf("failed to query image codes for patient %s: %w", patientID, err)
	}
	defer rows.Close()

	codes := make([]string, 0)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan image code: %w", err)
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read image code rows: %w", err)
	}

	return codes, nil
}

const latestVisitQuery = `
SELECT patient_id, visit_date, summary
FROM visits
WHERE patient_id = $1
ORDER BY visit_date DESC
LIMIT 1`

// LookupLatestVisitSummary returns the most recent visit summary of a
// patient, or a not-found error when the patient has no recorded visits.
func (r *PatientRepo) LookupLatestVisitSummary(ctx context.Context, patientID string) (*domain.VisitSummary, error) {
	var s domain.VisitSummary
	err := r.pool.QueryRow(ctx, latestVisitQuery, patientID).Scan(&s.PatientID, &s.VisitDate, &s.Summary)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFoundError(fmt.Sprintf("no visits recorded for patient %s", patientID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest visit for patient %s: %w", patientID, err)
	}
	return &s, nil
}
