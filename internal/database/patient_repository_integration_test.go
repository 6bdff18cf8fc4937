package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Shvan11/ShwNodApp-sub005/internal/errors"
)

func seedImage(t *testing.T, patientID, timepoint, code string) {
	t.Helper()
	_, err := testPool.Exec(context.Background(),
		`INSERT INTO patient_images (patient_id, timepoint, image_code) VALUES ($1, $2, $3)`,
		patientID, timepoint, code)
	require.NoError(t, err)
}

func seedVisit(t *testing.T, patientID string, date time.Time, summary string) {
	t.Helper()
	_, err := testPool.Exec(context.Background(),
		`INSERT INTO visits (patient_id, visit_date, summary) VALUES ($1, $2, $3)`,
		patientID, date, summary)
	require.NoError(t, err)
}

func TestLookupTimepointImageCodes(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewPatientRepo(pool)
	ctx := context.Background()

	seedPatient(t, "p-1", "Dara Hassan")
	seedImage(t, "p-1", "0", "i23")
	seedImage(t, "p-1", "0", "i10")
	// Other timepoint must be excluded.
	seedImage(t, "p-1", "1", "i40")

	codes, err := repo.LookupTimepointImageCodes(ctx, "p-1", "0")
	require.NoError(t, err)
	assert.Equal(t, []string{"i10", "i23"}, codes)
}

func TestLookupTimepointImageCodes_NoImages(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewPatientRepo(pool)

	codes, err := repo.LookupTimepointImageCodes(context.Background(), "p-none", "0")
	require.NoError(t, err)
	assert.NotNil(t, codes)
	assert.Empty(t, codes)
}

func TestLookupLatestVisitSummary(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewPatientRepo(pool)
	ctx := context.Background()

	seedPatient(t, "p-1", "Dara Hassan")
	seedVisit(t, "p-1", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), "bonding")
	seedVisit(t, "p-1", time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC), "wire change")

	summary, err := repo.LookupLatestVisitSummary(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "p-1", summary.PatientID)
	assert.Equal(t, "wire change", summary.Summary)
}

func TestLookupLatestVisitSummary_NoVisits(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewPatientRepo(pool)

	summary, err := repo.LookupLatestVisitSummary(context.Background(), "p-unknown")
	assert.Nil(t, summary)
	require.Error(t, err)

	var structured *apperrors.Error
	require.True(t, errors.As(err, &structured))
	assert.Equal(t, apperrors.TypeNotFound, structured.Type)
}
