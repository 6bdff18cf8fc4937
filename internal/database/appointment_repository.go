package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shvan11/ShwNodApp-sub005/internal/domain"
)

// AppointmentRepo implements domain.AppointmentDirectory backed by PostgreSQL.
type AppointmentRepo struct {
	pool *pgxpool.Pool
}

// NewAppointmentRepo creates an AppointmentRepo from the shared pool.
func NewAppointmentRepo(pool *pgxpool.Pool) *AppointmentRepo {
	return &AppointmentRepo{pool: pool}
}

const presentAppointmentsQuery = `
SELECT a.id, a.patient_id, p.full_name, a.scheduled_at, a.appointment_type,
       a.present, a.seated, a.dismissed
FROM appointments a
JOIN patients p ON p.id = a.patient_id
WHERE a.appointment_date = $1
ORDER BY a.scheduled_at, a.id`

// LookupPresentAppointments returns the day's appointment set in schedule
// order. A day with no appointments yields an empty, non-nil slice.
func (r *AppointmentRepo) LookupPresentAppointments(ctx context.Context, date string) ([]domain.Appointment, error) {
	rows, err := r.pool.Query(ctx, presentAppointmentsQuery, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query appointments for %s: %w", date, err)
	}
	defer rows.Close()

	appointments := make([]domain.Appointment, 0)
	for rows.Next() {
		var a domain.Appointment
		if err := rows.Scan(&a.ID, &a.PatientID, &a.PatientName, &a.Time, &a.Type,
			&a.Present, &a.Seated, &a.Dismissed); err != nil {
			return nil, fmt.Errorf("failed to scan appointment row: %w", err)
		}
		appointments = append(appointments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read appointment rows: %w", err)
	}

	return appointments, nil
}
