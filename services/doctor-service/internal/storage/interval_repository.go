package storage

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/doctorsched/libs/db"
	"github.com/md-rashed-zaman/doctorsched/services/doctor-service/internal/model"
)

// IntervalRepository keeps the booked_intervals projection fed by booking events.
type IntervalRepository struct {
	pool *db.Pool
}

func NewIntervalRepository(pool *db.Pool) *IntervalRepository {
	return &IntervalRepository{pool: pool}
}

// UpsertBooked records an appointment. Replays are no-ops and a cancelled appointment stays cancelled.
// When the appointment was already stored, its row as it was before this call is returned with
// found set, so callers can see a reschedule.
func (r *IntervalRepository) UpsertBooked(ctx context.Context, iv model.BookedInterval) (prev model.BookedInterval, found bool, err error) {
	err = r.pool.QueryRow(ctx, `
		WITH prev AS (
			SELECT appointment_id, doctor_id, start_time, end_time, status, updated_at
			FROM booked_intervals
			WHERE appointment_id = $1
			FOR UPDATE
		), upsert AS (
			INSERT INTO booked_intervals (appointment_id, doctor_id, start_time, end_time, status)
			VALUES ($1, $2, $3, $4, 'booked')
			ON CONFLICT (appointment_id) DO UPDATE
			SET doctor_id = EXCLUDED.doctor_id,
				start_time = EXCLUDED.start_time,
				end_time = EXCLUDED.end_time,
				updated_at = now()
			WHERE booked_intervals.status <> 'cancelled'
			RETURNING appointment_id
		)
		SELECT appointment_id, doctor_id, start_time, end_time, status, updated_at FROM prev
	`, iv.AppointmentID, iv.DoctorID, iv.StartTime, iv.EndTime).Scan(
		&prev.AppointmentID, &prev.DoctorID, &prev.StartTime, &prev.EndTime, &prev.Status, &prev.UpdatedAt)
	if IsNotFound(err) {
		return model.BookedInterval{}, false, nil
	}
	if err != nil {
		return model.BookedInterval{}, false, err
	}
	return prev, true, nil
}

// Cancel marks the appointment cancelled and returns its stored interval. A cancellation that
// arrives before the booking is stored as a cancelled row so a late booking event cannot revive it.
func (r *IntervalRepository) Cancel(ctx context.Context, iv model.BookedInterval) (model.BookedInterval, error) {
	var out model.BookedInterval
	err := r.pool.QueryRow(ctx, `
		INSERT INTO booked_intervals (appointment_id, doctor_id, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, 'cancelled')
		ON CONFLICT (appointment_id) DO UPDATE
		SET status = 'cancelled',
			updated_at = now()
		RETURNING appointment_id, doctor_id, start_time, end_time, status, updated_at
	`, iv.AppointmentID, iv.DoctorID, iv.StartTime, iv.EndTime).Scan(
		&out.AppointmentID, &out.DoctorID, &out.StartTime, &out.EndTime, &out.Status, &out.UpdatedAt)
	return out, err
}

// ListForWindow returns active bookings of the doctor that overlap [start, end).
func (r *IntervalRepository) ListForWindow(ctx context.Context, doctorID int64, start, end time.Time) ([]model.BookedInterval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT appointment_id, doctor_id, start_time, end_time, status, updated_at
		FROM booked_intervals
		WHERE doctor_id = $1
			AND status = 'booked'
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time
	`, doctorID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BookedInterval
	for rows.Next() {
		var iv model.BookedInterval
		if err := rows.Scan(&iv.AppointmentID, &iv.DoctorID, &iv.StartTime, &iv.EndTime, &iv.Status, &iv.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}
