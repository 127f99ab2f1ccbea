package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/model"
)

const windowColumns = `id::text, instructor_id, weekday, start_minute, end_minute, buffer_minutes,
	max_bookings_per_day, is_available, created_at, updated_at`

func scanWindow(row pgx.Row) (model.AvailabilityWindow, error) {
	var w model.AvailabilityWindow
	err := row.Scan(&w.ID, &w.InstructorID, &w.Weekday, &w.StartMinute, &w.EndMinute, &w.BufferMinutes,
		&w.MaxBookingsPerDay, &w.IsAvailable, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

func collectWindows(rows pgx.Rows, err error) ([]model.AvailabilityWindow, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AvailabilityWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (p *Postgres) GetWindow(ctx context.Context, id string) (model.AvailabilityWindow, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	w, err := scanWindow(p.pool.QueryRow(ctx, `SELECT `+windowColumns+` FROM availability_windows WHERE id::text = $1`, id))
	return w, mapErr(err, apperr.ErrConflict)
}

func (p *Postgres) ListWindows(ctx context.Context, instructorID string) ([]model.AvailabilityWindow, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	out, err := collectWindows(p.pool.Query(ctx, `
		SELECT `+windowColumns+`
		FROM availability_windows
		WHERE instructor_id = $1
		ORDER BY weekday, start_minute
	`, instructorID))
	return out, mapErr(err, apperr.ErrConflict)
}

func (p *Postgres) ListActiveWindows(ctx context.Context, instructorID string, weekday int) ([]model.AvailabilityWindow, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	out, err := collectWindows(p.pool.Query(ctx, `
		SELECT `+windowColumns+`
		FROM availability_windows
		WHERE instructor_id = $1 AND weekday = $2 AND is_available
		ORDER BY start_minute
	`, instructorID, weekday))
	return out, mapErr(err, apperr.ErrConflict)
}

func (t *pgTx) ActiveWindows(ctx context.Context, instructorID string, weekday int) ([]model.AvailabilityWindow, error) {
	out, err := collectWindows(t.tx.Query(ctx, `
		SELECT `+windowColumns+`
		FROM availability_windows
		WHERE instructor_id = $1 AND weekday = $2 AND is_available
		ORDER BY start_minute
		FOR UPDATE
	`, instructorID, weekday))
	return out, mapErr(err, apperr.ErrConflict)
}

func (t *pgTx) WindowForUpdate(ctx context.Context, id string) (model.AvailabilityWindow, error) {
	w, err := scanWindow(t.tx.QueryRow(ctx, `SELECT `+windowColumns+` FROM availability_windows WHERE id::text = $1 FOR UPDATE`, id))
	return w, mapErr(err, apperr.ErrConflict)
}

func (t *pgTx) InsertWindow(ctx context.Context, w model.AvailabilityWindow) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO availability_windows
			(id, instructor_id, weekday, start_minute, end_minute, buffer_minutes, max_bookings_per_day, is_available, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, w.ID, w.InstructorID, w.Weekday, w.StartMinute, w.EndMinute, w.BufferMinutes, w.MaxBookingsPerDay, w.IsAvailable, w.CreatedAt)
	return mapErr(err, apperr.ErrConflict)
}

func (t *pgTx) SaveWindow(ctx context.Context, w model.AvailabilityWindow) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE availability_windows
		SET weekday = $2,
			start_minute = $3,
			end_minute = $4,
			buffer_minutes = $5,
			max_bookings_per_day = $6,
			is_available = $7,
			updated_at = $8
		WHERE id::text = $1
	`, w.ID, w.Weekday, w.StartMinute, w.EndMinute, w.BufferMinutes, w.MaxBookingsPerDay, w.IsAvailable, w.UpdatedAt)
	if err != nil {
		return mapErr(err, apperr.ErrConflict)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound.Withf("availability window %s not found", w.ID)
	}
	return nil
}

func (t *pgTx) DeleteWindow(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM availability_windows WHERE id::text = $1`, id)
	if err != nil {
		return mapErr(err, apperr.ErrConflict)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound.Withf("availability window %s not found", id)
	}
	return nil
}

func (t *pgTx) UpcomingAppointments(ctx context.Context, w model.AvailabilityWindow, today time.Time, nowMinute int) ([]model.Appointment, error) {
	out, err := collectAppointments(t.tx.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE instructor_id = $1
			AND status IN ('pending', 'confirmed')
			AND EXTRACT(DOW FROM appointment_date)::int = $2
			AND start_minute < $4
			AND end_minute > $3
			AND (appointment_date > $5 OR (appointment_date = $5 AND start_minute >= $6))
		ORDER BY appointment_date, start_minute
		FOR UPDATE
	`, w.InstructorID, w.Weekday, w.StartMinute, w.EndMinute, today, nowMinute))
	return out, mapErr(err, apperr.ErrConflict)
}
