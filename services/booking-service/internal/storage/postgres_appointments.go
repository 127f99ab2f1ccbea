package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/model"
)

const appointmentColumns = `id::text, instructor_id, requester_id, appointment_type_id, appointment_date,
	start_minute, end_minute, status, price_cents, created_at, cancelled_at, COALESCE(cancellation_reason, '')`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var (
		a           model.Appointment
		status      string
		cancelledAt *time.Time
	)
	err := row.Scan(&a.ID, &a.InstructorID, &a.RequesterID, &a.AppointmentTypeID, &a.Date,
		&a.StartMinute, &a.EndMinute, &status, &a.PriceCents, &a.CreatedAt, &cancelledAt, &a.CancelReason)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Status = model.Status(status)
	a.CancelledAt = cancelledAt
	return a, nil
}

func collectAppointments(rows pgx.Rows, err error) ([]model.Appointment, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const activeAppointmentsQuery = `
	SELECT ` + appointmentColumns + `
	FROM appointments
	WHERE instructor_id = $1
		AND appointment_date = $2
		AND status IN ('pending', 'confirmed')
	ORDER BY start_minute`

func (p *Postgres) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	a, err := scanAppointment(p.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id::text = $1`, id))
	return a, mapErr(err, apperr.ErrConflict)
}

func (p *Postgres) ListActiveAppointments(ctx context.Context, instructorID string, date time.Time) ([]model.Appointment, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	out, err := collectAppointments(p.pool.Query(ctx, activeAppointmentsQuery, instructorID, date))
	return out, mapErr(err, apperr.ErrConflict)
}

func (p *Postgres) ListAppointments(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.InstructorID != "" {
		add("instructor_id = $%d", f.InstructorID)
	}
	if f.RequesterID != "" {
		add("requester_id = $%d", f.RequesterID)
	}
	if !f.From.IsZero() {
		add("appointment_date >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("appointment_date <= $%d", f.To)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			statuses = append(statuses, string(s))
		}
		add("status = ANY($%d)", statuses)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY appointment_date, start_minute LIMIT $%d`, len(args))

	out, err := collectAppointments(p.pool.Query(ctx, query, args...))
	return out, mapErr(err, apperr.ErrConflict)
}

func (t *pgTx) ActiveAppointments(ctx context.Context, instructorID string, date time.Time) ([]model.Appointment, error) {
	out, err := collectAppointments(t.tx.Query(ctx, activeAppointmentsQuery+` FOR UPDATE`, instructorID, date))
	return out, mapErr(err, apperr.ErrSlotNoLongerAvailable)
}

func (t *pgTx) AppointmentForUpdate(ctx context.Context, id string) (model.Appointment, error) {
	a, err := scanAppointment(t.tx.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id::text = $1 FOR UPDATE`, id))
	return a, mapErr(err, apperr.ErrConflict)
}

func (t *pgTx) InsertAppointment(ctx context.Context, a model.Appointment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO appointments
			(id, instructor_id, requester_id, appointment_type_id, appointment_date, start_minute, end_minute, status, price_cents, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, a.ID, a.InstructorID, a.RequesterID, a.AppointmentTypeID, a.Date, a.StartMinute, a.EndMinute,
		string(a.Status), a.PriceCents, a.CreatedAt)
	return mapErr(err, apperr.ErrSlotNoLongerAvailable)
}

func (t *pgTx) CancelAppointment(ctx context.Context, id, reason string, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
			cancelled_at = $2,
			cancellation_reason = $3
		WHERE id::text = $1
	`, id, at, reason)
	if err != nil {
		return mapErr(err, apperr.ErrConflict)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound.Withf("appointment %s not found", id)
	}
	return nil
}

func (t *pgTx) LockIdempotencyKey(ctx context.Context, requesterID, key string) (string, error) {
	id, err := t.selectIdempotencyForUpdate(ctx, requesterID, key)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", mapErr(err, apperr.ErrConflict)
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (requester_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (requester_id, idempotency_key) DO NOTHING
	`, requesterID, key)
	if err != nil {
		return "", mapErr(err, apperr.ErrConflict)
	}

	id, err = t.selectIdempotencyForUpdate(ctx, requesterID, key)
	return id, mapErr(err, apperr.ErrConflict)
}

func (t *pgTx) FinalizeIdempotency(ctx context.Context, requesterID, key, appointmentID string) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET appointment_id = $3,
			updated_at = now()
		WHERE requester_id = $1 AND idempotency_key = $2
	`, requesterID, key, appointmentID)
	return mapErr(err, apperr.ErrConflict)
}

func (t *pgTx) selectIdempotencyForUpdate(ctx context.Context, requesterID, key string) (string, error) {
	var id string
	err := t.tx.QueryRow(ctx, `
		SELECT COALESCE(appointment_id::text, '')
		FROM booking_idempotency_keys
		WHERE requester_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, requesterID, key).Scan(&id)
	return id, err
}
