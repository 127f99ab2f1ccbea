package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/model"
)

func (p *Postgres) AppointmentType(ctx context.Context, id string) (model.AppointmentType, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	var t model.AppointmentType
	err := p.pool.QueryRow(ctx, `
		SELECT id, name, duration_minutes, booking_advance_days, price_cents, active
		FROM appointment_types
		WHERE id = $1
	`, id).Scan(&t.ID, &t.Name, &t.DurationMinutes, &t.BookingAdvanceDays, &t.PriceCents, &t.Active)
	return t, mapErr(err, apperr.ErrConflict)
}

func (p *Postgres) UpsertAppointmentType(ctx context.Context, t model.AppointmentType) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	_, err := p.pool.Exec(ctx, `
		INSERT INTO appointment_types (id, name, duration_minutes, booking_advance_days, price_cents, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			duration_minutes = EXCLUDED.duration_minutes,
			booking_advance_days = EXCLUDED.booking_advance_days,
			price_cents = EXCLUDED.price_cents,
			active = EXCLUDED.active
	`, t.ID, t.Name, t.DurationMinutes, t.BookingAdvanceDays, t.PriceCents, t.Active)
	return mapErr(err, apperr.ErrConflict)
}

func (p *Postgres) Instructor(ctx context.Context, id string) (model.Instructor, bool, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	var in model.Instructor
	err := p.pool.QueryRow(ctx, `
		SELECT id, role, active, updated_at
		FROM instructors
		WHERE id = $1
	`, id).Scan(&in.ID, &in.Role, &in.Active, &in.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Instructor{}, false, nil
	}
	if err != nil {
		return model.Instructor{}, false, mapErr(err, apperr.ErrConflict)
	}
	return in, true, nil
}

// UpsertInstructor keeps the newest projection; stale events are ignored.
func (p *Postgres) UpsertInstructor(ctx context.Context, in model.Instructor) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	_, err := p.pool.Exec(ctx, `
		INSERT INTO instructors (id, role, active, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET role = EXCLUDED.role,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
		WHERE instructors.updated_at <= EXCLUDED.updated_at
	`, in.ID, in.Role, in.Active, in.UpdatedAt)
	return mapErr(err, apperr.ErrConflict)
}
