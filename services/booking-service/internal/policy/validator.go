package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/identity"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/model"
)

type Config struct {
	MinDurationMinutes int
	MaxDurationMinutes int
	MinLeadTime        time.Duration
	DefaultAdvanceDays int
	Location           *time.Location
}

func DefaultConfig() Config {
	return Config{
		MinDurationMinutes: 15,
		MaxDurationMinutes: 480,
		MinLeadTime:        time.Hour,
		DefaultAdvanceDays: 30,
		Location:           time.UTC,
	}
}

// Validator runs the stateless booking checks. Each failure has its own error kind.
type Validator struct {
	cfg       Config
	directory identity.Directory
	now       func() time.Time
}

func NewValidator(cfg Config, directory identity.Directory, now func() time.Time) *Validator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Validator{cfg: cfg, directory: directory, now: now}
}

func (v *Validator) Location() *time.Location { return v.cfg.Location }

func (v *Validator) Now() time.Time { return v.now() }

// Today is the current calendar date in the booking location.
func (v *Validator) Today() time.Time { return availability.DateOf(v.now(), v.cfg.Location) }

func (v *Validator) CheckDuration(minutes int) error {
	if minutes < v.cfg.MinDurationMinutes || minutes > v.cfg.MaxDurationMinutes {
		return apperr.ErrInvalidDuration.Withf("duration must be between %d and %d minutes, got %d",
			v.cfg.MinDurationMinutes, v.cfg.MaxDurationMinutes, minutes)
	}
	return nil
}

// AdvanceDays is the furthest a booking of typ may be placed ahead of today.
func (v *Validator) AdvanceDays(typ model.AppointmentType) int {
	if typ.BookingAdvanceDays > 0 {
		return typ.BookingAdvanceDays
	}
	return v.cfg.DefaultAdvanceDays
}

// Validate checks duration, past date, lead time, advance window and instructor
// eligibility, in that order.
func (v *Validator) Validate(ctx context.Context, req model.BookingRequest, typ model.AppointmentType) error {
	if err := v.CheckDuration(req.DurationMinutes); err != nil {
		return err
	}
	if req.EndMinute() > availability.MinutesPerDay {
		return apperr.ErrInvalidDuration.Withf("appointment starting %s for %d minutes would pass midnight",
			availability.ToTimeString(req.StartMinute), req.DurationMinutes)
	}

	now := v.now()
	today := availability.DateOf(now, v.cfg.Location)
	if req.Date.Before(today) {
		return apperr.ErrPastDate.Withf("%s is in the past", availability.FormatDate(req.Date))
	}

	start := availability.At(req.Date, req.StartMinute, v.cfg.Location)
	if start.Sub(now) < v.cfg.MinLeadTime {
		return apperr.ErrInsufficientLeadTime.Withf("choose a start time at least %s from now", humanDuration(v.cfg.MinLeadTime))
	}

	if limit := v.AdvanceDays(typ); availability.DaysBetween(today, req.Date) > limit {
		return apperr.ErrBookingWindowExceeded.Withf("%s bookings open at most %d days ahead", typeName(typ), limit)
	}

	return v.CheckInstructor(ctx, req.InstructorID)
}

func (v *Validator) CheckInstructor(ctx context.Context, instructorID string) error {
	if v.directory == nil {
		return nil
	}
	in, ok, err := v.directory.Instructor(ctx, instructorID)
	if err != nil {
		return err
	}
	if !ok || !identity.Eligible(in) {
		return apperr.ErrInstructorUnavailable.Withf("instructor %s is not accepting bookings", instructorID)
	}
	return nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", d/time.Hour)
	default:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	}
}

func typeName(typ model.AppointmentType) string {
	if typ.Name != "" {
		return typ.Name
	}
	return "these"
}
