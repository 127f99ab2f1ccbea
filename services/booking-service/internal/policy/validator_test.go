package policy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/identity"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/model"
)

// Monday 2025-03-03 10:00 UTC.
var fixedNow = time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)

func newValidator() *Validator {
	dir := identity.NewMemoryDirectory(
		model.Instructor{ID: "ins-1", Role: "instructor", Active: true},
		model.Instructor{ID: "ins-off", Role: "instructor", Active: false},
	)
	return NewValidator(DefaultConfig(), dir, func() time.Time { return fixedNow })
}

func date(days int) time.Time {
	return time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC).AddDate(0, 0, days)
}

func request(days, startMinute, duration int) model.BookingRequest {
	return model.BookingRequest{
		InstructorID:    "ins-1",
		RequesterID:     "u-1",
		Date:            date(days),
		StartMinute:     startMinute,
		DurationMinutes: duration,
	}
}

var lesson = model.AppointmentType{ID: "t-1", Name: "lesson", BookingAdvanceDays: 14, Active: true}

func TestDurationBoundaries(t *testing.T) {
	v := newValidator()
	ctx := context.Background()

	assert.ErrorIs(t, v.Validate(ctx, request(1, 540, 14), lesson), apperr.ErrInvalidDuration)
	assert.NoError(t, v.Validate(ctx, request(1, 540, 15), lesson))
	assert.NoError(t, v.Validate(ctx, request(1, 540, 480), lesson))
	assert.ErrorIs(t, v.Validate(ctx, request(1, 540, 481), lesson), apperr.ErrInvalidDuration)
}

func TestMidnightOverflowRejected(t *testing.T) {
	v := newValidator()
	assert.ErrorIs(t, v.Validate(context.Background(), request(1, 23*60, 90), lesson), apperr.ErrInvalidDuration)
	assert.NoError(t, v.Validate(context.Background(), request(1, 23*60, 60), lesson))
}

func TestLeadTimeBoundary(t *testing.T) {
	v := newValidator()
	ctx := context.Background()

	// now is 10:00, so 11:00 is exactly one hour ahead.
	assert.NoError(t, v.Validate(ctx, request(0, 11*60, 30), lesson))
	assert.ErrorIs(t, v.Validate(ctx, request(0, 10*60+59, 30), lesson), apperr.ErrInsufficientLeadTime)
}

func TestPastDate(t *testing.T) {
	v := newValidator()
	assert.ErrorIs(t, v.Validate(context.Background(), request(-1, 11*60, 30), lesson), apperr.ErrPastDate)
}

func TestAdvanceWindowBoundary(t *testing.T) {
	v := newValidator()
	ctx := context.Background()

	assert.NoError(t, v.Validate(ctx, request(14, 9*60, 30), lesson))
	assert.ErrorIs(t, v.Validate(ctx, request(15, 9*60, 30), lesson), apperr.ErrBookingWindowExceeded)

	// A type without its own limit falls back to the configured default.
	untyped := model.AppointmentType{ID: "t-2", Active: true}
	assert.NoError(t, v.Validate(ctx, request(30, 9*60, 30), untyped))
	assert.ErrorIs(t, v.Validate(ctx, request(31, 9*60, 30), untyped), apperr.ErrBookingWindowExceeded)
}

func TestInstructorEligibility(t *testing.T) {
	v := newValidator()
	ctx := context.Background()

	req := request(1, 9*60, 30)
	req.InstructorID = "ins-off"
	assert.ErrorIs(t, v.Validate(ctx, req, lesson), apperr.ErrInstructorUnavailable)

	req.InstructorID = "ins-unknown"
	assert.ErrorIs(t, v.Validate(ctx, req, lesson), apperr.ErrInstructorUnavailable)
}

func TestLocationShiftsToday(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	cfg := DefaultConfig()
	cfg.Location = loc
	// 2025-03-03 02:00 UTC is still 2025-03-02 21:00 in UTC-5.
	v := NewValidator(cfg, nil, func() time.Time { return time.Date(2025, 3, 3, 2, 0, 0, 0, time.UTC) })

	assert.Equal(t, date(-1), v.Today())
	req := request(-1, 23*60, 30)
	assert.NoError(t, v.Validate(context.Background(), req, lesson))
}

func TestLeadTimeOnDSTStart(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	cfg := DefaultConfig()
	cfg.Location = loc
	// Clocks jump from 02:00 EST to 03:00 EDT on 2026-03-08; now is 09:30 EDT.
	now := time.Date(2026, 3, 8, 9, 30, 0, 0, loc)
	v := NewValidator(cfg, nil, func() time.Time { return now })
	day := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	req := func(start int) model.BookingRequest {
		return model.BookingRequest{InstructorID: "ins-1", RequesterID: "u-1", Date: day, StartMinute: start, DurationMinutes: 30}
	}

	assert.ErrorIs(t, v.Validate(context.Background(), req(10*60), lesson), apperr.ErrInsufficientLeadTime)
	assert.ErrorIs(t, v.Validate(context.Background(), req(10*60+29), lesson), apperr.ErrInsufficientLeadTime)
	assert.NoError(t, v.Validate(context.Background(), req(10*60+30), lesson))
}

func TestStaticProvider(t *testing.T) {
	p := NewStaticProvider(lesson, model.AppointmentType{ID: "retired", Active: false})
	got, err := p.AppointmentType(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, lesson, got)

	_, err = p.AppointmentType(context.Background(), "retired")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
