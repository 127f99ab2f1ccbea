package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/instructorbook/libs/cache"
	"github.com/md-rashed-zaman/instructorbook/libs/metrics"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/identity"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/policy"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/storage"
)

// Sunday 2026-03-01 12:00 UTC; the next day is a Monday.
var clock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const (
	monday     = "2026-03-02"
	nextMonday = "2026-03-09"
)

var (
	admin      = identity.Principal{UserID: "admin-1", Role: identity.RoleAdmin}
	instructor = identity.Principal{UserID: "user-inst-1", Role: identity.RoleInstructor, InstructorID: "inst-1"}
	member     = identity.Principal{UserID: "member-1", Role: identity.RoleMember}
	stranger   = identity.Principal{UserID: "member-2", Role: identity.RoleMember}
)

type fixture struct {
	store        *storage.Memory
	cache        *cache.Memory
	metrics      *metrics.Metrics
	now          time.Time
	availability *AvailabilityService
	bookings     *BookingService
	windows      *WindowService
	blocks       *BlockService
	stats        *StatsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: storage.NewMemory(), cache: cache.NewMemory(), metrics: metrics.New("booking-service-test"), now: clock}
	ctx := context.Background()
	require.NoError(t, f.store.UpsertInstructor(ctx, model.Instructor{ID: "inst-1", Role: "instructor", Active: true, UpdatedAt: clock}))
	require.NoError(t, f.store.UpsertInstructor(ctx, model.Instructor{ID: "inst-off", Role: "instructor", Active: false, UpdatedAt: clock}))
	require.NoError(t, f.store.UpsertAppointmentType(ctx, model.AppointmentType{
		ID: "lesson", Name: "lesson", DurationMinutes: 60, BookingAdvanceDays: 14, PriceCents: 5000, Active: true,
	}))
	require.NoError(t, f.store.UpsertAppointmentType(ctx, model.AppointmentType{ID: "retired", Name: "retired", DurationMinutes: 30}))

	deps := Deps{
		Store:     f.store,
		Validator: policy.NewValidator(policy.DefaultConfig(), f.store, func() time.Time { return f.now }),
		Cache:     f.cache,
		Metrics:   f.metrics,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	f.availability = NewAvailabilityService(deps)
	f.bookings = NewBookingService(deps)
	f.windows = NewWindowService(deps)
	f.blocks = NewBlockService(deps)
	f.stats = NewStatsService(deps)
	return f
}

func (f *fixture) window(t *testing.T, weekday int, start, end string, buffer, maxPerDay int) model.AvailabilityWindow {
	t.Helper()
	w, err := f.windows.CreateWindow(context.Background(), instructor, WindowInput{
		InstructorID:      "inst-1",
		Weekday:           weekday,
		StartTime:         start,
		EndTime:           end,
		BufferMinutes:     buffer,
		MaxBookingsPerDay: maxPerDay,
	})
	require.NoError(t, err)
	return w
}

func (f *fixture) book(p identity.Principal, date, start string, duration int) (model.Appointment, error) {
	return f.bookings.CreateAppointment(context.Background(), p, CreateAppointmentInput{
		InstructorID:    "inst-1",
		Date:            date,
		StartTime:       start,
		DurationMinutes: duration,
	})
}

// seed writes an appointment directly, bypassing policy.
func (f *fixture) seed(t *testing.T, a model.Appointment) {
	t.Helper()
	require.NoError(t, f.store.InTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.InsertAppointment(ctx, a)
	}))
}
