package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/identity"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/outbox"
)

func eventsOfType(recs []outbox.Record, eventType string) []outbox.Record {
	var out []outbox.Record
	for _, rec := range recs {
		if rec.EventType == eventType {
			out = append(out, rec)
		}
	}
	return out
}

func TestCreateAppointmentCommits(t *testing.T) {
	f := newFixture(t)
	f.window(t, 1, "09:00", "12:00", 0, 0)

	appt, err := f.bookings.CreateAppointment(context.Background(), member, CreateAppointmentInput{
		InstructorID:      "inst-1",
		Date:              monday,
		StartTime:         "10:00",
		AppointmentTypeID: "lesson",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, appt.Status)
	assert.Equal(t, 600, appt.StartMinute)
	assert.Equal(t, 660, appt.EndMinute)
	assert.Equal(t, int64(5000), appt.PriceCents)
	assert.Equal(t, "member-1", appt.RequesterID)

	booked := eventsOfType(f.store.Pending(), outbox.TopicAppointmentBooked)
	require.Len(t, booked, 1)
	assert.Equal(t, appt.ID, booked[0].AggregateID)
	assert.Equal(t, "inst-1", booked[0].Key)
}

func TestCreateAppointmentRejections(t *testing.T) {
	f := newFixture(t)
	f.window(t, 1, "09:00", "12:00", 0, 0)
	ctx := context.Background()

	base := CreateAppointmentInput{InstructorID: "inst-1", Date: monday, StartTime: "10:00", DurationMinutes: 60}
	cases := []struct {
		name string
		mut  func(*CreateAppointmentInput)
		want *apperr.Error
	}{
		{"bad date", func(in *CreateAppointmentInput) { in.Date = "2026-3-2" }, apperr.ErrFormat},
		{"bad time", func(in *CreateAppointmentInput) { in.StartTime = "24:00" }, apperr.ErrFormat},
		{"missing instructor", func(in *CreateAppointmentInput) { in.InstructorID = " " }, apperr.ErrValidation},
		{"too short", func(in *CreateAppointmentInput) { in.DurationMinutes = 10 }, apperr.ErrInvalidDuration},
		{"past date", func(in *CreateAppointmentInput) { in.Date = "2026-02-28" }, apperr.ErrPastDate},
		{"lead time", func(in *CreateAppointmentInput) { in.Date = "2026-03-01"; in.StartTime = "12:30" }, apperr.ErrInsufficientLeadTime},
		{"default advance", func(in *CreateAppointmentInput) { in.Date = "2026-04-06" }, apperr.ErrBookingWindowExceeded},
		{"type advance", func(in *CreateAppointmentInput) { in.Date = "2026-03-16"; in.AppointmentTypeID = "lesson" }, apperr.ErrBookingWindowExceeded},
		{"unknown type", func(in *CreateAppointmentInput) { in.AppointmentTypeID = "nope" }, apperr.ErrNotFound},
		{"inactive type", func(in *CreateAppointmentInput) { in.AppointmentTypeID = "retired" }, apperr.ErrNotFound},
		{"inactive instructor", func(in *CreateAppointmentInput) { in.InstructorID = "inst-off" }, apperr.ErrInstructorUnavailable},
		{"outside window", func(in *CreateAppointmentInput) { in.StartTime = "11:30" }, apperr.ErrOutsideAvailability},
		{"no window that day", func(in *CreateAppointmentInput) { in.Date = "2026-03-03" }, apperr.ErrOutsideAvailability},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := base
			tc.mut(&in)
			_, err := f.bookings.CreateAppointment(ctx, member, in)
			require.ErrorIs(t, err, tc.want)
		})
	}

	_, err := f.bookings.CreateAppointment(ctx, identity.Principal{}, base)
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)
	assert.Empty(t, eventsOfType(f.store.Pending(), outbox.TopicAppointmentBooked))
}

func TestCreateAppointmentRespectsExistingBookingsAndBlocks(t *testing.T) {
	f := newFixture(t)
	f.window(t, 1, "09:00", "12:00", 0, 0)
	ctx := context.Background()

	_, err := f.book(member, monday, "09:00", 60)
	require.NoError(t, err)

	_, err = f.book(stranger, monday, "09:30", 60)
	require.ErrorIs(t, err, apperr.ErrSlotNoLongerAvailable)

	_, err = f.blocks.CreateBlock(ctx, instructor, BlockInput{InstructorID: "inst-1", Date: monday, StartTime: "11:00", EndTime: "11:15"})
	require.NoError(t, err)
	_, err = f.book(stranger, monday, "10:30", 60)
	require.ErrorIs(t, err, apperr.ErrSlotNoLongerAvailable)

	// Back to back with the first booking is fine.
	_, err = f.book(stranger, monday, "10:00", 60)
	require.NoError(t, err)
}

func TestCreateAppointmentDailyLimit(t *testing.T) {
	f := newFixture(t)
	f.window(t, 1, "09:00", "12:00", 0, 2)

	_, err := f.book(member, monday, "09:00", 30)
	require.NoError(t, err)
	_, err = f.book(member, monday, "10:00", 30)
	require.NoError(t, err)
	_, err = f.book(member, monday, "11:00", 30)
	require.ErrorIs(t, err, apperr.ErrDailyLimitReached)

	// The cap is per date.
	_, err = f.book(member, nextMonday, "11:00", 30)
	require.NoError(t, err)
}

func TestCreateAppointmentConcurrentRequestsExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	f.window(t, 1, "09:00", "12:00", 0, 0)
	const n = 20

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := identity.Principal{UserID: fmt.Sprintf("member-%d", i), Role: identity.RoleMember}
			_, err := f.book(p, monday, "10:00", 60)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, apperr.ErrSlotNoLongerAvailable)
	}
	assert.Equal(t, 1, wins)

	active, err := f.store.ListActiveAppointments(context.Background(), "inst-1", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestCreateAppointmentIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	f.window(t, 1, "09:00", "12:00", 0, 0)
	ctx := context.Background()
	in := CreateAppointmentInput{InstructorID: "inst-1", Date: monday, StartTime: "09:00", DurationMinutes: 60, IdempotencyKey: "k-1"}

	first, err := f.bookings.CreateAppointment(ctx, member, in)
	require.NoError(t, err)
	again, err := f.bookings.CreateAppointment(ctx, member, in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Len(t, eventsOfType(f.store.Pending(), outbox.TopicAppointmentBooked), 1)

	// The same key from another requester is a different request.
	_, err = f.bookings.CreateAppointment(ctx, stranger, in)
	require.ErrorIs(t, err, apperr.ErrSlotNoLongerAvailable)
}

func TestCancelAppointment(t *testing.T) {
	f := newFixture(t)
	f.window(t, 1, "09:00", "12:00", 0, 0)
	ctx := context.Background()

	appt, err := f.book(member, monday, "09:00", 60)
	require.NoError(t, err)

	_, err = f.bookings.CancelAppointment(ctx, stranger, appt.ID, "nope")
	require.ErrorIs(t, err, apperr.ErrForbidden)

	cancelled, err := f.bookings.CancelAppointment(ctx, member, appt.ID, " feeling ill ")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	assert.Equal(t, "feeling ill", cancelled.CancelReason)
	require.NotNil(t, cancelled.CancelledAt)

	again, err := f.bookings.CancelAppointment(ctx, instructor, appt.ID, "other")
	require.NoError(t, err)
	assert.Equal(t, "feeling ill", again.CancelReason)
	assert.Len(t, eventsOfType(f.store.Pending(), outbox.TopicAppointmentCancelled), 1)

	// The slot is free again.
	_, err = f.book(stranger, monday, "09:00", 60)
	require.NoError(t, err)

	f.seed(t, model.Appointment{ID: "done", InstructorID: "inst-1", RequesterID: "member-1",
		Date: time.Date(2026, 2, 23, 0, 0, 0, 0, time.UTC), StartMinute: 540, EndMinute: 600, Status: model.StatusCompleted})
	_, err = f.bookings.CancelAppointment(ctx, member, "done", "")
	require.ErrorIs(t, err, apperr.ErrConflict)

	_, err = f.bookings.CancelAppointment(ctx, member, "missing", "")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListAndGetAppointments(t *testing.T) {
	f := newFixture(t)
	f.window(t, 1, "09:00", "12:00", 0, 0)
	ctx := context.Background()

	mine, err := f.book(member, monday, "09:00", 60)
	require.NoError(t, err)
	_, err = f.book(stranger, monday, "10:00", 60)
	require.NoError(t, err)

	own, err := f.bookings.ListAppointments(ctx, member, ListAppointmentsQuery{})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, mine.ID, own[0].ID)

	// A member asking for an instructor still only sees their own bookings.
	own, err = f.bookings.ListAppointments(ctx, member, ListAppointmentsQuery{InstructorID: "inst-1"})
	require.NoError(t, err)
	assert.Len(t, own, 1)

	all, err := f.bookings.ListAppointments(ctx, instructor, ListAppointmentsQuery{InstructorID: "inst-1", From: monday, To: monday})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.bookings.ListAppointments(ctx, admin, ListAppointmentsQuery{From: nextMonday, To: monday})
	require.ErrorIs(t, err, apperr.ErrValidation)

	got, err := f.bookings.GetAppointment(ctx, instructor, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, mine.ID, got.ID)
	_, err = f.bookings.GetAppointment(ctx, stranger, mine.ID)
	require.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestStorageTimeoutIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.window(t, 1, "09:00", "12:00", 0, 0)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err := f.bookings.CreateAppointment(ctx, member, CreateAppointmentInput{InstructorID: "inst-1", Date: monday, StartTime: "09:00", DurationMinutes: 60})
	require.Error(t, err)
	assert.True(t, apperr.Retryable(err))
}
