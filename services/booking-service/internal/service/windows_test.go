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

func ptr[T any](v T) *T { return &v }

func TestCreateWindowValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := WindowInput{InstructorID: "inst-1", Weekday: 1, StartTime: "09:00", EndTime: "12:00"}

	cases := []struct {
		name string
		mut  func(*WindowInput)
		want *apperr.Error
	}{
		{"bad start", func(in *WindowInput) { in.StartTime = "9am" }, apperr.ErrFormat},
		{"end before start", func(in *WindowInput) { in.EndTime = "08:00" }, apperr.ErrValidation},
		{"empty interval", func(in *WindowInput) { in.EndTime = "09:00" }, apperr.ErrValidation},
		{"weekday", func(in *WindowInput) { in.Weekday = 7 }, apperr.ErrValidation},
		{"buffer", func(in *WindowInput) { in.BufferMinutes = -5 }, apperr.ErrValidation},
		{"cap", func(in *WindowInput) { in.MaxBookingsPerDay = -1 }, apperr.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := base
			tc.mut(&in)
			_, err := f.windows.CreateWindow(ctx, instructor, in)
			require.ErrorIs(t, err, tc.want)
		})
	}

	_, err := f.windows.CreateWindow(ctx, identity.Principal{UserID: "user-inst-2", Role: identity.RoleInstructor, InstructorID: "inst-2"}, base)
	require.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.windows.CreateWindow(ctx, member, base)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	w, err := f.windows.CreateWindow(ctx, admin, base)
	require.NoError(t, err)
	assert.True(t, w.IsAvailable)
	require.Len(t, eventsOfType(f.store.Pending(), outbox.TopicWindowChanged), 1)
}

func TestCreateWindowRejectsOverlap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.window(t, 1, "09:00", "12:00", 0, 0)

	_, err := f.windows.CreateWindow(ctx, instructor, WindowInput{InstructorID: "inst-1", Weekday: 1, StartTime: "11:00", EndTime: "13:00"})
	require.ErrorIs(t, err, apperr.ErrConflict)

	// Adjacent, another weekday, or inactive: all fine.
	f.window(t, 1, "12:00", "13:00", 0, 0)
	f.window(t, 2, "09:00", "12:00", 0, 0)
	_, err = f.windows.CreateWindow(ctx, instructor, WindowInput{InstructorID: "inst-1", Weekday: 1, StartTime: "10:00", EndTime: "11:00", IsAvailable: ptr(false)})
	require.NoError(t, err)

	all, err := f.windows.ListWindows(ctx, instructor, "inst-1")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestCreateWindowConcurrentOverlapsLeaveOne(t *testing.T) {
	f := newFixture(t)
	const n = 12

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.windows.CreateWindow(context.Background(), instructor, WindowInput{
				InstructorID: "inst-1",
				Weekday:      3,
				StartTime:    fmt.Sprintf("09:%02d", i),
				EndTime:      "11:00",
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, apperr.ErrConflict)
	}
	assert.Equal(t, 1, ok)
}

func TestUpdateWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.window(t, 1, "09:00", "12:00", 0, 0)
	other := f.window(t, 1, "13:00", "15:00", 0, 0)

	_, err := f.windows.UpdateWindow(ctx, instructor, w.ID, WindowPatchInput{EndTime: ptr("13:30")})
	require.ErrorIs(t, err, apperr.ErrConflict)

	// Shrinking against itself is not a conflict.
	updated, err := f.windows.UpdateWindow(ctx, instructor, w.ID, WindowPatchInput{StartTime: ptr("10:00"), BufferMinutes: ptr(10)})
	require.NoError(t, err)
	assert.Equal(t, 600, updated.StartMinute)
	assert.Equal(t, 720, updated.EndMinute)
	assert.Equal(t, 10, updated.BufferMinutes)

	_, err = f.windows.UpdateWindow(ctx, instructor, w.ID, WindowPatchInput{StartTime: ptr("12:30")})
	require.ErrorIs(t, err, apperr.ErrValidation)

	// Deactivate the other window, then growing into its range is allowed.
	_, err = f.windows.UpdateWindow(ctx, instructor, other.ID, WindowPatchInput{IsAvailable: ptr(false)})
	require.NoError(t, err)
	_, err = f.windows.UpdateWindow(ctx, instructor, w.ID, WindowPatchInput{EndTime: ptr("14:00")})
	require.NoError(t, err)
	// Reactivating it now overlaps.
	_, err = f.windows.UpdateWindow(ctx, instructor, other.ID, WindowPatchInput{IsAvailable: ptr(true)})
	require.ErrorIs(t, err, apperr.ErrConflict)

	// Moving to another weekday checks that weekday.
	f.window(t, 2, "10:00", "11:00", 0, 0)
	_, err = f.windows.UpdateWindow(ctx, instructor, w.ID, WindowPatchInput{Weekday: ptr(2)})
	require.ErrorIs(t, err, apperr.ErrConflict)

	_, err = f.windows.UpdateWindow(ctx, stranger, w.ID, WindowPatchInput{BufferMinutes: ptr(5)})
	require.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.windows.UpdateWindow(ctx, instructor, "missing", WindowPatchInput{BufferMinutes: ptr(5)})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	got, err := f.windows.GetWindow(ctx, instructor, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 840, got.EndMinute)
}

func TestDeleteWindowGuard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.window(t, 1, "09:00", "12:00", 0, 0)

	appt, err := f.book(member, nextMonday, "10:00", 60)
	require.NoError(t, err)

	err = f.windows.DeleteWindow(ctx, instructor, w.ID)
	require.ErrorIs(t, err, apperr.ErrDependency)

	_, err = f.bookings.CancelAppointment(ctx, member, appt.ID, "")
	require.NoError(t, err)
	require.NoError(t, f.windows.DeleteWindow(ctx, instructor, w.ID))

	_, err = f.windows.GetWindow(ctx, instructor, w.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateWindowKeepsUpcomingAppointmentsCovered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.window(t, 1, "09:00", "12:00", 0, 0)
	f.seed(t, model.Appointment{ID: "past", InstructorID: "inst-1", RequesterID: "m", Date: time.Date(2026, 2, 23, 0, 0, 0, 0, time.UTC),
		StartMinute: 540, EndMinute: 600, Status: model.StatusConfirmed})
	appt, err := f.book(member, nextMonday, "10:00", 60)
	require.NoError(t, err)

	rejected := map[string]WindowPatchInput{
		"deactivate":   {IsAvailable: ptr(false)},
		"move weekday": {Weekday: ptr(2)},
		"shrink end":   {EndTime: ptr("10:30")},
		"shrink start": {StartTime: ptr("10:30")},
	}
	for name, patch := range rejected {
		t.Run(name, func(t *testing.T) {
			_, err := f.windows.UpdateWindow(ctx, instructor, w.ID, patch)
			require.ErrorIs(t, err, apperr.ErrDependency)
		})
	}

	// Changes that still cover 10:00-11:00 go through.
	updated, err := f.windows.UpdateWindow(ctx, instructor, w.ID, WindowPatchInput{StartTime: ptr("10:00"), EndTime: ptr("13:00"), BufferMinutes: ptr(5)})
	require.NoError(t, err)
	assert.Equal(t, 600, updated.StartMinute)
	assert.Equal(t, 780, updated.EndMinute)

	_, err = f.bookings.CancelAppointment(ctx, member, appt.ID, "")
	require.NoError(t, err)
	updated, err = f.windows.UpdateWindow(ctx, instructor, w.ID, WindowPatchInput{IsAvailable: ptr(false)})
	require.NoError(t, err)
	assert.False(t, updated.IsAvailable)
}

func TestDeleteWindowGuardSameDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.window(t, 1, "09:00", "17:00", 0, 0)
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	f.seed(t, model.Appointment{ID: "early", InstructorID: "inst-1", RequesterID: "m", Date: date, StartMinute: 540, EndMinute: 600, Status: model.StatusConfirmed})
	f.seed(t, model.Appointment{ID: "late", InstructorID: "inst-1", RequesterID: "m", Date: date, StartMinute: 900, EndMinute: 960, Status: model.StatusConfirmed})

	// Monday 12:00: the 15:00 appointment is still ahead.
	f.now = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	require.ErrorIs(t, f.windows.DeleteWindow(ctx, instructor, w.ID), apperr.ErrDependency)

	// Monday 15:01: both appointments have started.
	f.now = time.Date(2026, 3, 2, 15, 1, 0, 0, time.UTC)
	require.NoError(t, f.windows.DeleteWindow(ctx, instructor, w.ID))
}

func TestWindowChangesInvalidateAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := AvailabilityQuery{InstructorID: "inst-1", Date: monday, DurationMinutes: 60}

	res, err := f.availability.GetAvailability(ctx, q)
	require.NoError(t, err)
	require.Zero(t, res.TotalAvailable)

	w := f.window(t, 1, "09:00", "11:00", 0, 0)
	res, err = f.availability.GetAvailability(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalAvailable)

	_, err = f.windows.UpdateWindow(ctx, instructor, w.ID, WindowPatchInput{EndTime: ptr("12:00")})
	require.NoError(t, err)
	res, err = f.availability.GetAvailability(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalAvailable)

	require.NoError(t, f.windows.DeleteWindow(ctx, instructor, w.ID))
	res, err = f.availability.GetAvailability(ctx, q)
	require.NoError(t, err)
	assert.Zero(t, res.TotalAvailable)
}
