package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/instructorbook/libs/db"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/migrations"
)

// openPostgres connects to BOOKING_TEST_DATABASE_URL and applies the schema.
// Each test uses its own instructor id so runs against a shared database do not collide.
func openPostgres(t *testing.T) *Postgres {
	t.Helper()
	url := os.Getenv("BOOKING_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("BOOKING_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Open(ctx, url, db.Options{MaxConns: 4, ConnectTries: 3})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Migrate(ctx, migrations.FS)
	require.NoError(t, err)
	return NewPostgres(pool, PostgresOptions{Timeout: 10 * time.Second})
}

func TestPostgresWindowsAndAppointments(t *testing.T) {
	store := openPostgres(t)
	ctx := context.Background()
	instructor := "inst-" + uuid.NewString()

	w := window(uuid.NewString(), 9*60, 12*60)
	w.InstructorID = instructor
	require.NoError(t, store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.InsertWindow(ctx, w)
	}))

	overlapping := window(uuid.NewString(), 11*60, 13*60)
	overlapping.InstructorID = instructor
	err := store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.InsertWindow(ctx, overlapping)
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	windows, err := store.ListActiveWindows(ctx, instructor, 1)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, w.ID, windows[0].ID)

	booked := appointment(uuid.NewString(), monday, 9*60, 10*60, model.StatusConfirmed)
	booked.InstructorID = instructor
	require.NoError(t, store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.InsertAppointment(ctx, booked)
	}))

	clash := appointment(uuid.NewString(), monday, 9*60+30, 10*60+30, model.StatusPending)
	clash.InstructorID = instructor
	err = store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.InsertAppointment(ctx, clash)
	})
	assert.ErrorIs(t, err, apperr.ErrSlotNoLongerAvailable)

	upcoming := func(nowMinute int) []model.Appointment {
		var out []model.Appointment
		require.NoError(t, store.InTx(ctx, func(ctx context.Context, tx Tx) error {
			var err error
			out, err = tx.UpcomingAppointments(ctx, w, monday, nowMinute)
			return err
		}))
		return out
	}
	got := upcoming(0)
	require.Len(t, got, 1)
	assert.Equal(t, booked.ID, got[0].ID)
	assert.Empty(t, upcoming(9*60+1))

	require.NoError(t, store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.CancelAppointment(ctx, booked.ID, "ill", monday.Add(time.Hour))
	}))
	assert.Empty(t, upcoming(0))

	// The freed slot can be booked again.
	require.NoError(t, store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.InsertAppointment(ctx, clash)
	}))
	active, err := store.ListActiveAppointments(ctx, instructor, monday)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, clash.ID, active[0].ID)
}
