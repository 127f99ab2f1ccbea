// Package storage persists windows, blocks and appointments. Postgres is the
// production driver; Memory serializes every transaction behind one mutex and
// enforces the same overlap constraints, for tests and local runs.
package storage

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/outbox"
)

// Tx is the set of operations available inside one atomic unit. Reads that feed
// an invariant check lock what they read.
type Tx interface {
	ActiveWindows(ctx context.Context, instructorID string, weekday int) ([]model.AvailabilityWindow, error)
	WindowForUpdate(ctx context.Context, id string) (model.AvailabilityWindow, error)
	InsertWindow(ctx context.Context, w model.AvailabilityWindow) error
	SaveWindow(ctx context.Context, w model.AvailabilityWindow) error
	DeleteWindow(ctx context.Context, id string) error
	// UpcomingAppointments returns the active appointments on w's weekday that overlap
	// w and start at or after nowMinute on today, or on any later date.
	UpcomingAppointments(ctx context.Context, w model.AvailabilityWindow, today time.Time, nowMinute int) ([]model.Appointment, error)

	ActiveAppointments(ctx context.Context, instructorID string, date time.Time) ([]model.Appointment, error)
	BlockedPeriods(ctx context.Context, instructorID string, date time.Time) ([]model.BlockedPeriod, error)
	AppointmentForUpdate(ctx context.Context, id string) (model.Appointment, error)
	InsertAppointment(ctx context.Context, a model.Appointment) error
	CancelAppointment(ctx context.Context, id, reason string, at time.Time) error

	// LockIdempotencyKey claims (requesterID, key) and returns the appointment already
	// committed under it, or "" for a fresh key.
	LockIdempotencyKey(ctx context.Context, requesterID, key string) (string, error)
	FinalizeIdempotency(ctx context.Context, requesterID, key, appointmentID string) error

	EnqueueEvent(ctx context.Context, evt outbox.Event) error
}

type TxFunc func(ctx context.Context, tx Tx) error

// Store is everything the services use; *Postgres and *Memory both implement it.
type Store interface {
	InTx(ctx context.Context, fn TxFunc) error

	GetWindow(ctx context.Context, id string) (model.AvailabilityWindow, error)
	ListWindows(ctx context.Context, instructorID string) ([]model.AvailabilityWindow, error)
	ListActiveWindows(ctx context.Context, instructorID string, weekday int) ([]model.AvailabilityWindow, error)

	CreateBlock(ctx context.Context, b model.BlockedPeriod) error
	DeleteBlock(ctx context.Context, id string) (model.BlockedPeriod, error)
	GetBlock(ctx context.Context, id string) (model.BlockedPeriod, error)
	ListBlocks(ctx context.Context, instructorID string, date time.Time) ([]model.BlockedPeriod, error)

	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	ListActiveAppointments(ctx context.Context, instructorID string, date time.Time) ([]model.Appointment, error)
	ListAppointments(ctx context.Context, filter model.AppointmentFilter) ([]model.Appointment, error)

	AppointmentType(ctx context.Context, id string) (model.AppointmentType, error)
	UpsertAppointmentType(ctx context.Context, t model.AppointmentType) error
	Instructor(ctx context.Context, id string) (model.Instructor, bool, error)
	UpsertInstructor(ctx context.Context, in model.Instructor) error

	Drain(ctx context.Context, limit int, send func(context.Context, []outbox.Record) error) (int, error)
}

var (
	_ Store = (*Postgres)(nil)
	_ Store = (*Memory)(nil)
	_ Tx    = (*pgTx)(nil)
	_ Tx    = (*memTx)(nil)
)

const defaultListLimit = 200
