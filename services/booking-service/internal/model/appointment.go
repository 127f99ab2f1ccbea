package model

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// ActiveStatuses are the statuses that occupy an instructor's time.
var ActiveStatuses = []Status{StatusPending, StatusConfirmed}

var AllStatuses = []Status{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow}

func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

type Appointment struct {
	ID                string
	InstructorID      string
	RequesterID       string
	AppointmentTypeID string
	Date              time.Time
	StartMinute       int
	EndMinute         int
	Status            Status
	PriceCents        int64
	CreatedAt         time.Time
	CancelledAt       *time.Time
	CancelReason      string
}

// AppointmentFilter selects appointments for listings and stats. From and To are
// inclusive calendar dates; zero values leave the bound open.
type AppointmentFilter struct {
	InstructorID string
	RequesterID  string
	From         time.Time
	To           time.Time
	Statuses     []Status
	Limit        int
}

// AppointmentType is owned by the catalog and read-only here.
type AppointmentType struct {
	ID                 string
	Name               string
	DurationMinutes    int
	BookingAdvanceDays int
	PriceCents         int64
	Active             bool
}

// Instructor is the local projection of the identity directory.
type Instructor struct {
	ID        string
	Role      string
	Active    bool
	UpdatedAt time.Time
}
