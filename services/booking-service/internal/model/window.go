package model

import "time"

// AvailabilityWindow is a recurring weekly interval [StartMinute, EndMinute) on Weekday
// (0 = Sunday) during which an instructor accepts bookings.
type AvailabilityWindow struct {
	ID                string
	InstructorID      string
	Weekday           int
	StartMinute       int
	EndMinute         int
	BufferMinutes     int
	MaxBookingsPerDay int
	IsAvailable       bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (w AvailabilityWindow) Active() bool { return w.IsAvailable }

// Contains reports whether [start, end) lies inside the window.
func (w AvailabilityWindow) Contains(start, end int) bool {
	return start >= w.StartMinute && end <= w.EndMinute
}

// WindowPatch holds the fields of a partial update; nil means unchanged.
type WindowPatch struct {
	Weekday           *int
	StartMinute       *int
	EndMinute         *int
	BufferMinutes     *int
	MaxBookingsPerDay *int
	IsAvailable       *bool
}

func (w AvailabilityWindow) Apply(p WindowPatch) AvailabilityWindow {
	if p.Weekday != nil {
		w.Weekday = *p.Weekday
	}
	if p.StartMinute != nil {
		w.StartMinute = *p.StartMinute
	}
	if p.EndMinute != nil {
		w.EndMinute = *p.EndMinute
	}
	if p.BufferMinutes != nil {
		w.BufferMinutes = *p.BufferMinutes
	}
	if p.MaxBookingsPerDay != nil {
		w.MaxBookingsPerDay = *p.MaxBookingsPerDay
	}
	if p.IsAvailable != nil {
		w.IsAvailable = *p.IsAvailable
	}
	return w
}

// BlockedPeriod is a one-off unavailable interval on a specific date.
type BlockedPeriod struct {
	ID           string
	InstructorID string
	Date         time.Time
	StartMinute  int
	EndMinute    int
	Reason       string
	CreatedAt    time.Time
}
