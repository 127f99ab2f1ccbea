package model

import "time"

// TimeSlot is a derived candidate interval; minutes are offsets from midnight.
type TimeSlot struct {
	Start        int  `json:"start"`
	End          int  `json:"end"`
	Available    bool `json:"available"`
	BufferBefore int  `json:"buffer_before"`
	BufferAfter  int  `json:"buffer_after"`
}

type WorkingHours struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type AvailabilityResult struct {
	Date            time.Time     `json:"date"`
	InstructorID    string        `json:"instructor_id"`
	DurationMinutes int           `json:"duration_minutes"`
	Slots           []TimeSlot    `json:"slots"`
	TotalAvailable  int           `json:"total_available"`
	WorkingHours    *WorkingHours `json:"working_hours,omitempty"`
}

// BookingRequest is a validated-shape request to create an appointment.
type BookingRequest struct {
	InstructorID      string
	RequesterID       string
	AppointmentTypeID string
	Date              time.Time
	StartMinute       int
	DurationMinutes   int
	IdempotencyKey    string
}

func (r BookingRequest) EndMinute() int { return r.StartMinute + r.DurationMinutes }
