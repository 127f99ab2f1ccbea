package service

import (
	"time"

	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/outbox"
)

const (
	aggregateAppointment = "appointment"
	aggregateWindow      = "availability_window"
)

func appointmentEvent(eventType string, a model.Appointment, at time.Time) (outbox.Event, error) {
	return outbox.NewEvent(aggregateAppointment, a.ID, eventType, a.InstructorID, outbox.AppointmentPayload{
		AppointmentID:     a.ID,
		InstructorID:      a.InstructorID,
		RequesterID:       a.RequesterID,
		AppointmentTypeID: a.AppointmentTypeID,
		Date:              availability.FormatDate(a.Date),
		StartTime:         availability.ToTimeString(a.StartMinute),
		EndTime:           availability.ToTimeString(a.EndMinute),
		Status:            string(a.Status),
		PriceCents:        a.PriceCents,
		CancelReason:      a.CancelReason,
		OccurredAt:        at.UTC().Format(time.RFC3339),
	})
}

func windowEvent(change string, w model.AvailabilityWindow, at time.Time) (outbox.Event, error) {
	return outbox.NewEvent(aggregateWindow, w.ID, outbox.TopicWindowChanged, w.InstructorID, outbox.WindowPayload{
		WindowID:          w.ID,
		InstructorID:      w.InstructorID,
		Change:            change,
		Weekday:           w.Weekday,
		StartTime:         availability.ToTimeString(w.StartMinute),
		EndTime:           availability.ToTimeString(w.EndMinute),
		BufferMinutes:     w.BufferMinutes,
		MaxBookingsPerDay: w.MaxBookingsPerDay,
		IsAvailable:       w.IsAvailable,
		OccurredAt:        at.UTC().Format(time.RFC3339),
	})
}
