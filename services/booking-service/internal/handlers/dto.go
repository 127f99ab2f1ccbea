package handlers

import (
	"time"

	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/model"
)

type createAppointmentRequest struct {
	InstructorID      string `json:"instructor_id" validate:"required"`
	Date              string `json:"date" validate:"required,ymd"`
	StartTime         string `json:"start_time" validate:"required,hhmm"`
	DurationMinutes   int    `json:"duration_minutes" validate:"gte=0"`
	AppointmentTypeID string `json:"appointment_type_id"`
}

type cancelAppointmentRequest struct {
	AppointmentID string `json:"appointment_id" validate:"required"`
	Reason        string `json:"reason" validate:"max=500"`
}

type createWindowRequest struct {
	InstructorID      string `json:"instructor_id" validate:"required"`
	Weekday           *int   `json:"weekday" validate:"required,min=0,max=6"`
	StartTime         string `json:"start_time" validate:"required,hhmm"`
	EndTime           string `json:"end_time" validate:"required,hhmm"`
	BufferMinutes     int    `json:"buffer_minutes" validate:"gte=0"`
	MaxBookingsPerDay int    `json:"max_bookings_per_day" validate:"gte=0"`
	IsAvailable       *bool  `json:"is_available"`
}

type patchWindowRequest struct {
	Weekday           *int    `json:"weekday" validate:"omitempty,min=0,max=6"`
	StartTime         *string `json:"start_time" validate:"omitempty,hhmm"`
	EndTime           *string `json:"end_time" validate:"omitempty,hhmm"`
	BufferMinutes     *int    `json:"buffer_minutes" validate:"omitempty,gte=0"`
	MaxBookingsPerDay *int    `json:"max_bookings_per_day" validate:"omitempty,gte=0"`
	IsAvailable       *bool   `json:"is_available"`
}

type createBlockRequest struct {
	InstructorID string `json:"instructor_id" validate:"required"`
	Date         string `json:"date" validate:"required,ymd"`
	StartTime    string `json:"start_time" validate:"required,hhmm"`
	EndTime      string `json:"end_time" validate:"required,hhmm"`
	Reason       string `json:"reason" validate:"max=500"`
}

type slotResponse struct {
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	Available    bool   `json:"available"`
	BufferBefore int    `json:"buffer_before"`
	BufferAfter  int    `json:"buffer_after"`
}

type workingHoursResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type availabilityResponse struct {
	Date            string                `json:"date"`
	InstructorID    string                `json:"instructor_id"`
	DurationMinutes int                   `json:"duration_minutes"`
	Slots           []slotResponse        `json:"slots"`
	TotalAvailable  int                   `json:"total_available"`
	WorkingHours    *workingHoursResponse `json:"working_hours,omitempty"`
}

type appointmentResponse struct {
	ID                string `json:"id"`
	InstructorID      string `json:"instructor_id"`
	RequesterID       string `json:"requester_id"`
	AppointmentTypeID string `json:"appointment_type_id,omitempty"`
	Date              string `json:"date"`
	StartTime         string `json:"start_time"`
	EndTime           string `json:"end_time"`
	Status            string `json:"status"`
	PriceCents        int64  `json:"price_cents"`
	CreatedAt         string `json:"created_at"`
	CancelledAt       string `json:"cancelled_at,omitempty"`
	CancelReason      string `json:"cancel_reason,omitempty"`
}

type windowResponse struct {
	ID                string `json:"id"`
	InstructorID      string `json:"instructor_id"`
	Weekday           int    `json:"weekday"`
	StartTime         string `json:"start_time"`
	EndTime           string `json:"end_time"`
	BufferMinutes     int    `json:"buffer_minutes"`
	MaxBookingsPerDay int    `json:"max_bookings_per_day"`
	IsAvailable       bool   `json:"is_available"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

type blockResponse struct {
	ID           string `json:"id"`
	InstructorID string `json:"instructor_id"`
	Date         string `json:"date"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	Reason       string `json:"reason,omitempty"`
	CreatedAt    string `json:"created_at"`
}

type statsResponse struct {
	InstructorID   string            `json:"instructor_id,omitempty"`
	From           string            `json:"from"`
	To             string            `json:"to"`
	Total          int               `json:"total"`
	ByStatus       map[string]int    `json:"by_status"`
	RevenueCents   int64             `json:"revenue_cents"`
	CompletionRate float64           `json:"completion_rate"`
	PopularTimes   []model.TimeCount `json:"popular_times"`
	ByWeekday      [7]int            `json:"by_weekday"`
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toAvailabilityResponse(res model.AvailabilityResult) availabilityResponse {
	out := availabilityResponse{
		Date:            availability.FormatDate(res.Date),
		InstructorID:    res.InstructorID,
		DurationMinutes: res.DurationMinutes,
		Slots:           make([]slotResponse, 0, len(res.Slots)),
		TotalAvailable:  res.TotalAvailable,
	}
	for _, s := range res.Slots {
		out.Slots = append(out.Slots, slotResponse{
			StartTime:    availability.ToTimeString(s.Start),
			EndTime:      availability.ToTimeString(s.End),
			Available:    s.Available,
			BufferBefore: s.BufferBefore,
			BufferAfter:  s.BufferAfter,
		})
	}
	if res.WorkingHours != nil {
		out.WorkingHours = &workingHoursResponse{
			Start: availability.ToTimeString(res.WorkingHours.Start),
			End:   availability.ToTimeString(res.WorkingHours.End),
		}
	}
	return out
}

func toAppointmentResponse(a model.Appointment) appointmentResponse {
	out := appointmentResponse{
		ID:                a.ID,
		InstructorID:      a.InstructorID,
		RequesterID:       a.RequesterID,
		AppointmentTypeID: a.AppointmentTypeID,
		Date:              availability.FormatDate(a.Date),
		StartTime:         availability.ToTimeString(a.StartMinute),
		EndTime:           availability.ToTimeString(a.EndMinute),
		Status:            string(a.Status),
		PriceCents:        a.PriceCents,
		CreatedAt:         timestamp(a.CreatedAt),
		CancelReason:      a.CancelReason,
	}
	if a.CancelledAt != nil {
		out.CancelledAt = timestamp(*a.CancelledAt)
	}
	return out
}

func toAppointmentResponses(list []model.Appointment) []appointmentResponse {
	out := make([]appointmentResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

func toWindowResponse(w model.AvailabilityWindow) windowResponse {
	return windowResponse{
		ID:                w.ID,
		InstructorID:      w.InstructorID,
		Weekday:           w.Weekday,
		StartTime:         availability.ToTimeString(w.StartMinute),
		EndTime:           availability.ToTimeString(w.EndMinute),
		BufferMinutes:     w.BufferMinutes,
		MaxBookingsPerDay: w.MaxBookingsPerDay,
		IsAvailable:       w.IsAvailable,
		CreatedAt:         timestamp(w.CreatedAt),
		UpdatedAt:         timestamp(w.UpdatedAt),
	}
}

func toBlockResponse(b model.BlockedPeriod) blockResponse {
	return blockResponse{
		ID:           b.ID,
		InstructorID: b.InstructorID,
		Date:         availability.FormatDate(b.Date),
		StartTime:    availability.ToTimeString(b.StartMinute),
		EndTime:      availability.ToTimeString(b.EndMinute),
		Reason:       b.Reason,
		CreatedAt:    timestamp(b.CreatedAt),
	}
}

func toStatsResponse(s model.Stats) statsResponse {
	out := statsResponse{
		InstructorID:   s.InstructorID,
		From:           availability.FormatDate(s.From),
		To:             availability.FormatDate(s.To),
		Total:          s.Total,
		ByStatus:       make(map[string]int, len(s.ByStatus)),
		RevenueCents:   s.RevenueCents,
		CompletionRate: s.CompletionRate,
		PopularTimes:   s.PopularTimes,
		ByWeekday:      s.ByWeekday,
	}
	for k, v := range s.ByStatus {
		out.ByStatus[string(k)] = v
	}
	if out.PopularTimes == nil {
		out.PopularTimes = []model.TimeCount{}
	}
	return out
}
