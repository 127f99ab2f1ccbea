package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Topics produced by the booking service. The Kafka topic name equals EventType.
const (
	TopicAppointmentBooked    = "booking.appointment.booked.v1"
	TopicAppointmentCancelled = "booking.appointment.cancelled.v1"
	TopicWindowChanged        = "booking.availability_window.changed.v1"
)

// Event is the domain event envelope written to the outbox in the same transaction
// as the change it describes. Key selects the Kafka partition.
type Event struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Key           string
	Payload       []byte
}

func NewEvent(aggregateType, aggregateID, eventType, key string, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:            uuid.NewString(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Key:           key,
		Payload:       body,
	}, nil
}

// Record is a stored event waiting to be published.
type Record struct {
	Seq           int64
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Key           string
	Payload       []byte
	Traceparent   string
	Tracestate    string
	CreatedAt     time.Time
}

type AppointmentPayload struct {
	AppointmentID     string `json:"appointment_id"`
	InstructorID      string `json:"instructor_id"`
	RequesterID       string `json:"requester_id"`
	AppointmentTypeID string `json:"appointment_type_id,omitempty"`
	Date              string `json:"date"`
	StartTime         string `json:"start_time"`
	EndTime           string `json:"end_time"`
	Status            string `json:"status"`
	PriceCents        int64  `json:"price_cents"`
	CancelReason      string `json:"cancel_reason,omitempty"`
	OccurredAt        string `json:"occurred_at"`
}

type WindowPayload struct {
	WindowID          string `json:"window_id"`
	InstructorID      string `json:"instructor_id"`
	Change            string `json:"change"`
	Weekday           int    `json:"weekday"`
	StartTime         string `json:"start_time"`
	EndTime           string `json:"end_time"`
	BufferMinutes     int    `json:"buffer_minutes"`
	MaxBookingsPerDay int    `json:"max_bookings_per_day"`
	IsAvailable       bool   `json:"is_available"`
	OccurredAt        string `json:"occurred_at"`
}
