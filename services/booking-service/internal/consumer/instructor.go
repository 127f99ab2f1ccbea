package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/model"
)

const TopicInstructorUpdated = "identity.instructor.updated.v1"

type InstructorUpdated struct {
	InstructorID string    `json:"instructor_id"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// InstructorStore receives the directory projection.
type InstructorStore interface {
	UpsertInstructor(ctx context.Context, in model.Instructor) error
}

// InstructorHandler keeps the local instructor directory in sync with identity events.
func InstructorHandler(store InstructorStore) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var evt InstructorUpdated
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			return fmt.Errorf("decode %s: %w", TopicInstructorUpdated, err)
		}
		evt.InstructorID = strings.TrimSpace(evt.InstructorID)
		if evt.InstructorID == "" {
			return fmt.Errorf("decode %s: missing instructor_id", TopicInstructorUpdated)
		}
		if evt.UpdatedAt.IsZero() {
			evt.UpdatedAt = msg.Time
		}
		return store.UpsertInstructor(ctx, model.Instructor{
			ID:        evt.InstructorID,
			Role:      strings.ToLower(strings.TrimSpace(evt.Role)),
			Active:    evt.Active,
			UpdatedAt: evt.UpdatedAt.UTC(),
		})
	}
}
