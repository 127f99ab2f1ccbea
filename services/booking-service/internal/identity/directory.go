package identity

import (
	"context"
	"sync"

	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/model"
)

// Directory answers whether an instructor can currently take bookings.
type Directory interface {
	Instructor(ctx context.Context, id string) (model.Instructor, bool, error)
}

// Eligible reports whether the instructor is active and holds a bookable role.
func Eligible(in model.Instructor) bool {
	if !in.Active {
		return false
	}
	switch Role(in.Role) {
	case RoleInstructor, RoleAdmin:
		return true
	}
	return false
}

// MemoryDirectory is a Directory kept in process memory.
type MemoryDirectory struct {
	mu          sync.RWMutex
	instructors map[string]model.Instructor
}

func NewMemoryDirectory(instructors ...model.Instructor) *MemoryDirectory {
	d := &MemoryDirectory{instructors: map[string]model.Instructor{}}
	for _, in := range instructors {
		d.instructors[in.ID] = in
	}
	return d
}

func (d *MemoryDirectory) Instructor(_ context.Context, id string) (model.Instructor, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	in, ok := d.instructors[id]
	return in, ok, nil
}

// UpsertInstructor keeps the newest version by UpdatedAt.
func (d *MemoryDirectory) UpsertInstructor(_ context.Context, in model.Instructor) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.instructors[in.ID]; ok && cur.UpdatedAt.After(in.UpdatedAt) {
		return nil
	}
	d.instructors[in.ID] = in
	return nil
}
