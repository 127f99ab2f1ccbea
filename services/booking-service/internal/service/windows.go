package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/identity"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/storage"
)

type WindowInput struct {
	InstructorID      string
	Weekday           int
	StartTime         string
	EndTime           string
	BufferMinutes     int
	MaxBookingsPerDay int
	// IsAvailable defaults to true.
	IsAvailable *bool
}

type WindowPatchInput struct {
	Weekday           *int
	StartTime         *string
	EndTime           *string
	BufferMinutes     *int
	MaxBookingsPerDay *int
	IsAvailable       *bool
}

type WindowService struct {
	Deps
}

func NewWindowService(deps Deps) *WindowService {
	return &WindowService{Deps: deps.withDefaults()}
}

func validateWindow(w model.AvailabilityWindow) error {
	switch {
	case w.Weekday < 0 || w.Weekday > 6:
		return apperr.ErrValidation.Withf("weekday must be between 0 (Sunday) and 6, got %d", w.Weekday)
	case w.StartMinute >= w.EndMinute:
		return apperr.ErrValidation.Withf("start_time %s must be before end_time %s",
			availability.ToTimeString(w.StartMinute), availability.ToTimeString(w.EndMinute))
	case w.BufferMinutes < 0:
		return apperr.ErrValidation.Withf("buffer_minutes must not be negative")
	case w.MaxBookingsPerDay < 0:
		return apperr.ErrValidation.Withf("max_bookings_per_day must not be negative")
	}
	return nil
}

// upcoming lists the active appointments inside w's weekday and interval that have
// not started yet.
func (s *WindowService) upcoming(ctx context.Context, tx storage.Tx, w model.AvailabilityWindow) ([]model.Appointment, error) {
	now := s.now()
	today := availability.DateOf(now, now.Location())
	return tx.UpcomingAppointments(ctx, w, today, availability.MinuteOf(now, now.Location()))
}

// stranded returns the first upcoming appointment covered by previous that updated
// no longer covers.
func stranded(previous, updated model.AvailabilityWindow, upcoming []model.Appointment) (model.Appointment, bool) {
	for _, a := range upcoming {
		if !previous.Contains(a.StartMinute, a.EndMinute) {
			continue
		}
		if updated.Active() && updated.Weekday == previous.Weekday && updated.Contains(a.StartMinute, a.EndMinute) {
			continue
		}
		return a, true
	}
	return model.Appointment{}, false
}

// overlapping returns the first active window in others that overlaps w, ignoring w itself.
func overlapping(w model.AvailabilityWindow, others []model.AvailabilityWindow) (model.AvailabilityWindow, bool) {
	if !w.Active() {
		return model.AvailabilityWindow{}, false
	}
	for _, o := range others {
		if o.ID == w.ID || !o.Active() {
			continue
		}
		if availability.Overlaps(w.StartMinute, w.EndMinute, o.StartMinute, o.EndMinute) {
			return o, true
		}
	}
	return model.AvailabilityWindow{}, false
}

func conflictWith(o model.AvailabilityWindow) error {
	return apperr.ErrConflict.Withf("overlaps the existing window %s-%s",
		availability.ToTimeString(o.StartMinute), availability.ToTimeString(o.EndMinute))
}

func (s *WindowService) CreateWindow(ctx context.Context, p identity.Principal, in WindowInput) (model.AvailabilityWindow, error) {
	instructorID := strings.TrimSpace(in.InstructorID)
	if instructorID == "" {
		return model.AvailabilityWindow{}, apperr.ErrValidation.Withf("instructor_id is required")
	}
	if err := p.Require(p.CanManageAvailability(instructorID)); err != nil {
		return model.AvailabilityWindow{}, err
	}
	start, err := availability.ToMinutes(strings.TrimSpace(in.StartTime))
	if err != nil {
		return model.AvailabilityWindow{}, err
	}
	end, err := availability.ToMinutes(strings.TrimSpace(in.EndTime))
	if err != nil {
		return model.AvailabilityWindow{}, err
	}
	now := s.now().UTC()
	w := model.AvailabilityWindow{
		ID:                uuid.NewString(),
		InstructorID:      instructorID,
		Weekday:           in.Weekday,
		StartMinute:       start,
		EndMinute:         end,
		BufferMinutes:     in.BufferMinutes,
		MaxBookingsPerDay: in.MaxBookingsPerDay,
		IsAvailable:       in.IsAvailable == nil || *in.IsAvailable,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := validateWindow(w); err != nil {
		return model.AvailabilityWindow{}, err
	}

	err = s.timed("create_window", func() error {
		return s.Store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			existing, err := tx.ActiveWindows(ctx, w.InstructorID, w.Weekday)
			if err != nil {
				return err
			}
			if o, ok := overlapping(w, existing); ok {
				return conflictWith(o)
			}
			if err := tx.InsertWindow(ctx, w); err != nil {
				return err
			}
			evt, err := windowEvent("created", w, now)
			if err != nil {
				return err
			}
			return tx.EnqueueEvent(ctx, evt)
		})
	})
	if err != nil {
		return model.AvailabilityWindow{}, err
	}
	s.invalidate(ctx, w.InstructorID)
	s.Logger.Info("availability window created", "window_id", w.ID, "instructor_id", w.InstructorID, "weekday", w.Weekday)
	return w, nil
}

// UpdateWindow merges patch into the stored window and re-checks it against every
// other active window of the resulting weekday. A change that leaves an upcoming
// appointment outside the window is rejected like a delete.
func (s *WindowService) UpdateWindow(ctx context.Context, p identity.Principal, id string, patch WindowPatchInput) (model.AvailabilityWindow, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.AvailabilityWindow{}, apperr.ErrValidation.Withf("id is required")
	}
	mp := model.WindowPatch{
		Weekday:           patch.Weekday,
		BufferMinutes:     patch.BufferMinutes,
		MaxBookingsPerDay: patch.MaxBookingsPerDay,
		IsAvailable:       patch.IsAvailable,
	}
	if patch.StartTime != nil {
		m, err := availability.ToMinutes(strings.TrimSpace(*patch.StartTime))
		if err != nil {
			return model.AvailabilityWindow{}, err
		}
		mp.StartMinute = &m
	}
	if patch.EndTime != nil {
		m, err := availability.ToMinutes(strings.TrimSpace(*patch.EndTime))
		if err != nil {
			return model.AvailabilityWindow{}, err
		}
		mp.EndMinute = &m
	}

	var (
		updated  model.AvailabilityWindow
		previous model.AvailabilityWindow
	)
	err := s.timed("update_window", func() error {
		return s.Store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			var err error
			previous, err = tx.WindowForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if err := p.Require(p.CanManageAvailability(previous.InstructorID)); err != nil {
				return err
			}
			now := s.now().UTC()
			updated = previous.Apply(mp)
			updated.UpdatedAt = now
			if err := validateWindow(updated); err != nil {
				return err
			}
			others, err := tx.ActiveWindows(ctx, updated.InstructorID, updated.Weekday)
			if err != nil {
				return err
			}
			if o, ok := overlapping(updated, others); ok {
				return conflictWith(o)
			}
			if previous.Active() {
				upcoming, err := s.upcoming(ctx, tx, previous)
				if err != nil {
					return err
				}
				if a, ok := stranded(previous, updated, upcoming); ok {
					return apperr.ErrDependency.Withf("the appointment on %s at %s would fall outside every window, cancel it first",
						availability.FormatDate(a.Date), availability.ToTimeString(a.StartMinute))
				}
			}
			if err := tx.SaveWindow(ctx, updated); err != nil {
				return err
			}
			evt, err := windowEvent("updated", updated, now)
			if err != nil {
				return err
			}
			return tx.EnqueueEvent(ctx, evt)
		})
	})
	if err != nil {
		return model.AvailabilityWindow{}, err
	}
	s.invalidate(ctx, updated.InstructorID)
	s.Logger.Info("availability window updated", "window_id", id, "instructor_id", updated.InstructorID,
		"weekday", updated.Weekday, "previous_weekday", previous.Weekday)
	return updated, nil
}

// DeleteWindow removes a window unless an active appointment that has not started yet
// falls on its weekday inside its interval.
func (s *WindowService) DeleteWindow(ctx context.Context, p identity.Principal, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperr.ErrValidation.Withf("id is required")
	}
	var deleted model.AvailabilityWindow
	err := s.timed("delete_window", func() error {
		return s.Store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			var err error
			deleted, err = tx.WindowForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if err := p.Require(p.CanManageAvailability(deleted.InstructorID)); err != nil {
				return err
			}
			now := s.now()
			upcoming, err := s.upcoming(ctx, tx, deleted)
			if err != nil {
				return err
			}
			if len(upcoming) > 0 {
				return apperr.ErrDependency.Withf("upcoming appointments fall inside this window, cancel them first")
			}
			if err := tx.DeleteWindow(ctx, id); err != nil {
				return err
			}
			evt, err := windowEvent("deleted", deleted, now)
			if err != nil {
				return err
			}
			return tx.EnqueueEvent(ctx, evt)
		})
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, deleted.InstructorID)
	s.Logger.Info("availability window deleted", "window_id", id, "instructor_id", deleted.InstructorID)
	return nil
}

func (s *WindowService) GetWindow(ctx context.Context, p identity.Principal, id string) (model.AvailabilityWindow, error) {
	w, err := s.Store.GetWindow(ctx, strings.TrimSpace(id))
	if err != nil {
		return model.AvailabilityWindow{}, err
	}
	if err := p.Require(p.CanManageAvailability(w.InstructorID)); err != nil {
		return model.AvailabilityWindow{}, err
	}
	return w, nil
}

// ListWindows returns all of an instructor's windows, inactive ones included.
func (s *WindowService) ListWindows(ctx context.Context, p identity.Principal, instructorID string) ([]model.AvailabilityWindow, error) {
	instructorID = strings.TrimSpace(instructorID)
	if instructorID == "" {
		return nil, apperr.ErrValidation.Withf("instructor_id is required")
	}
	if err := p.Require(p.CanManageAvailability(instructorID)); err != nil {
		return nil, err
	}
	return s.Store.ListWindows(ctx, instructorID)
}
