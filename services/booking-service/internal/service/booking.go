package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/identity"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/storage"
)

// Booking states, as logged and counted.
const (
	StateRequested = "requested"
	StateValidated = "validated"
	StateCommitted = "committed"
	StateRejected  = "rejected"
)

type CreateAppointmentInput struct {
	InstructorID      string
	Date              string
	StartTime         string
	DurationMinutes   int
	AppointmentTypeID string
	IdempotencyKey    string
}

type ListAppointmentsQuery struct {
	InstructorID string
	From         string
	To           string
	Statuses     []model.Status
	Limit        int
}

type BookingService struct {
	Deps
}

func NewBookingService(deps Deps) *BookingService {
	return &BookingService{Deps: deps.withDefaults()}
}

// CreateAppointment validates the request, then re-checks availability and inserts the
// appointment in one serializable transaction. A replay with the same idempotency key
// returns the appointment committed the first time.
func (s *BookingService) CreateAppointment(ctx context.Context, p identity.Principal, in CreateAppointmentInput) (model.Appointment, error) {
	logger := s.Logger.With("instructor_id", in.InstructorID, "requester_id", p.UserID, "date", in.Date, "start_time", in.StartTime)
	s.transition(logger, StateRequested, nil)

	req, typ, err := s.prepare(ctx, p, in)
	if err != nil {
		s.transition(logger, StateRejected, err)
		return model.Appointment{}, err
	}
	s.transition(logger, StateValidated, nil)

	var (
		appt   model.Appointment
		replay bool
	)
	err = s.timed("book", func() error {
		return s.Store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			appt, replay = model.Appointment{}, false
			if req.IdempotencyKey != "" {
				existing, err := tx.LockIdempotencyKey(ctx, req.RequesterID, req.IdempotencyKey)
				if err != nil {
					return err
				}
				if existing != "" {
					appt, err = tx.AppointmentForUpdate(ctx, existing)
					replay = true
					return err
				}
			}

			start, end := req.StartMinute, req.EndMinute()
			windows, err := tx.ActiveWindows(ctx, req.InstructorID, availability.Weekday(req.Date))
			if err != nil {
				return err
			}
			window, ok := availability.ContainingWindow(windows, start, end)
			if !ok {
				return apperr.ErrOutsideAvailability.Withf("%s-%s on %s is outside the instructor's availability",
					availability.ToTimeString(start), availability.ToTimeString(end), availability.FormatDate(req.Date))
			}

			appointments, err := tx.ActiveAppointments(ctx, req.InstructorID, req.Date)
			if err != nil {
				return err
			}
			if window.MaxBookingsPerDay > 0 && availability.CountInWindow(window, appointments) >= window.MaxBookingsPerDay {
				return apperr.ErrDailyLimitReached.Withf("instructor accepts at most %d bookings in this window per day", window.MaxBookingsPerDay)
			}
			blocks, err := tx.BlockedPeriods(ctx, req.InstructorID, req.Date)
			if err != nil {
				return err
			}
			checked := availability.ResolveConflicts([]model.TimeSlot{{Start: start, End: end}}, availability.Busy(appointments, blocks))
			if !checked[0].Available {
				return apperr.ErrSlotNoLongerAvailable
			}

			now := s.now()
			appt = model.Appointment{
				ID:                uuid.NewString(),
				InstructorID:      req.InstructorID,
				RequesterID:       req.RequesterID,
				AppointmentTypeID: req.AppointmentTypeID,
				Date:              req.Date,
				StartMinute:       start,
				EndMinute:         end,
				Status:            model.StatusConfirmed,
				PriceCents:        typ.PriceCents,
				CreatedAt:         now.UTC(),
			}
			if err := tx.InsertAppointment(ctx, appt); err != nil {
				return err
			}
			evt, err := appointmentEvent(outbox.TopicAppointmentBooked, appt, now)
			if err != nil {
				return err
			}
			if err := tx.EnqueueEvent(ctx, evt); err != nil {
				return err
			}
			if req.IdempotencyKey != "" {
				return tx.FinalizeIdempotency(ctx, req.RequesterID, req.IdempotencyKey, appt.ID)
			}
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			err = apperr.ErrSlotNoLongerAvailable.Wrap(err)
		}
		s.transition(logger, StateRejected, err)
		return model.Appointment{}, err
	}

	if replay {
		logger.Info("idempotent booking replayed", "appointment_id", appt.ID)
		return appt, nil
	}
	s.invalidate(ctx, appt.InstructorID)
	s.transition(logger.With("appointment_id", appt.ID), StateCommitted, nil)
	return appt, nil
}

// prepare parses the input, resolves the appointment type and runs the policy checks.
func (s *BookingService) prepare(ctx context.Context, p identity.Principal, in CreateAppointmentInput) (model.BookingRequest, model.AppointmentType, error) {
	if err := p.Require(p.CanBook()); err != nil {
		return model.BookingRequest{}, model.AppointmentType{}, err
	}
	instructorID := strings.TrimSpace(in.InstructorID)
	if instructorID == "" {
		return model.BookingRequest{}, model.AppointmentType{}, apperr.ErrValidation.Withf("instructor_id is required")
	}
	date, err := availability.ParseDate(strings.TrimSpace(in.Date))
	if err != nil {
		return model.BookingRequest{}, model.AppointmentType{}, err
	}
	start, err := availability.ToMinutes(strings.TrimSpace(in.StartTime))
	if err != nil {
		return model.BookingRequest{}, model.AppointmentType{}, err
	}

	typ, err := s.resolveType(ctx, strings.TrimSpace(in.AppointmentTypeID), in.DurationMinutes)
	if err != nil {
		return model.BookingRequest{}, model.AppointmentType{}, err
	}
	duration := in.DurationMinutes
	if duration == 0 {
		duration = typ.DurationMinutes
	}

	req := model.BookingRequest{
		InstructorID:      instructorID,
		RequesterID:       p.UserID,
		AppointmentTypeID: typ.ID,
		Date:              date,
		StartMinute:       start,
		DurationMinutes:   duration,
		IdempotencyKey:    strings.TrimSpace(in.IdempotencyKey),
	}
	if err := s.Validator.Validate(ctx, req, typ); err != nil {
		return model.BookingRequest{}, model.AppointmentType{}, err
	}
	return req, typ, nil
}

// resolveType loads the catalog type, or a free ad-hoc type when none is given.
func (s *BookingService) resolveType(ctx context.Context, id string, duration int) (model.AppointmentType, error) {
	if id == "" {
		return model.AppointmentType{Name: "ad-hoc", DurationMinutes: duration, Active: true}, nil
	}
	typ, err := s.Types.AppointmentType(ctx, id)
	if err != nil {
		return model.AppointmentType{}, err
	}
	if !typ.Active {
		return model.AppointmentType{}, apperr.ErrNotFound.Withf("appointment type %q not found", id)
	}
	return typ, nil
}

func (s *BookingService) transition(logger *slog.Logger, state string, err error) {
	kind := ""
	if err != nil {
		kind = string(apperr.KindOf(err))
		logger.Warn("booking "+state, "kind", kind, "err", err)
	} else {
		logger.Info("booking " + state)
	}
	s.Metrics.ObserveBookingTransition(state, kind)
}

// CancelAppointment cancels an active appointment. Cancelling an already cancelled
// appointment returns it unchanged; completed and no-show appointments cannot be cancelled.
func (s *BookingService) CancelAppointment(ctx context.Context, p identity.Principal, id, reason string) (model.Appointment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Appointment{}, apperr.ErrValidation.Withf("appointment_id is required")
	}
	if !p.Authenticated() {
		return model.Appointment{}, apperr.ErrUnauthenticated
	}

	var (
		appt    model.Appointment
		changed bool
	)
	err := s.timed("cancel", func() error {
		return s.Store.InTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			changed = false
			var err error
			appt, err = tx.AppointmentForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if err := p.Require(p.CanCancel(appt.RequesterID, appt.InstructorID)); err != nil {
				return err
			}
			if appt.Status == model.StatusCancelled {
				return nil
			}
			if !appt.Status.Active() {
				return apperr.ErrConflict.Withf("appointment is %s and can no longer be cancelled", appt.Status)
			}

			now := s.now()
			if err := tx.CancelAppointment(ctx, id, strings.TrimSpace(reason), now.UTC()); err != nil {
				return err
			}
			cancelledAt := now.UTC()
			appt.Status = model.StatusCancelled
			appt.CancelledAt = &cancelledAt
			appt.CancelReason = strings.TrimSpace(reason)

			evt, err := appointmentEvent(outbox.TopicAppointmentCancelled, appt, now)
			if err != nil {
				return err
			}
			changed = true
			return tx.EnqueueEvent(ctx, evt)
		})
	})
	if err != nil {
		return model.Appointment{}, err
	}
	if changed {
		s.invalidate(ctx, appt.InstructorID)
		s.Logger.Info("appointment cancelled", "appointment_id", appt.ID, "instructor_id", appt.InstructorID, "cancelled_by", p.UserID)
	}
	return appt, nil
}

func (s *BookingService) GetAppointment(ctx context.Context, p identity.Principal, id string) (model.Appointment, error) {
	appt, err := s.Store.GetAppointment(ctx, strings.TrimSpace(id))
	if err != nil {
		return model.Appointment{}, err
	}
	if err := p.Require(p.CanCancel(appt.RequesterID, appt.InstructorID)); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

// ListAppointments lists an instructor's appointments for managers of that instructor,
// and otherwise the caller's own bookings.
func (s *BookingService) ListAppointments(ctx context.Context, p identity.Principal, q ListAppointmentsQuery) ([]model.Appointment, error) {
	if !p.Authenticated() {
		return nil, apperr.ErrUnauthenticated
	}
	filter := model.AppointmentFilter{
		InstructorID: strings.TrimSpace(q.InstructorID),
		Statuses:     q.Statuses,
		Limit:        q.Limit,
	}
	switch {
	case filter.InstructorID != "" && p.CanManageAvailability(filter.InstructorID):
	case filter.InstructorID == "" && p.IsAdmin():
	default:
		filter.RequesterID = p.UserID
	}
	for _, st := range q.Statuses {
		if !st.Valid() {
			return nil, apperr.ErrValidation.Withf("unknown status %q", st)
		}
	}
	var err error
	if q.From != "" {
		if filter.From, err = availability.ParseDate(q.From); err != nil {
			return nil, err
		}
	}
	if q.To != "" {
		if filter.To, err = availability.ParseDate(q.To); err != nil {
			return nil, err
		}
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, apperr.ErrValidation.Withf("to must not be before from")
	}
	return s.Store.ListAppointments(ctx, filter)
}
