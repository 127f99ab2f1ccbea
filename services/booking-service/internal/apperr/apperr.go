// Package apperr defines the typed errors returned by the booking engine.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

type Kind string

const (
	KindFormat                Kind = "format_error"
	KindValidation            Kind = "validation_error"
	KindConflict              Kind = "conflict"
	KindDependency            Kind = "dependency"
	KindPastDate              Kind = "past_date"
	KindInsufficientLeadTime  Kind = "insufficient_lead_time"
	KindBookingWindowExceeded Kind = "booking_window_exceeded"
	KindInvalidDuration       Kind = "invalid_duration"
	KindSlotNoLongerAvailable Kind = "slot_no_longer_available"
	KindInstructorUnavailable Kind = "instructor_unavailable"
	KindOutsideAvailability   Kind = "outside_availability"
	KindDailyLimitReached     Kind = "daily_limit_reached"
	KindTimeout               Kind = "timeout"
	KindNotFound              Kind = "not_found"
	KindForbidden             Kind = "forbidden"
	KindUnauthenticated       Kind = "unauthenticated"
	KindInternal              Kind = "internal"
)

// Error carries a Kind and a caller-facing message. Two errors match with
// errors.Is when their kinds are equal.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t.Kind == e.Kind
}

// Withf returns a copy with a more specific message.
func (e *Error) Withf(format string, args ...any) *Error {
	clone := *e
	clone.Message = fmt.Sprintf(format, args...)
	return &clone
}

// Wrap returns a copy that records err as its cause.
func (e *Error) Wrap(err error) *Error {
	clone := *e
	clone.Err = err
	return &clone
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

var (
	ErrFormat                = New(KindFormat, "malformed input")
	ErrValidation            = New(KindValidation, "validation failed")
	ErrConflict              = New(KindConflict, "overlaps an existing availability window")
	ErrDependency            = New(KindDependency, "upcoming appointments depend on this window")
	ErrPastDate              = New(KindPastDate, "date is in the past")
	ErrInsufficientLeadTime  = New(KindInsufficientLeadTime, "choose a start time at least 1 hour from now")
	ErrBookingWindowExceeded = New(KindBookingWindowExceeded, "date is too far in advance for this appointment type")
	ErrInvalidDuration       = New(KindInvalidDuration, "duration must be between 15 and 480 minutes")
	ErrSlotNoLongerAvailable = New(KindSlotNoLongerAvailable, "slot is no longer available, refresh availability and choose another time")
	ErrInstructorUnavailable = New(KindInstructorUnavailable, "instructor is not accepting bookings")
	ErrOutsideAvailability   = New(KindOutsideAvailability, "requested time is outside the instructor's availability")
	ErrDailyLimitReached     = New(KindDailyLimitReached, "instructor has no more bookings left on this day")
	ErrTimeout               = New(KindTimeout, "storage deadline exceeded, retry the request")
	ErrNotFound              = New(KindNotFound, "resource not found")
	ErrForbidden             = New(KindForbidden, "not allowed for this principal")
	ErrUnauthenticated       = New(KindUnauthenticated, "missing principal")
	ErrInternal              = New(KindInternal, "internal error")
)

// From normalises err into an *Error. Context deadline errors become ErrTimeout and
// anything unknown becomes ErrInternal wrapping the cause.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout.Wrap(err)
	}
	return ErrInternal.Wrap(err)
}

func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return From(err).Kind
}

// Retryable reports whether the caller may repeat the identical request.
func Retryable(err error) bool {
	return KindOf(err) == KindTimeout
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case "":
		return http.StatusOK
	case KindFormat, KindValidation:
		return http.StatusBadRequest
	case KindPastDate, KindInsufficientLeadTime, KindBookingWindowExceeded, KindInvalidDuration,
		KindInstructorUnavailable, KindOutsideAvailability, KindDailyLimitReached:
		return http.StatusUnprocessableEntity
	case KindConflict, KindDependency, KindSlotNoLongerAvailable:
		return http.StatusConflict
	case KindTimeout:
		return http.StatusServiceUnavailable
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func GRPCCode(err error) codes.Code {
	switch KindOf(err) {
	case "":
		return codes.OK
	case KindFormat, KindValidation:
		return codes.InvalidArgument
	case KindPastDate, KindInsufficientLeadTime, KindBookingWindowExceeded, KindInvalidDuration,
		KindInstructorUnavailable, KindOutsideAvailability, KindDailyLimitReached, KindDependency:
		return codes.FailedPrecondition
	case KindConflict, KindSlotNoLongerAvailable:
		return codes.Aborted
	case KindTimeout:
		return codes.Unavailable
	case KindNotFound:
		return codes.NotFound
	case KindForbidden:
		return codes.PermissionDenied
	case KindUnauthenticated:
		return codes.Unauthenticated
	default:
		return codes.Internal
	}
}
