// Package grpcserver exposes availability reads and booking writes over gRPC.
package grpcserver

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/md-rashed-zaman/instructorbook/libs/grpcx"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/identity"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/service"
)

// Metadata keys carrying the gateway principal.
const (
	MetadataUserID       = "x-user-id"
	MetadataRole         = "x-role"
	MetadataInstructorID = "x-instructor-id"
	MetadataIdempotency  = "idempotency-key"
)

type Server struct {
	availability *service.AvailabilityService
	bookings     *service.BookingService
	logger       *slog.Logger
}

var _ BookingServer = (*Server)(nil)

func New(availability *service.AvailabilityService, bookings *service.BookingService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{availability: availability, bookings: bookings, logger: logger}
}

func (s *Server) GetAvailability(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	duration, err := intField(in, "duration_minutes")
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	res, err := s.availability.GetAvailability(ctx, service.AvailabilityQuery{
		InstructorID:    stringField(in, "instructor_id"),
		Date:            stringField(in, "date"),
		DurationMinutes: duration,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	out, err := structpb.NewStruct(availabilityFields(res))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return out, nil
}

func (s *Server) CreateAppointment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	duration, err := intField(in, "duration_minutes")
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	key := stringField(in, "idempotency_key")
	if key == "" {
		key = strings.TrimSpace(grpcx.MetadataValue(ctx, MetadataIdempotency))
	}
	appt, err := s.bookings.CreateAppointment(ctx, principal(ctx), service.CreateAppointmentInput{
		InstructorID:      stringField(in, "instructor_id"),
		Date:              stringField(in, "date"),
		StartTime:         stringField(in, "start_time"),
		DurationMinutes:   duration,
		AppointmentTypeID: stringField(in, "appointment_type_id"),
		IdempotencyKey:    key,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	out, err := structpb.NewStruct(appointmentFields(appt))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return out, nil
}

func (s *Server) toStatus(ctx context.Context, err error) error {
	e := apperr.From(err)
	code := apperr.GRPCCode(e)
	msg := e.Message
	if e.Kind == apperr.KindInternal {
		s.logger.Error("grpc call failed", "request_id", grpcx.RequestIDFromContext(ctx), "err", err)
		msg = "internal error"
	}
	return status.Error(code, msg)
}

func principal(ctx context.Context) identity.Principal {
	return identity.Principal{
		UserID:       strings.TrimSpace(grpcx.MetadataValue(ctx, MetadataUserID)),
		Role:         identity.Role(strings.ToLower(strings.TrimSpace(grpcx.MetadataValue(ctx, MetadataRole)))),
		InstructorID: strings.TrimSpace(grpcx.MetadataValue(ctx, MetadataInstructorID)),
	}
}

func stringField(in *structpb.Struct, name string) string {
	return strings.TrimSpace(in.GetFields()[name].GetStringValue())
}

// intField reads an optional whole number; absent fields are zero.
func intField(in *structpb.Struct, name string) (int, error) {
	v, ok := in.GetFields()[name]
	if !ok {
		return 0, nil
	}
	if _, isNum := v.GetKind().(*structpb.Value_NumberValue); !isNum {
		return 0, apperr.ErrFormat.Withf("%s must be a number", name)
	}
	n := v.GetNumberValue()
	if n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
		return 0, apperr.ErrFormat.Withf("%s must be a whole number", name)
	}
	return int(n), nil
}

func availabilityFields(res model.AvailabilityResult) map[string]any {
	slots := make([]any, 0, len(res.Slots))
	for _, sl := range res.Slots {
		slots = append(slots, map[string]any{
			"start_time":    availability.ToTimeString(sl.Start),
			"end_time":      availability.ToTimeString(sl.End),
			"available":     sl.Available,
			"buffer_before": sl.BufferBefore,
			"buffer_after":  sl.BufferAfter,
		})
	}
	out := map[string]any{
		"date":             availability.FormatDate(res.Date),
		"instructor_id":    res.InstructorID,
		"duration_minutes": res.DurationMinutes,
		"slots":            slots,
		"total_available":  res.TotalAvailable,
	}
	if res.WorkingHours != nil {
		out["working_hours"] = map[string]any{
			"start": availability.ToTimeString(res.WorkingHours.Start),
			"end":   availability.ToTimeString(res.WorkingHours.End),
		}
	}
	return out
}

func appointmentFields(a model.Appointment) map[string]any {
	return map[string]any{
		"id":                  a.ID,
		"instructor_id":       a.InstructorID,
		"requester_id":        a.RequesterID,
		"appointment_type_id": a.AppointmentTypeID,
		"date":                availability.FormatDate(a.Date),
		"start_time":          availability.ToTimeString(a.StartMinute),
		"end_time":            availability.ToTimeString(a.EndMinute),
		"status":              string(a.Status),
		"price_cents":         a.PriceCents,
	}
}
