package grpcserver

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/md-rashed-zaman/instructorbook/libs/grpcx"
	"github.com/md-rashed-zaman/instructorbook/libs/metrics"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/identity"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/policy"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/service"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/storage"
)

// Sunday 2026-03-01 12:00 UTC.
var clock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func startServer(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewMemory()
	require.NoError(t, store.UpsertInstructor(ctx, model.Instructor{ID: "inst-1", Role: "instructor", Active: true, UpdatedAt: clock}))

	deps := service.Deps{
		Store:     store,
		Validator: policy.NewValidator(policy.DefaultConfig(), store, func() time.Time { return clock }),
		Metrics:   metrics.New("booking-service-test"),
		Logger:    logger,
	}
	_, err := service.NewWindowService(deps).CreateWindow(ctx,
		identity.Principal{UserID: "admin-1", Role: identity.RoleAdmin},
		service.WindowInput{InstructorID: "inst-1", Weekday: 1, StartTime: "09:00", EndTime: "12:00"})
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	srv := grpcx.NewServer(logger)
	RegisterBookingServer(srv, New(service.NewAvailabilityService(deps), service.NewBookingService(deps), logger))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpcx.NewClient("passthrough:///bufnet", grpcx.DialOptions{},
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn)
}

func asMember(ctx context.Context, userID string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, MetadataUserID, userID, MetadataRole, "member")
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestGetAvailability(t *testing.T) {
	client := startServer(t)
	out, err := client.GetAvailability(context.Background(), mustStruct(t, map[string]any{
		"instructor_id":    "inst-1",
		"date":             "2026-03-02",
		"duration_minutes": 60,
	}))
	require.NoError(t, err)
	fields := out.GetFields()
	assert.Equal(t, float64(3), fields["total_available"].GetNumberValue())
	slots := fields["slots"].GetListValue().GetValues()
	require.Len(t, slots, 3)
	assert.Equal(t, "09:00", slots[0].GetStructValue().GetFields()["start_time"].GetStringValue())
	assert.Equal(t, "12:00", fields["working_hours"].GetStructValue().GetFields()["end"].GetStringValue())
}

func TestGetAvailabilityErrors(t *testing.T) {
	client := startServer(t)
	cases := []struct {
		name string
		in   map[string]any
		code codes.Code
	}{
		{"bad date", map[string]any{"instructor_id": "inst-1", "date": "tomorrow", "duration_minutes": 60}, codes.InvalidArgument},
		{"fractional duration", map[string]any{"instructor_id": "inst-1", "date": "2026-03-02", "duration_minutes": 60.5}, codes.InvalidArgument},
		{"string duration", map[string]any{"instructor_id": "inst-1", "date": "2026-03-02", "duration_minutes": "60"}, codes.InvalidArgument},
		{"duration out of range", map[string]any{"instructor_id": "inst-1", "date": "2026-03-02", "duration_minutes": 600}, codes.FailedPrecondition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := client.GetAvailability(context.Background(), mustStruct(t, tc.in))
			assert.Equal(t, tc.code, status.Code(err), err)
		})
	}
}

func TestCreateAppointment(t *testing.T) {
	client := startServer(t)
	req := mustStruct(t, map[string]any{
		"instructor_id":    "inst-1",
		"date":             "2026-03-02",
		"start_time":       "10:00",
		"duration_minutes": 60,
	})

	_, err := client.CreateAppointment(context.Background(), req)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	out, err := client.CreateAppointment(asMember(context.Background(), "member-1"), req)
	require.NoError(t, err)
	fields := out.GetFields()
	assert.Equal(t, "confirmed", fields["status"].GetStringValue())
	assert.Equal(t, "11:00", fields["end_time"].GetStringValue())
	assert.Equal(t, "member-1", fields["requester_id"].GetStringValue())

	_, err = client.CreateAppointment(asMember(context.Background(), "member-2"), req)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.Aborted, st.Code())
	assert.Contains(t, st.Message(), "no longer available")
}

func TestCreateAppointmentIdempotencyMetadata(t *testing.T) {
	client := startServer(t)
	req := mustStruct(t, map[string]any{
		"instructor_id":    "inst-1",
		"date":             "2026-03-02",
		"start_time":       "09:00",
		"duration_minutes": 30,
	})
	ctx := metadata.AppendToOutgoingContext(asMember(context.Background(), "member-1"), MetadataIdempotency, "k-1")

	first, err := client.CreateAppointment(ctx, req)
	require.NoError(t, err)
	second, err := client.CreateAppointment(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.GetFields()["id"].GetStringValue(), second.GetFields()["id"].GetStringValue())
}
