package grpcx

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var testInfo = &grpc.UnaryServerInfo{FullMethod: "/booking.v1.BookingService/GetAvailability"}

func TestServerRequestIDFromMetadata(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(RequestIDMetadataKey, "req-7"))
	var seen string
	_, err := UnaryServerRequestIDInterceptor()(ctx, nil, testInfo, func(ctx context.Context, req any) (any, error) {
		seen = RequestIDFromContext(ctx)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "req-7", seen)
}

func TestServerRequestIDGenerated(t *testing.T) {
	var seen string
	_, _ = UnaryServerRequestIDInterceptor()(context.Background(), nil, testInfo, func(ctx context.Context, req any) (any, error) {
		seen = RequestIDFromContext(ctx)
		return nil, nil
	})
	assert.NotEmpty(t, seen)
}

func TestRecoveryInterceptor(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := UnaryServerRecoveryInterceptor(logger)(context.Background(), nil, testInfo, func(ctx context.Context, req any) (any, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestClientInterceptorAppendsRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-9")
	var out metadata.MD
	err := UnaryClientRequestIDInterceptor()(ctx, "/m", nil, nil, nil, func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		out, _ = metadata.FromOutgoingContext(ctx)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"req-9"}, out.Get(RequestIDMetadataKey))
}
