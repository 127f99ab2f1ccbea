package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "booking.v1.BookingService"

const (
	methodGetAvailability   = "/" + ServiceName + "/GetAvailability"
	methodCreateAppointment = "/" + ServiceName + "/CreateAppointment"
)

// BookingServer is the server API of booking.v1.BookingService. Messages are
// google.protobuf.Struct documents with the same field names as the HTTP API.
type BookingServer interface {
	GetAvailability(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BookingServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetAvailability", Handler: getAvailabilityHandler},
		{MethodName: "CreateAppointment", Handler: createAppointmentHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "booking/v1/booking.proto",
}

func RegisterBookingServer(s grpc.ServiceRegistrar, srv BookingServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func getAvailabilityHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BookingServer).GetAvailability(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetAvailability}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BookingServer).GetAvailability(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func createAppointmentHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BookingServer).CreateAppointment(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodCreateAppointment}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BookingServer).CreateAppointment(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls booking.v1.BookingService over conn.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) GetAvailability(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetAvailability, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateAppointment(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodCreateAppointment, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
