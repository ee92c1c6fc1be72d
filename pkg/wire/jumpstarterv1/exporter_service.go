package jumpstarterv1

import (
	"context"

	"google.golang.org/grpc"
)

// ExporterServiceServer is implemented by pkg/session.Session: the gRPC
// surface an exporter serves locally (and, via the router relay, remotely)
// for a single lease's driver tree.
type ExporterServiceServer interface {
	GetReport(context.Context, *Empty) (*GetReportResponse, error)
	DriverCall(context.Context, *DriverCallRequest) (*DriverCallResponse, error)
	StreamingDriverCall(*StreamingDriverCallRequest, ExporterService_StreamingDriverCallServer) error
	Stream(ExporterService_StreamServer) error
	LogStream(*Empty, ExporterService_LogStreamServer) error
	GetStatus(context.Context, *Empty) (*GetStatusResponse, error)
}

type ExporterService_StreamingDriverCallServer interface {
	Send(*StreamingDriverCallResponse) error
	grpc.ServerStream
}

type ExporterService_StreamServer interface {
	Send(*StreamResponse) error
	Recv() (*StreamRequest, error)
	grpc.ServerStream
}

type ExporterService_LogStreamServer interface {
	Send(*LogStreamResponse) error
	grpc.ServerStream
}

type exporterStreamingDriverCallServer struct{ grpc.ServerStream }

func (s *exporterStreamingDriverCallServer) Send(m *StreamingDriverCallResponse) error {
	return s.ServerStream.SendMsg(m)
}

type exporterStreamServer struct{ grpc.ServerStream }

func (s *exporterStreamServer) Send(m *StreamResponse) error { return s.ServerStream.SendMsg(m) }
func (s *exporterStreamServer) Recv() (*StreamRequest, error) {
	m := new(StreamRequest)
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

type exporterLogStreamServer struct{ grpc.ServerStream }

func (s *exporterLogStreamServer) Send(m *LogStreamResponse) error { return s.ServerStream.SendMsg(m) }

// ExporterServiceServiceDesc is the hand-rolled equivalent of a
// protoc-gen-go-grpc _ServiceDesc; RegisterExporterServiceServer wires it
// into a *grpc.Server exactly as generated code would.
var ExporterServiceServiceDesc = grpc.ServiceDesc{
	ServiceName: "jumpstarter.v1.ExporterService",
	HandlerType: (*ExporterServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetReport",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				req := new(Empty)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(ExporterServiceServer).GetReport(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/jumpstarter.v1.ExporterService/GetReport"}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(ExporterServiceServer).GetReport(ctx, req.(*Empty))
				}
				return interceptor(ctx, req, info, handler)
			},
		},
		{
			MethodName: "DriverCall",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				req := new(DriverCallRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(ExporterServiceServer).DriverCall(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/jumpstarter.v1.ExporterService/DriverCall"}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(ExporterServiceServer).DriverCall(ctx, req.(*DriverCallRequest))
				}
				return interceptor(ctx, req, info, handler)
			},
		},
		{
			MethodName: "GetStatus",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				req := new(Empty)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(ExporterServiceServer).GetStatus(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/jumpstarter.v1.ExporterService/GetStatus"}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(ExporterServiceServer).GetStatus(ctx, req.(*Empty))
				}
				return interceptor(ctx, req, info, handler)
			},
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName: "StreamingDriverCall",
			Handler: func(srv any, stream grpc.ServerStream) error {
				req := new(StreamingDriverCallRequest)
				if err := stream.RecvMsg(req); err != nil {
					return err
				}
				return srv.(ExporterServiceServer).StreamingDriverCall(req, &exporterStreamingDriverCallServer{stream})
			},
			ServerStreams: true,
		},
		{
			StreamName: "Stream",
			Handler: func(srv any, stream grpc.ServerStream) error {
				return srv.(ExporterServiceServer).Stream(&exporterStreamServer{stream})
			},
			ServerStreams: true,
			ClientStreams: true,
		},
		{
			StreamName: "LogStream",
			Handler: func(srv any, stream grpc.ServerStream) error {
				req := new(Empty)
				if err := stream.RecvMsg(req); err != nil {
					return err
				}
				return srv.(ExporterServiceServer).LogStream(req, &exporterLogStreamServer{stream})
			},
			ServerStreams: true,
		},
	},
}

func RegisterExporterServiceServer(s grpc.ServiceRegistrar, srv ExporterServiceServer) {
	s.RegisterService(&ExporterServiceServiceDesc, srv)
}

// ExporterServiceClient is the client-side stub used by pkg/client against
// a Session's local Unix socket.
type ExporterServiceClient interface {
	GetReport(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*GetReportResponse, error)
	DriverCall(ctx context.Context, in *DriverCallRequest, opts ...grpc.CallOption) (*DriverCallResponse, error)
	StreamingDriverCall(ctx context.Context, in *StreamingDriverCallRequest, opts ...grpc.CallOption) (ExporterService_StreamingDriverCallClient, error)
	Stream(ctx context.Context, opts ...grpc.CallOption) (ExporterService_StreamClient, error)
	LogStream(ctx context.Context, in *Empty, opts ...grpc.CallOption) (ExporterService_LogStreamClient, error)
	GetStatus(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*GetStatusResponse, error)
}

type ExporterService_StreamingDriverCallClient interface {
	Recv() (*StreamingDriverCallResponse, error)
	grpc.ClientStream
}

type ExporterService_StreamClient interface {
	Send(*StreamRequest) error
	Recv() (*StreamResponse, error)
	grpc.ClientStream
}

type ExporterService_LogStreamClient interface {
	Recv() (*LogStreamResponse, error)
	grpc.ClientStream
}

type exporterServiceClient struct{ cc grpc.ClientConnInterface }

func NewExporterServiceClient(cc grpc.ClientConnInterface) ExporterServiceClient {
	return &exporterServiceClient{cc}
}

func (c *exporterServiceClient) GetReport(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*GetReportResponse, error) {
	out := new(GetReportResponse)
	if err := c.cc.Invoke(ctx, "/jumpstarter.v1.ExporterService/GetReport", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *exporterServiceClient) DriverCall(ctx context.Context, in *DriverCallRequest, opts ...grpc.CallOption) (*DriverCallResponse, error) {
	out := new(DriverCallResponse)
	if err := c.cc.Invoke(ctx, "/jumpstarter.v1.ExporterService/DriverCall", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *exporterServiceClient) GetStatus(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*GetStatusResponse, error) {
	out := new(GetStatusResponse)
	if err := c.cc.Invoke(ctx, "/jumpstarter.v1.ExporterService/GetStatus", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *exporterServiceClient) StreamingDriverCall(ctx context.Context, in *StreamingDriverCallRequest, opts ...grpc.CallOption) (ExporterService_StreamingDriverCallClient, error) {
	stream, err := c.cc.NewStream(ctx, &ExporterServiceServiceDesc.Streams[0], "/jumpstarter.v1.ExporterService/StreamingDriverCall", opts...)
	if err != nil {
		return nil, err
	}
	x := &exporterStreamingDriverCallClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type exporterStreamingDriverCallClient struct{ grpc.ClientStream }

func (x *exporterStreamingDriverCallClient) Recv() (*StreamingDriverCallResponse, error) {
	m := new(StreamingDriverCallResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *exporterServiceClient) Stream(ctx context.Context, opts ...grpc.CallOption) (ExporterService_StreamClient, error) {
	stream, err := c.cc.NewStream(ctx, &ExporterServiceServiceDesc.Streams[1], "/jumpstarter.v1.ExporterService/Stream", opts...)
	if err != nil {
		return nil, err
	}
	return &exporterStreamClient{stream}, nil
}

type exporterStreamClient struct{ grpc.ClientStream }

func (x *exporterStreamClient) Send(m *StreamRequest) error { return x.ClientStream.SendMsg(m) }
func (x *exporterStreamClient) Recv() (*StreamResponse, error) {
	m := new(StreamResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *exporterServiceClient) LogStream(ctx context.Context, in *Empty, opts ...grpc.CallOption) (ExporterService_LogStreamClient, error) {
	stream, err := c.cc.NewStream(ctx, &ExporterServiceServiceDesc.Streams[2], "/jumpstarter.v1.ExporterService/LogStream", opts...)
	if err != nil {
		return nil, err
	}
	x := &exporterLogStreamClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type exporterLogStreamClient struct{ grpc.ClientStream }

func (x *exporterLogStreamClient) Recv() (*LogStreamResponse, error) {
	m := new(LogStreamResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
