package jumpstarterv1

import (
	"context"

	"google.golang.org/grpc"
)

// RouterServiceServer is implemented by pkg/exporter's routerServer, served
// on a lease's own Unix socket so a same-host client can skip the external
// relay; the real Router is an external collaborator and is never
// implemented by this module.
type RouterServiceServer interface {
	Stream(RouterService_StreamServer) error
}

type RouterService_StreamServer interface {
	Send(*StreamResponse) error
	Recv() (*StreamRequest, error)
	grpc.ServerStream
}

type routerStreamServer struct{ grpc.ServerStream }

func (s *routerStreamServer) Send(m *StreamResponse) error { return s.ServerStream.SendMsg(m) }
func (s *routerStreamServer) Recv() (*StreamRequest, error) {
	m := new(StreamRequest)
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

var RouterServiceServiceDesc = grpc.ServiceDesc{
	ServiceName: "jumpstarter.v1.RouterService",
	HandlerType: (*RouterServiceServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName: "Stream",
			Handler: func(srv any, stream grpc.ServerStream) error {
				return srv.(RouterServiceServer).Stream(&routerStreamServer{stream})
			},
			ServerStreams: true,
			ClientStreams: true,
		},
	},
}

func RegisterRouterServiceServer(s grpc.ServiceRegistrar, srv RouterServiceServer) {
	s.RegisterService(&RouterServiceServiceDesc, srv)
}

// RouterServiceClient is dialed by both the exporter and the client, each
// carrying the same bearer token, so the Router can pair the two stream
// halves blindly.
type RouterServiceClient interface {
	Stream(ctx context.Context, opts ...grpc.CallOption) (RouterService_StreamClient, error)
}

type RouterService_StreamClient interface {
	Send(*StreamRequest) error
	Recv() (*StreamResponse, error)
	grpc.ClientStream
}

type routerServiceClient struct{ cc grpc.ClientConnInterface }

func NewRouterServiceClient(cc grpc.ClientConnInterface) RouterServiceClient {
	return &routerServiceClient{cc}
}

func (c *routerServiceClient) Stream(ctx context.Context, opts ...grpc.CallOption) (RouterService_StreamClient, error) {
	stream, err := c.cc.NewStream(ctx, &RouterServiceServiceDesc.Streams[0], "/jumpstarter.v1.RouterService/Stream", opts...)
	if err != nil {
		return nil, err
	}
	return &routerStreamClient{stream}, nil
}

type routerStreamClient struct{ grpc.ClientStream }

func (x *routerStreamClient) Send(m *StreamRequest) error { return x.ClientStream.SendMsg(m) }
func (x *routerStreamClient) Recv() (*StreamResponse, error) {
	m := new(StreamResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
