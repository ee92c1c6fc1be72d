package jumpstarterv1

import (
	"context"

	"google.golang.org/grpc"
)

// ControllerServiceClient is the client-facing subset of the Controller's
// RPC surface. The Controller server is an external collaborator (brokers
// registration, leases and router tokens) and is never implemented by this
// module — only the client stub is generated here.
type ControllerServiceClient interface {
	Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error)
	Unregister(ctx context.Context, in *UnregisterRequest, opts ...grpc.CallOption) (*UnregisterResponse, error)
	Listen(ctx context.Context, in *ListenRequest, opts ...grpc.CallOption) (ControllerService_ListenClient, error)
	Dial(ctx context.Context, in *DialRequest, opts ...grpc.CallOption) (*DialResponse, error)
	Status(ctx context.Context, in *StatusRequest, opts ...grpc.CallOption) (ControllerService_StatusClient, error)
	CreateLease(ctx context.Context, in *CreateLeaseRequest, opts ...grpc.CallOption) (*CreateLeaseResponse, error)
	GetLease(ctx context.Context, in *GetLeaseRequest, opts ...grpc.CallOption) (*GetLeaseResponse, error)
	DeleteLease(ctx context.Context, in *DeleteLeaseRequest, opts ...grpc.CallOption) (*DeleteLeaseResponse, error)
	ListLeases(ctx context.Context, in *ListLeasesRequest, opts ...grpc.CallOption) (*ListLeasesResponse, error)
	ListExporters(ctx context.Context, in *ListExportersRequest, opts ...grpc.CallOption) (*ListExportersResponse, error)
}

type ControllerService_ListenClient interface {
	Recv() (*ListenResponse, error)
	grpc.ClientStream
}

type ControllerService_StatusClient interface {
	Recv() (*StatusResponse, error)
	grpc.ClientStream
}

// controllerListenStreamDesc / controllerStatusStreamDesc are referenced by
// NewStream below; they aren't part of a server ServiceDesc here since this
// module never serves ControllerService.
var controllerListenStreamDesc = grpc.StreamDesc{StreamName: "Listen", ServerStreams: true}
var controllerStatusStreamDesc = grpc.StreamDesc{StreamName: "Status", ServerStreams: true}

type controllerServiceClient struct{ cc grpc.ClientConnInterface }

func NewControllerServiceClient(cc grpc.ClientConnInterface) ControllerServiceClient {
	return &controllerServiceClient{cc}
}

func (c *controllerServiceClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	out := new(RegisterResponse)
	if err := c.cc.Invoke(ctx, "/jumpstarter.v1.ControllerService/Register", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *controllerServiceClient) Unregister(ctx context.Context, in *UnregisterRequest, opts ...grpc.CallOption) (*UnregisterResponse, error) {
	out := new(UnregisterResponse)
	if err := c.cc.Invoke(ctx, "/jumpstarter.v1.ControllerService/Unregister", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *controllerServiceClient) Dial(ctx context.Context, in *DialRequest, opts ...grpc.CallOption) (*DialResponse, error) {
	out := new(DialResponse)
	if err := c.cc.Invoke(ctx, "/jumpstarter.v1.ControllerService/Dial", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *controllerServiceClient) CreateLease(ctx context.Context, in *CreateLeaseRequest, opts ...grpc.CallOption) (*CreateLeaseResponse, error) {
	out := new(CreateLeaseResponse)
	if err := c.cc.Invoke(ctx, "/jumpstarter.v1.ControllerService/CreateLease", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *controllerServiceClient) GetLease(ctx context.Context, in *GetLeaseRequest, opts ...grpc.CallOption) (*GetLeaseResponse, error) {
	out := new(GetLeaseResponse)
	if err := c.cc.Invoke(ctx, "/jumpstarter.v1.ControllerService/GetLease", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *controllerServiceClient) DeleteLease(ctx context.Context, in *DeleteLeaseRequest, opts ...grpc.CallOption) (*DeleteLeaseResponse, error) {
	out := new(DeleteLeaseResponse)
	if err := c.cc.Invoke(ctx, "/jumpstarter.v1.ControllerService/DeleteLease", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *controllerServiceClient) ListLeases(ctx context.Context, in *ListLeasesRequest, opts ...grpc.CallOption) (*ListLeasesResponse, error) {
	out := new(ListLeasesResponse)
	if err := c.cc.Invoke(ctx, "/jumpstarter.v1.ControllerService/ListLeases", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *controllerServiceClient) ListExporters(ctx context.Context, in *ListExportersRequest, opts ...grpc.CallOption) (*ListExportersResponse, error) {
	out := new(ListExportersResponse)
	if err := c.cc.Invoke(ctx, "/jumpstarter.v1.ControllerService/ListExporters", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *controllerServiceClient) Listen(ctx context.Context, in *ListenRequest, opts ...grpc.CallOption) (ControllerService_ListenClient, error) {
	stream, err := c.cc.NewStream(ctx, &controllerListenStreamDesc, "/jumpstarter.v1.ControllerService/Listen", opts...)
	if err != nil {
		return nil, err
	}
	x := &controllerListenClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type controllerListenClient struct{ grpc.ClientStream }

func (x *controllerListenClient) Recv() (*ListenResponse, error) {
	m := new(ListenResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *controllerServiceClient) Status(ctx context.Context, in *StatusRequest, opts ...grpc.CallOption) (ControllerService_StatusClient, error) {
	stream, err := c.cc.NewStream(ctx, &controllerStatusStreamDesc, "/jumpstarter.v1.ControllerService/Status", opts...)
	if err != nil {
		return nil, err
	}
	x := &controllerStatusClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type controllerStatusClient struct{ grpc.ClientStream }

func (x *controllerStatusClient) Recv() (*StatusResponse, error) {
	m := new(StatusResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
