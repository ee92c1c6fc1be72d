package xstream

import (
	"io"

	jumpstarterv1 "github.com/jumpstarter-dev/jumpstarter/pkg/wire/jumpstarterv1"
)

// grpcFrame is the minimal shape shared by StreamRequest and StreamResponse
// that a gRPC bidi adapter needs to move payload and half-close signals.
type grpcFrame struct {
	Payload    []byte
	FrameType  jumpstarterv1.FrameType
	CloseWrite bool
}

// bidi is implemented by both the client and server halves of the
// ExporterService.Stream and RouterService.Stream RPCs; send and recv are
// closures over the concrete stream's own Send/Recv pair.
type bidi struct {
	send func(grpcFrame) error
	recv func() (grpcFrame, error)
}

func (b *bidi) Send(p []byte) error {
	return b.send(grpcFrame{Payload: p, FrameType: jumpstarterv1.FrameTypeData})
}

func (b *bidi) Receive() ([]byte, error) {
	f, err := b.recv()
	if err != nil {
		return nil, err
	}
	if f.CloseWrite {
		return nil, io.EOF
	}
	return f.Payload, nil
}

func (b *bidi) SendEOF() error {
	return b.send(grpcFrame{CloseWrite: true})
}

// Close does nothing: the gRPC stream ends when its RPC returns or its
// context is cancelled.
func (b *bidi) Close() error { return nil }

// FromExporterServer adapts the server side of ExporterService.Stream.
func FromExporterServer(s jumpstarterv1.ExporterService_StreamServer) ByteStream {
	return &bidi{
		send: func(f grpcFrame) error {
			return s.Send(&jumpstarterv1.StreamResponse{Payload: f.Payload, FrameType: f.FrameType, CloseWrite: f.CloseWrite})
		},
		recv: func() (grpcFrame, error) {
			req, err := s.Recv()
			if err != nil {
				return grpcFrame{}, err
			}
			return grpcFrame{Payload: req.Payload, FrameType: req.FrameType, CloseWrite: req.CloseWrite}, nil
		},
	}
}

// FromExporterClient adapts the client side of ExporterService.Stream.
func FromExporterClient(c jumpstarterv1.ExporterService_StreamClient) ByteStream {
	return &bidi{
		send: func(f grpcFrame) error {
			return c.Send(&jumpstarterv1.StreamRequest{Payload: f.Payload, FrameType: f.FrameType, CloseWrite: f.CloseWrite})
		},
		recv: func() (grpcFrame, error) {
			resp, err := c.Recv()
			if err != nil {
				return grpcFrame{}, err
			}
			return grpcFrame{Payload: resp.Payload, FrameType: resp.FrameType, CloseWrite: resp.CloseWrite}, nil
		},
	}
}

// FromRouterClient adapts the client side of RouterService.Stream, used by
// both the exporter and the client when dialing the router relay.
func FromRouterClient(c jumpstarterv1.RouterService_StreamClient) ByteStream {
	return &bidi{
		send: func(f grpcFrame) error {
			return c.Send(&jumpstarterv1.StreamRequest{Payload: f.Payload, FrameType: f.FrameType, CloseWrite: f.CloseWrite})
		},
		recv: func() (grpcFrame, error) {
			resp, err := c.Recv()
			if err != nil {
				return grpcFrame{}, err
			}
			return grpcFrame{Payload: resp.Payload, FrameType: resp.FrameType, CloseWrite: resp.CloseWrite}, nil
		},
	}
}

// FromRouterServer adapts the server side of RouterService.Stream, used
// when an exporter serves RouterService on its own per-lease socket so a
// same-host client can skip the external router relay.
func FromRouterServer(s jumpstarterv1.RouterService_StreamServer) ByteStream {
	return &bidi{
		send: func(f grpcFrame) error {
			return s.Send(&jumpstarterv1.StreamResponse{Payload: f.Payload, FrameType: f.FrameType, CloseWrite: f.CloseWrite})
		},
		recv: func() (grpcFrame, error) {
			req, err := s.Recv()
			if err != nil {
				return grpcFrame{}, err
			}
			return grpcFrame{Payload: req.Payload, FrameType: req.FrameType, CloseWrite: req.CloseWrite}, nil
		},
	}
}
