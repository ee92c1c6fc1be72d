// Package session implements the per-lease server side of ExporterService
// and RouterService: a driver tree registry, a resource arena, and the
// dispatch logic DriverCall/StreamingDriverCall/Stream route into, grounded
// on the original Python Session (exporter/session.py) — one Session per
// active lease, constructed at lease start before the beforeLease hook runs
// and torn down when the lease is released.
package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/jumpstarter-dev/jumpstarter/pkg/driver"
	"github.com/jumpstarter-dev/jumpstarter/pkg/meta"
	"github.com/jumpstarter-dev/jumpstarter/pkg/resource"
	"github.com/jumpstarter-dev/jumpstarter/pkg/value"
	jumpstarterv1 "github.com/jumpstarter-dev/jumpstarter/pkg/wire/jumpstarterv1"
	"github.com/jumpstarter-dev/jumpstarter/pkg/xstream"
)

// Session owns one lease's driver tree and its resource arena. It is built
// fresh for every lease and discarded on release; GetStatus/LogStream, which
// must answer even when no Session exists, live one level up in
// pkg/exporter.LeaseContext instead.
type Session struct {
	meta.Metadata
	root      driver.Driver
	registry  *driver.Registry
	resources *resource.Table
}

// New builds a Session around root, enumerating its driver tree once up
// front the way the original Session computes self.mapping from
// root_device.mapping() at construction.
func New(root driver.Driver, labels map[string]string) *Session {
	return &Session{
		Metadata:  meta.New(labels),
		root:      root,
		registry:  driver.NewRegistry(root),
		resources: resource.NewTable(),
	}
}

// Reset cascades driver.ResetTree over the session's driver tree, run once
// on lease start before the beforeLease hook, so a stateful driver begins
// the lease from a known state.
func (s *Session) Reset(ctx context.Context) error {
	return driver.ResetTree(ctx, s.root)
}

// Close tears down any resources still registered in the arena and cascades
// driver.CloseTree over the driver tree, called when the lease is released
// and the Session discarded. The arena is closed first so a driver's Close
// doesn't race a still-forwarding resource stream.
func (s *Session) Close() error {
	resErr := s.resources.Close()
	if err := driver.CloseTree(s.root); err != nil {
		return err
	}
	return resErr
}

// GetReport renders the driver tree's pre-order enumeration, answering
// ExporterService.GetReport.
func (s *Session) GetReport() *jumpstarterv1.GetReportResponse {
	return &jumpstarterv1.GetReportResponse{
		UUID:    s.UUID().String(),
		Labels:  s.AllLabels(),
		Reports: s.registry.Reports(),
	}
}

func (s *Session) lookup(rawUUID string) (driver.Driver, error) {
	id, err := uuid.Parse(rawUUID)
	if err != nil {
		return nil, fmt.Errorf("session: invalid uuid %q: %w", rawUUID, err)
	}
	d, ok := s.registry.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("session: no driver with uuid %s", id)
	}
	return d, nil
}

func decodeArgs(args []*structpb.Value) ([]any, error) {
	out := make([]any, 0, len(args))
	for _, a := range args {
		v, err := value.Decode(a)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// DriverCall answers ExporterService.DriverCall: decode args, dispatch to
// the named driver's unary method table entry, encode the result.
func (s *Session) DriverCall(ctx context.Context, req *jumpstarterv1.DriverCallRequest) (*jumpstarterv1.DriverCallResponse, error) {
	d, err := s.lookup(req.UUID)
	if err != nil {
		return nil, err
	}
	args, err := decodeArgs(req.Args)
	if err != nil {
		return nil, fmt.Errorf("session: decoding args for %s: %w", req.Method, err)
	}
	ctx = resource.WithTable(ctx, s.resources)
	result, err := driver.Call(ctx, d, req.Method, args)
	if err != nil {
		return nil, err
	}
	encoded, err := value.Encode(result)
	if err != nil {
		return nil, fmt.Errorf("session: encoding result of %s: %w", req.Method, err)
	}
	return &jumpstarterv1.DriverCallResponse{UUID: uuid.NewString(), Result: encoded}, nil
}

// StreamingDriverCall answers ExporterService.StreamingDriverCall, calling
// send once per value the driver's stream method yields.
func (s *Session) StreamingDriverCall(ctx context.Context, req *jumpstarterv1.StreamingDriverCallRequest, send func(*jumpstarterv1.StreamingDriverCallResponse) error) error {
	d, err := s.lookup(req.UUID)
	if err != nil {
		return err
	}
	args, err := decodeArgs(req.Args)
	if err != nil {
		return fmt.Errorf("session: decoding args for %s: %w", req.Method, err)
	}
	ctx = resource.WithTable(ctx, s.resources)
	return driver.CallStream(ctx, d, req.Method, args, func(v any) error {
		encoded, err := value.Encode(v)
		if err != nil {
			return fmt.Errorf("session: encoding result of %s: %w", req.Method, err)
		}
		return send(&jumpstarterv1.StreamingDriverCallResponse{UUID: uuid.NewString(), Result: encoded})
	})
}

// StreamMeta is the subset of incoming gRPC metadata a Stream RPC carries:
// "kind" (device|resource), the target driver's uuid for a device stream,
// and the client's x_jmp_accept_encoding preference list (in order) for a
// resource stream. A resource stream carries no uuid — the session mints
// one and reports it back through announce.
type StreamMeta struct {
	Kind           string
	UUID           string
	AcceptEncoding []resource.Encoding
}

// HandleStream answers ExporterService.Stream for both the "device" kind
// (forwarding to a Connectable driver's byte-stream endpoint) and the
// "resource" kind (minting a new arena entry and forwarding into it),
// mirroring the match metadata["kind"] dispatch of the original Session.Stream.
//
// For a resource stream, the session mints the arena uuid itself (rather
// than accepting a client-supplied one), negotiates a content encoding from
// AcceptEncoding against this exporter's allow-set, and reports both back
// through announce before forwarding begins — announce is wired by the
// gRPC server handler to the stream's initial response metadata
// (x_jmp_resource_uuid / x_jmp_content_encoding), never an in-band frame.
func (s *Session) HandleStream(ctx context.Context, md StreamMeta, peer xstream.ByteStream, announce func(uuid, encoding string) error) error {
	switch md.Kind {
	case "device":
		d, err := s.lookup(md.UUID)
		if err != nil {
			return err
		}
		local, err := driver.Connect(ctx, d)
		if err != nil {
			return err
		}
		defer local.Close()
		return xstream.Forward(ctx, peer, local)
	case "resource":
		id, local := s.resources.New()
		defer local.Close()
		encoding := resource.Negotiate(md.AcceptEncoding, resource.AllowedEncodings())
		if announce != nil {
			if err := announce(id.String(), string(encoding)); err != nil {
				return fmt.Errorf("session: announcing resource metadata: %w", err)
			}
		}
		return xstream.Forward(ctx, peer, local)
	default:
		return fmt.Errorf("session: unknown stream kind %q", md.Kind)
	}
}

// Root exposes the underlying driver tree.
func (s *Session) Root() driver.Driver { return s.root }
