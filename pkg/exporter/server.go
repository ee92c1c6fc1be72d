package exporter

import (
	"context"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/jumpstarter-dev/jumpstarter/pkg/resource"
	"github.com/jumpstarter-dev/jumpstarter/pkg/session"
	jumpstarterv1 "github.com/jumpstarter-dev/jumpstarter/pkg/wire/jumpstarterv1"
	"github.com/jumpstarter-dev/jumpstarter/pkg/xstream"
)

// exporterServer is the ExporterService implementation served on a lease's
// local Unix socket. It delegates GetReport/DriverCall/StreamingDriverCall/
// Stream to the lease's current Session — all four fail with
// ExporterNotReady if none is attached, and all but GetReport also fail
// while the phase isn't LEASE_READY — and answers
// GetStatus/LogStream directly from the LeaseContext, which is populated
// before any Session exists.
type exporterServer struct {
	lease *LeaseContext
}

func newExporterServer(lease *LeaseContext) *exporterServer {
	return &exporterServer{lease: lease}
}

// errNotReady mirrors the ExporterNotReady error condition: between
// BEFORE_LEASE_HOOK and LEASE_READY, driver calls fail with
// ExporterNotReady.
func errNotReady() error {
	return status.Error(codes.Unavailable, "exporter not ready")
}

func (s *exporterServer) GetReport(ctx context.Context, _ *jumpstarterv1.Empty) (*jumpstarterv1.GetReportResponse, error) {
	sess := s.lease.Session()
	if sess == nil {
		return nil, errNotReady()
	}
	return sess.GetReport(), nil
}

func (s *exporterServer) DriverCall(ctx context.Context, req *jumpstarterv1.DriverCallRequest) (*jumpstarterv1.DriverCallResponse, error) {
	if !s.lease.Ready() {
		return nil, errNotReady()
	}
	sess := s.lease.Session()
	if sess == nil {
		return nil, errNotReady()
	}
	return sess.DriverCall(ctx, req)
}

func (s *exporterServer) StreamingDriverCall(req *jumpstarterv1.StreamingDriverCallRequest, stream jumpstarterv1.ExporterService_StreamingDriverCallServer) error {
	if !s.lease.Ready() {
		return errNotReady()
	}
	sess := s.lease.Session()
	if sess == nil {
		return errNotReady()
	}
	return sess.StreamingDriverCall(stream.Context(), req, stream.Send)
}

func (s *exporterServer) Stream(stream jumpstarterv1.ExporterService_StreamServer) error {
	if !s.lease.Ready() {
		return errNotReady()
	}
	sess := s.lease.Session()
	if sess == nil {
		return errNotReady()
	}
	md, err := streamMetaFromContext(stream.Context())
	if err != nil {
		return err
	}
	peer := xstream.FromExporterServer(stream)
	return sess.HandleStream(stream.Context(), md, peer, resourceMetadataAnnouncer(stream))
}

func (s *exporterServer) LogStream(_ *jumpstarterv1.Empty, stream jumpstarterv1.ExporterService_LogStreamServer) error {
	ch, cancel := s.lease.logs.ring.Subscribe()
	defer cancel()
	for {
		select {
		case <-stream.Context().Done():
			return stream.Context().Err()
		case entry, ok := <-ch:
			if !ok {
				return nil
			}
			e := entry
			if err := stream.Send(&e); err != nil {
				return err
			}
		}
	}
}

func (s *exporterServer) GetStatus(context.Context, *jumpstarterv1.Empty) (*jumpstarterv1.GetStatusResponse, error) {
	phase, msg := s.lease.Status()
	return &jumpstarterv1.GetStatusResponse{Status: phase, StatusMessage: msg}, nil
}

// routerServer is RouterService served alongside ExporterService on the
// same per-lease Unix socket, so a same-host client can skip the external
// router relay entirely and dial straight into the Session. It is a
// separate type from exporterServer purely because Go cannot have a single
// type implement two interfaces whose method sets both contain a method
// named Stream with different signatures.
type routerServer struct {
	lease *LeaseContext
}

func newRouterServer(lease *LeaseContext) *routerServer {
	return &routerServer{lease: lease}
}

func (s *routerServer) Stream(stream jumpstarterv1.RouterService_StreamServer) error {
	if !s.lease.Ready() {
		return errNotReady()
	}
	sess := s.lease.Session()
	if sess == nil {
		return errNotReady()
	}
	md, err := streamMetaFromContext(stream.Context())
	if err != nil {
		return err
	}
	peer := xstream.FromRouterServer(stream)
	return sess.HandleStream(stream.Context(), md, peer, resourceMetadataAnnouncer(stream))
}

func streamMetaFromContext(ctx context.Context) (session.StreamMeta, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return session.StreamMeta{}, status.Error(codes.InvalidArgument, "missing stream metadata")
	}
	kind := firstOr(md.Get("kind"), "")
	uuid := firstOr(md.Get("uuid"), "")
	if kind == "" {
		return session.StreamMeta{}, status.Error(codes.InvalidArgument, "missing stream kind")
	}
	return session.StreamMeta{Kind: kind, UUID: uuid, AcceptEncoding: acceptEncodingFromValues(md.Get("x_jmp_accept_encoding"))}, nil
}

func firstOr(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return values[0]
}

// acceptEncodingFromValues parses the comma-separated x_jmp_accept_encoding
// metadata values (a client may repeat the key or pack a comma list into a
// single value) into an ordered preference list.
func acceptEncodingFromValues(values []string) []resource.Encoding {
	var out []resource.Encoding
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, resource.Encoding(part))
			}
		}
	}
	return out
}

// resourceStreamHeader is the subset of grpc.ServerStream a Stream handler
// needs to announce a minted resource's uuid and negotiated encoding as
// initial response metadata, rather than an in-band payload frame.
type resourceStreamHeader interface {
	SendHeader(metadata.MD) error
}

func resourceMetadataAnnouncer(stream resourceStreamHeader) func(uuid, encoding string) error {
	return func(uuid, encoding string) error {
		return stream.SendHeader(metadata.Pairs(
			"x_jmp_resource_uuid", uuid,
			"x_jmp_content_encoding", encoding,
		))
	}
}
