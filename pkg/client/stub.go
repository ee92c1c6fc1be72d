package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/jumpstarter-dev/jumpstarter/pkg/meta"
	"github.com/jumpstarter-dev/jumpstarter/pkg/value"
	jumpstarterv1 "github.com/jumpstarter-dev/jumpstarter/pkg/wire/jumpstarterv1"
)

func encodeArgs(args []any) ([]*structpb.Value, error) {
	out := make([]*structpb.Value, 0, len(args))
	for _, a := range args {
		v, err := value.Encode(a)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ErrDriverNotBuiltIn is raised by a DriverClient's Call when the report's
// client class was rejected by unsafe/allow-list gating — the Go analogue of the original's ImportError
// version-mismatch hint.
type ErrDriverNotBuiltIn struct {
	ClientClass string
}

func (e *ErrDriverNotBuiltIn) Error() string {
	return fmt.Sprintf("client: driver class %q is not built in (missing from allow list, or unsafe=false)", e.ClientClass)
}

// Caller is the subset of ExporterServiceClient a stub needs to issue
// DriverCall/StreamingDriverCall requests against its own uuid; its method
// signatures match ExporterServiceClient exactly so a real
// jumpstarterv1.ExporterServiceClient satisfies it with no adapter.
type Caller interface {
	DriverCall(ctx context.Context, in *jumpstarterv1.DriverCallRequest, opts ...grpc.CallOption) (*jumpstarterv1.DriverCallResponse, error)
	StreamingDriverCall(ctx context.Context, in *jumpstarterv1.StreamingDriverCallRequest, opts ...grpc.CallOption) (jumpstarterv1.ExporterService_StreamingDriverCallClient, error)
}

// DriverClient is the base every built-in and generic stub embeds: identity,
// labels, and the leased exporter's DriverCall surface, plus its named
// children attached by BuildStubTree — mirroring the original's base
// DriverClient attribute set (uuid, labels, children) before a concrete
// subclass adds its own typed methods.
type DriverClient struct {
	ID       uuid.UUID
	Labels   map[string]string
	Children map[string]*DriverClient

	caller      Caller
	clientClass string
	disallowed  bool
}

func (d *DriverClient) UUID() uuid.UUID     { return d.ID }
func (d *DriverClient) Name() string        { return d.Labels[meta.ReservedNameLabel] }
func (d *DriverClient) ClientClass() string { return d.clientClass }

// Call issues a unary DriverCall against this stub's own uuid, refusing if
// the class was rejected by allow/unsafe gating (Testable Property 6).
func (d *DriverClient) Call(ctx context.Context, method string, args ...any) (any, error) {
	if d.disallowed {
		return nil, &ErrDriverNotBuiltIn{ClientClass: d.clientClass}
	}
	vArgs, err := encodeArgs(args)
	if err != nil {
		return nil, fmt.Errorf("client: encoding args for %s: %w", method, err)
	}
	resp, err := d.caller.DriverCall(ctx, &jumpstarterv1.DriverCallRequest{
		UUID:   d.ID.String(),
		Method: method,
		Args:   vArgs,
	})
	if err != nil {
		return nil, err
	}
	return value.Decode(resp.Result)
}

// GenericStub is what a client class with no StubRegistry entry, or one
// rejected by allow/unsafe gating, materializes as: it still carries
// uuid/labels and its position in the tree. Its Call forwards to DriverCall
// for an allowed class; for a rejected class Call always fails per
// Testable Property 6 ("a driver stub built with unsafe=false and
// empty allow refuses to execute any method call for that driver").
type GenericStub struct {
	*DriverClient
}

// Constructor builds a typed stub from its base DriverClient; StubRegistry
// entries are Constructors keyed by client class.
type Constructor func(base *DriverClient) interface{}

// StubRegistry is the compiled-in table BuildStubTree consults in place of
// the original's dynamic import-by-fully-qualified-name, keyed by the
// jumpstarter.dev/client label each driver report carries.
var StubRegistry = map[string]Constructor{}

// RegisterStub adds a client-class constructor to the registry.
func RegisterStub(class string, ctor Constructor) {
	StubRegistry[class] = ctor
}

// StubOptions is the allow/unsafe stub-class instantiation policy applied
// while building a client stub tree from a report.
type StubOptions struct {
	Allow  []string
	Unsafe bool
}

func (o StubOptions) permits(class string) bool {
	if o.Unsafe {
		return true
	}
	if class == "" {
		return false
	}
	prefix := strings.SplitN(class, ".", 2)[0]
	for _, a := range o.Allow {
		if a == prefix {
			return true
		}
	}
	return false
}

// BuildStubTree builds the client stub tree from a GetReportResponse,
// attaching children before parents by indexing reports by parent uuid and
// recursing depth-first from the root.
func BuildStubTree(ctx context.Context, report *jumpstarterv1.GetReportResponse, caller Caller, opts StubOptions) (*DriverClient, error) {
	byParent := map[string][]*jumpstarterv1.DriverInstanceReport{}
	for _, r := range report.Reports {
		byParent[r.ParentUUID] = append(byParent[r.ParentUUID], r)
	}

	var root *jumpstarterv1.DriverInstanceReport
	for _, r := range report.Reports {
		if r.ParentUUID == "" {
			root = r
			break
		}
	}
	if root == nil {
		return nil, fmt.Errorf("client: report set has no root (empty parent_uuid)")
	}

	var build func(r *jumpstarterv1.DriverInstanceReport) (*DriverClient, error)
	build = func(r *jumpstarterv1.DriverInstanceReport) (*DriverClient, error) {
		id, err := uuid.Parse(r.UUID)
		if err != nil {
			return nil, fmt.Errorf("client: invalid report uuid %q: %w", r.UUID, err)
		}
		class := r.Labels[meta.ReservedClientLabel]
		base := &DriverClient{
			ID:          id,
			Labels:      r.Labels,
			Children:    map[string]*DriverClient{},
			caller:      caller,
			clientClass: class,
			disallowed:  !opts.permits(class),
		}
		for _, childReport := range byParent[r.UUID] {
			child, err := build(childReport)
			if err != nil {
				return nil, err
			}
			name := childReport.Labels[meta.ReservedNameLabel]
			base.Children[name] = child
		}
		return base, nil
	}

	return build(root)
}

// Stub resolves a built DriverClient's typed client, falling back to a
// GenericStub when its class isn't in StubRegistry or was rejected by
// allow/unsafe gating.
func Stub(base *DriverClient) interface{} {
	if base.disallowed {
		return &GenericStub{DriverClient: base}
	}
	if ctor, ok := StubRegistry[base.clientClass]; ok {
		return ctor(base)
	}
	return &GenericStub{DriverClient: base}
}
