// Package driver defines the base contract every piece of hardware-access
// code implements: an interface/version pair, a metadata identity, and a
// method table of unary, server-streaming and byte-stream operations that a
// session dispatches DriverCall / StreamingDriverCall / Stream requests
// into by name.
//
// Unlike the original Python implementation, which tags exported methods
// with a decorator-set marker attribute and looks them up by reflection,
// drivers here build an explicit method table in a Methods method. This
// keeps the marker discipline (only methods a driver chooses to export are
// reachable over the wire) without reflection over unexported struct
// fields, which doesn't translate well to Go.
package driver

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jumpstarter-dev/jumpstarter/pkg/meta"
)

// Tag classifies how a method table entry is invoked and over which RPC.
type Tag int

const (
	// TagUnary is dispatched by DriverCall: one request, one response.
	TagUnary Tag = iota
	// TagServerStream is dispatched by StreamingDriverCall: one request,
	// a sequence of responses.
	TagServerStream
	// TagByteStream marks a method reachable only by opening a Stream and
	// is not invoked through the method table at all; it exists so
	// a method table can list it alongside the others.
	TagByteStream
)

func (t Tag) String() string {
	switch t {
	case TagUnary:
		return "unary"
	case TagServerStream:
		return "server_stream"
	case TagByteStream:
		return "byte_stream"
	default:
		return "unknown"
	}
}

// UnaryFunc implements a single DriverCall method.
type UnaryFunc func(ctx context.Context, args []any) (any, error)

// StreamFunc implements a single StreamingDriverCall method; it calls yield
// once per value produced and returns when the sequence is exhausted or an
// error occurs. yield returning an error means the client went away and the
// method should stop producing values and return that error.
type StreamFunc func(ctx context.Context, args []any, yield func(any) error) error

// MethodInfo is one entry of a driver's method table.
type MethodInfo struct {
	Tag         Tag
	Description string
	Unary       UnaryFunc
	Stream      StreamFunc
}

// Driver is implemented by every leaf and composite piece of hardware-access
// code in an exporter's driver tree.
type Driver interface {
	UUID() uuid.UUID
	Label(key string) string
	AllLabels() map[string]string
	Name() string
	ClientClass() string
	// Interface returns the globally-unique, namespaced interface name,
	// e.g. "jumpstarter.dev/power".
	Interface() string
	// Version returns the interface version, matched exactly (not semver).
	Version() string
	// Methods returns this driver's own method table; it does not include
	// children's methods.
	Methods() map[string]MethodInfo
	// Children returns the driver's direct children, or nil for a leaf
	// driver. A Composite takes its children from a map, so their order is
	// not fixed.
	Children() []Driver
}

// ErrMethodNotFound is returned by Call/CallStream when no method of the
// given name exists on a driver; it reflects the server returning NOT_FOUND
// in the original protocol.
type ErrMethodNotFound struct {
	Method string
}

func (e *ErrMethodNotFound) Error() string {
	return fmt.Sprintf("driver: method %q not found", e.Method)
}

// ErrWrongTag is returned when a method exists but was invoked over the
// wrong RPC shape, e.g. StreamingDriverCall against a unary-only method.
type ErrWrongTag struct {
	Method string
	Want   Tag
	Have   Tag
}

func (e *ErrWrongTag) Error() string {
	return fmt.Sprintf("driver: method %q is %s, not %s", e.Method, e.Have, e.Want)
}

// Call invokes a unary method by name.
func Call(ctx context.Context, d Driver, method string, args []any) (any, error) {
	info, ok := d.Methods()[method]
	if !ok {
		return nil, &ErrMethodNotFound{Method: method}
	}
	if info.Tag != TagUnary {
		return nil, &ErrWrongTag{Method: method, Want: TagUnary, Have: info.Tag}
	}
	return info.Unary(ctx, args)
}

// CallStream invokes a server-streaming method by name.
func CallStream(ctx context.Context, d Driver, method string, args []any, yield func(any) error) error {
	info, ok := d.Methods()[method]
	if !ok {
		return &ErrMethodNotFound{Method: method}
	}
	if info.Tag != TagServerStream {
		return &ErrWrongTag{Method: method, Want: TagServerStream, Have: info.Tag}
	}
	return info.Stream(ctx, args, yield)
}

// Base is embedded by concrete drivers to supply meta.Metadata and a
// default empty Children; it does not supply Methods, which every driver
// must define for itself.
type Base struct {
	meta.Metadata
}

func (Base) Children() []Driver { return nil }
