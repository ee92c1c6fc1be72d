package driver

import (
	"context"

	"github.com/jumpstarter-dev/jumpstarter/pkg/xstream"
)

// Connectable is implemented by drivers that expose a byte-stream endpoint
// over the Stream RPC — the Go equivalent of the original Python driver's
// async def connect() context manager. A driver with no such endpoint
// simply doesn't implement this interface; Stream(kind=device) against it
// fails with ErrNotConnectable.
type Connectable interface {
	Driver
	Connect(ctx context.Context) (xstream.ByteStream, error)
}

// ErrNotConnectable is returned when a Stream(kind=device) request names a
// driver that doesn't implement Connectable.
type ErrNotConnectable struct {
	Interface string
}

func (e *ErrNotConnectable) Error() string {
	return "driver: " + e.Interface + " does not expose a byte-stream endpoint"
}

// Connect opens d's byte-stream endpoint if it implements Connectable.
func Connect(ctx context.Context, d Driver) (xstream.ByteStream, error) {
	c, ok := d.(Connectable)
	if !ok {
		return nil, &ErrNotConnectable{Interface: d.Interface()}
	}
	return c.Connect(ctx)
}
