package resource

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jumpstarter-dev/jumpstarter/pkg/xstream"
)

type tableKey struct{}

// WithTable attaches a session's resource arena to ctx, so a driver method
// dispatched through that context can resolve a ClientStream handle's uuid
// back into the open byte stream without the driver layer needing to know
// about sessions at all.
func WithTable(ctx context.Context, t *Table) context.Context {
	return context.WithValue(ctx, tableKey{}, t)
}

// TableFromContext recovers the arena WithTable attached, if any.
func TableFromContext(ctx context.Context) (*Table, bool) {
	t, ok := ctx.Value(tableKey{}).(*Table)
	return t, ok
}

// TakeFromArg resolves a decoded ClientStream-shaped DriverCall argument
// (a map carrying "uuid" and, optionally, "content_encoding") into the open
// byte stream it names, removing it from ctx's attached Table. It is the
// glue a driver method uses to consume a resource.Handle argument without
// importing pkg/session.
func TakeFromArg(ctx context.Context, arg any) (xstream.ByteStream, string, error) {
	m, ok := arg.(map[string]any)
	if !ok {
		return nil, "", fmt.Errorf("resource: argument is not a resource handle")
	}
	rawUUID, _ := m["uuid"].(string)
	if rawUUID == "" {
		return nil, "", fmt.Errorf("resource: handle missing uuid")
	}
	id, err := uuid.Parse(rawUUID)
	if err != nil {
		return nil, "", fmt.Errorf("resource: invalid handle uuid %q: %w", rawUUID, err)
	}
	table, ok := TableFromContext(ctx)
	if !ok {
		return nil, "", fmt.Errorf("resource: no resource table attached to context")
	}
	stream, ok := table.Take(id)
	if !ok {
		return nil, "", fmt.Errorf("resource: no resource registered under %s", id)
	}
	encoding, _ := m["content_encoding"].(string)
	return stream, encoding, nil
}
