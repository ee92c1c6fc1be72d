// Package resource implements the per-session resource arena used to pass
// bulk data (a disk image, a firmware blob) into a driver call without
// inlining it as a DriverCall argument: the client opens a Stream of kind
// "resource", the session mints a uuid and an in-memory pipe, and the
// uuid is later passed as a ClientStream handle inside a regular
// DriverCall argument.
package resource

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jumpstarter-dev/jumpstarter/pkg/xstream"
)

// Handle is implemented by the two ResourceHandle variants carried as
// driver-call arguments: ClientStream (session-local pipe reference) and
// PresignedRequest (direct object-storage passthrough).
type Handle interface {
	isResourceHandle()
}

// ClientStream names a resource transferred through the session's own
// arena: the driver call handler reads Table.Take(UUID) to EOF.
type ClientStream struct {
	UUID uuid.UUID `json:"uuid"`
	// ContentEncoding is the negotiated compression applied to the bytes
	// the client is sending, e.g. "gzip" or "" for none.
	ContentEncoding string `json:"content_encoding,omitempty"`
}

func (ClientStream) isResourceHandle() {}

// PresignedRequest lets the client hand a driver a presigned object-storage
// URL instead of streaming bytes through the exporter at all.
type PresignedRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

func (PresignedRequest) isResourceHandle() {}

// Table is the per-session arena of in-flight resource transfers: one entry
// per open Stream(kind=resource), keyed by the uuid handed back to the
// client and later embedded in a DriverCall argument.
type Table struct {
	mu      sync.Mutex
	entries map[uuid.UUID]xstream.ByteStream
}

// NewTable constructs an empty arena, owned by a single session.
func NewTable() *Table {
	return &Table{entries: map[uuid.UUID]xstream.ByteStream{}}
}

// New mints a uuid and an in-memory pipe, stores the session-facing end in
// the table and returns the uuid plus the peer end for the caller (the
// Stream RPC handler) to forward client bytes into.
func (t *Table) New() (uuid.UUID, xstream.ByteStream) {
	id := uuid.New()
	sessionEnd, peerEnd := xstream.Pipe()
	t.mu.Lock()
	t.entries[id] = sessionEnd
	t.mu.Unlock()
	return id, peerEnd
}

// Take removes and returns the stream registered under id, as required by
// "after the driver call returns, the resource is removed from the table":
// a resource handle is consumed exactly once.
func (t *Table) Take(id uuid.UUID) (xstream.ByteStream, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	return s, ok
}

// Close tears down every still-open entry, called on session teardown so a
// lease release doesn't leak blocked readers.
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var firstErr error
	for id, s := range t.entries {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("resource: closing %s: %w", id, err)
		}
		delete(t.entries, id)
	}
	return firstErr
}
