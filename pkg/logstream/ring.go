// Package logstream implements the bounded log buffer ExporterService's
// LogStream RPC drains: one FIFO queue per source tag (hook output,
// exporter-internal events), with no ordering guarantee across tags — the
// documented resolution of the original "whether LogStream must deliver
// lines in strict emission order" open question.
package logstream

import (
	"sync"

	jumpstarterv1 "github.com/jumpstarter-dev/jumpstarter/pkg/wire/jumpstarterv1"
)

// defaultCapacity bounds each per-tag queue; the oldest entry is dropped
// once a tag's queue is full, favoring recency over completeness for a
// live tail.
const defaultCapacity = 512

// Ring is a multi-tag bounded log buffer with subscriber fan-out: every
// LogStream call gets its own channel fed from the same appended entries,
// so a reconnecting client doesn't replay history it already saw and a slow
// client doesn't block a fast one (messages are dropped for that
// subscriber instead, matching "line-buffered... periodic polling" rather
// than a backpressured pipe).
type Ring struct {
	mu          sync.Mutex
	capacity    int
	tags        map[string][]jumpstarterv1.LogStreamResponse
	subscribers map[chan jumpstarterv1.LogStreamResponse]struct{}
}

// New constructs an empty Ring with the default per-tag capacity.
func New() *Ring {
	return &Ring{
		capacity:    defaultCapacity,
		tags:        map[string][]jumpstarterv1.LogStreamResponse{},
		subscribers: map[chan jumpstarterv1.LogStreamResponse]struct{}{},
	}
}

// Append records a log line under source and fans it out to every live
// subscriber.
func (r *Ring) Append(source string, severity jumpstarterv1.Severity, message string) {
	entry := jumpstarterv1.LogStreamResponse{Severity: severity, Message: message, Source: source}

	r.mu.Lock()
	queue := r.tags[source]
	queue = append(queue, entry)
	if len(queue) > r.capacity {
		queue = queue[len(queue)-r.capacity:]
	}
	r.tags[source] = queue

	for ch := range r.subscribers {
		select {
		case ch <- entry:
		default:
			// Slow subscriber: drop rather than block the appender.
		}
	}
	r.mu.Unlock()
}

// Subscribe returns a channel fed with every entry appended from now on,
// and a cancel function the caller must call to stop receiving and release
// the channel.
func (r *Ring) Subscribe() (<-chan jumpstarterv1.LogStreamResponse, func()) {
	ch := make(chan jumpstarterv1.LogStreamResponse, 64)
	r.mu.Lock()
	r.subscribers[ch] = struct{}{}
	r.mu.Unlock()
	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}
