// Package meta holds the identity and label primitives shared by drivers,
// driver clients, and leases: a per-instance UUID plus a flat string label
// map, with two reserved keys the rest of the stack treats specially.
package meta

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ReservedClientLabel names the fully-qualified client stub class a report
// should be materialized as on the client side.
const ReservedClientLabel = "jumpstarter.dev/client"

// ReservedNameLabel names a driver's name under its parent in the tree.
const ReservedNameLabel = "jumpstarter.dev/name"

// Metadata is embedded by every driver instance; a client-side DriverClient
// carries its own ID and Labels fields instead. It is assigned at
// construction; the only later change is driver.NewComposite
// rewriting a child's name label.
type Metadata struct {
	ID     uuid.UUID
	Labels map[string]string
}

// New assigns a fresh random UUID, as required of every driver instance
// constructed at session start.
func New(labels map[string]string) Metadata {
	if labels == nil {
		labels = map[string]string{}
	}
	return Metadata{ID: uuid.New(), Labels: labels}
}

func (m Metadata) UUID() uuid.UUID         { return m.ID }
func (m Metadata) Label(key string) string { return m.Labels[key] }
func (m Metadata) Name() string             { return m.Labels[ReservedNameLabel] }
func (m Metadata) ClientClass() string      { return m.Labels[ReservedClientLabel] }

// AllLabels returns the full label map, used when rendering a driver
// instance report.
func (m Metadata) AllLabels() map[string]string { return m.Labels }

// WithLabel returns a copy of labels with key set, used when a composite
// driver stamps a child's name-under-parent into its label map.
func WithLabel(labels map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}
	out[key] = value
	return out
}

// Filter is a label-equality selector used to request a lease, rendered to
// the same query string shape the controller's Kubernetes-style label
// selector expects ("a=b,c=d").
type Filter struct {
	Labels map[string]string
}

func (f Filter) String() string {
	if len(f.Labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(f.Labels))
	for k := range f.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+f.Labels[k])
	}
	return strings.Join(parts, ",")
}
