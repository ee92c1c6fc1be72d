package driver

import (
	"github.com/google/uuid"
	"github.com/jumpstarter-dev/jumpstarter/pkg/meta"
	jumpstarterv1 "github.com/jumpstarter-dev/jumpstarter/pkg/wire/jumpstarterv1"
)

// Entry is one node of a pre-order enumeration of a driver tree: the
// driver itself, its parent's uuid (the zero UUID for the root), and the
// name it was declared under in its parent's Children.
type Entry struct {
	Driver     Driver
	ParentUUID uuid.UUID
	Name       string
}

// Enumerate walks d and its descendants in pre-order (parent always
// precedes its children) and returns one Entry per node. name is the label
// the root itself is known under, normally empty.
func Enumerate(d Driver, name string) []Entry {
	return enumerate(d, uuid.UUID{}, name)
}

func enumerate(d Driver, parent uuid.UUID, name string) []Entry {
	entries := []Entry{{Driver: d, ParentUUID: parent, Name: name}}
	for _, child := range d.Children() {
		entries = append(entries, enumerate(child, d.UUID(), child.Name())...)
	}
	return entries
}

// Registry indexes every driver in a tree by uuid, built once at session
// start from the root driver.
type Registry struct {
	root    Driver
	byUUID  map[uuid.UUID]Driver
	entries []Entry
}

// NewRegistry enumerates root and indexes every node for O(1) lookup by
// DriverCall/StreamingDriverCall/Stream requests.
func NewRegistry(root Driver) *Registry {
	entries := Enumerate(root, root.Name())
	byUUID := make(map[uuid.UUID]Driver, len(entries))
	for _, e := range entries {
		byUUID[e.Driver.UUID()] = e.Driver
	}
	return &Registry{root: root, byUUID: byUUID, entries: entries}
}

// Lookup resolves a driver by uuid, as carried in DriverCallRequest.uuid and
// StreamRequest/resource-handle uuids.
func (r *Registry) Lookup(id uuid.UUID) (Driver, bool) {
	d, ok := r.byUUID[id]
	return d, ok
}

// Root returns the tree's top-level driver.
func (r *Registry) Root() Driver { return r.root }

// Entries returns the pre-order enumeration computed at construction.
func (r *Registry) Entries() []Entry { return r.entries }

// Reports renders the enumeration as the flat DriverInstanceReport records
// an exporter sends in RegisterRequest and returns from GetReport: one per
// node, carrying the node's own labels plus the reserved interface/version
// labels, and its method descriptions.
func (r *Registry) Reports() []*jumpstarterv1.DriverInstanceReport {
	out := make([]*jumpstarterv1.DriverInstanceReport, 0, len(r.entries))
	for _, e := range r.entries {
		lbls := map[string]string{}
		for k, v := range e.Driver.AllLabels() {
			lbls[k] = v
		}
		lbls["jumpstarter.dev/interface"] = e.Driver.Interface()
		lbls["jumpstarter.dev/version"] = e.Driver.Version()
		if e.Name != "" {
			lbls[meta.ReservedNameLabel] = e.Name
		}

		var parent string
		if e.ParentUUID != (uuid.UUID{}) {
			parent = e.ParentUUID.String()
		}

		methods := map[string]string{}
		for name, info := range e.Driver.Methods() {
			methods[name] = info.Tag.String()
		}

		out = append(out, &jumpstarterv1.DriverInstanceReport{
			UUID:               e.Driver.UUID().String(),
			ParentUUID:         parent,
			Labels:             lbls,
			MethodsDescription: methods,
		})
	}
	return out
}
