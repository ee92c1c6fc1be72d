package driver

import "github.com/jumpstarter-dev/jumpstarter/pkg/meta"

// Composite groups named child drivers under a single node without owning
// any hardware itself; it is pure composition, never inheritance — a
// composite never re-exposes a child's methods on its own method table, the
// same way the original Python CompositeInterface only contributes Children
// and leaves dispatch to each child's own uuid.
type Composite struct {
	Base
	children []Driver
}

// NewComposite builds a composite driver from a parent-relative name and
// its children, stamping each child's declared name into its own labels so
// Enumerate/Reports can recover the tree's naming without a second pass.
func NewComposite(name string, labels map[string]string, children map[string]Driver) *Composite {
	c := &Composite{Base: Base{Metadata: meta.New(meta.WithLabel(labels, meta.ReservedNameLabel, name))}}
	for childName, child := range children {
		stampName(child, childName)
		c.children = append(c.children, child)
	}
	return c
}

func (c *Composite) Interface() string                 { return "jumpstarter.dev/composite" }
func (c *Composite) Version() string                    { return "1.0" }
func (c *Composite) Methods() map[string]MethodInfo     { return map[string]MethodInfo{} }
func (c *Composite) Children() []Driver                 { return c.children }

// namer is implemented by drivers whose name label can be rewritten after
// construction, used only by NewComposite to assign each child its
// declared name.
type namer interface {
	setName(string)
}

func stampName(d Driver, name string) {
	if n, ok := d.(namer); ok {
		n.setName(name)
	}
}

func (b *Base) setName(name string) {
	b.Metadata.Labels = meta.WithLabel(b.Metadata.Labels, meta.ReservedNameLabel, name)
}
