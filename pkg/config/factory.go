package config

import (
	"fmt"

	"github.com/jumpstarter-dev/jumpstarter/pkg/driver"
)

// Factory builds a driver.Driver from its declared params and already-built
// children, generalizing harness.RegisterDriver (which binds a bare
// `Name() string` to a hardware-scanning FindDevices()) to a
// config-declared, composable gRPC driver tree.
type Factory func(params map[string]interface{}, children map[string]driver.Driver) (driver.Driver, error)

// DriverFactories is the compiled-in registry each pkg/drivers/* package
// populates via init(), keyed by the "driver:" string an ExportEntry names.
var DriverFactories = map[string]Factory{}

// RegisterDriverFactory adds a driver kind to the registry; pkg/drivers/*
// packages call this from their own init().
func RegisterDriverFactory(kind string, f Factory) {
	if _, exists := DriverFactories[kind]; exists {
		panic(fmt.Sprintf("config: driver factory %q already registered", kind))
	}
	DriverFactories[kind] = f
}

// BuildDriverTree recursively instantiates entry and its children, building
// children before parents so a composite's constructor always receives
// already-built instances.
func BuildDriverTree(entry ExportEntry) (driver.Driver, error) {
	children := make(map[string]driver.Driver, len(entry.Children))
	for name, child := range entry.Children {
		d, err := BuildDriverTree(child)
		if err != nil {
			return nil, fmt.Errorf("config: building child %q: %w", name, err)
		}
		children[name] = d
	}

	factory, ok := DriverFactories[entry.Driver]
	if !ok {
		return nil, fmt.Errorf("config: unknown driver kind %q", entry.Driver)
	}
	d, err := factory(entry.Params, children)
	if err != nil {
		return nil, fmt.Errorf("config: instantiating driver %q: %w", entry.Driver, err)
	}
	return d, nil
}

// BuildRoot builds the top-level composite an exporter reports, one entry
// per key in export.
func BuildRoot(export map[string]ExportEntry, labels map[string]string) (driver.Driver, error) {
	children := make(map[string]driver.Driver, len(export))
	for name, entry := range export {
		d, err := BuildDriverTree(entry)
		if err != nil {
			return nil, fmt.Errorf("config: building export entry %q: %w", name, err)
		}
		children[name] = d
	}
	return driver.NewComposite("root", labels, children), nil
}

// LabelsFromParams extracts a factory's optional "labels" param as a flat
// string map, the shared shape every pkg/drivers/* factory accepts alongside
// its own kind-specific params.
func LabelsFromParams(params map[string]interface{}) map[string]string {
	labels := map[string]string{}
	raw, ok := params["labels"]
	if !ok {
		return labels
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return labels
	}
	for k, v := range m {
		if s, ok := v.(string); ok {
			labels[k] = s
		}
	}
	return labels
}
