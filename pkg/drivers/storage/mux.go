// Package storage implements a minimal storage-mux driver exercising
// resource transfer end-to-end: a unary Write method that consumes a
// ClientStream resource handle and copies it to a destination writer,
// generalizing pkg/storage/writer.go's WriteImageToDisk (fixed
// local-file-to-block-device path) into a driver method operating over the
// session's resource arena and an injectable io.Writer destination.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/jumpstarter-dev/jumpstarter/pkg/config"
	"github.com/jumpstarter-dev/jumpstarter/pkg/driver"
	"github.com/jumpstarter-dev/jumpstarter/pkg/meta"
	"github.com/jumpstarter-dev/jumpstarter/pkg/resource"
	"github.com/jumpstarter-dev/jumpstarter/pkg/storagewriter"
	"github.com/jumpstarter-dev/jumpstarter/pkg/xstream"
)

// Destination is where Mux.Write copies a resource's bytes; a real exporter
// wires this to a block device, tests wire it to a bytes.Buffer.
type Destination interface {
	io.Writer
}

// Mux is a unary-only driver whose single method, write, consumes a
// ClientStream resource.Handle argument and copies it into Dest through
// storagewriter.Write with its progress bar turned off.
type Mux struct {
	driver.Base

	Dest Destination
}

// NewMux constructs a Mux driver writing into dest.
func NewMux(labels map[string]string, dest Destination) *Mux {
	return &Mux{Base: driver.Base{Metadata: meta.New(labels)}, Dest: dest}
}

func (m *Mux) Interface() string { return "jumpstarter.dev/storage-mux" }
func (m *Mux) Version() string   { return "1.0" }

func (m *Mux) Methods() map[string]driver.MethodInfo {
	return map[string]driver.MethodInfo{
		"write": {Tag: driver.TagUnary, Description: "write a resource to the destination", Unary: m.write},
	}
}

func (m *Mux) write(ctx context.Context, args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("storage: write takes exactly one resource handle argument")
	}
	stream, encoding, err := resource.TakeFromArg(ctx, args[0])
	if err != nil {
		return nil, fmt.Errorf("storage: write: %w", err)
	}
	defer stream.Close()

	src, err := resource.DecodeReader(xstream.NewReader(stream), resource.Encoding(encoding))
	if err != nil {
		return nil, fmt.Errorf("storage: write: %w", err)
	}

	n, err := storagewriter.Write(m.Dest, src, 0, storagewriter.CopyOptions{Label: "writing", Quiet: true})
	if err != nil {
		return nil, fmt.Errorf("storage: write: %w", err)
	}
	return map[string]any{"bytes_written": n}, nil
}

func init() {
	config.RegisterDriverFactory("storage-mux", func(params map[string]interface{}, children map[string]driver.Driver) (driver.Driver, error) {
		return nil, fmt.Errorf("storage-mux: requires a destination writer, construct with storage.NewMux directly")
	})
}
