// Package network implements byte-stream drivers exercising the Stream RPC
// directly, as opposed to pkg/drivers/mock's unary/server-stream methods.
package network

import (
	"context"
	"fmt"

	"github.com/jumpstarter-dev/jumpstarter/pkg/config"
	"github.com/jumpstarter-dev/jumpstarter/pkg/driver"
	"github.com/jumpstarter-dev/jumpstarter/pkg/meta"
	"github.com/jumpstarter-dev/jumpstarter/pkg/xstream"
)

// Echo is a Connectable driver with no method table at all: its only
// behavior is exposed over Stream(kind=device), echoing every frame it
// receives back to the peer and closing the stream once the peer
// half-closes, grounding the byte-stream side of the Stream RPC the way
// pkg/drivers/mock.Power grounds DriverCall/StreamingDriverCall.
type Echo struct {
	driver.Base
}

// NewEcho constructs an Echo driver instance with the given labels.
func NewEcho(labels map[string]string) *Echo {
	return &Echo{Base: driver.Base{Metadata: meta.New(labels)}}
}

func (e *Echo) Interface() string                     { return "jumpstarter.dev/echo-network" }
func (e *Echo) Version() string                        { return "1.0" }
func (e *Echo) Methods() map[string]driver.MethodInfo { return map[string]driver.MethodInfo{} }

// Connect returns the exporter-side half of an in-memory loopback pipe: the
// goroutine behind it copies whatever arrives back out verbatim until the
// peer half-closes or the stream is closed.
func (e *Echo) Connect(ctx context.Context) (xstream.ByteStream, error) {
	exporterSide, echoSide := xstream.Pipe()
	go runEcho(ctx, echoSide)
	return exporterSide, nil
}

func runEcho(ctx context.Context, s xstream.ByteStream) {
	defer s.Close()
	for {
		p, err := s.Receive()
		if err != nil {
			return
		}
		if err := s.Send(p); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func init() {
	config.RegisterDriverFactory("echo-network", func(params map[string]interface{}, children map[string]driver.Driver) (driver.Driver, error) {
		if len(children) != 0 {
			return nil, fmt.Errorf("echo-network: does not accept children")
		}
		return NewEcho(config.LabelsFromParams(params)), nil
	})
}
