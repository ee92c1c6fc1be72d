// Package mock implements the minimal drivers used to exercise the
// protocol/session/router stack end-to-end: no real hardware is touched,
// generalizing a pkg/drivers/mock that persisted state for a single fake
// device to /tmp/jumpstarter-mock.json to the new driver.Driver method-table
// model.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/jumpstarter-dev/jumpstarter/pkg/config"
	"github.com/jumpstarter-dev/jumpstarter/pkg/driver"
	"github.com/jumpstarter-dev/jumpstarter/pkg/meta"
)

// PowerReading is one sample a Power driver's Read stream yields.
type PowerReading struct {
	Voltage float64 `json:"voltage"`
	Current float64 `json:"current"`
}

// Power is a unary On/Off, server-stream Read mock power driver: On/Off
// always succeed and return "ok", Read always yields exactly two readings
// then ends — just enough behavior to drive the DriverCall/
// StreamingDriverCall scenarios end-to-end.
type Power struct {
	driver.Base

	mu  sync.Mutex
	on  bool
}

// NewPower constructs a Power driver instance with the given labels.
func NewPower(labels map[string]string) *Power {
	return &Power{Base: driver.Base{Metadata: meta.New(labels)}}
}

func (p *Power) Interface() string { return "jumpstarter.dev/power" }
func (p *Power) Version() string   { return "1.0" }

func (p *Power) Methods() map[string]driver.MethodInfo {
	return map[string]driver.MethodInfo{
		"on":   {Tag: driver.TagUnary, Description: "turn power on", Unary: p.on_},
		"off":  {Tag: driver.TagUnary, Description: "turn power off", Unary: p.off},
		"read": {Tag: driver.TagServerStream, Description: "stream power readings", Stream: p.read},
	}
}

func (p *Power) on_(ctx context.Context, args []any) (any, error) {
	p.mu.Lock()
	p.on = true
	p.mu.Unlock()
	return "ok", nil
}

func (p *Power) off(ctx context.Context, args []any) (any, error) {
	p.mu.Lock()
	p.on = false
	p.mu.Unlock()
	return "ok", nil
}

// Reset forces the mock device off at the start of every lease, the same
// assumption the original driver makes: a fresh session never inherits the
// previous lease's power state.
func (p *Power) Reset(ctx context.Context) error {
	p.mu.Lock()
	p.on = false
	p.mu.Unlock()
	return nil
}

func (p *Power) read(ctx context.Context, args []any, yield func(any) error) error {
	readings := []PowerReading{
		{Voltage: 5.0, Current: 0.1},
		{Voltage: 5.0, Current: 0.2},
	}
	for _, r := range readings {
		if err := yield(map[string]any{"voltage": r.Voltage, "current": r.Current}); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	config.RegisterDriverFactory("mock-power", func(params map[string]interface{}, children map[string]driver.Driver) (driver.Driver, error) {
		if len(children) != 0 {
			return nil, fmt.Errorf("mock-power: does not accept children")
		}
		return NewPower(config.LabelsFromParams(params)), nil
	})
}
