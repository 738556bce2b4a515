package pointer

import (
	"encoding/json"
	"fmt"

	"github.com/nupi-ai/notespointer/internal/protocol"
	"github.com/nupi-ai/notespointer/internal/rpc"
	"github.com/nupi-ai/notespointer/internal/window"
)

// Operation name prefixes exposed per kind, and the dispatcher name.
const (
	OpPoint  = "point"
	OpToggle = "toggle"
)

// Set holds one device per configured kind.
type Set struct {
	devices []*Device
	byID    map[string]*Device
}

// NewSet creates a device for every kind in reg, in registry order.
func NewSet(win *window.Window, reg *Registry, surface Surface, out Broadcaster) (*Set, error) {
	logger := win.Logger().With().Str("component", "pointer").Logger()
	s := &Set{byID: make(map[string]*Device)}
	for _, k := range reg.Kinds() {
		d, err := newDevice(win, k, reg.Strategy(k.ID), surface, out, logger)
		if err != nil {
			return nil, fmt.Errorf("pointer %s: %w", k.ID, err)
		}
		s.devices = append(s.devices, d)
		s.byID[k.ID] = d
	}
	return s, nil
}

// Devices returns the devices in registry order.
func (s *Set) Devices() []*Device {
	return append([]*Device(nil), s.devices...)
}

// Device looks up the device for kind id.
func (s *Set) Device(id string) (*Device, bool) {
	d, ok := s.byID[id]
	return d, ok
}

// Point routes a remote point to the device named by state.Pointer.
func (s *Set) Point(x, y float64, state protocol.PointState) error {
	d, ok := s.byID[state.Pointer]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPointer, state.Pointer)
	}
	return d.Apply(x, y, state)
}

// Register exposes point<id> and toggle<id> for every device, plus the
// point dispatcher. Remote points are applied without rebroadcast.
func (s *Set) Register(reg *rpc.Registry) {
	for _, d := range s.devices {
		reg.Register(OpPoint+d.kind.ID, pointMethod(pointOwn(d)))
		reg.Register(OpToggle+d.kind.ID, rpc.Action(d.Toggle))
	}
	reg.Register(OpPoint, pointMethod(s.Point))
}

// pointOwn applies a remote point to d, refusing state meant for another kind.
func pointOwn(d *Device) func(x, y float64, state protocol.PointState) error {
	return func(x, y float64, state protocol.PointState) error {
		if state.Pointer != d.kind.ID {
			return fmt.Errorf("%w: %q sent to %s", ErrPointerMismatch, state.Pointer, OpPoint+d.kind.ID)
		}
		return d.Apply(x, y, state)
	}
}

func pointMethod(apply func(x, y float64, state protocol.PointState) error) rpc.Method {
	return func(args []json.RawMessage) (any, error) {
		x, err := rpc.Arg[float64](args, 0)
		if err != nil {
			return nil, err
		}
		y, err := rpc.Arg[float64](args, 1)
		if err != nil {
			return nil, err
		}
		state, err := rpc.Arg[protocol.PointState](args, 2)
		if err != nil {
			return nil, err
		}
		return nil, apply(x, y, state)
	}
}
