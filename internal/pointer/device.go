package pointer

import (
	"github.com/nupi-ai/notespointer/internal/geometry"
	"github.com/nupi-ai/notespointer/internal/protocol"
	"github.com/nupi-ai/notespointer/internal/window"
	"github.com/rs/zerolog"
)

// Surface is the presentation area pointers are drawn on.
type Surface interface {
	// Bounds is the surface rectangle in viewport pixels.
	Bounds() geometry.Rect
	// Zoom is the CSS zoom applied to the surface, 0 when none.
	Zoom() float64
	// Scale is the presentation's fit scale factor.
	Scale() float64
}

// Broadcaster delivers point updates to whichever remote window listens.
type Broadcaster interface {
	Broadcast(p protocol.Point)
}

// Device is the runtime instance of one pointer kind. All methods must run
// on the owning window's loop.
type Device struct {
	kind      Kind
	strategy  Strategy
	indicator *Indicator
	win       *window.Window
	surface   Surface
	out       Broadcaster
	logger    zerolog.Logger

	pointing bool
	untrack  func()
}

func newDevice(win *window.Window, kind Kind, strategy Strategy, surface Surface, out Broadcaster, logger zerolog.Logger) (*Device, error) {
	ind, err := strategy.Create(kind)
	if err != nil {
		return nil, err
	}
	ind.hide()
	return &Device{
		kind:      kind,
		strategy:  strategy,
		indicator: ind,
		win:       win,
		surface:   surface,
		out:       out,
		logger:    logger.With().Str("pointer", kind.ID).Logger(),
	}, nil
}

// Kind returns the device's kind.
func (d *Device) Kind() Kind { return d.kind }

// Indicator returns the device's visual indicator.
func (d *Device) Indicator() *Indicator { return d.indicator }

// Pointing reports whether the device is active.
func (d *Device) Pointing() bool { return d.pointing }

// Tracking reports whether the device listens to mouse movement.
func (d *Device) Tracking() bool { return d.untrack != nil }

// On shows the indicator, hides the cursor and starts tracking.
func (d *Device) On() {
	d.indicator.show()
	d.win.SetCursor(window.CursorNone)
	if d.untrack == nil {
		d.untrack = d.win.AddEventListener(window.EventMouseMove, d.track)
	}
	d.pointing = true
}

// Off hides the indicator, restores the cursor, stops tracking and tells
// remote observers the pointer is gone.
func (d *Device) Off() {
	d.indicator.hide()
	d.win.SetCursor(window.CursorAuto)
	if d.untrack != nil {
		d.untrack()
		d.untrack = nil
	}
	d.pointing = false
	d.broadcast(0, 0, protocol.PointState{Pointer: d.kind.ID, Active: false})
}

// Toggle flips between On and Off.
func (d *Device) Toggle() {
	if d.pointing {
		d.Off()
	} else {
		d.On()
	}
}

// Apply places the indicator for a point that originated elsewhere. It
// never broadcasts.
func (d *Device) Apply(x, y float64, state protocol.PointState) error {
	if state.Active {
		d.indicator.show()
	} else {
		d.indicator.hide()
	}
	if err := d.strategy.ApplyMove(d.indicator, x, y); err != nil {
		return err
	}
	d.indicator.X, d.indicator.Y = x, y
	return nil
}

// applyAndBroadcast is the only path that emits points for local input.
func (d *Device) applyAndBroadcast(x, y float64, state protocol.PointState) {
	if err := d.Apply(x, y, state); err != nil {
		d.logger.Error().Err(err).Msg("apply pointer move")
		return
	}
	d.broadcast(x, y, state)
}

func (d *Device) broadcast(x, y float64, state protocol.PointState) {
	if d.out == nil {
		return
	}
	d.out.Broadcast(protocol.Point{X: x, Y: y, State: state})
}

func (d *Device) track(ev window.Event) {
	mv, ok := ev.(window.MouseEvent)
	if !ok || !d.pointing {
		return
	}
	origin := geometry.ZoomedOrigin(d.surface.Bounds(), d.surface.Zoom())
	p := geometry.ToSurface(geometry.Point{X: mv.ClientX, Y: mv.ClientY}, origin, d.surface.Scale())
	d.applyAndBroadcast(p.X, p.Y, protocol.PointState{Pointer: d.kind.ID, Active: true})
}
