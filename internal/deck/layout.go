package deck

import (
	"math"

	"github.com/nupi-ai/notespointer/internal/geometry"
	"github.com/nupi-ai/notespointer/internal/pointer"
)

// Config describes the presentation's authored size and fit rules.
type Config struct {
	Width    float64 `yaml:"width"`
	Height   float64 `yaml:"height"`
	Margin   float64 `yaml:"margin"`
	MinScale float64 `yaml:"min_scale"`
	MaxScale float64 `yaml:"max_scale"`
	// UseZoom scales up with CSS zoom instead of a transform.
	UseZoom bool `yaml:"use_zoom"`
	// PostMessageEvents lets an embedded deck report to its parent.
	PostMessageEvents bool `yaml:"post_message_events"`
}

// DefaultConfig returns reveal.js's layout defaults.
func DefaultConfig() Config {
	return Config{
		Width:    960,
		Height:   700,
		Margin:   0.04,
		MinScale: 0.2,
		MaxScale: 2.0,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Width <= 0 {
		c.Width = def.Width
	}
	if c.Height <= 0 {
		c.Height = def.Height
	}
	if c.MinScale <= 0 {
		c.MinScale = def.MinScale
	}
	if c.MaxScale <= 0 {
		c.MaxScale = def.MaxScale
	}
	return c
}

// Config returns the deck configuration.
func (d *Deck) Config() Config { return d.cfg }

// Resize lays the presentation out for a viewport of vw x vh pixels.
func (d *Deck) Resize(vw, vh float64) {
	d.viewportW, d.viewportH = vw, vh

	availW := vw - vw*d.cfg.Margin
	availH := vh - vh*d.cfg.Margin
	scale := math.Min(availW/d.cfg.Width, availH/d.cfg.Height)
	scale = math.Max(scale, d.cfg.MinScale)
	scale = math.Min(scale, d.cfg.MaxScale)
	d.scale = scale
}

// Viewport returns the size passed to the last Resize.
func (d *Deck) Viewport() (float64, float64) {
	return d.viewportW, d.viewportH
}

// Scale returns the current fit scale.
func (d *Deck) Scale() float64 { return d.scale }

// Zoom returns the CSS zoom applied to the slides, or 0 when the deck is
// scaled with a transform.
func (d *Deck) Zoom() float64 {
	if d.cfg.UseZoom && d.scale > 1 {
		return d.scale
	}
	return 0
}

// Bounds returns the slides rectangle, centred in the viewport. Under zoom
// the origin is reported in zoomed units.
func (d *Deck) Bounds() geometry.Rect {
	w, h := d.cfg.Width*d.scale, d.cfg.Height*d.scale
	r := geometry.Rect{
		Left:   (d.viewportW - w) / 2,
		Top:    (d.viewportH - h) / 2,
		Width:  w,
		Height: h,
	}
	if z := d.Zoom(); z != 0 {
		r.Left /= z
		r.Top /= z
	}
	return r
}

// Attach adds an indicator on top of the slides.
func (d *Deck) Attach(ind *pointer.Indicator) {
	d.overlays = append(d.overlays, ind)
}

// Overlays returns the attached indicators.
func (d *Deck) Overlays() []*pointer.Indicator {
	return append([]*pointer.Indicator(nil), d.overlays...)
}
