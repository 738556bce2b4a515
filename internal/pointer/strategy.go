package pointer

import (
	"math"
	"strconv"
)

// Built-in strategy names.
const (
	StrategyDisk      = "disk"
	StrategySpotlight = "spotlight"
)

// Indicator is the visual element a device moves around. Style holds CSS
// properties; "display" controls visibility.
type Indicator struct {
	ID    string
	Style map[string]string
	X, Y  float64
}

// Visible reports whether the indicator is displayed.
func (i *Indicator) Visible() bool {
	return i.Style["display"] != "none"
}

func (i *Indicator) show() { i.Style["display"] = "block" }
func (i *Indicator) hide() { i.Style["display"] = "none" }

// Strategy renders a pointer kind.
type Strategy interface {
	// Create returns a hidden indicator for kind.
	Create(kind Kind) (*Indicator, error)
	// ApplyMove places ind at (x, y) in unscaled surface coordinates.
	ApplyMove(ind *Indicator, x, y float64) error
}

// px formats a length the way script string concatenation does.
func px(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}

type diskStrategy struct{}

const diskSize = 20

func (diskStrategy) Create(kind Kind) (*Indicator, error) {
	half := px(-math.Round(diskSize / 2))
	return &Indicator{ID: kind.ID, Style: map[string]string{
		"position":         "absolute",
		"width":            px(diskSize),
		"height":           px(diskSize),
		"margin-left":      half,
		"margin-top":       half,
		"border-radius":    "50%",
		"z-index":          "20",
		"display":          "none",
		"background-color": kind.Color,
	}}, nil
}

func (diskStrategy) ApplyMove(ind *Indicator, x, y float64) error {
	ind.Style["left"] = px(x)
	ind.Style["top"] = px(y)
	return nil
}

type spotlightStrategy struct{}

func spotlightBackground(at string) string {
	return "radial-gradient(circle" + at + ", rgba(255,255,255,0) 0%, rgba(0,0,0,1) 100%) no-repeat"
}

func (spotlightStrategy) Create(kind Kind) (*Indicator, error) {
	return &Indicator{ID: kind.ID, Style: map[string]string{
		"position":   "fixed",
		"width":      "100%",
		"height":     "100%",
		"left":       "0",
		"top":        "0",
		"z-index":    "20",
		"display":    "none",
		"background": spotlightBackground(""),
	}}, nil
}

func (spotlightStrategy) ApplyMove(ind *Indicator, x, y float64) error {
	ind.Style["background"] = spotlightBackground(" at " + px(x) + " " + px(y))
	return nil
}
