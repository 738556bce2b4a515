// Package geometry converts viewport input positions into the unscaled
// coordinate space of a presentation surface.
package geometry

// Point is a position in pixels.
type Point struct {
	X, Y float64
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Div divides both coordinates by s.
func (p Point) Div(s float64) Point {
	return Point{X: p.X / s, Y: p.Y / s}
}

// Rect is a bounding rectangle in viewport pixels.
type Rect struct {
	Left, Top     float64
	Width, Height float64
}

// Origin returns the top-left corner of r.
func (r Rect) Origin() Point {
	return Point{X: r.Left, Y: r.Top}
}

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Left && p.X < r.Left+r.Width &&
		p.Y >= r.Top && p.Y < r.Top+r.Height
}

// ZoomedOrigin returns the origin of a surface that is scaled with CSS zoom
// rather than a transform. The bounding rectangle of a zoomed element is
// reported in zoomed units, so its origin has to be multiplied back. A zoom
// of 0 or 1 means no zoom is applied.
func ZoomedOrigin(surface Rect, zoom float64) Point {
	o := surface.Origin()
	if zoom == 0 || zoom == 1 {
		return o
	}
	return Point{X: o.X * zoom, Y: o.Y * zoom}
}

// ToSurface maps a raw viewport position onto the surface's unscaled
// coordinate space: (raw - origin) / scale. scale must be non-zero.
func ToSurface(raw, origin Point, scale float64) Point {
	return raw.Sub(origin).Div(scale)
}

// FromSurface is the inverse of ToSurface.
func FromSurface(p, origin Point, scale float64) Point {
	return Point{X: p.X*scale + origin.X, Y: p.Y*scale + origin.Y}
}
