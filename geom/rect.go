package geom

import (
	"image"
	"math"
)

// Rect is an axis-aligned rectangle with origin (X, Y) and extent (W, H).
type Rect struct {
	X, Y, W, H float64
}

// RectFromSize returns the rectangle at the origin with the given size.
func RectFromSize(s Size) Rect {
	return Rect{W: s.W, H: s.H}
}

// IsEmpty reports whether the rectangle covers no area.
func (r Rect) IsEmpty() bool {
	return r.W <= 0 || r.H <= 0
}

// MaxX returns the right edge.
func (r Rect) MaxX() float64 { return r.X + r.W }

// MaxY returns the bottom edge.
func (r Rect) MaxY() float64 { return r.Y + r.H }

// Offset returns the rectangle moved by d.
func (r Rect) Offset(d Point) Rect {
	return Rect{X: r.X + d.X, Y: r.Y + d.Y, W: r.W, H: r.H}
}

// Intersect returns the intersection of r and s. The result is the zero
// Rect if they do not overlap.
func (r Rect) Intersect(s Rect) Rect {
	x1 := math.Max(r.X, s.X)
	y1 := math.Max(r.Y, s.Y)
	x2 := math.Min(r.MaxX(), s.MaxX())
	y2 := math.Min(r.MaxY(), s.MaxY())
	if x1 >= x2 || y1 >= y2 {
		return Rect{}
	}
	return Rect{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// Union returns the smallest rectangle containing r and s.
// Empty rectangles are ignored.
func (r Rect) Union(s Rect) Rect {
	if r.IsEmpty() {
		return s
	}
	if s.IsEmpty() {
		return r
	}
	x1 := math.Min(r.X, s.X)
	y1 := math.Min(r.Y, s.Y)
	x2 := math.Max(r.MaxX(), s.MaxX())
	y2 := math.Max(r.MaxY(), s.MaxY())
	return Rect{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// Contains reports whether the point lies inside the rectangle.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.MaxX() && p.Y >= r.Y && p.Y < r.MaxY()
}

// RoundOut returns the smallest integer rectangle containing r.
func (r Rect) RoundOut() image.Rectangle {
	if r.IsEmpty() {
		return image.Rectangle{}
	}
	return image.Rect(
		int(math.Floor(r.X)), int(math.Floor(r.Y)),
		int(math.Ceil(r.MaxX())), int(math.Ceil(r.MaxY())),
	)
}

// FromImageRect converts an integer rectangle.
func FromImageRect(r image.Rectangle) Rect {
	return Rect{
		X: float64(r.Min.X),
		Y: float64(r.Min.Y),
		W: float64(r.Dx()),
		H: float64(r.Dy()),
	}
}
