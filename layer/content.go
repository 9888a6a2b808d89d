package layer

import (
	"image/color"

	"github.com/gogpu/compositor/geom"
)

// Canvas is the immediate-mode drawing surface the tree paints into.
//
// Save and Restore bracket a scope; the matrix, alpha and clip set inside a
// scope are discarded by the matching Restore. SetMatrix replaces the
// current layer-to-device transform rather than concatenating to it.
type Canvas interface {
	Save()
	Restore()
	SetMatrix(m geom.Matrix44)
	ClipRect(r geom.Rect)
	SetAlpha(a float64)
	FillRect(r geom.Rect, c color.Color)
}

// Content is the paint input of a node. Implementations must be immutable:
// a raster worker may call Paint while the owning goroutine installs a new
// Content on the node.
type Content interface {
	// Paint draws the content in layer space. bounds is the node's full
	// content rectangle.
	Paint(c Canvas, bounds geom.Rect)
}

// ContentFunc adapts a function to the Content interface.
type ContentFunc func(c Canvas, bounds geom.Rect)

// Paint calls f(c, bounds).
func (f ContentFunc) Paint(c Canvas, bounds geom.Rect) {
	f(c, bounds)
}

// SolidColor fills the whole bounds with one color.
type SolidColor struct {
	Color color.Color
}

// Paint fills bounds.
func (s SolidColor) Paint(c Canvas, bounds geom.Rect) {
	c.FillRect(bounds, s.Color)
}
