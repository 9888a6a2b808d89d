package compositor

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"

	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/layer"
)

// GGCanvas implements layer.Canvas on top of a fogleman/gg context.
//
// The gg context stays at its identity transform; GGCanvas keeps its own
// 4x4 matrix and maps every rectangle to a device-space polygon before
// handing it to gg, so perspective transforms draw correctly. Save and
// Restore pair with gg's Push and Pop, which also scope the clip mask.
type GGCanvas struct {
	dc    *gg.Context
	base  geom.Matrix44
	state canvasState
	stack []canvasState
}

type canvasState struct {
	matrix geom.Matrix44
	alpha  float64
}

var _ layer.Canvas = (*GGCanvas)(nil)

// NewGGCanvas wraps dc. base is applied before every matrix set with
// SetMatrix; pass geom.Identity44() for none.
func NewGGCanvas(dc *gg.Context, base geom.Matrix44) *GGCanvas {
	dc.Identity()
	return &GGCanvas{
		dc:    dc,
		base:  base,
		state: canvasState{matrix: base, alpha: 1},
	}
}

// NewImageCanvas returns a GGCanvas drawing into dst.
func NewImageCanvas(dst *image.RGBA) *GGCanvas {
	return NewGGCanvas(gg.NewContextForRGBA(dst), geom.Identity44())
}

// Context returns the wrapped gg context.
func (c *GGCanvas) Context() *gg.Context { return c.dc }

// Save pushes the matrix, alpha and clip.
func (c *GGCanvas) Save() {
	c.stack = append(c.stack, c.state)
	c.dc.Push()
}

// Restore pops the state pushed by the matching Save.
func (c *GGCanvas) Restore() {
	if len(c.stack) == 0 {
		panic("compositor: GGCanvas.Restore without Save")
	}
	c.state = c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	c.dc.Pop()
}

// SetMatrix replaces the layer-to-device transform.
func (c *GGCanvas) SetMatrix(m geom.Matrix44) {
	c.state.matrix = c.base.Multiply(m)
}

// SetAlpha sets the opacity applied to subsequent fills.
func (c *GGCanvas) SetAlpha(a float64) {
	c.state.alpha = min(max(a, 0), 1)
}

// ClipRect intersects the clip with r in the current layer space.
func (c *GGCanvas) ClipRect(r geom.Rect) {
	c.quad(r)
	c.dc.Clip()
}

// FillRect fills r in the current layer space.
func (c *GGCanvas) FillRect(r geom.Rect, col color.Color) {
	if r.IsEmpty() || c.state.alpha == 0 {
		return
	}
	n := color.NRGBAModel.Convert(col).(color.NRGBA)
	c.dc.SetRGBA(
		float64(n.R)/255,
		float64(n.G)/255,
		float64(n.B)/255,
		float64(n.A)/255*c.state.alpha,
	)
	c.quad(r)
	c.dc.Fill()
}

// quad traces r mapped through the current matrix as the gg path.
func (c *GGCanvas) quad(r geom.Rect) {
	m := c.state.matrix
	c.dc.ClearPath()
	c.dc.MoveTo(pt(m.MapPoint(geom.Pt(r.X, r.Y))))
	c.dc.LineTo(pt(m.MapPoint(geom.Pt(r.MaxX(), r.Y))))
	c.dc.LineTo(pt(m.MapPoint(geom.Pt(r.MaxX(), r.MaxY()))))
	c.dc.LineTo(pt(m.MapPoint(geom.Pt(r.X, r.MaxY()))))
	c.dc.ClosePath()
}

func pt(p geom.Point) (float64, float64) { return p.X, p.Y }
