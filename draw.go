package compositor

import (
	"context"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/internal/parallel"
	"github.com/gogpu/compositor/layer"
)

// DrawToCanvas composites the ready tiles of every layer onto dst within
// clip, in paint order, using each layer's screen-space transform scaled by
// the device scale factor, and its accumulated opacity. Ancestors that mask
// to bounds clip their subtrees.
//
// The clip is split into horizontal bands composited in parallel. The tree
// is only read, so the owning goroutine must not mutate it until
// DrawToCanvas returns.
func (h *Host) DrawToCanvas(ctx context.Context, dst *image.RGBA, clip image.Rectangle) error {
	clip = clip.Intersect(dst.Bounds())
	if clip.Empty() {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, band := range splitBands(clip, h.opts.compositeBands) {
		g.Go(func() error {
			sub := dst.SubImage(band).(*image.RGBA)
			if !h.transparent && h.background != nil {
				draw.Draw(sub, band, image.NewUniform(h.background), image.Point{}, draw.Src)
			}
			if h.root == nil {
				return nil
			}
			return h.compositeNode(ctx, sub, h.root.node, band)
		})
	}
	return g.Wait()
}

// splitBands divides r into at most n horizontal bands of near-equal height.
func splitBands(r image.Rectangle, n int) []image.Rectangle {
	n = max(min(n, r.Dy()), 1)
	bands := make([]image.Rectangle, 0, n)
	y := r.Min.Y
	for i := range n {
		next := r.Min.Y + r.Dy()*(i+1)/n
		bands = append(bands, image.Rect(r.Min.X, y, r.Max.X, next))
		y = next
	}
	return bands
}

// compositeNode draws n and its subtree. clip is in device space and only
// ever shrinks on the way down.
func (h *Host) compositeNode(ctx context.Context, dst *image.RGBA, n *layer.Node, clip image.Rectangle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	props := n.DrawProperties()
	m := h.deviceMatrix().PreConcat(props.ScreenSpace)

	bounds := geom.RectFromSize(n.Bounds())
	if n.MasksToBounds() && !bounds.IsEmpty() {
		clip = clip.Intersect(m.MapRect(bounds).RoundOut())
	}
	if clip.Empty() {
		return nil
	}

	if n.DrawsContent() && props.Opacity > 0 {
		if cl := h.arena.get(n.ID()); cl != nil {
			target := dst.SubImage(clip).(*image.RGBA)
			cl.grid.ForEachReady(func(t *parallel.Tile) {
				drawTile(target, t, m, props.Opacity)
			})
		}
	}

	for _, child := range n.Children() {
		if err := h.compositeNode(ctx, dst, child, clip); err != nil {
			return err
		}
	}
	return nil
}

// drawTile composites one tile through the layer matrix m. Integer
// translations take the direct draw path; anything else is resampled.
func drawTile(dst *image.RGBA, t *parallel.Tile, m geom.Matrix44, opacity float64) {
	x, y, w, h := t.Bounds()
	tm := m.PreTranslate(float64(x), float64(y), 0)
	src := t.Image()

	var mask image.Image
	if opacity < 1 {
		mask = image.NewUniform(color.Alpha16{A: uint16(math.Round(opacity * 0xffff))})
	}

	if dx, dy, ok := integerTranslation(tm); ok {
		r := image.Rect(dx, dy, dx+w, dy+h)
		if mask == nil {
			draw.Draw(dst, r, src, image.Point{}, draw.Over)
		} else {
			draw.DrawMask(dst, r, src, image.Point{}, mask, image.Point{}, draw.Over)
		}
		return
	}

	draw.ApproxBiLinear.Transform(dst, f64.Aff3(tm.Affine()), src, src.Bounds(), draw.Over, &draw.Options{
		SrcMask: mask,
	})
}

func integerTranslation(m geom.Matrix44) (dx, dy int, ok bool) {
	if !m.IsTranslate() {
		return 0, 0, false
	}
	tx, ty := m.Get(0, 3), m.Get(1, 3)
	if tx != math.Trunc(tx) || ty != math.Trunc(ty) {
		return 0, 0, false
	}
	return int(tx), int(ty), true
}
