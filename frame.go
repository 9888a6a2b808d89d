package compositor

import (
	"context"
	"image"

	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/layer"
)

// PreDrawFrame prepares the tree for a frame: it drains the release queue,
// applies every completed burst of actions, recomputes draw properties and
// consumes finished raster work. Tile damage is mapped with the new draw
// properties.
func (h *Host) PreDrawFrame() {
	h.DrainReleaseQueue()
	h.commitCompleted()
	if h.root != nil {
		layer.ComputeDrawProperties(h.root.node, h.Has3DNodes())
	}
	h.applyRasterResults()
}

// RecordDraw records raster tasks for every invalid tile and hands them to
// the raster pool. The area covered by layers that moved, changed opacity,
// or left the tree is reported through DidInvalidateRect right away, since
// compositing already draws them with their new geometry. Invisible hosts
// record nothing.
func (h *Host) RecordDraw() {
	if !h.visible || h.destroying.Load() {
		return
	}
	g := h.BeginFrame()
	h.recordChildren(g)
	h.EndFrame(g)
	h.reportLayerDamage()
}

// PostDrawFrame drains the release queue after compositing.
func (h *Host) PostDrawFrame() {
	h.DrainReleaseQueue()
}

// Frame runs one full frame and composites the result into dst.
func (h *Host) Frame(ctx context.Context, dst *image.RGBA, clip image.Rectangle) error {
	h.PreDrawFrame()
	h.RecordDraw()
	err := h.DrawToCanvas(ctx, dst, clip)
	h.PostDrawFrame()
	return err
}

// PaintImmediate commits pending actions, recomputes draw properties and
// paints the tree straight into c, bypassing tiles. clip is in root space.
// Only dirty layers are painted unless fullSync is set or a full tree sync
// is pending. The traversal consumes the dirty flags, so a host uses either
// this path or the tiled one.
func (h *Host) PaintImmediate(c layer.Canvas, clip geom.Rect, fullSync bool) {
	h.commitCompleted()
	if h.root == nil {
		return
	}
	layer.ComputeDrawProperties(h.root.node, h.Has3DNodes())
	layer.Paint(h.root.node, c, clip, fullSync || h.needsFullSync)
	h.needsFullSync = false
}
