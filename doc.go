// Package compositor implements a CPU layer compositor.
//
// # Overview
//
// A producer goroutine builds and mutates a tree of layers through Layer
// handles. Every mutation is recorded as an id-ordered action; nothing
// touches the live tree directly. The goroutine that owns the Host commits
// those actions, computes each layer's screen-space transform and opacity,
// splits dirty layer content into 64x64 tiles and rasterizes them on a
// worker pool. Finished tiles come back through a locked handoff and are
// composited onto an image surface.
//
// # Quick Start
//
//	host := compositor.New(client, compositor.WithViewportSize(geom.Sz(800, 600)))
//	defer host.Close()
//
//	root := host.NewLayer()
//	root.SetBounds(geom.Sz(800, 600))
//	root.SetDrawsContent(true)
//	root.SetContent(layer.SolidColor{Color: color.White})
//	host.SetRoot(root)
//
//	dst := image.NewRGBA(image.Rect(0, 0, 800, 600))
//	for frame := range frames {
//	    host.Frame(ctx, dst, dst.Bounds())
//	}
//
// # Goroutines
//
// Layer methods, BeginRecording and EndRecording may be called from any
// goroutine. Everything else on Host belongs to the owning goroutine.
// Client callbacks are invoked from raster workers and from the owning
// goroutine and must be safe for concurrent use.
//
// # Frame lifecycle
//
// Frame runs the four phases in order: PreDrawFrame commits recorded actions,
// consumes finished raster work and recomputes draw properties; RecordDraw
// turns invalid tiles into raster tasks; DrawToCanvas composites ready tiles;
// PostDrawFrame drains the tile-release queue. Hosts embedding the
// compositor in their own loop may call the phases individually.
//
// # Immediate mode
//
// PaintImmediate walks the tree and paints content straight into a
// layer.Canvas, bypassing tiles. GGCanvas adapts a fogleman/gg context.
package compositor
