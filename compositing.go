package compositor

import (
	"image"
	"math"

	"github.com/gogpu/compositor/action"
	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/internal/parallel"
	"github.com/gogpu/compositor/layer"
)

// compositingLayer is the owning-goroutine side of a layer: the committed
// tree node plus the tiles backing its content.
type compositingLayer struct {
	node    *layer.Node
	grid    *parallel.TileGrid
	invalid *parallel.DirtyRegion
	shown   shownState
}

// shownState is how a layer was composited when it was last recorded.
type shownState struct {
	rect    image.Rectangle
	matrix  geom.Matrix44
	opacity float64
}

// contentSize returns the node bounds rounded up to whole pixels.
func (cl *compositingLayer) contentSize() (w, h int) {
	b := cl.node.Bounds()
	return int(math.Ceil(b.W)), int(math.Ceil(b.H))
}

// syncTiles folds the node's invalid region into the dirty-tile bitmap and
// keeps the grid sized to the bounds. Evicted tiles are queued for release.
// fullSync invalidates every tile.
func (cl *compositingLayer) syncTiles(h *Host, fullSync bool) {
	if !cl.node.DrawsContent() || cl.node.Content() == nil {
		cl.node.TakeInvalidRect()
		h.queueRelease(cl.grid.Resize(0, 0))
		cl.invalid = parallel.NewDirtyRegion(0, 0)
		return
	}

	w, ht := cl.contentSize()
	if w != cl.grid.Width() || ht != cl.grid.Height() {
		h.queueRelease(cl.grid.Resize(w, ht))
		cl.invalid = parallel.NewDirtyRegionForSize(w, ht)
		fullSync = true
	}

	r := cl.node.TakeInvalidRect()
	if fullSync {
		cl.invalid.MarkAll()
		return
	}
	cl.invalid.MarkRect(r.RoundOut())
}

// arena is the single id-keyed registry of compositing layers. It is the
// action.Target commits are applied to.
type arena struct {
	h     *Host
	nodes map[int]*compositingLayer
	num3D int
}

var _ action.Target = (*arena)(nil)

func newArena(h *Host) *arena {
	return &arena{h: h, nodes: make(map[int]*compositingLayer)}
}

func (a *arena) get(id int) *compositingLayer { return a.nodes[id] }

func (a *arena) Node(id int) *layer.Node {
	if cl := a.nodes[id]; cl != nil {
		return cl.node
	}
	return nil
}

func (a *arena) CreateNode(id int) *layer.Node {
	cl := &compositingLayer{
		node:    layer.NewNode(id),
		grid:    parallel.NewTileGrid(0, 0, a.h.tilePool),
		invalid: parallel.NewDirtyRegion(0, 0),
	}
	a.nodes[id] = cl
	return cl.node
}

// DestroyNode detaches the node and its children, closes its grid and
// releases the grid's queued tiles. Tiles still referenced by raster tasks
// are freed when those tasks hand their references back.
func (a *arena) DestroyNode(id int) bool {
	cl := a.nodes[id]
	if cl == nil {
		return false
	}
	delete(a.nodes, id)
	a.h.layerDamage = a.h.layerDamage.Union(cl.shown.rect)

	cl.node.RemoveAllChildren()
	cl.node.RemoveFromParent()
	if a.h.rootID == id {
		a.h.root = nil
		a.h.rootID = 0
	}

	a.h.queueRelease(cl.grid.Close())
	a.h.ReleaseTilesForGrid(cl.grid)
	return true
}

func (a *arena) Adjust3DNodes(delta int) {
	a.num3D += delta
	if a.num3D < 0 {
		panic("compositor: negative 3D layer count")
	}
}

// destroyAll tears down every compositing layer on host teardown.
func (a *arena) destroyAll() {
	for id, cl := range a.nodes {
		cl.node.RemoveAllChildren()
		a.h.queueRelease(cl.grid.Close())
		delete(a.nodes, id)
	}
	a.num3D = 0
}

// len returns the number of compositing layers.
func (a *arena) len() int { return len(a.nodes) }
