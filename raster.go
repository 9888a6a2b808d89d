package compositor

import (
	"cmp"
	"image"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fogleman/gg"

	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/internal/parallel"
	"github.com/gogpu/compositor/layer"
)

// RasteredTile is a tile a raster task finished painting. The tile carries
// the task's reference.
type RasteredTile struct {
	Layer int
	Tile  *parallel.Tile
}

// DirtyLayerGroup is the result of one frame's raster work, handed to the
// owning goroutine through RequestFrame.
type DirtyLayerGroup struct {
	DrawingIndex int64
	Tiles        []RasteredTile
}

// rasterTask paints one tile from an immutable snapshot of the layer's
// paint inputs taken at record time.
type rasterTask struct {
	layer   int
	tile    *parallel.Tile
	content layer.Content
	bounds  geom.Rect
}

// RasterTaskGroup collects the raster tasks of one frame. The last task to
// finish reports the group to the host through RequestFrame.
type RasterTaskGroup struct {
	host  *Host
	index int64
	tasks []rasterTask

	remaining atomic.Int32

	mu        sync.Mutex
	ready     []RasteredTile
	toRelease []*parallel.Tile
}

// Index returns the drawing index the group was opened for.
func (g *RasterTaskGroup) Index() int64 { return g.index }

// Len returns the number of recorded tasks not yet submitted.
func (g *RasterTaskGroup) Len() int { return len(g.tasks) }

// BeginFrame allocates the frame's drawing index, registers it as awaited
// and opens a raster task group for it.
func (h *Host) BeginFrame() *RasterTaskGroup {
	h.drawingIndex = h.CreateDrawingIndex()
	h.AddRasteringIndex(h.drawingIndex)
	return &RasterTaskGroup{host: h, index: h.drawingIndex}
}

// recordChildren walks the tree with the paint pruning rule and adds a
// raster task for every invalid tile of every visited layer that draws
// content. Visited layers have their dirty flags cleared.
func (h *Host) recordChildren(g *RasterTaskGroup) {
	if h.root == nil {
		return
	}
	fullSync := h.needsFullSync
	h.recordNode(g, h.root.node, fullSync, false, unclipped)
	h.needsFullSync = false
}

// recordNode visits n under the pruning rule. clip is the device-space clip
// of n's ancestors. The first dirty node on a path has its whole subtree
// checked for geometry damage; tracked marks the nodes below it.
func (h *Host) recordNode(g *RasterTaskGroup, n *layer.Node, fullSync, tracked bool, clip image.Rectangle) {
	if n.Dirty() || fullSync {
		if !tracked {
			h.trackSubtree(n, clip)
			tracked = true
		}
		if cl := h.arena.get(n.ID()); cl != nil {
			cl.syncTiles(h, fullSync)
			h.recordTiles(g, cl)
		}
	}
	n.ClearDirty()

	clip = h.childClip(n, clip)
	for _, child := range n.Children() {
		if !(child.Dirty() || child.ChildrenDirty() || fullSync) {
			continue
		}
		h.recordNode(g, child, fullSync, tracked, clip)
	}
	n.ClearChildrenDirty()
}

func (h *Host) recordTiles(g *RasterTaskGroup, cl *compositingLayer) {
	content := cl.node.Content()
	if !cl.node.DrawsContent() || content == nil {
		return
	}
	bounds := geom.RectFromSize(cl.node.Bounds())
	for _, p := range cl.invalid.GetAndClear() {
		tile, superseded := cl.grid.Request(p.X, p.Y, g.index)
		if tile == nil {
			continue
		}
		if superseded != nil {
			h.queueRelease([]*parallel.Tile{superseded})
		}
		tile.Ref()
		g.tasks = append(g.tasks, rasterTask{
			layer:   cl.node.ID(),
			tile:    tile,
			content: content,
			bounds:  bounds,
		})
	}
}

// EndFrame hands the group's tasks to the raster pool and returns without
// waiting. A group without tasks is reported immediately so the awaited
// index does not stall later frames.
func (h *Host) EndFrame(g *RasterTaskGroup) {
	framesRecordedTotal.Inc()
	if len(g.tasks) == 0 {
		h.RequestFrame(DirtyLayerGroup{DrawingIndex: g.index}, nil)
		return
	}
	Logger().Debug("compositor: raster tasks recorded", "index", g.index, "tiles", len(g.tasks))

	g.remaining.Store(int32(len(g.tasks)))
	rasterTasksTotal.Add(float64(len(g.tasks)))
	for _, t := range g.tasks {
		h.pool.Submit(func() { g.run(t) })
	}
	g.tasks = nil
}

func (g *RasterTaskGroup) run(t rasterTask) {
	defer g.done()

	if !t.tile.BeginRaster() {
		g.release(t.tile)
		return
	}
	start := time.Now()
	paintTile(t.tile, t.content, t.bounds)
	rasterTaskDuration.Observe(time.Since(start).Seconds())

	if !t.tile.FinishRaster() {
		g.release(t.tile)
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ready = append(g.ready, RasteredTile{Layer: t.layer, Tile: t.tile})
}

func (g *RasterTaskGroup) release(t *parallel.Tile) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.toRelease = append(g.toRelease, t)
}

func (g *RasterTaskGroup) done() {
	if g.remaining.Add(-1) != 0 {
		return
	}
	g.mu.Lock()
	ready, release := g.ready, g.toRelease
	g.ready, g.toRelease = nil, nil
	g.mu.Unlock()
	g.host.RequestFrame(DirtyLayerGroup{DrawingIndex: g.index, Tiles: ready}, release)
}

// paintTile rasterizes the part of content covered by tile.
func paintTile(tile *parallel.Tile, content layer.Content, bounds geom.Rect) {
	x, y, _, _ := tile.Bounds()
	c := NewGGCanvas(gg.NewContextForRGBA(tile.Image()), geom.Translation(-float64(x), -float64(y), 0))
	c.Save()
	c.ClipRect(bounds)
	content.Paint(c, bounds)
	c.Restore()
}

// RequestFrame is the raster-to-owner handoff. Under the notification lock
// it appends the dirty-layer group and merges release into the release
// queue, then asks the client for a frame.
func (h *Host) RequestFrame(dirty DirtyLayerGroup, release []*parallel.Tile) {
	h.pushRasterResult(dirty, release)
	if len(dirty.Tiles) > 0 || len(release) > 0 {
		h.client.ScheduleAnimation()
	}
}

func (h *Host) pushRasterResult(dirty DirtyLayerGroup, release []*parallel.Tile) {
	h.rasterNotifMu.Lock()
	defer h.rasterNotifMu.Unlock()
	h.dirtyGroups = append(h.dirtyGroups, dirty)
	h.releaseQueue = append(h.releaseQueue, release...)
	releaseQueueLength.Set(float64(len(h.releaseQueue)))
}

// queueRelease adds tiles whose references are handed to the release queue.
func (h *Host) queueRelease(tiles []*parallel.Tile) {
	if len(tiles) == 0 {
		return
	}
	h.rasterNotifMu.Lock()
	defer h.rasterNotifMu.Unlock()
	h.releaseQueue = append(h.releaseQueue, tiles...)
	releaseQueueLength.Set(float64(len(h.releaseQueue)))
}

// takeDirtyGroups removes the received dirty-layer groups, sorted by
// drawing index.
func (h *Host) takeDirtyGroups() []DirtyLayerGroup {
	groups := h.swapDirtyGroups()
	slices.SortStableFunc(groups, byDrawingIndex)
	return groups
}

func byDrawingIndex(a, b DirtyLayerGroup) int {
	return cmp.Compare(a.DrawingIndex, b.DrawingIndex)
}

func (h *Host) swapDirtyGroups() []DirtyLayerGroup {
	h.rasterNotifMu.Lock()
	defer h.rasterNotifMu.Unlock()
	g := h.dirtyGroups
	h.dirtyGroups = nil
	return g
}

// applyRasterResults consumes finished raster work in awaited drawing-index
// order. Groups that arrive ahead of an older outstanding frame wait until
// that frame's group arrives. Ready tiles are promoted into their grids and
// the changed device-space area is reported to the client. It returns the
// drawing indices consumed.
func (h *Host) applyRasterResults() []int64 {
	h.arrived = append(h.arrived, h.takeDirtyGroups()...)
	slices.SortStableFunc(h.arrived, byDrawingIndex)

	var consumed []int64
	var damage image.Rectangle
	for len(h.arrived) > 0 {
		front, ok := h.frontRasteringIndex()
		if !ok {
			break
		}
		i := slices.IndexFunc(h.arrived, func(g DirtyLayerGroup) bool { return g.DrawingIndex == front })
		if i < 0 {
			break
		}
		g := h.arrived[i]
		h.arrived = slices.Delete(h.arrived, i, i+1)
		h.PopRasteringIndex()

		damage = damage.Union(h.consumeGroup(g))
		consumed = append(consumed, g.DrawingIndex)
	}

	if !damage.Empty() {
		h.client.DidInvalidateRect(damage)
	}
	return consumed
}

func (h *Host) consumeGroup(g DirtyLayerGroup) image.Rectangle {
	var damage image.Rectangle
	var release []*parallel.Tile
	for _, rt := range g.Tiles {
		cl := h.arena.get(rt.Layer)
		if cl == nil {
			release = append(release, rt.Tile)
			continue
		}
		old, ok := cl.grid.Promote(rt.Tile)
		if !ok {
			release = append(release, rt.Tile)
			continue
		}
		if old != nil {
			release = append(release, old)
		}
		// The grid holds its own reference, so this never frees the tile.
		rt.Tile.Unref()

		screen := h.deviceMatrix().PreConcat(cl.node.DrawProperties().ScreenSpace)
		damage = damage.Union(screen.MapRect(geom.FromImageRect(rt.Tile.Rect())).RoundOut())
	}
	h.queueRelease(release)
	return damage
}

// releaseArrived hands every unconsumed raster result back for release.
func (h *Host) releaseArrived() {
	h.arrived = append(h.arrived, h.takeDirtyGroups()...)
	var release []*parallel.Tile
	for _, g := range h.arrived {
		for _, rt := range g.Tiles {
			release = append(release, rt.Tile)
		}
	}
	h.arrived = nil
	h.queueRelease(release)
}

// DrainReleaseQueue drops the reference of every queued tile. The queue is
// swapped out under the lock; references are dropped outside it. It returns
// the number of references dropped.
func (h *Host) DrainReleaseQueue() int {
	tiles := h.swapReleaseQueue()
	for _, t := range tiles {
		t.Unref()
	}
	if len(tiles) > 0 {
		tilesReleasedTotal.WithLabelValues(releaseDrain).Add(float64(len(tiles)))
		Logger().Debug("compositor: release queue drained", "tiles", len(tiles))
	}
	return len(tiles)
}

func (h *Host) swapReleaseQueue() []*parallel.Tile {
	h.rasterNotifMu.Lock()
	defer h.rasterNotifMu.Unlock()
	q := h.releaseQueue
	h.releaseQueue = nil
	releaseQueueLength.Set(0)
	return q
}

// ReleaseTilesForGrid drops the reference of exactly the queued tiles that
// belong to grid and leaves the others queued. It returns the number of
// references dropped.
func (h *Host) ReleaseTilesForGrid(grid *parallel.TileGrid) int {
	tiles := h.takeGridTiles(grid)
	for _, t := range tiles {
		t.Unref()
	}
	if len(tiles) > 0 {
		tilesReleasedTotal.WithLabelValues(releaseGrid).Add(float64(len(tiles)))
	}
	return len(tiles)
}

func (h *Host) takeGridTiles(grid *parallel.TileGrid) []*parallel.Tile {
	h.rasterNotifMu.Lock()
	defer h.rasterNotifMu.Unlock()
	var taken []*parallel.Tile
	keep := h.releaseQueue[:0]
	for _, t := range h.releaseQueue {
		if t.IsSameGrid(grid) {
			taken = append(taken, t)
		} else {
			keep = append(keep, t)
		}
	}
	clear(h.releaseQueue[len(keep):])
	h.releaseQueue = keep
	releaseQueueLength.Set(float64(len(keep)))
	return taken
}

// ReleaseQueueLen returns the number of queued tile references.
func (h *Host) ReleaseQueueLen() int {
	h.rasterNotifMu.Lock()
	defer h.rasterNotifMu.Unlock()
	return len(h.releaseQueue)
}

// unclipped is the clip of the root: nothing is cut away.
var unclipped = image.Rect(math.MinInt32, math.MinInt32, math.MaxInt32, math.MaxInt32)

// trackSubtree compares where each layer under n is composited now with
// where it was last composited, and adds any change to the layer damage.
func (h *Host) trackSubtree(n *layer.Node, clip image.Rectangle) {
	if cl := h.arena.get(n.ID()); cl != nil {
		if next := h.shownStateOf(n, clip); next != cl.shown {
			h.layerDamage = h.layerDamage.Union(cl.shown.rect).Union(next.rect)
			cl.shown = next
		}
	}
	clip = h.childClip(n, clip)
	for _, child := range n.Children() {
		h.trackSubtree(child, clip)
	}
}

// shownStateOf returns how n is composited under clip. Layers that draw
// nothing have the zero state.
func (h *Host) shownStateOf(n *layer.Node, clip image.Rectangle) shownState {
	props := n.DrawProperties()
	if !n.DrawsContent() || n.Content() == nil || props.Opacity <= 0 {
		return shownState{}
	}
	m := h.deviceMatrix().PreConcat(props.ScreenSpace)
	r := m.MapRect(geom.RectFromSize(n.Bounds())).RoundOut().Intersect(clip)
	if r.Empty() {
		return shownState{}
	}
	return shownState{rect: r, matrix: m, opacity: props.Opacity}
}

// childClip narrows clip by n's bounds when n masks to them.
func (h *Host) childClip(n *layer.Node, clip image.Rectangle) image.Rectangle {
	bounds := geom.RectFromSize(n.Bounds())
	if !n.MasksToBounds() || bounds.IsEmpty() {
		return clip
	}
	m := h.deviceMatrix().PreConcat(n.DrawProperties().ScreenSpace)
	return clip.Intersect(m.MapRect(bounds).RoundOut())
}

// reportLayerDamage reports the geometry damage gathered while recording.
// After a structural change, layers no longer reachable from the root give
// up the area they were shown in.
func (h *Host) reportLayerDamage() {
	if h.structureChanged {
		h.structureChanged = false
		for _, cl := range h.arena.nodes {
			if cl.shown.rect.Empty() || h.attached(cl.node) {
				continue
			}
			h.layerDamage = h.layerDamage.Union(cl.shown.rect)
			cl.shown = shownState{}
		}
	}
	if damage := h.layerDamage; !damage.Empty() {
		h.layerDamage = image.Rectangle{}
		h.client.DidInvalidateRect(damage)
	}
}

// attached reports whether n is in the tree under the root.
func (h *Host) attached(n *layer.Node) bool {
	if h.root == nil {
		return false
	}
	for ; n != nil; n = n.Parent() {
		if n == h.root.node {
			return true
		}
	}
	return false
}

// deviceMatrix maps root space to output pixels.
func (h *Host) deviceMatrix() geom.Matrix44 {
	return geom.Scaling(h.deviceScale, h.deviceScale, 1)
}
