package compositor

import (
	"image"
	"image/color"
	"sync"
	"sync/atomic"

	"github.com/gogpu/compositor/action"
	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/internal/parallel"
	"github.com/gogpu/compositor/layer"
)

// Client receives the host's two scheduling notifications. Both may be
// called from raster workers and must be safe for concurrent use.
type Client interface {
	// ScheduleAnimation asks for another frame to be run soon.
	ScheduleAnimation()

	// DidInvalidateRect reports a device-space region whose pixels changed.
	DidInvalidateRect(r image.Rectangle)
}

// RasterPool executes raster tasks. parallel.WorkerPool implements it.
type RasterPool interface {
	Submit(fn func())
	PendingTasks() int
}

// canDrawScale is how far beyond the viewport a layer may extend and still
// be drawn.
const canDrawScale = 1.2

// Host owns the layer tree, the action log, the tile-release queue and the
// frame sequencing that ties them together.
//
// Thread safety: Layer handles, BeginRecording and EndRecording are safe for
// concurrent use. RequestFrame, DrainReleaseQueue, ReleaseTilesForGrid and
// the rastering-index queue methods are guarded by their own locks. All
// other methods belong to the owning goroutine.
type Host struct {
	client   Client
	pool     RasterPool
	ownPool  *parallel.WorkerPool
	tilePool *parallel.TilePool
	opts     hostOptions

	actions *action.FrameGroup

	// Producer-side registry of live layer handles.
	layersMu    sync.Mutex
	layers      map[int]*Layer
	nextLayerID atomic.Int64

	// Owning goroutine state.
	arena              *arena
	root               *compositingLayer
	rootID             int
	needsFullSync      bool
	drawingIndex       int64
	newestDrawingIndex int64
	arrived            []DirtyLayerGroup
	visible            bool
	viewport           geom.Size
	deviceScale        float64
	background         color.Color
	transparent        bool
	pageScale          float64
	minPageScale       float64
	maxPageScale       float64

	// Device-space damage from geometry changes, reported after recording.
	layerDamage      image.Rectangle
	structureChanged bool

	destroying atomic.Bool

	// tilesMu guards the rastering-index queue.
	tilesMu          sync.Mutex
	rasteringIndices []int64

	// rasterNotifMu guards the cross-goroutine frame handoff.
	rasterNotifMu sync.Mutex
	dirtyGroups   []DirtyLayerGroup
	releaseQueue  []*parallel.Tile
}

// New creates a host. client may be nil when nobody listens for scheduling
// notifications.
func New(client Client, opts ...HostOption) *Host {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if client == nil {
		client = nopClient{}
	}

	h := &Host{
		client:       client,
		tilePool:     parallel.NewTilePool(),
		opts:         o,
		actions:      action.NewFrameGroup(),
		layers:       make(map[int]*Layer),
		drawingIndex: 1,
		visible:      true,
		viewport:     o.viewport,
		deviceScale:  o.deviceScale,
		background:   o.background,
		transparent:  o.transparent,
		pageScale:    1,
		minPageScale: 1,
		maxPageScale: 1,
	}
	h.arena = newArena(h)

	if o.pool != nil {
		h.pool = o.pool
	} else {
		h.ownPool = parallel.NewWorkerPool(o.workers)
		h.pool = h.ownPool
	}

	Logger().Debug("compositor: host created", "workers", o.workers, "injected_pool", o.pool != nil)
	return h
}

type nopClient struct{}

func (nopClient) ScheduleAnimation()                {}
func (nopClient) DidInvalidateRect(image.Rectangle) {}

// BeginRecording opens a burst of layer mutations. It panics if a burst is
// already open.
func (h *Host) BeginRecording() { h.actions.BeginRecording() }

// EndRecording closes the open burst and schedules a frame to commit it.
func (h *Host) EndRecording() {
	h.actions.EndRecording()
	h.client.ScheduleAnimation()
}

// record appends the action built by mk with a freshly allocated id. An
// action recorded outside a burst is complete at once, so a frame is
// scheduled to commit it.
func (h *Host) record(mk func(id int64) action.Action) {
	if _, inBurst := h.actions.RecordFunc(mk); !inBurst {
		h.client.ScheduleAnimation()
	}
}

// PendingActions returns the number of recorded actions not yet committed.
func (h *Host) PendingActions() int { return h.actions.Pending() }

// Commit applies recorded actions to the tree. Without forceFlushAll it
// drains the oldest completed burst; with it every recorded action,
// including those of a burst still open, is applied.
func (h *Host) Commit(forceFlushAll bool) action.Result {
	res := h.actions.Commit(h.arena, forceFlushAll)
	h.observeCommit(res, forceFlushAll)
	return res
}

// commitCompleted applies every completed burst as one id-ordered batch.
// A burst the producer still has open is left for a later frame.
func (h *Host) commitCompleted() action.Result {
	res := h.actions.CommitCompleted(h.arena)
	h.observeCommit(res, false)
	return res
}

func (h *Host) observeCommit(res action.Result, force bool) {
	if res.Total() == 0 {
		return
	}
	if res.Structural > 0 {
		h.structureChanged = true
	}
	h.bindRoot()
	actionsCommittedTotal.WithLabelValues("applied").Add(float64(res.Applied))
	actionsCommittedTotal.WithLabelValues("dropped").Add(float64(res.Dropped))
	if res.Dropped > 0 {
		Logger().Warn("compositor: dropped actions for missing layers", "dropped", res.Dropped)
	}
	Logger().Debug("compositor: commit", "applied", res.Applied, "groups", res.Groups, "force", force)
}

// SetRoot applies the completed bursts and makes l the root of the tree.
// A burst still open is not applied. If l's creation has not been committed
// yet, l is bound as root by the commit that creates it. The next frame
// repaints the whole tree.
func (h *Host) SetRoot(l *Layer) {
	if l == nil {
		h.ClearRoot()
		return
	}
	if l.Released() || l.host != h {
		Logger().Warn("compositor: SetRoot with a released layer", "layer", l.id)
		return
	}
	h.root = nil
	h.rootID = l.id
	h.structureChanged = true
	h.commitCompleted()
	h.bindRoot()
	h.SetNeedsFullTreeSync()
	Logger().Info("compositor: root set", "layer", l.id)
}

// bindRoot attaches the compositing layer of rootID once it exists.
func (h *Host) bindRoot() {
	if h.root != nil || h.rootID == 0 {
		return
	}
	cl := h.arena.get(h.rootID)
	if cl == nil {
		return
	}
	cl.node.RemoveFromParent()
	h.root = cl
}

// ClearRoot waits for outstanding raster work, applies the completed bursts
// and detaches the root.
func (h *Host) ClearRoot() {
	parallel.WaitIdle(h.pool, h.opts.pollInterval)
	h.commitCompleted()
	h.root = nil
	h.rootID = 0
	h.structureChanged = true
	Logger().Info("compositor: root cleared")
}

// Root returns the root node, or nil.
func (h *Host) Root() *layer.Node {
	if h.root == nil {
		return nil
	}
	return h.root.node
}

// LayerByID returns the live handle with the given id.
func (h *Host) LayerByID(id int) (*Layer, bool) {
	h.layersMu.Lock()
	defer h.layersMu.Unlock()
	l, ok := h.layers[id]
	return l, ok
}

// LiveLayers returns the number of live layer handles.
func (h *Host) LiveLayers() int {
	h.layersMu.Lock()
	defer h.layersMu.Unlock()
	return len(h.layers)
}

// NodeByID returns the committed node for a layer id, or nil.
func (h *Host) NodeByID(id int) *layer.Node {
	if cl := h.arena.get(id); cl != nil {
		return cl.node
	}
	return nil
}

// Has3DNodes reports whether any committed layer requests 3D sorting.
func (h *Host) Has3DNodes() bool { return h.arena.num3D > 0 }

// SetNeedsFullTreeSync makes the next frame visit and repaint every layer.
func (h *Host) SetNeedsFullTreeSync() {
	h.needsFullSync = true
	h.client.ScheduleAnimation()
}

// NeedsFullTreeSync reports whether a full tree sync is pending.
func (h *Host) NeedsFullTreeSync() bool { return h.needsFullSync }

// IsDestroying reports whether Close has started.
func (h *Host) IsDestroying() bool { return h.destroying.Load() }

// CreateDrawingIndex hands out the next drawing index.
func (h *Host) CreateDrawingIndex() int64 {
	h.newestDrawingIndex++
	return h.newestDrawingIndex
}

// DrawingIndex returns the index of the frame being prepared.
func (h *Host) DrawingIndex() int64 { return h.drawingIndex }

// AddRasteringIndex appends a drawing index whose raster results are
// awaited.
func (h *Host) AddRasteringIndex(index int64) {
	h.tilesMu.Lock()
	defer h.tilesMu.Unlock()
	h.rasteringIndices = append(h.rasteringIndices, index)
}

// FrontRasteringIndex returns the oldest awaited drawing index. It panics on
// an empty queue.
func (h *Host) FrontRasteringIndex() int64 {
	h.tilesMu.Lock()
	defer h.tilesMu.Unlock()
	if len(h.rasteringIndices) == 0 {
		panic("compositor: FrontRasteringIndex on empty queue")
	}
	return h.rasteringIndices[0]
}

// PopRasteringIndex removes the oldest awaited drawing index. It panics on
// an empty queue.
func (h *Host) PopRasteringIndex() {
	h.tilesMu.Lock()
	defer h.tilesMu.Unlock()
	if len(h.rasteringIndices) == 0 {
		panic("compositor: PopRasteringIndex on empty queue")
	}
	h.rasteringIndices = h.rasteringIndices[1:]
}

// RasteringIndexCount returns the number of awaited drawing indices.
func (h *Host) RasteringIndexCount() int {
	h.tilesMu.Lock()
	defer h.tilesMu.Unlock()
	return len(h.rasteringIndices)
}

// frontRasteringIndex is FrontRasteringIndex without the empty-queue panic.
func (h *Host) frontRasteringIndex() (int64, bool) {
	h.tilesMu.Lock()
	defer h.tilesMu.Unlock()
	if len(h.rasteringIndices) == 0 {
		return 0, false
	}
	return h.rasteringIndices[0], true
}

// FinishAllRendering blocks until the raster pool has no pending tasks.
func (h *Host) FinishAllRendering() {
	parallel.WaitIdle(h.pool, h.opts.pollInterval)
}

// PendingRasterTasks returns the raster pool's pending task count.
func (h *Host) PendingRasterTasks() int { return h.pool.PendingTasks() }

// SetVisible shows or hides the host. Hidden hosts record no raster work.
func (h *Host) SetVisible(v bool) {
	if h.visible == v {
		return
	}
	h.visible = v
	if v {
		h.client.ScheduleAnimation()
	}
}

// Visible reports whether the host is visible.
func (h *Host) Visible() bool { return h.visible }

// SetViewportSize sets the viewport size in layer units.
func (h *Host) SetViewportSize(s geom.Size) {
	if h.viewport == s {
		return
	}
	h.viewport = s
	h.SetNeedsFullTreeSync()
}

// ViewportSize returns the viewport size.
func (h *Host) ViewportSize() geom.Size { return h.viewport }

// CanDrawSize returns the largest layer size worth drawing for the current
// viewport.
func (h *Host) CanDrawSize() geom.Size { return h.viewport.Scale(canDrawScale) }

// SetDeviceScaleFactor sets the scale from layer units to output pixels.
// Non-positive factors are ignored.
func (h *Host) SetDeviceScaleFactor(f float64) {
	if f <= 0 || f == h.deviceScale {
		return
	}
	h.deviceScale = f
	h.SetNeedsFullTreeSync()
}

// DeviceScaleFactor returns the device scale factor.
func (h *Host) DeviceScaleFactor() float64 { return h.deviceScale }

// SetBackgroundColor sets the composite background.
func (h *Host) SetBackgroundColor(c color.Color) {
	h.background = c
	h.client.ScheduleAnimation()
}

// BackgroundColor returns the composite background.
func (h *Host) BackgroundColor() color.Color { return h.background }

// SetHasTransparentBackground controls whether DrawToCanvas clears the
// destination before compositing.
func (h *Host) SetHasTransparentBackground(v bool) {
	h.transparent = v
	h.client.ScheduleAnimation()
}

// HasTransparentBackground reports whether the background is transparent.
func (h *Host) HasTransparentBackground() bool { return h.transparent }

// SetPageScaleFactorAndLimits stores the page scale and its bounds. The
// factor is clamped to [minScale, maxScale].
func (h *Host) SetPageScaleFactorAndLimits(scale, minScale, maxScale float64) {
	if minScale > maxScale {
		minScale, maxScale = maxScale, minScale
	}
	h.minPageScale = minScale
	h.maxPageScale = maxScale
	h.pageScale = min(max(scale, minScale), maxScale)
}

// PageScaleFactor returns the page scale and its limits.
func (h *Host) PageScaleFactor() (scale, minScale, maxScale float64) {
	return h.pageScale, h.minPageScale, h.maxPageScale
}

// DebugString returns a dump of the committed tree.
func (h *Host) DebugString() string {
	if h.root == nil {
		return ""
	}
	return layer.Dump(h.root.node)
}

// Close tears the host down. It waits until no raster task is pending,
// applies every recorded action, consumes finished raster work, detaches
// all live layers, destroys every compositing layer and drains the release
// queue. Close is safe to call more than once.
func (h *Host) Close() {
	if !h.destroying.CompareAndSwap(false, true) {
		return
	}
	parallel.WaitIdle(h.pool, h.opts.pollInterval)

	h.Commit(true)
	h.applyRasterResults()
	h.releaseArrived()

	h.detachLayers()

	h.root = nil
	h.rootID = 0
	h.arena.destroyAll()
	h.clearRasteringIndices()

	released := h.DrainReleaseQueue()

	if h.ownPool != nil {
		h.ownPool.Close()
	}
	Logger().Info("compositor: host closed", "tiles_released", released)
}

func (h *Host) detachLayers() {
	h.layersMu.Lock()
	defer h.layersMu.Unlock()
	for id, l := range h.layers {
		l.released.Store(true)
		delete(h.layers, id)
	}
}

func (h *Host) clearRasteringIndices() {
	h.tilesMu.Lock()
	defer h.tilesMu.Unlock()
	h.rasteringIndices = nil
}
