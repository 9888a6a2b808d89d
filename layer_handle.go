package compositor

import (
	"math"
	"sync/atomic"

	"github.com/gogpu/compositor/action"
	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/layer"
)

// Layer is the producer-side handle of a layer. Every setter records an
// action that the owning goroutine applies at the next commit; the handle
// itself holds no tree state, only the layer id.
//
// Layer methods are safe for concurrent use. Calls on a released layer, or
// on any layer after the host was closed, are ignored.
type Layer struct {
	host     *Host
	id       int
	released atomic.Bool
}

// NewLayer creates a layer, registers it with the host and records its
// creation. The layer is detached until added to a parent or set as root.
func (h *Host) NewLayer() *Layer {
	l := &Layer{host: h, id: int(h.nextLayerID.Add(1))}
	if h.destroying.Load() {
		l.released.Store(true)
		Logger().Warn("compositor: NewLayer on a closed host")
		return l
	}
	h.register(l)
	h.record(func(id int64) action.Action { return action.NewCreate(id, l.id) })
	return l
}

func (h *Host) register(l *Layer) {
	h.layersMu.Lock()
	defer h.layersMu.Unlock()
	h.layers[l.id] = l
}

func (h *Host) unregister(id int) {
	h.layersMu.Lock()
	defer h.layersMu.Unlock()
	delete(h.layers, id)
}

// ID returns the layer id.
func (l *Layer) ID() int { return l.id }

// Released reports whether the layer was released.
func (l *Layer) Released() bool { return l.released.Load() }

// Release unregisters the layer and records its destruction. The committed
// node is detached from the tree and its tiles are released.
func (l *Layer) Release() {
	if !l.released.CompareAndSwap(false, true) {
		return
	}
	l.host.unregister(l.id)
	l.host.record(func(id int64) action.Action { return action.NewDestroy(id, l.id) })
}

// record appends the action built by mk, unless the layer is gone.
func (l *Layer) record(mk func(id int64) action.Action) {
	if l.released.Load() {
		Logger().Warn("compositor: mutation of released layer ignored", "layer", l.id)
		return
	}
	l.host.record(mk)
}

// SetPosition sets the offset in the parent.
func (l *Layer) SetPosition(p geom.Point) {
	l.record(func(id int64) action.Action { return action.NewSetPosition(id, l.id, p) })
}

// SetBounds sets the content size.
func (l *Layer) SetBounds(s geom.Size) {
	l.record(func(id int64) action.Action { return action.NewSetBounds(id, l.id, s) })
}

// SetTransform sets the local transform.
func (l *Layer) SetTransform(m geom.Matrix44) {
	l.record(func(id int64) action.Action { return action.NewSetTransform(id, l.id, m) })
}

// SetTransformOrigin sets the point the transform is applied around.
func (l *Layer) SetTransformOrigin(p geom.Point3) {
	l.record(func(id int64) action.Action { return action.NewSetTransformOrigin(id, l.id, p) })
}

// SetOpacity sets the layer opacity.
func (l *Layer) SetOpacity(a float64) {
	l.record(func(id int64) action.Action { return action.NewSetOpacity(id, l.id, a) })
}

// SetScrollOffset sets the scroll position.
func (l *Layer) SetScrollOffset(p geom.Point) {
	l.record(func(id int64) action.Action { return action.NewSetScrollOffset(id, l.id, p) })
}

// SetMasksToBounds sets whether the subtree is clipped to the bounds.
func (l *Layer) SetMasksToBounds(v bool) {
	l.record(func(id int64) action.Action { return action.NewSetMasksToBounds(id, l.id, v) })
}

// SetOpaque sets the opaque hint.
func (l *Layer) SetOpaque(v bool) {
	l.record(func(id int64) action.Action { return action.NewSetOpaque(id, l.id, v) })
}

// SetDrawsContent sets whether the layer paints content.
func (l *Layer) SetDrawsContent(v bool) {
	l.record(func(id int64) action.Action { return action.NewSetDrawsContent(id, l.id, v) })
}

// Set3DSorted sets whether the layer's children are depth sorted.
func (l *Layer) Set3DSorted(v bool) {
	l.record(func(id int64) action.Action { return action.NewSet3DSorted(id, l.id, v) })
}

// SetShouldFlattenTransform sets whether descendants inherit a flattened
// transform.
func (l *Layer) SetShouldFlattenTransform(v bool) {
	l.record(func(id int64) action.Action { return action.NewSetShouldFlattenTransform(id, l.id, v) })
}

// SetContent replaces the paint input. c must be immutable.
func (l *Layer) SetContent(c layer.Content) {
	l.record(func(id int64) action.Action { return action.NewSetContent(id, l.id, c) })
}

// SetNeedsDisplayRect invalidates part of the content.
func (l *Layer) SetNeedsDisplayRect(r geom.Rect) {
	l.record(func(id int64) action.Action { return action.NewSetNeedsDisplayRect(id, l.id, r) })
}

// SetNeedsDisplay invalidates the whole content.
func (l *Layer) SetNeedsDisplay() {
	l.SetNeedsDisplayRect(geom.Rect{W: math.MaxFloat64, H: math.MaxFloat64})
}

// AddChild appends child.
func (l *Layer) AddChild(child *Layer) {
	l.InsertChild(child, -1)
}

// InsertChild inserts child at index. A negative index appends.
func (l *Layer) InsertChild(child *Layer, index int) {
	if child == nil || child.host != l.host {
		panic("compositor: child belongs to another host")
	}
	l.record(func(id int64) action.Action { return action.NewAddChild(id, l.id, child.id, index) })
}

// RemoveFromParent detaches the layer.
func (l *Layer) RemoveFromParent() {
	l.record(func(id int64) action.Action { return action.NewRemoveFromParent(id, l.id) })
}

// RemoveAllChildren detaches every child.
func (l *Layer) RemoveAllChildren() {
	l.record(func(id int64) action.Action { return action.NewRemoveAllChildren(id, l.id) })
}
