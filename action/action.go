// Package action records layer mutations as immutable, id-ordered actions
// and commits them onto the layer tree.
//
// The producer side creates one action per property change and records it
// into a FrameGroup; the owning goroutine later calls Commit, which applies
// the recorded actions to a Target in strictly increasing id order.
package action

import (
	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/layer"
)

// Kind identifies the mutation an action performs.
type Kind uint8

const (
	KindCreate Kind = iota
	KindDestroy
	KindAddChild
	KindRemoveFromParent
	KindRemoveAllChildren
	KindPosition
	KindBounds
	KindTransform
	KindTransformOrigin
	KindOpacity
	KindScrollOffset
	KindMasksToBounds
	KindOpaque
	KindDrawsContent
	Kind3DSorted
	KindFlattenTransform
	KindContent
	KindNeedsDisplayRect
)

var kindNames = [...]string{
	KindCreate:            "Create",
	KindDestroy:           "Destroy",
	KindAddChild:          "AddChild",
	KindRemoveFromParent:  "RemoveFromParent",
	KindRemoveAllChildren: "RemoveAllChildren",
	KindPosition:          "Position",
	KindBounds:            "Bounds",
	KindTransform:         "Transform",
	KindTransformOrigin:   "TransformOrigin",
	KindOpacity:           "Opacity",
	KindScrollOffset:      "ScrollOffset",
	KindMasksToBounds:     "MasksToBounds",
	KindOpaque:            "Opaque",
	KindDrawsContent:      "DrawsContent",
	Kind3DSorted:          "3DSorted",
	KindFlattenTransform:  "FlattenTransform",
	KindContent:           "Content",
	KindNeedsDisplayRect:  "NeedsDisplayRect",
}

// String returns the kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// Structural reports whether the kind changes parent links.
func (k Kind) Structural() bool {
	switch k {
	case KindDestroy, KindAddChild, KindRemoveFromParent, KindRemoveAllChildren:
		return true
	}
	return false
}

// Target is the tree an action is applied to, addressed by layer id.
type Target interface {
	// Node returns the live node with the given id, or nil.
	Node(id int) *layer.Node

	// CreateNode creates and registers a detached node.
	CreateNode(id int) *layer.Node

	// DestroyNode detaches and unregisters the node. It reports whether a
	// node with that id existed.
	DestroyNode(id int) bool

	// Adjust3DNodes changes the count of nodes requesting 3D sorting.
	Adjust3DNodes(delta int)
}

// Action is one recorded mutation. Actions are immutable values.
type Action interface {
	// ID returns the id assigned when the action was created.
	ID() int64

	// Layer returns the id of the layer the action targets.
	Layer() int

	// Kind returns the mutation performed.
	Kind() Kind

	// Apply performs the mutation. It reports false when the target layer
	// no longer exists, in which case nothing changed.
	Apply(t Target) bool
}

type header struct {
	id    int64
	layer int
}

func (h header) ID() int64  { return h.id }
func (h header) Layer() int { return h.layer }

// Create registers a new node.
type Create struct{ header }

// NewCreate returns an action creating the node for layer.
func NewCreate(id int64, layerID int) Create {
	return Create{header{id, layerID}}
}

func (Create) Kind() Kind { return KindCreate }

func (a Create) Apply(t Target) bool {
	if t.Node(a.layer) != nil {
		return false
	}
	t.CreateNode(a.layer)
	return true
}

// Destroy unregisters a node and detaches it from the tree.
type Destroy struct{ header }

// NewDestroy returns an action destroying the node for layer.
func NewDestroy(id int64, layerID int) Destroy {
	return Destroy{header{id, layerID}}
}

func (Destroy) Kind() Kind { return KindDestroy }

func (a Destroy) Apply(t Target) bool {
	n := t.Node(a.layer)
	if n == nil {
		return false
	}
	if n.Is3DSorted() {
		t.Adjust3DNodes(-1)
	}
	return t.DestroyNode(a.layer)
}

// AddChild inserts a child node under a parent.
type AddChild struct {
	header
	child int
	index int
}

// NewAddChild returns an action inserting child under parent at index.
// A negative index appends.
func NewAddChild(id int64, parent, child, index int) AddChild {
	return AddChild{header: header{id, parent}, child: child, index: index}
}

func (AddChild) Kind() Kind { return KindAddChild }

// Child returns the id of the inserted layer.
func (a AddChild) Child() int { return a.child }

func (a AddChild) Apply(t Target) bool {
	p, c := t.Node(a.layer), t.Node(a.child)
	if p == nil || c == nil {
		return false
	}
	if a.index < 0 {
		p.AddChild(c)
	} else {
		p.InsertChild(c, a.index)
	}
	return true
}

// RemoveFromParent detaches a node from its parent.
type RemoveFromParent struct{ header }

// NewRemoveFromParent returns an action detaching layer.
func NewRemoveFromParent(id int64, layerID int) RemoveFromParent {
	return RemoveFromParent{header{id, layerID}}
}

func (RemoveFromParent) Kind() Kind { return KindRemoveFromParent }

func (a RemoveFromParent) Apply(t Target) bool {
	n := t.Node(a.layer)
	if n == nil {
		return false
	}
	n.RemoveFromParent()
	return true
}

// RemoveAllChildren detaches every child of a node.
type RemoveAllChildren struct{ header }

// NewRemoveAllChildren returns an action detaching layer's children.
func NewRemoveAllChildren(id int64, layerID int) RemoveAllChildren {
	return RemoveAllChildren{header{id, layerID}}
}

func (RemoveAllChildren) Kind() Kind { return KindRemoveAllChildren }

func (a RemoveAllChildren) Apply(t Target) bool {
	n := t.Node(a.layer)
	if n == nil {
		return false
	}
	n.RemoveAllChildren()
	return true
}

// Set3DSorted toggles 3D sorting and keeps the tree's 3D node count.
type Set3DSorted struct {
	header
	value bool
}

// NewSet3DSorted returns an action setting 3D sorting on layer.
func NewSet3DSorted(id int64, layerID int, v bool) Set3DSorted {
	return Set3DSorted{header: header{id, layerID}, value: v}
}

func (Set3DSorted) Kind() Kind { return Kind3DSorted }

func (a Set3DSorted) Apply(t Target) bool {
	n := t.Node(a.layer)
	if n == nil {
		return false
	}
	if n.Is3DSorted() == a.value {
		return true
	}
	n.Set3DSorted(a.value)
	if a.value {
		t.Adjust3DNodes(1)
	} else {
		t.Adjust3DNodes(-1)
	}
	return true
}

// Property sets one node property to a value.
type Property[T any] struct {
	header
	kind  Kind
	value T
	set   func(*layer.Node, T)
}

func (a Property[T]) Kind() Kind { return a.kind }

// Value returns the recorded value.
func (a Property[T]) Value() T { return a.value }

func (a Property[T]) Apply(t Target) bool {
	n := t.Node(a.layer)
	if n == nil {
		return false
	}
	a.set(n, a.value)
	return true
}

func property[T any](id int64, layerID int, kind Kind, v T, set func(*layer.Node, T)) Property[T] {
	return Property[T]{header: header{id, layerID}, kind: kind, value: v, set: set}
}

// NewSetPosition returns an action setting the position.
func NewSetPosition(id int64, layerID int, p geom.Point) Property[geom.Point] {
	return property(id, layerID, KindPosition, p, (*layer.Node).SetPosition)
}

// NewSetBounds returns an action setting the bounds.
func NewSetBounds(id int64, layerID int, s geom.Size) Property[geom.Size] {
	return property(id, layerID, KindBounds, s, (*layer.Node).SetBounds)
}

// NewSetTransform returns an action setting the local transform.
func NewSetTransform(id int64, layerID int, m geom.Matrix44) Property[geom.Matrix44] {
	return property(id, layerID, KindTransform, m, (*layer.Node).SetTransform)
}

// NewSetTransformOrigin returns an action setting the transform origin.
func NewSetTransformOrigin(id int64, layerID int, p geom.Point3) Property[geom.Point3] {
	return property(id, layerID, KindTransformOrigin, p, (*layer.Node).SetTransformOrigin)
}

// NewSetOpacity returns an action setting the opacity.
func NewSetOpacity(id int64, layerID int, v float64) Property[float64] {
	return property(id, layerID, KindOpacity, v, (*layer.Node).SetOpacity)
}

// NewSetScrollOffset returns an action setting the scroll offset.
func NewSetScrollOffset(id int64, layerID int, p geom.Point) Property[geom.Point] {
	return property(id, layerID, KindScrollOffset, p, (*layer.Node).SetScrollOffset)
}

// NewSetMasksToBounds returns an action setting bounds clipping.
func NewSetMasksToBounds(id int64, layerID int, v bool) Property[bool] {
	return property(id, layerID, KindMasksToBounds, v, (*layer.Node).SetMasksToBounds)
}

// NewSetOpaque returns an action setting the opaque hint.
func NewSetOpaque(id int64, layerID int, v bool) Property[bool] {
	return property(id, layerID, KindOpaque, v, (*layer.Node).SetOpaque)
}

// NewSetDrawsContent returns an action setting whether the layer paints.
func NewSetDrawsContent(id int64, layerID int, v bool) Property[bool] {
	return property(id, layerID, KindDrawsContent, v, (*layer.Node).SetDrawsContent)
}

// NewSetShouldFlattenTransform returns an action setting transform flattening.
func NewSetShouldFlattenTransform(id int64, layerID int, v bool) Property[bool] {
	return property(id, layerID, KindFlattenTransform, v, (*layer.Node).SetShouldFlattenTransform)
}

// NewSetContent returns an action replacing the paint input.
func NewSetContent(id int64, layerID int, c layer.Content) Property[layer.Content] {
	return property(id, layerID, KindContent, c, (*layer.Node).SetContent)
}

// NewSetNeedsDisplayRect returns an action invalidating part of the content.
func NewSetNeedsDisplayRect(id int64, layerID int, r geom.Rect) Property[geom.Rect] {
	return property(id, layerID, KindNeedsDisplayRect, r, (*layer.Node).SetNeedsDisplayRect)
}
