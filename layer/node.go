package layer

import (
	"github.com/gogpu/compositor/geom"
)

// DrawProperties are the values computed for a node by
// ComputeDrawProperties.
type DrawProperties struct {
	// ScreenSpace maps layer space to the root's space.
	ScreenSpace geom.Matrix44

	// TargetSpace maps layer space to the render target. It equals
	// ScreenSpace because the tree never introduces render surfaces.
	TargetSpace geom.Matrix44

	// Local is the node's own transform relative to its parent.
	Local geom.Matrix44

	// Opacity is the product of the opacities from the root down.
	Opacity float64
}

func identityDrawProperties() DrawProperties {
	return DrawProperties{
		ScreenSpace: geom.Identity44(),
		TargetSpace: geom.Identity44(),
		Local:       geom.Identity44(),
		Opacity:     1,
	}
}

// Node is one layer in the tree.
//
// A node owns its children; the parent pointer is a non-owning back
// reference that is cleared when the node is detached. Every property setter
// that changes a value marks the node dirty and flags its ancestors as
// having a dirty descendant.
type Node struct {
	id       int
	parent   *Node
	children []*Node

	position        geom.Point
	bounds          geom.Size
	transformOrigin geom.Point3
	transform       geom.Matrix44
	opacity         float64
	scrollOffset    geom.Point

	masksToBounds bool
	opaque        bool
	drawsContent  bool
	is3DSorted    bool
	flatten       bool

	content Content

	// invalid is the region of content, in layer space, that must be
	// rasterized again.
	invalid geom.Rect

	dirty         bool
	childrenDirty bool

	draw DrawProperties
}

// NewNode creates a detached node with identity transform, full opacity and
// a flattening transform.
func NewNode(id int) *Node {
	return &Node{
		id:        id,
		transform: geom.Identity44(),
		opacity:   1,
		flatten:   true,
		draw:      identityDrawProperties(),
	}
}

// ID returns the node's identifier.
func (n *Node) ID() int { return n.id }

// Parent returns the parent node, or nil for a detached node or a root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the child list in paint order.
// The returned slice must not be modified.
func (n *Node) Children() []*Node { return n.children }

// Position returns the node's offset in its parent.
func (n *Node) Position() geom.Point { return n.position }

// Bounds returns the node's content size.
func (n *Node) Bounds() geom.Size { return n.bounds }

// TransformOrigin returns the point the transform is applied around.
func (n *Node) TransformOrigin() geom.Point3 { return n.transformOrigin }

// Transform returns the node's local transform.
func (n *Node) Transform() geom.Matrix44 { return n.transform }

// Opacity returns the node's own opacity.
func (n *Node) Opacity() float64 { return n.opacity }

// ScrollOffset returns the node's scroll position.
func (n *Node) ScrollOffset() geom.Point { return n.scrollOffset }

// MasksToBounds reports whether descendants are clipped to the bounds.
func (n *Node) MasksToBounds() bool { return n.masksToBounds }

// Opaque reports whether the content fully covers the bounds.
func (n *Node) Opaque() bool { return n.opaque }

// DrawsContent reports whether the node paints anything itself.
func (n *Node) DrawsContent() bool { return n.drawsContent }

// Is3DSorted reports whether the node takes part in 3D depth sorting.
func (n *Node) Is3DSorted() bool { return n.is3DSorted }

// ShouldFlattenTransform reports whether the transform passed on to
// descendants is flattened to 2D.
func (n *Node) ShouldFlattenTransform() bool { return n.flatten }

// Content returns the node's paint input.
func (n *Node) Content() Content { return n.content }

// Dirty reports whether the node changed since it was last visited.
func (n *Node) Dirty() bool { return n.dirty }

// ChildrenDirty reports whether some descendant is dirty.
func (n *Node) ChildrenDirty() bool { return n.childrenDirty }

// DrawProperties returns the values from the last draw-properties pass.
func (n *Node) DrawProperties() DrawProperties { return n.draw }

// InvalidRect returns the content region awaiting raster.
func (n *Node) InvalidRect() geom.Rect { return n.invalid }

// SetPosition sets the offset in the parent.
func (n *Node) SetPosition(p geom.Point) {
	if n.position == p {
		return
	}
	n.position = p
	n.SetDirty()
}

// SetBounds sets the content size. Resizing invalidates all content.
func (n *Node) SetBounds(s geom.Size) {
	if n.bounds == s {
		return
	}
	n.bounds = s
	n.invalid = geom.RectFromSize(s)
	n.SetDirty()
}

// SetTransformOrigin sets the transform origin.
func (n *Node) SetTransformOrigin(p geom.Point3) {
	if n.transformOrigin == p {
		return
	}
	n.transformOrigin = p
	n.SetDirty()
}

// SetTransform sets the local transform.
func (n *Node) SetTransform(m geom.Matrix44) {
	if n.transform == m {
		return
	}
	n.transform = m
	n.SetDirty()
}

// SetOpacity sets the node's own opacity, clamped to [0, 1].
func (n *Node) SetOpacity(a float64) {
	a = min(max(a, 0), 1)
	if n.opacity == a {
		return
	}
	n.opacity = a
	n.SetDirty()
}

// SetScrollOffset sets the scroll position.
func (n *Node) SetScrollOffset(p geom.Point) {
	if n.scrollOffset == p {
		return
	}
	n.scrollOffset = p
	n.SetDirty()
}

// SetMasksToBounds sets whether descendants are clipped.
func (n *Node) SetMasksToBounds(v bool) {
	if n.masksToBounds == v {
		return
	}
	n.masksToBounds = v
	n.SetDirty()
}

// SetOpaque sets the opaque hint.
func (n *Node) SetOpaque(v bool) {
	if n.opaque == v {
		return
	}
	n.opaque = v
	n.SetDirty()
}

// SetDrawsContent sets whether the node paints. Turning it on invalidates
// the whole content.
func (n *Node) SetDrawsContent(v bool) {
	if n.drawsContent == v {
		return
	}
	n.drawsContent = v
	if v {
		n.invalid = geom.RectFromSize(n.bounds)
	}
	n.SetDirty()
}

// Set3DSorted sets 3D sorting participation.
func (n *Node) Set3DSorted(v bool) {
	if n.is3DSorted == v {
		return
	}
	n.is3DSorted = v
	n.SetDirty()
}

// SetShouldFlattenTransform sets whether descendants inherit a flattened
// transform.
func (n *Node) SetShouldFlattenTransform(v bool) {
	if n.flatten == v {
		return
	}
	n.flatten = v
	n.SetDirty()
}

// SetContent replaces the paint input and invalidates the whole content.
func (n *Node) SetContent(c Content) {
	n.content = c
	n.invalid = geom.RectFromSize(n.bounds)
	n.SetDirty()
}

// SetNeedsDisplayRect adds r to the invalid content region.
func (n *Node) SetNeedsDisplayRect(r geom.Rect) {
	r = r.Intersect(geom.RectFromSize(n.bounds))
	if r.IsEmpty() {
		return
	}
	n.invalid = n.invalid.Union(r)
	n.SetDirty()
}

// TakeInvalidRect returns the invalid content region and resets it.
func (n *Node) TakeInvalidRect() geom.Rect {
	r := n.invalid
	n.invalid = geom.Rect{}
	return r
}

// SetDirty marks the node dirty and sets childrenDirty on every ancestor.
func (n *Node) SetDirty() {
	n.dirty = true
	for p := n.parent; p != nil; p = p.parent {
		p.childrenDirty = true
	}
}

// ClearDirty clears the node's own dirty flag.
func (n *Node) ClearDirty() { n.dirty = false }

// ClearChildrenDirty clears the descendant-dirty flag.
func (n *Node) ClearChildrenDirty() { n.childrenDirty = false }

// AddChild appends child, detaching it from any previous parent.
func (n *Node) AddChild(child *Node) {
	n.InsertChild(child, len(n.children))
}

// InsertChild inserts child at index, clamped to the child count.
func (n *Node) InsertChild(child *Node, index int) {
	if child == nil || child == n {
		return
	}
	if child.isAncestorOf(n) {
		panic("layer: InsertChild would create a cycle")
	}
	child.RemoveFromParent()

	index = min(max(index, 0), len(n.children))
	n.children = append(n.children, nil)
	copy(n.children[index+1:], n.children[index:])
	n.children[index] = child
	child.parent = n
	child.SetDirty()
}

// RemoveFromParent detaches the node. The former parent is marked dirty so
// the vacated area is repainted.
func (n *Node) RemoveFromParent() {
	p := n.parent
	if p == nil {
		return
	}
	p.removeChildByPtr(n)
	n.parent = nil
	p.SetDirty()
}

// RemoveAllChildren detaches every child.
func (n *Node) RemoveAllChildren() {
	if len(n.children) == 0 {
		return
	}
	for _, c := range n.children {
		c.parent = nil
	}
	clear(n.children)
	n.children = n.children[:0]
	n.SetDirty()
}

// removeChildByPtr removes child from n.children without clearing
// child.parent. Uses copy+nil to avoid retaining a pointer in the backing
// array.
func (n *Node) removeChildByPtr(child *Node) {
	for i, c := range n.children {
		if c == child {
			copy(n.children[i:], n.children[i+1:])
			n.children[len(n.children)-1] = nil
			n.children = n.children[:len(n.children)-1]
			return
		}
	}
}

func (n *Node) isAncestorOf(other *Node) bool {
	for p := other; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}

// Walk visits n and its descendants in pre-order.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		c.Walk(fn)
	}
}
