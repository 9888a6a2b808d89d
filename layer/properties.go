package layer

import (
	"github.com/gogpu/compositor/geom"
)

// LocalTransform returns the node's transform relative to its parent:
//
//	translate(position - scroll + origin) * transform * translate(-origin)
//
// When the transform is the identity the origin terms cancel and only the
// scrolled position is applied.
func LocalTransform(n *Node) geom.Matrix44 {
	pos := n.position.Sub(n.scrollOffset)
	if n.transform.IsIdentity() {
		return geom.Translation(pos.X, pos.Y, 0)
	}
	o := n.transformOrigin
	return geom.Identity44().
		PreTranslate(pos.X+o.X, pos.Y+o.Y, o.Z).
		PreConcat(n.transform).
		PreTranslate(-o.X, -o.Y, -o.Z)
}

// inherited is what a parent hands down to each child during a traversal.
// It is passed by value so a subtree can never disturb its siblings.
type inherited struct {
	transform geom.Matrix44
	opacity   float64
}

func rootInherited() inherited {
	return inherited{transform: geom.Identity44(), opacity: 1}
}

// childProperties computes a child's draw properties from its parent's
// inherited state, and the state the child passes to its own children.
func childProperties(child *Node, from inherited) (DrawProperties, inherited) {
	local := LocalTransform(child)
	combined := from.transform.PreConcat(local)
	opacity := from.opacity * child.opacity

	props := DrawProperties{
		ScreenSpace: combined,
		TargetSpace: combined,
		Local:       local,
		Opacity:     opacity,
	}

	propagated := combined
	if child.flatten {
		propagated = propagated.FlattenTo2D()
	}
	return props, inherited{transform: propagated, opacity: opacity}
}

// ComputeDrawProperties walks the tree from root in pre-order and stores
// each node's draw properties. The root itself sits at the identity with
// opacity 1.
//
// has3D reports whether any node in the tree requests 3D compositing; only
// then are the children of a node with 3D-sorted children reordered by
// depth.
func ComputeDrawProperties(root *Node, has3D bool) {
	if root == nil {
		return
	}
	root.draw = identityDrawProperties()
	var sorter Sorter
	computeChildren(root, &sorter, rootInherited(), has3D)
}

func computeChildren(n *Node, sorter *Sorter, from inherited, has3D bool) {
	for _, child := range n.children {
		props, next := childProperties(child, from)
		child.draw = props
		computeChildren(child, sorter, next, has3D)
	}

	if len(n.children) > 0 && has3D && hasSortedChild(n) {
		sorter.Sort(n.children)
	}
}

func hasSortedChild(n *Node) bool {
	for _, c := range n.children {
		if c.is3DSorted {
			return true
		}
	}
	return false
}
