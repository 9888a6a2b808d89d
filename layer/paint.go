package layer

import (
	"github.com/gogpu/compositor/geom"
)

// paintState is the immutable per-call state of the paint traversal.
type paintState struct {
	inherited
	clip geom.Rect
}

// Paint draws the tree into c. clip is in root space; content entirely
// outside it is skipped.
//
// Children are visited only when they are dirty, have a dirty descendant,
// or fullSync is set. Content is painted for dirty nodes, or for all nodes
// on a full sync. Every visited node has its dirty flags cleared.
func Paint(root *Node, c Canvas, clip geom.Rect, fullSync bool) {
	if root == nil {
		return
	}
	paintNode(root, c, identityDrawProperties(), paintState{inherited: rootInherited(), clip: clip}, fullSync)
}

func paintNode(n *Node, c Canvas, props DrawProperties, st paintState, fullSync bool) {
	layerRect := geom.RectFromSize(n.bounds)
	screenRect := props.ScreenSpace.MapRect(layerRect)

	c.Save()
	c.SetMatrix(props.ScreenSpace)
	c.SetAlpha(props.Opacity)

	clipped := n.masksToBounds && !layerRect.IsEmpty()
	if clipped {
		c.Save()
		c.ClipRect(layerRect)
		st.clip = st.clip.Intersect(screenRect)
	}

	if (n.dirty || fullSync) && n.drawsContent && n.content != nil &&
		!screenRect.Intersect(st.clip).IsEmpty() {
		n.content.Paint(c, layerRect)
	}
	n.dirty = false

	for _, child := range n.children {
		if !(child.dirty || child.childrenDirty || fullSync) {
			continue
		}
		child.childrenDirty = false
		childProps, next := childProperties(child, st.inherited)
		paintNode(child, c, childProps, paintState{inherited: next, clip: st.clip}, fullSync)
	}
	n.childrenDirty = false

	// The clip scope closes before the transform scope.
	if clipped {
		c.Restore()
	}
	c.Restore()
}
