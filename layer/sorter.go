package layer

import (
	"sort"

	"github.com/gogpu/compositor/geom"
)

// Sorter orders sibling layers back to front by the depth of their centers
// in screen space. It keeps a scratch buffer so one Sorter can be reused
// across a whole traversal.
type Sorter struct {
	depths []sortEntry
}

type sortEntry struct {
	node  *Node
	depth float64
}

// Sort reorders nodes in place, farthest (smallest z) first. Nodes at equal
// depth keep their relative order.
func (s *Sorter) Sort(nodes []*Node) {
	if len(nodes) < 2 {
		return
	}
	s.depths = s.depths[:0]
	for _, n := range nodes {
		s.depths = append(s.depths, sortEntry{node: n, depth: depthOf(n)})
	}
	sort.SliceStable(s.depths, func(i, j int) bool {
		return s.depths[i].depth < s.depths[j].depth
	})
	for i, e := range s.depths {
		nodes[i] = e.node
	}
	clear(s.depths)
}

func depthOf(n *Node) float64 {
	center := geom.Point3{X: n.bounds.W / 2, Y: n.bounds.H / 2}
	return n.draw.ScreenSpace.MapPoint3(center).Z
}
