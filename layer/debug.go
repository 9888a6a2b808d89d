package layer

import (
	"fmt"
	"strings"
)

// Dump returns an indented description of the subtree below root, one line
// per node: position, bounds, id, flags and opacity.
func Dump(root *Node) string {
	if root == nil {
		return ""
	}
	var b strings.Builder
	dumpChildren(&b, root, 1)
	return b.String()
}

func dumpChildren(b *strings.Builder, n *Node, depth int) {
	for _, c := range n.children {
		fmt.Fprintf(b, "%s%d %d %d %d - %d, %t %t %t, %.2f\n",
			strings.Repeat(" ", depth),
			int(c.position.X), int(c.position.Y), int(c.bounds.W), int(c.bounds.H),
			c.id, c.drawsContent, c.masksToBounds, c.opaque, c.opacity)
		dumpChildren(b, c, depth+1)
	}
}
