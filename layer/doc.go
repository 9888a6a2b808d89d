// Package layer implements the compositor's layer tree: the Node type with
// its geometry, style flags and dirty tracking, the draw-properties pass that
// computes each node's screen-space transform and opacity, the 3D depth
// sorter, and the immediate-mode paint traversal.
//
// Nodes are not safe for concurrent use. The tree is owned by a single
// goroutine (the compositor host's owning goroutine); raster workers only
// ever see immutable snapshots taken from it.
package layer
