// Package geom provides the geometry value types used by the compositor:
// points, sizes, rectangles and a 4x4 transformation matrix.
//
// All types are small values passed by copy. Matrix44 follows the column
// vector convention (p' = M * p) with translation in the last column, so
// composing "A then B" in canvas order is A.Multiply(B).
package geom
