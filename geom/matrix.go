package geom

import "math"

// Matrix44 is a 4x4 transformation matrix stored row-major as m[row][col].
//
// Points are column vectors: p' = M * p. Translation lives in column 3.
// Layer transforms only ever populate the upper 3x4 part (an affine 3D
// transform); the bottom row stays (0, 0, 0, 1) unless a perspective
// transform is supplied explicitly.
type Matrix44 [4][4]float64

// Identity44 returns the identity matrix.
func Identity44() Matrix44 {
	return Matrix44{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// Translation creates a translation matrix.
func Translation(x, y, z float64) Matrix44 {
	m := Identity44()
	m[0][3] = x
	m[1][3] = y
	m[2][3] = z
	return m
}

// Scaling creates a scaling matrix.
func Scaling(x, y, z float64) Matrix44 {
	m := Identity44()
	m[0][0] = x
	m[1][1] = y
	m[2][2] = z
	return m
}

// RotationZ creates a rotation about the z axis (angle in radians).
func RotationZ(angle float64) Matrix44 {
	sin, cos := math.Sincos(angle)
	m := Identity44()
	m[0][0], m[0][1] = cos, -sin
	m[1][0], m[1][1] = sin, cos
	return m
}

// RotationY creates a rotation about the y axis (angle in radians).
func RotationY(angle float64) Matrix44 {
	sin, cos := math.Sincos(angle)
	m := Identity44()
	m[0][0], m[0][2] = cos, sin
	m[2][0], m[2][2] = -sin, cos
	return m
}

// Get returns the element at row, col.
func (m Matrix44) Get(row, col int) float64 {
	return m[row][col]
}

// Set sets the element at row, col.
func (m *Matrix44) Set(row, col int, v float64) {
	m[row][col] = v
}

// Multiply returns m * o. Applied to a point, o acts first.
func (m Matrix44) Multiply(o Matrix44) Matrix44 {
	var r Matrix44
	for i := range 4 {
		for j := range 4 {
			r[i][j] = m[i][0]*o[0][j] + m[i][1]*o[1][j] + m[i][2]*o[2][j] + m[i][3]*o[3][j]
		}
	}
	return r
}

// PreConcat returns m * o, the canvas-order composition "m, then o inside it".
func (m Matrix44) PreConcat(o Matrix44) Matrix44 {
	return m.Multiply(o)
}

// PreTranslate returns m * Translation(x, y, z).
func (m Matrix44) PreTranslate(x, y, z float64) Matrix44 {
	for i := range 4 {
		m[i][3] += m[i][0]*x + m[i][1]*y + m[i][2]*z
	}
	return m
}

// IsIdentity reports whether m is exactly the identity matrix.
func (m Matrix44) IsIdentity() bool {
	return m == Identity44()
}

// IsTranslate reports whether m only translates.
func (m Matrix44) IsTranslate() bool {
	n := m
	n[0][3], n[1][3], n[2][3] = 0, 0, 0
	return n.IsIdentity()
}

// FlattenTo2D returns m with every term that couples to or from the z axis
// cleared, so the result behaves as a 2D affine transform of x and y.
func (m Matrix44) FlattenTo2D() Matrix44 {
	m[2][0] = 0
	m[2][1] = 0
	m[0][2] = 0
	m[1][2] = 0
	m[2][2] = 1
	m[3][2] = 0
	m[2][3] = 0
	return m
}

// MapPoint3 transforms p, applying the perspective divide when the
// homogeneous w is not 1.
func (m Matrix44) MapPoint3(p Point3) Point3 {
	x := m[0][0]*p.X + m[0][1]*p.Y + m[0][2]*p.Z + m[0][3]
	y := m[1][0]*p.X + m[1][1]*p.Y + m[1][2]*p.Z + m[1][3]
	z := m[2][0]*p.X + m[2][1]*p.Y + m[2][2]*p.Z + m[2][3]
	w := m[3][0]*p.X + m[3][1]*p.Y + m[3][2]*p.Z + m[3][3]
	if w != 1 && w != 0 {
		x /= w
		y /= w
		z /= w
	}
	return Point3{X: x, Y: y, Z: z}
}

// MapPoint transforms a 2D point lying on the z=0 plane.
func (m Matrix44) MapPoint(p Point) Point {
	return m.MapPoint3(Point3{X: p.X, Y: p.Y}).XY()
}

// MapRect returns the bounding box of r's four transformed corners.
func (m Matrix44) MapRect(r Rect) Rect {
	if r.IsEmpty() {
		return Rect{}
	}
	corners := [4]Point{
		m.MapPoint(Point{X: r.X, Y: r.Y}),
		m.MapPoint(Point{X: r.MaxX(), Y: r.Y}),
		m.MapPoint(Point{X: r.X, Y: r.MaxY()}),
		m.MapPoint(Point{X: r.MaxX(), Y: r.MaxY()}),
	}
	minX, minY := corners[0].X, corners[0].Y
	maxX, maxY := minX, minY
	for _, c := range corners[1:] {
		minX = math.Min(minX, c.X)
		minY = math.Min(minY, c.Y)
		maxX = math.Max(maxX, c.X)
		maxY = math.Max(maxY, c.Y)
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Affine returns the 2D affine part of m as a 2x3 row-major matrix
// [a b c; d e f], so that x' = a*x + b*y + c and y' = d*x + e*y + f.
// The layout matches golang.org/x/image/math/f64.Aff3.
func (m Matrix44) Affine() [6]float64 {
	return [6]float64{
		m[0][0], m[0][1], m[0][3],
		m[1][0], m[1][1], m[1][3],
	}
}

// Invert returns the inverse of m. The second result is false when m is
// singular, in which case the identity is returned.
func (m Matrix44) Invert() (Matrix44, bool) {
	a00, a01, a02, a03 := m[0][0], m[0][1], m[0][2], m[0][3]
	a10, a11, a12, a13 := m[1][0], m[1][1], m[1][2], m[1][3]
	a20, a21, a22, a23 := m[2][0], m[2][1], m[2][2], m[2][3]
	a30, a31, a32, a33 := m[3][0], m[3][1], m[3][2], m[3][3]

	b00 := a00*a11 - a01*a10
	b01 := a00*a12 - a02*a10
	b02 := a00*a13 - a03*a10
	b03 := a01*a12 - a02*a11
	b04 := a01*a13 - a03*a11
	b05 := a02*a13 - a03*a12
	b06 := a20*a31 - a21*a30
	b07 := a20*a32 - a22*a30
	b08 := a20*a33 - a23*a30
	b09 := a21*a32 - a22*a31
	b10 := a21*a33 - a23*a31
	b11 := a22*a33 - a23*a32

	det := b00*b11 - b01*b10 + b02*b09 + b03*b08 - b04*b07 + b05*b06
	if math.Abs(det) < 1e-12 {
		return Identity44(), false
	}
	inv := 1 / det

	return Matrix44{
		{
			(a11*b11 - a12*b10 + a13*b09) * inv,
			(a02*b10 - a01*b11 - a03*b09) * inv,
			(a31*b05 - a32*b04 + a33*b03) * inv,
			(a22*b04 - a21*b05 - a23*b03) * inv,
		},
		{
			(a12*b08 - a10*b11 - a13*b07) * inv,
			(a00*b11 - a02*b08 + a03*b07) * inv,
			(a32*b02 - a30*b05 - a33*b01) * inv,
			(a20*b05 - a22*b02 + a23*b01) * inv,
		},
		{
			(a10*b10 - a11*b08 + a13*b06) * inv,
			(a01*b08 - a00*b10 - a03*b06) * inv,
			(a30*b04 - a31*b02 + a33*b00) * inv,
			(a21*b02 - a20*b04 - a23*b00) * inv,
		},
		{
			(a11*b07 - a10*b09 - a12*b06) * inv,
			(a00*b09 - a01*b07 + a02*b06) * inv,
			(a31*b01 - a30*b03 - a32*b00) * inv,
			(a20*b03 - a21*b01 + a22*b00) * inv,
		},
	}, true
}

// ApproxEqual reports whether every element of m and o differs by at most eps.
func (m Matrix44) ApproxEqual(o Matrix44, eps float64) bool {
	for i := range 4 {
		for j := range 4 {
			if math.Abs(m[i][j]-o[i][j]) > eps {
				return false
			}
		}
	}
	return true
}
