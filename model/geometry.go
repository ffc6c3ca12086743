package model

import "math"

// Point represents a 2D point
type Point struct {
	X, Y float64
}

// BBox represents a bounding box (rectangle)
type BBox struct {
	X      float64 // Left
	Y      float64 // Bottom (PDF coordinate system)
	Width  float64
	Height float64
}

// NewBBoxFromPoints creates a bounding box from two corners
func NewBBoxFromPoints(p1, p2 Point) BBox {
	return BBox{
		X:      math.Min(p1.X, p2.X),
		Y:      math.Min(p1.Y, p2.Y),
		Width:  math.Abs(p2.X - p1.X),
		Height: math.Abs(p2.Y - p1.Y),
	}
}

// IsEmpty returns true if the bounding box has zero area
func (b BBox) IsEmpty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// Scale returns the box with every coordinate multiplied by f
func (b BBox) Scale(f float64) BBox {
	return BBox{X: b.X * f, Y: b.Y * f, Width: b.Width * f, Height: b.Height * f}
}

// Matrix represents a 2D affine transformation matrix [a b c d e f]
type Matrix [6]float64

// Identity returns an identity matrix
func Identity() Matrix {
	return Matrix{1, 0, 0, 1, 0, 0}
}

// NewMatrix builds a matrix from the six operands of a cm operator or a
// /Matrix array. It returns false unless exactly six values are given.
func NewMatrix(v []float64) (Matrix, bool) {
	if len(v) != 6 {
		return Matrix{}, false
	}
	return Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}, true
}

// Transform applies the matrix transformation to a point
func (m Matrix) Transform(p Point) Point {
	return Point{
		X: m[0]*p.X + m[2]*p.Y + m[4],
		Y: m[1]*p.X + m[3]*p.Y + m[5],
	}
}

// Multiply returns m × other: the transform applying m, then other.
func (m Matrix) Multiply(other Matrix) Matrix {
	return Matrix{
		m[0]*other[0] + m[1]*other[2],
		m[0]*other[1] + m[1]*other[3],
		m[2]*other[0] + m[3]*other[2],
		m[2]*other[1] + m[3]*other[3],
		m[4]*other[0] + m[5]*other[2] + other[4],
		m[4]*other[1] + m[5]*other[3] + other[5],
	}
}

// Translate creates a translation matrix
func Translate(tx, ty float64) Matrix {
	return Matrix{1, 0, 0, 1, tx, ty}
}

// Scale creates a scaling matrix
func Scale(sx, sy float64) Matrix {
	return Matrix{sx, 0, 0, sy, 0, 0}
}

// Rotate creates a rotation matrix (angle in radians)
func Rotate(angle float64) Matrix {
	cos := math.Cos(angle)
	sin := math.Sin(angle)
	return Matrix{cos, sin, -sin, cos, 0, 0}
}

// IsIdentity returns true if the matrix is an identity matrix
func (m Matrix) IsIdentity() bool {
	return m == Identity()
}

// XScale returns the length of the transformed unit vector along x. An
// axis-aligned matrix short-circuits to |a|.
func (m Matrix) XScale() float64 {
	if m[1] == 0 && m[2] == 0 {
		return math.Abs(m[0])
	}
	return math.Hypot(m[0], m[1])
}

// YScale returns the length of the transformed unit vector along y. An
// axis-aligned matrix short-circuits to |d|.
func (m Matrix) YScale() float64 {
	if m[1] == 0 && m[2] == 0 {
		return math.Abs(m[3])
	}
	return math.Hypot(m[2], m[3])
}

// IsFinite reports whether every component is a finite number
func (m Matrix) IsFinite() bool {
	for _, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
