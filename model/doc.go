// Package model provides the geometric primitives shared by the content
// stream walker and the resolution analysis.
//
// # Matrices
//
// [Matrix] holds the six numbers [a b c d e f] of a PDF transformation
// matrix. Points are row vectors, so m.Multiply(n) is the transform that
// applies m first and n second. The PDF "cm" operator therefore updates the
// current transformation matrix as:
//
//	ctm = m.Multiply(ctm)
//
// [Matrix.XScale] and [Matrix.YScale] report how far the unit square is
// stretched along each axis, which is how many points one image pixel row
// or column occupies once the image is painted.
package model
