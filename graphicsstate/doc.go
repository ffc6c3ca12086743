// Package graphicsstate provides the graphics-state stack used while
// interpreting a content stream.
//
// Only the current transformation matrix is tracked. A [Frame] is a plain
// value, so pushing copies it and popping restores it exactly, whatever a
// nested form did in between:
//
//	s := graphicsstate.NewStack(model.Identity())
//	s.Push()                 // q
//	s.Concat(matrix)         // cm
//	s.Pop()                  // Q
package graphicsstate
