package graphicsstate

import (
	"errors"

	"github.com/tsawler/pdfshrink/model"
)

// ErrStackUnderflow is returned by Pop when nothing was pushed.
var ErrStackUnderflow = errors.New("graphics state stack underflow")

// Frame is the part of the PDF graphics state that affects where an image
// lands on the page.
type Frame struct {
	// Current Transformation Matrix
	CTM model.Matrix
}

// Stack holds the current frame and the frames saved by q.
type Stack struct {
	current Frame
	saved   []Frame
}

// NewStack creates a stack whose current frame has the given CTM
func NewStack(base model.Matrix) *Stack {
	return &Stack{current: Frame{CTM: base}}
}

// Push saves a copy of the current frame (q operator)
func (s *Stack) Push() {
	s.saved = append(s.saved, s.current)
}

// Pop restores the most recently saved frame (Q operator)
func (s *Stack) Pop() error {
	if len(s.saved) == 0 {
		return ErrStackUnderflow
	}
	s.current = s.saved[len(s.saved)-1]
	s.saved = s.saved[:len(s.saved)-1]
	return nil
}

// Current returns a copy of the current frame
func (s *Stack) Current() Frame {
	return s.current
}

// CTM returns the current transformation matrix
func (s *Stack) CTM() model.Matrix {
	return s.current.CTM
}

// Concat prepends m to the CTM (cm operator): CTM' = m × CTM
func (s *Stack) Concat(m model.Matrix) {
	s.current.CTM = m.Multiply(s.current.CTM)
}

// SetCTM replaces the CTM
func (s *Stack) SetCTM(m model.Matrix) {
	s.current.CTM = m
}

// Depth returns the number of saved frames
func (s *Stack) Depth() int {
	return len(s.saved)
}
