package ratecontrol

import "github.com/user/subband/pkg/frame"

// Drift is the signed motion a block has accumulated since the last reset.
type Drift struct {
	X int16
	Y int16
}

// Stability accumulates per-block motion between refreshes. Blocks whose vectors
// cancel out over time stay near zero; blocks that keep moving one way grow.
type Stability struct {
	acc []Drift
}

// NewStability creates an accumulator for n blocks.
func NewStability(n int) *Stability {
	return &Stability{acc: make([]Drift, n)}
}

// Len returns the number of blocks tracked.
func (s *Stability) Len() int { return len(s.acc) }

// Resize reallocates the accumulator when the block count changes.
func (s *Stability) Resize(n int) {
	if n != len(s.acc) {
		s.acc = make([]Drift, n)
	}
}

// Reset clears all accumulated drift.
func (s *Stability) Reset() {
	clear(s.acc)
}

// Accumulate adds a finest-level motion field. Fields of the wrong size are ignored.
func (s *Stability) Accumulate(field []frame.MotionVector) {
	if len(field) != len(s.acc) {
		return
	}
	for i, mv := range field {
		s.acc[i].X = sat(int(s.acc[i].X) + int(mv.X))
		s.acc[i].Y = sat(int(s.acc[i].Y) + int(mv.Y))
	}
}

// At returns the drift of block i.
func (s *Stability) At(i int) Drift { return s.acc[i] }

// Drift returns |x| + |y| of block i.
func (s *Stability) Drift(i int) int {
	d := s.acc[i]
	x, y := int(d.X), int(d.Y)
	if x < 0 {
		x = -x
	}
	if y < 0 {
		y = -y
	}
	return x + y
}

func sat(x int) int16 {
	return int16(clamp(x, -32768, 32767))
}
