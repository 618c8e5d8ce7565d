package hme

import (
	"math"

	"github.com/user/subband/pkg/frame"
)

// diamond is the small refinement pattern used at the finer levels.
var diamond = [4]frame.MotionVector{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}}

// coarseRadius is the half-width of the exhaustive window at the coarsest level.
func coarseRadius(effort int) int {
	return 2 + effort/2
}

// refinePasses is the number of diamond passes at each finer level.
func refinePasses(effort int) int {
	return 1 + effort/3
}

func (s *search) blockRect(k, bx, by int) (x0, y0, bw, bh int) {
	bw = s.g.BlockW >> k
	if bw < 1 {
		bw = 1
	}
	bh = s.g.BlockH >> k
	if bh < 1 {
		bh = 1
	}
	return bx * bw, by * bh, bw, bh
}

// predictor is the vector a block is expected to have. Deviating from it costs rate.
func (s *search) predictor(k, bx, by int) frame.MotionVector {
	i := by*s.g.BlocksX + bx
	if k == len(s.src)-1 {
		if s.prev == nil {
			return frame.MotionVector{}
		}
		return shiftDown(s.prev[i], k)
	}
	parent := s.fields[k+1]
	self := parent[i]
	left, right, up, down := self, self, self, self
	if bx > 0 {
		left = parent[i-1]
	}
	if bx < s.g.BlocksX-1 {
		right = parent[i+1]
	}
	if by > 0 {
		up = parent[i-s.g.BlocksX]
	}
	if by < s.g.BlocksY-1 {
		down = parent[i+s.g.BlocksX]
	}
	m := frame.MotionVector{
		X: median5(self.X, left.X, right.X, up.X, down.X),
		Y: median5(self.Y, left.Y, right.Y, up.Y, down.Y),
	}
	return m.Double()
}

func (s *search) searchBlock(k, bx, by int, errs []int) {
	i := by*s.g.BlocksX + bx
	x0, y0, bw, bh := s.blockRect(k, bx, by)

	limit := MaxRange >> k
	if limit < 1 {
		limit = 1
	}
	lambda := s.opts.Lambda * bw * bh / 256
	if lambda < 1 {
		lambda = 1
	}

	ev := &evaluator{
		src:    &s.src[k].Planes[0],
		ref:    &s.ref[k].Planes[0],
		x0:     x0,
		y0:     y0,
		bw:     bw,
		bh:     bh,
		pred:   s.predictor(k, bx, by),
		lambda: lambda,
	}
	if s.opts.Psy && k == 0 {
		ev.psy = true
		ev.srcTex = texture(ev.src, x0, y0, bw, bh)
	}

	best := frame.MotionVector{}
	bestCost := ev.cost(best, math.MaxInt)
	try := func(mv frame.MotionVector) {
		mv = clampVector(mv, limit)
		if c := ev.cost(mv, bestCost); c < bestCost {
			best, bestCost = mv, c
		}
	}

	if k == len(s.src)-1 {
		if s.prev != nil {
			try(shiftDown(s.prev[i], k))
		}
		r := coarseRadius(s.opts.Effort)
		center := best
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				try(offset(center, dx, dy))
			}
		}
	} else {
		parent := s.fields[k+1]
		try(parent[i].Double())
		if bx > 0 {
			try(parent[i-1].Double())
		}
		if bx < s.g.BlocksX-1 {
			try(parent[i+1].Double())
		}
		if by > 0 {
			try(parent[i-s.g.BlocksX].Double())
		}
		if by < s.g.BlocksY-1 {
			try(parent[i+s.g.BlocksX].Double())
		}

		for pass := 0; pass < refinePasses(s.opts.Effort); pass++ {
			center := best
			for _, d := range diamond {
				try(offset(center, int(d.X), int(d.Y)))
			}
			if best == center {
				break
			}
		}
		if k == 0 && s.opts.Effort >= 5 {
			center := best
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx != 0 && dy != 0 {
						try(offset(center, dx, dy))
					}
				}
			}
		}
	}

	s.fields[k][i] = best
	if errs != nil {
		area := bw * bh
		errs[i] = (ev.sad(best, math.MaxInt) + area/2) / area
	}
}

// evaluator scores candidate vectors for one block.
type evaluator struct {
	src, ref *frame.Plane
	x0, y0   int
	bw, bh   int
	pred     frame.MotionVector
	lambda   int
	psy      bool
	srcTex   int
}

// cost is the prediction error plus the rate bias of a vector. Evaluation stops
// early once the error alone reaches bound.
func (ev *evaluator) cost(mv frame.MotionVector, bound int) int {
	c := ev.sad(mv, bound)
	if c >= bound {
		return c
	}
	c += ev.lambda * (mv.Dist(ev.pred) + mv.L1()/2)
	if ev.psy {
		c += absInt(ev.srcTex-texture(ev.ref, ev.x0+int(mv.X), ev.y0+int(mv.Y), ev.bw, ev.bh)) / 2
	}
	return c
}

// sad is the sum of absolute differences between the block and the displaced reference.
func (ev *evaluator) sad(mv frame.MotionVector, bound int) int {
	rx := ev.x0 + int(mv.X)
	ry := ev.y0 + int(mv.Y)
	inside := ev.x0+ev.bw <= ev.src.Width && ev.y0+ev.bh <= ev.src.Height &&
		rx >= 0 && ry >= 0 && rx+ev.bw <= ev.ref.Width && ry+ev.bh <= ev.ref.Height

	total := 0
	for y := 0; y < ev.bh; y++ {
		if inside {
			srow := ev.src.Pix[(ev.y0+y)*ev.src.Stride+ev.x0:]
			rrow := ev.ref.Pix[(ry+y)*ev.ref.Stride+rx:]
			for x := 0; x < ev.bw; x++ {
				total += absInt(int(srow[x]) - int(rrow[x]))
			}
		} else {
			for x := 0; x < ev.bw; x++ {
				total += absInt(int(ev.src.At(ev.x0+x, ev.y0+y)) - int(ev.ref.At(rx+x, ry+y)))
			}
		}
		if total >= bound {
			return total
		}
	}
	return total
}

// texture is the gradient energy of a block, a cheap stand-in for perceived detail.
func texture(p *frame.Plane, x0, y0, bw, bh int) int {
	t := 0
	for y := 0; y < bh; y++ {
		for x := 0; x < bw; x++ {
			c := int(p.At(x0+x, y0+y))
			t += absInt(c-int(p.At(x0+x+1, y0+y))) + absInt(c-int(p.At(x0+x, y0+y+1)))
		}
	}
	return t
}

func offset(v frame.MotionVector, dx, dy int) frame.MotionVector {
	return frame.MotionVector{X: int16(int(v.X) + dx), Y: int16(int(v.Y) + dy)}
}

func clampVector(v frame.MotionVector, limit int) frame.MotionVector {
	return frame.MotionVector{X: int16(clampInt(int(v.X), -limit, limit)), Y: int16(clampInt(int(v.Y), -limit, limit))}
}

func shiftDown(v frame.MotionVector, k int) frame.MotionVector {
	return frame.MotionVector{X: v.X >> uint(k), Y: v.Y >> uint(k)}
}

func median5(a, b, c, d, e int16) int16 {
	v := [5]int16{a, b, c, d, e}
	for i := 1; i < len(v); i++ {
		for j := i; j > 0 && v[j] < v[j-1]; j-- {
			v[j], v[j-1] = v[j-1], v[j]
		}
	}
	return v[2]
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func clampInt(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
