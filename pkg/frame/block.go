package frame

// Type is the coding type of a picture.
type Type int

const (
	Intra Type = iota
	Predicted
)

func (t Type) String() string {
	if t == Intra {
		return "I"
	}
	return "P"
}

// MotionVector is an integer-pel displacement in the units of the level it belongs to.
type MotionVector struct {
	X int16
	Y int16
}

// Double scales a vector to the next finer pyramid level.
func (v MotionVector) Double() MotionVector {
	return MotionVector{X: sat16(int(v.X) * 2), Y: sat16(int(v.Y) * 2)}
}

// Half scales a vector to the next coarser pyramid level.
func (v MotionVector) Half() MotionVector {
	return MotionVector{X: v.X >> 1, Y: v.Y >> 1}
}

// L1 returns |x| + |y|.
func (v MotionVector) L1() int {
	return abs(int(v.X)) + abs(int(v.Y))
}

// Dist returns the L1 distance between two vectors.
func (v MotionVector) Dist(o MotionVector) int {
	return abs(int(v.X)-int(o.X)) + abs(int(v.Y)-int(o.Y))
}

// IsZero reports whether the vector is the zero displacement.
func (v MotionVector) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

// Geometry is the block grid of a stream: source size, block size and block counts.
type Geometry struct {
	Width   int
	Height  int
	BlockW  int
	BlockH  int
	BlocksX int
	BlocksY int
}

// NewGeometry covers width x height with blocks of bw x bh, rounding the grid up.
func NewGeometry(width, height, bw, bh int) Geometry {
	return Geometry{
		Width:   width,
		Height:  height,
		BlockW:  bw,
		BlockH:  bh,
		BlocksX: (width + bw - 1) / bw,
		BlocksY: (height + bh - 1) / bh,
	}
}

// Blocks returns the number of blocks in the grid.
func (g Geometry) Blocks() int { return g.BlocksX * g.BlocksY }

// PaddedWidth is the luma width after padding to whole blocks.
func (g Geometry) PaddedWidth() int { return g.BlocksX * g.BlockW }

// PaddedHeight is the luma height after padding to whole blocks.
func (g Geometry) PaddedHeight() int { return g.BlocksY * g.BlockH }

// BlockFlags mark per-block coding decisions handed to the transform stage.
type BlockFlags uint8

const (
	// BlockIntra marks a block of a predicted frame coded without motion compensation.
	BlockIntra BlockFlags = 1 << iota
	// BlockSkip marks a block whose residual is not worth coding.
	BlockSkip
	// BlockStable marks a block whose motion has been steady over the refresh window.
	BlockStable
)

// Has reports whether all bits of f are set.
func (b BlockFlags) Has(f BlockFlags) bool { return b&f == f }

// BlockInfo is the per-block metadata handed to the transform stage.
type BlockInfo struct {
	Flags BlockFlags
	Quant int
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func sat16(x int) int16 {
	if x > 32767 {
		return 32767
	}
	if x < -32768 {
		return -32768
	}
	return int16(x)
}
