// Package pyramid builds the resolution pyramids used by hierarchical motion estimation.
package pyramid

import (
	"github.com/user/subband/pkg/frame"
	"github.com/user/subband/pkg/ports"
)

// MaxLevels is the deepest pyramid the encoder will build.
const MaxLevels = 5

// Levels returns the number of levels Build produces for a configured count.
func Levels(configured int) int {
	if configured > MaxLevels {
		return MaxLevels
	}
	if configured < 1 {
		return 1
	}
	return configured
}

// Build returns an ordered pyramid for base. Level 0 is base itself and every further
// level is the previous one passed through filter.Downsample, so each call allocates
// fresh buffers for levels 1 and up.
func Build(filter ports.PixelFilter, base *frame.Frame, levels int) []*frame.Frame {
	n := Levels(levels)
	out := make([]*frame.Frame, n)
	out[0] = base
	for k := 1; k < n; k++ {
		out[k] = filter.Downsample(out[k-1])
	}
	return out
}

// LevelSize returns the luma size of level k for a base of width x height.
func LevelSize(width, height, k int) (int, int) {
	for i := 0; i < k; i++ {
		width = (width + 1) / 2
		height = (height + 1) / 2
	}
	return width, height
}

// Compatible reports whether two pyramids agree in depth and in shape at every level.
func Compatible(a, b []*frame.Frame) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].SameShape(b[i]) {
			return false
		}
	}
	return true
}
