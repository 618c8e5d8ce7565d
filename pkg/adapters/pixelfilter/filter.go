// Package pixelfilter implements ports.PixelFilter with golang.org/x/image/draw kernels.
package pixelfilter

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/user/subband/pkg/frame"
	"github.com/user/subband/pkg/ports"
)

// Filter pads by edge replication and decimates with a fixed interpolation kernel.
type Filter struct {
	kernel *draw.Kernel
}

// New creates a Filter using the bilinear kernel, which widens its support when
// shrinking and therefore low-passes before decimating.
func New() *Filter {
	return &Filter{kernel: draw.BiLinear}
}

// NewWithKernel creates a Filter with a caller-chosen kernel such as draw.CatmullRom.
func NewWithKernel(k *draw.Kernel) *Filter {
	return &Filter{kernel: k}
}

// Pad returns a copy of f enlarged to width x height by replicating the last column and row.
func (fl *Filter) Pad(f *frame.Frame, width, height int) *frame.Frame {
	out := frame.New(width, height, f.Subsampling)
	for i := range f.Planes {
		padPlane(&out.Planes[i], &f.Planes[i])
	}
	return out
}

func padPlane(dst, src *frame.Plane) {
	for y := 0; y < dst.Height; y++ {
		sy := y
		if sy >= src.Height {
			sy = src.Height - 1
		}
		srow := src.Row(sy)
		drow := dst.Row(y)
		n := copy(drow, srow)
		edge := srow[len(srow)-1]
		for x := n; x < len(drow); x++ {
			drow[x] = edge
		}
	}
}

// Downsample halves every plane, rounding odd sizes up.
func (fl *Filter) Downsample(f *frame.Frame) *frame.Frame {
	out := &frame.Frame{
		Width:       (f.Width + 1) / 2,
		Height:      (f.Height + 1) / 2,
		Subsampling: f.Subsampling,
	}
	for i := range f.Planes {
		src := &f.Planes[i]
		dst := image.NewGray(image.Rect(0, 0, (src.Width+1)/2, (src.Height+1)/2))
		fl.kernel.Scale(dst, dst.Bounds(), src.Gray(), image.Rect(0, 0, src.Width, src.Height), draw.Src, nil)
		out.Planes[i] = frame.PlaneFromGray(dst)
	}
	return out
}

// Ensure Filter implements ports.PixelFilter
var _ ports.PixelFilter = (*Filter)(nil)
