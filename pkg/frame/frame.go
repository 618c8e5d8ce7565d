// Package frame defines the picture, geometry and motion types shared by the encoder core
// and its external collaborators.
package frame

import (
	"fmt"
	"image"
	"strings"
)

// Subsampling describes the chroma plane layout of a frame.
type Subsampling int

const (
	Subsampling444 Subsampling = iota
	Subsampling422
	Subsampling420
	Subsampling411
)

// Shift returns the horizontal and vertical chroma decimation as right shifts.
func (s Subsampling) Shift() (h, v int) {
	switch s {
	case Subsampling422:
		return 1, 0
	case Subsampling420:
		return 1, 1
	case Subsampling411:
		return 2, 0
	default:
		return 0, 0
	}
}

// String returns the conventional name of the layout, e.g. "4:2:0".
func (s Subsampling) String() string {
	switch s {
	case Subsampling444:
		return "4:4:4"
	case Subsampling422:
		return "4:2:2"
	case Subsampling420:
		return "4:2:0"
	case Subsampling411:
		return "4:1:1"
	default:
		return "unknown"
	}
}

// ParseSubsampling accepts "444", "4:2:0", "420jpeg" and similar spellings.
func ParseSubsampling(s string) (Subsampling, error) {
	key := strings.ReplaceAll(strings.ToLower(s), ":", "")
	switch {
	case strings.HasPrefix(key, "444"):
		return Subsampling444, nil
	case strings.HasPrefix(key, "422"):
		return Subsampling422, nil
	case strings.HasPrefix(key, "420"):
		return Subsampling420, nil
	case strings.HasPrefix(key, "411"):
		return Subsampling411, nil
	}
	return Subsampling420, fmt.Errorf("unsupported subsampling %q", s)
}

// ChromaSize returns the chroma plane dimensions for a luma size, rounded up.
func ChromaSize(width, height int, s Subsampling) (int, int) {
	h, v := s.Shift()
	return (width + (1 << h) - 1) >> h, (height + (1 << v) - 1) >> v
}

// Plane is a single 8-bit sample plane.
type Plane struct {
	Width  int
	Height int
	Stride int
	Pix    []byte
}

// NewPlane allocates a zeroed plane.
func NewPlane(width, height int) Plane {
	return Plane{
		Width:  width,
		Height: height,
		Stride: width,
		Pix:    make([]byte, width*height),
	}
}

// Row returns the samples of row y.
func (p *Plane) Row(y int) []byte {
	off := y * p.Stride
	return p.Pix[off : off+p.Width]
}

// At returns the sample at (x, y) with coordinates clamped to the plane edges.
func (p *Plane) At(x, y int) byte {
	if x < 0 {
		x = 0
	} else if x >= p.Width {
		x = p.Width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= p.Height {
		y = p.Height - 1
	}
	return p.Pix[y*p.Stride+x]
}

// Gray exposes the plane as an image.Gray sharing the same memory.
func (p *Plane) Gray() *image.Gray {
	return &image.Gray{
		Pix:    p.Pix,
		Stride: p.Stride,
		Rect:   image.Rect(0, 0, p.Width, p.Height),
	}
}

// PlaneFromGray wraps an image.Gray whose bounds start at the origin.
func PlaneFromGray(g *image.Gray) Plane {
	b := g.Bounds()
	return Plane{
		Width:  b.Dx(),
		Height: b.Dy(),
		Stride: g.Stride,
		Pix:    g.Pix[g.PixOffset(b.Min.X, b.Min.Y):],
	}
}

// Frame is a planar Y'CbCr picture. Planes[0] is luma.
type Frame struct {
	Width       int
	Height      int
	Subsampling Subsampling
	Planes      [3]Plane
}

// New allocates a frame with zeroed planes.
func New(width, height int, s Subsampling) *Frame {
	cw, ch := ChromaSize(width, height, s)
	return &Frame{
		Width:       width,
		Height:      height,
		Subsampling: s,
		Planes:      [3]Plane{NewPlane(width, height), NewPlane(cw, ch), NewPlane(cw, ch)},
	}
}

// Clone returns a deep copy with tightly packed planes.
func (f *Frame) Clone() *Frame {
	out := &Frame{Width: f.Width, Height: f.Height, Subsampling: f.Subsampling}
	for i := range f.Planes {
		src := &f.Planes[i]
		dst := NewPlane(src.Width, src.Height)
		for y := 0; y < src.Height; y++ {
			copy(dst.Row(y), src.Row(y))
		}
		out.Planes[i] = dst
	}
	return out
}

// Fill sets every sample of every plane to v.
func (f *Frame) Fill(v byte) {
	for i := range f.Planes {
		p := &f.Planes[i]
		for y := 0; y < p.Height; y++ {
			row := p.Row(y)
			for x := range row {
				row[x] = v
			}
		}
	}
}

// SameShape reports whether both frames have identical plane dimensions.
func (f *Frame) SameShape(o *Frame) bool {
	if f == nil || o == nil {
		return false
	}
	if f.Width != o.Width || f.Height != o.Height || f.Subsampling != o.Subsampling {
		return false
	}
	for i := range f.Planes {
		if f.Planes[i].Width != o.Planes[i].Width || f.Planes[i].Height != o.Planes[i].Height {
			return false
		}
	}
	return true
}

// Metadata describes a video stream.
type Metadata struct {
	Width       int
	Height      int
	Subsampling Subsampling
	FPSNum      int
	FPSDen      int
	AspectNum   int
	AspectDen   int
}

// Validate checks that the metadata can drive an encoder.
func (m Metadata) Validate() error {
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", m.Width, m.Height)
	}
	if m.FPSNum <= 0 || m.FPSDen <= 0 {
		return fmt.Errorf("invalid frame rate %d/%d", m.FPSNum, m.FPSDen)
	}
	if m.Subsampling < Subsampling444 || m.Subsampling > Subsampling411 {
		return fmt.Errorf("invalid subsampling %d", m.Subsampling)
	}
	return nil
}

// FrameRate returns frames per second.
func (m Metadata) FrameRate() float64 {
	if m.FPSDen == 0 {
		return 0
	}
	return float64(m.FPSNum) / float64(m.FPSDen)
}
