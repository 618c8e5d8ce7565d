package pixelfilter

import (
	"testing"

	"golang.org/x/image/draw"

	"github.com/user/subband/pkg/frame"
)

func TestFilter_Pad(t *testing.T) {
	f := frame.New(3, 2, frame.Subsampling420)
	for y := 0; y < 2; y++ {
		row := f.Planes[0].Row(y)
		for x := range row {
			row[x] = byte(10*y + x)
		}
	}

	out := New().Pad(f, 8, 4)
	if out.Width != 8 || out.Height != 4 || out.Planes[1].Width != 4 || out.Planes[1].Height != 2 {
		t.Fatalf("unexpected padded shape %dx%d", out.Width, out.Height)
	}

	tests := []struct {
		x, y int
		want byte
	}{
		{0, 0, 0},
		{2, 1, 12},
		{7, 0, 2},  // last column replicated
		{1, 3, 11}, // last row replicated
		{7, 3, 12}, // corner
	}
	for _, tt := range tests {
		if got := out.Planes[0].At(tt.x, tt.y); got != tt.want {
			t.Errorf("(%d,%d): expected %d, got %d", tt.x, tt.y, tt.want, got)
		}
	}
	if f.Width != 3 {
		t.Error("source frame must not be modified")
	}
}

func TestFilter_Downsample(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		wantW, wantH  int
	}{
		{"even", 16, 8, 8, 4},
		{"odd rounds up", 15, 9, 8, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := frame.New(tt.width, tt.height, frame.Subsampling420)
			f.Fill(77)

			out := New().Downsample(f)
			if out.Width != tt.wantW || out.Height != tt.wantH {
				t.Fatalf("expected %dx%d, got %dx%d", tt.wantW, tt.wantH, out.Width, out.Height)
			}
			cw, ch := frame.ChromaSize(tt.width, tt.height, frame.Subsampling420)
			if out.Planes[2].Width != (cw+1)/2 || out.Planes[2].Height != (ch+1)/2 {
				t.Errorf("unexpected chroma size %dx%d", out.Planes[2].Width, out.Planes[2].Height)
			}
			// A flat input stays flat under any normalized kernel.
			if v := out.Planes[0].At(out.Width-1, out.Height-1); v != 77 {
				t.Errorf("expected flat 77, got %d", v)
			}
		})
	}
}

func TestFilter_DownsampleIsDeterministic(t *testing.T) {
	f := frame.New(32, 32, frame.Subsampling444)
	for y := 0; y < 32; y++ {
		row := f.Planes[0].Row(y)
		for x := range row {
			row[x] = byte(x * y)
		}
	}

	fl := NewWithKernel(draw.CatmullRom)
	a, b := fl.Downsample(f), fl.Downsample(f)
	for y := 0; y < a.Height; y++ {
		ra, rb := a.Planes[0].Row(y), b.Planes[0].Row(y)
		for x := range ra {
			if ra[x] != rb[x] {
				t.Fatalf("(%d,%d) differs between calls", x, y)
			}
		}
	}
	if &a.Planes[0].Pix[0] == &b.Planes[0].Pix[0] {
		t.Error("expected independent output buffers")
	}
}
