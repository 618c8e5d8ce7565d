package pyramid

import (
	"testing"

	"github.com/user/subband/pkg/adapters/pixelfilter"
	"github.com/user/subband/pkg/frame"
)

func TestLevels(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 1},
		{1, 1},
		{3, 3},
		{5, 5},
		{9, MaxLevels},
	}
	for _, tt := range tests {
		if got := Levels(tt.in); got != tt.want {
			t.Errorf("Levels(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestBuild(t *testing.T) {
	base := frame.New(100, 60, frame.Subsampling420)
	base.Fill(77)

	levels := Build(pixelfilter.New(), base, 4)
	if len(levels) != 4 {
		t.Fatalf("expected 4 levels, got %d", len(levels))
	}
	if levels[0] != base {
		t.Error("level 0 should be the base frame")
	}
	for k, f := range levels {
		w, h := LevelSize(100, 60, k)
		if f.Width != w || f.Height != h {
			t.Errorf("level %d: expected %dx%d, got %dx%d", k, w, h, f.Width, f.Height)
		}
		cw, ch := frame.ChromaSize(w, h, frame.Subsampling420)
		if k == 0 && (f.Planes[1].Width != cw || f.Planes[1].Height != ch) {
			t.Errorf("level 0 chroma: expected %dx%d, got %dx%d", cw, ch, f.Planes[1].Width, f.Planes[1].Height)
		}
		if got := f.Planes[0].At(f.Width/2, f.Height/2); got < 76 || got > 78 {
			t.Errorf("level %d: flat input should stay flat, got %d", k, got)
		}
	}
}

func TestLevelSize(t *testing.T) {
	w, h := LevelSize(33, 17, 2)
	if w != 9 || h != 5 {
		t.Errorf("expected 9x5, got %dx%d", w, h)
	}
}

func TestCompatible(t *testing.T) {
	filter := pixelfilter.New()
	a := Build(filter, frame.New(64, 64, frame.Subsampling420), 3)
	b := Build(filter, frame.New(64, 64, frame.Subsampling420), 3)
	c := Build(filter, frame.New(64, 32, frame.Subsampling420), 3)

	if !Compatible(a, b) {
		t.Error("expected equal pyramids to be compatible")
	}
	if Compatible(a, c) {
		t.Error("expected different sizes to be incompatible")
	}
	if Compatible(a, a[:2]) {
		t.Error("expected different depths to be incompatible")
	}
}
