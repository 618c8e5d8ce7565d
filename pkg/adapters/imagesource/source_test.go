package imagesource

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"path/filepath"
	"testing"

	"golang.org/x/image/draw"

	"github.com/user/subband/pkg/adapters/osfilesystem"
	"github.com/user/subband/pkg/mocks"
)

func writePNG(t *testing.T, path string, w, h int, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := osfilesystem.New().WriteFile(path, buf.Bytes()); err != nil {
		t.Fatal(err)
	}
}

func TestSource_Directory(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "002.png"), 33, 20, color.White)
	writePNG(t, filepath.Join(dir, "001.png"), 33, 20, color.Black)
	writePNG(t, filepath.Join(dir, "003.png"), 66, 40, color.White)

	s := New(osfilesystem.New(), Options{FPSNum: 25, FPSDen: 1})
	if err := s.Open(dir); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	meta := s.Metadata()
	if meta.Width != 32 || meta.Height != 20 || meta.FPSNum != 25 {
		t.Errorf("unexpected metadata %+v", meta)
	}

	f, err := s.Next()
	if err != nil {
		t.Fatalf("frame 0: %v", err)
	}
	if y := f.Planes[0].At(5, 5); y > 20 {
		t.Errorf("expected the black image first, got luma %d", y)
	}
	if cb := f.Planes[1].At(2, 2); cb < 126 || cb > 130 {
		t.Errorf("expected neutral chroma, got %d", cb)
	}

	for i := 1; i < 3; i++ {
		f, err := s.Next()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if f.Width != 32 || f.Height != 20 {
			t.Errorf("frame %d: expected 32x20, got %dx%d", i, f.Width, f.Height)
		}
		if y := f.Planes[0].At(10, 10); y < 235 {
			t.Errorf("frame %d: expected white, got luma %d", i, y)
		}
	}
	if _, err := s.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestSource_GlobThroughFileSystem(t *testing.T) {
	fs := mocks.NewFileSystem()
	for i, c := range []color.Gray{{Y: 0}, {Y: 255}} {
		img := image.NewGray(image.Rect(0, 0, 8, 8))
		for p := range img.Pix {
			img.Pix[p] = c.Y
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			t.Fatal(err)
		}
		fs.WriteFile(filepath.Join("seq", []string{"b.png", "a.png"}[i]), buf.Bytes())
	}
	fs.WriteFile(filepath.Join("seq", "notes.txt"), []byte("skip"))

	s := New(fs, Options{Width: 4, Height: 4})
	if err := s.Open(filepath.Join("seq", "*")); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if m := s.Metadata(); m.Width != 4 || m.Height != 4 || m.FPSNum != 30 {
		t.Errorf("unexpected metadata %+v", m)
	}

	// a.png (white) sorts before b.png (black).
	for i, wantBright := range []bool{true, false} {
		f, err := s.Next()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if bright := f.Planes[0].At(1, 1) > 128; bright != wantBright {
			t.Errorf("frame %d: unexpected luma %d", i, f.Planes[0].At(1, 1))
		}
	}
	if _, err := s.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestSource_NoImages(t *testing.T) {
	s := New(osfilesystem.New(), Options{})
	if err := s.Open(filepath.Join(t.TempDir(), "*.png")); err == nil {
		t.Error("expected error for empty match")
	}
}

func TestToFrame_Scales(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	f := ToFrame(img, 4, 6, draw.CatmullRom)
	if f.Width != 4 || f.Height != 6 || f.Planes[1].Width != 2 || f.Planes[1].Height != 3 {
		t.Errorf("unexpected shape %dx%d / %dx%d", f.Width, f.Height, f.Planes[1].Width, f.Planes[1].Height)
	}
}
