// Package imagesource reads a sequence of still images as 4:2:0 frames.
//
// The path given to Open is a directory or a glob pattern; matching PNG, JPEG and
// GIF files are read in the order the filesystem's Glob returns them. Every image is
// scaled to the stream size, which is the first image's size rounded down to even
// unless set explicitly.
package imagesource

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"github.com/user/subband/pkg/frame"
	"github.com/user/subband/pkg/ports"
)

var extensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true}

// Options control the stream produced from the images.
type Options struct {
	Width  int // 0 keeps the first image's width
	Height int // 0 keeps the first image's height
	FPSNum int
	FPSDen int
}

// Source implements ports.FrameSource.
type Source struct {
	fs     ports.FileSystem
	opts   Options
	files  []string
	pos    int
	meta   frame.Metadata
	first  image.Image
	scaler draw.Scaler
}

// New creates a Source reading through fs.
func New(fs ports.FileSystem, opts Options) *Source {
	if opts.FPSNum <= 0 || opts.FPSDen <= 0 {
		opts.FPSNum, opts.FPSDen = 30, 1
	}
	return &Source{fs: fs, opts: opts, scaler: draw.CatmullRom}
}

// Open lists the images and reads the first one to fix the stream size.
func (s *Source) Open(path string) error {
	pattern := path
	if ok, _ := s.fs.Exists(path); ok && !strings.ContainsAny(path, "*?[") && filepath.Ext(path) == "" {
		pattern = filepath.Join(path, "*")
	}
	matches, err := s.fs.Glob(pattern)
	if err != nil {
		return fmt.Errorf("list %s: %w", path, err)
	}
	s.files = s.files[:0]
	for _, m := range matches {
		if extensions[strings.ToLower(filepath.Ext(m))] {
			s.files = append(s.files, m)
		}
	}
	if len(s.files) == 0 {
		return fmt.Errorf("imagesource: no images match %s", path)
	}

	img, err := s.decode(s.files[0])
	if err != nil {
		return err
	}
	b := img.Bounds()
	w, h := s.opts.Width, s.opts.Height
	if w <= 0 {
		w = b.Dx() &^ 1
	}
	if h <= 0 {
		h = b.Dy() &^ 1
	}
	s.meta = frame.Metadata{
		Width:       w,
		Height:      h,
		Subsampling: frame.Subsampling420,
		FPSNum:      s.opts.FPSNum,
		FPSDen:      s.opts.FPSDen,
		AspectNum:   1,
		AspectDen:   1,
	}
	if err := s.meta.Validate(); err != nil {
		return fmt.Errorf("imagesource: %w", err)
	}
	s.first = img
	s.pos = 0
	return nil
}

func (s *Source) decode(path string) (image.Image, error) {
	data, err := s.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Metadata describes the stream.
func (s *Source) Metadata() frame.Metadata {
	return s.meta
}

// Next returns the next image as a frame, or io.EOF after the last one.
func (s *Source) Next() (*frame.Frame, error) {
	if s.pos >= len(s.files) {
		return nil, io.EOF
	}
	img := s.first
	if s.pos > 0 || img == nil {
		var err error
		if img, err = s.decode(s.files[s.pos]); err != nil {
			return nil, err
		}
	}
	s.first = nil
	s.pos++
	return ToFrame(img, s.meta.Width, s.meta.Height, s.scaler), nil
}

// Close releases nothing; files are read whole.
func (s *Source) Close() error {
	s.files = nil
	s.first = nil
	return nil
}

// ToFrame scales img to width x height and converts it to 4:2:0 Y'CbCr. Chroma
// samples are the average of each 2x2 block.
func ToFrame(img image.Image, width, height int, scaler draw.Scaler) *frame.Frame {
	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	if img.Bounds().Dx() == width && img.Bounds().Dy() == height {
		draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	} else {
		scaler.Scale(rgba, rgba.Bounds(), img, img.Bounds(), draw.Src, nil)
	}

	f := frame.New(width, height, frame.Subsampling420)
	luma := &f.Planes[0]
	cb, cr := &f.Planes[1], &f.Planes[2]
	sumCb := make([]int, cb.Width*cb.Height)
	sumCr := make([]int, cb.Width*cb.Height)
	count := make([]int, cb.Width*cb.Height)
	for y := 0; y < height; y++ {
		row := luma.Row(y)
		for x := 0; x < width; x++ {
			o := rgba.PixOffset(x, y)
			yy, u, v := color.RGBToYCbCr(rgba.Pix[o], rgba.Pix[o+1], rgba.Pix[o+2])
			row[x] = yy
			ci := (y>>1)*cb.Width + x>>1
			sumCb[ci] += int(u)
			sumCr[ci] += int(v)
			count[ci]++
		}
	}
	for i := range count {
		y, x := i/cb.Width, i%cb.Width
		cb.Row(y)[x] = byte((sumCb[i] + count[i]/2) / count[i])
		cr.Row(y)[x] = byte((sumCr[i] + count[i]/2) / count[i])
	}
	return f
}

// Ensure Source implements ports.FrameSource
var _ ports.FrameSource = (*Source)(nil)
