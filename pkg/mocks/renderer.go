package mocks

import (
	"image"
	"image/color"
	"sync"

	"github.com/user/subband/pkg/ports"
)

// Renderer is a mock implementation of ports.Renderer.
type Renderer struct {
	CreateCanvasFunc func(width, height int, bg color.Color) ports.Canvas
	EncodeImageFunc  func(img image.Image, format ports.ImageFormat, quality int) ([]byte, error)
	ResizeImageFunc  func(img image.Image, width, height int) image.Image
}

func (m *Renderer) CreateCanvas(width, height int, bg color.Color) ports.Canvas {
	if m.CreateCanvasFunc != nil {
		return m.CreateCanvasFunc(width, height, bg)
	}
	return NewCanvas(width, height)
}

func (m *Renderer) EncodeImage(img image.Image, format ports.ImageFormat, quality int) ([]byte, error) {
	if m.EncodeImageFunc != nil {
		return m.EncodeImageFunc(img, format, quality)
	}
	return []byte{}, nil
}

func (m *Renderer) ResizeImage(img image.Image, width, height int) image.Image {
	if m.ResizeImageFunc != nil {
		return m.ResizeImageFunc(img, width, height)
	}
	return image.NewRGBA(image.Rect(0, 0, width, height))
}

var _ ports.Renderer = (*Renderer)(nil)

// Line is a recorded Canvas.DrawLine call.
type Line struct {
	X1, Y1, X2, Y2 int
	Color          color.Color
}

// Rect is a recorded DrawRect or DrawRectStroke call.
type Rect struct {
	X, Y, W, H int
	Color      color.Color
	Filled     bool
}

// Canvas is a mock implementation of ports.Canvas that records draw calls.
type Canvas struct {
	mu     sync.Mutex
	width  int
	height int

	Images int
	Lines  []Line
	Rects  []Rect
	Texts  []string
}

// NewCanvas creates a recording canvas.
func NewCanvas(width, height int) *Canvas {
	return &Canvas{width: width, height: height}
}

func (m *Canvas) DrawImage(img image.Image, x, y int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Images++
}

func (m *Canvas) DrawRect(x, y, w, h int, c color.Color) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rects = append(m.Rects, Rect{X: x, Y: y, W: w, H: h, Color: c, Filled: true})
}

func (m *Canvas) DrawRectStroke(x, y, w, h int, c color.Color, strokeWidth float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rects = append(m.Rects, Rect{X: x, Y: y, W: w, H: h, Color: c})
}

func (m *Canvas) DrawText(text string, x, y int, style ports.TextStyle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Texts = append(m.Texts, text)
}

func (m *Canvas) DrawLine(x1, y1, x2, y2 int, c color.Color, width float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lines = append(m.Lines, Line{X1: x1, Y1: y1, X2: x2, Y2: y2, Color: c})
}

func (m *Canvas) ToImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, m.width, m.height))
}

var _ ports.Canvas = (*Canvas)(nil)
