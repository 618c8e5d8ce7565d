package mocks

import (
	"io"

	"github.com/user/subband/pkg/frame"
	"github.com/user/subband/pkg/ports"
)

// FrameSource is a mock implementation of ports.FrameSource.
// Without NextFunc it returns Frames in order and then io.EOF.
type FrameSource struct {
	OpenFunc  func(path string) error
	NextFunc  func() (*frame.Frame, error)
	CloseFunc func() error

	Meta   frame.Metadata
	Frames []*frame.Frame

	// Recorded calls for verification
	OpenedPath string
	Closed     bool
	pos        int
}

// NewFrameSource returns a source of n flat frames of the given shape.
// Frame i is filled with value base+i.
func NewFrameSource(meta frame.Metadata, n int, base byte) *FrameSource {
	s := &FrameSource{Meta: meta}
	for i := 0; i < n; i++ {
		f := frame.New(meta.Width, meta.Height, meta.Subsampling)
		f.Fill(base + byte(i))
		s.Frames = append(s.Frames, f)
	}
	return s
}

func (m *FrameSource) Open(path string) error {
	m.OpenedPath = path
	if m.OpenFunc != nil {
		return m.OpenFunc(path)
	}
	return nil
}

func (m *FrameSource) Metadata() frame.Metadata {
	return m.Meta
}

func (m *FrameSource) Next() (*frame.Frame, error) {
	if m.NextFunc != nil {
		return m.NextFunc()
	}
	if m.pos >= len(m.Frames) {
		return nil, io.EOF
	}
	f := m.Frames[m.pos]
	m.pos++
	return f, nil
}

func (m *FrameSource) Close() error {
	m.Closed = true
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

var _ ports.FrameSource = (*FrameSource)(nil)
