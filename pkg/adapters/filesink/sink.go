// Package filesink provides a file-based debug sink implementation.
package filesink

import (
	"fmt"
	"image"
	"path/filepath"

	"github.com/user/subband/pkg/ports"
)

// Sink saves debug output to files under a base directory:
//
//	config.json            effective encoder configuration
//	frames.json            per-frame decision log
//	motion/frame-NNNNNN.png  motion field renders of predicted frames
type Sink struct {
	baseDir  string
	fs       ports.FileSystem
	renderer ports.Renderer
}

// New creates a new FileSink.
func New(baseDir string, fs ports.FileSystem, renderer ports.Renderer) *Sink {
	return &Sink{
		baseDir:  baseDir,
		fs:       fs,
		renderer: renderer,
	}
}

// Enabled returns true as this sink saves output.
func (s *Sink) Enabled() bool {
	return true
}

// SaveConfigJSON saves the effective encoder configuration.
func (s *Sink) SaveConfigJSON(data []byte) error {
	return s.write("config.json", data)
}

// SaveFrameLogJSON saves the per-frame decision log.
func (s *Sink) SaveFrameLogJSON(data []byte) error {
	return s.write("frames.json", data)
}

func (s *Sink) write(name string, data []byte) error {
	if err := s.fs.MkdirAll(s.baseDir); err != nil {
		return err
	}
	return s.fs.WriteFile(filepath.Join(s.baseDir, name), data)
}

// SaveMotionField saves a rendered motion field as PNG.
func (s *Sink) SaveMotionField(frameNumber uint64, img image.Image) error {
	dir := filepath.Join(s.baseDir, "motion")
	if err := s.fs.MkdirAll(dir); err != nil {
		return err
	}
	data, err := s.renderer.EncodeImage(img, ports.FormatPNG, 0)
	if err != nil {
		return fmt.Errorf("encode motion field %d: %w", frameNumber, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("frame-%06d.png", frameNumber))
	return s.fs.WriteFile(path, data)
}

// Ensure Sink implements ports.DebugSink
var _ ports.DebugSink = (*Sink)(nil)
