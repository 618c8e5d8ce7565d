// Package y4msource reads raw frames from YUV4MPEG2 files.
package y4msource

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/user/subband/pkg/frame"
	"github.com/user/subband/pkg/ports"
)

const signature = "YUV4MPEG2"

// ErrInterlaced is returned for interlaced streams, which the encoder does not code.
var ErrInterlaced = errors.New("y4msource: interlaced input is not supported")

// Source implements ports.FrameSource.
type Source struct {
	fs     ports.FileSystem
	file   io.Closer
	r      *bufio.Reader
	meta   frame.Metadata
	frames int
}

// New creates a Source that opens files through fs. Call Open or OpenReader before reading.
func New(fs ports.FileSystem) *Source {
	return &Source{fs: fs}
}

// Open opens a .y4m file.
func (s *Source) Open(path string) error {
	f, err := s.fs.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if err := s.OpenReader(f); err != nil {
		f.Close()
		return err
	}
	s.file = f
	return nil
}

// OpenReader reads the stream header from r.
func (s *Source) OpenReader(r io.Reader) error {
	s.r = bufio.NewReader(r)
	line, err := s.r.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	meta, err := ParseHeader(strings.TrimSuffix(line, "\n"))
	if err != nil {
		return err
	}
	s.meta = meta
	s.frames = 0
	return nil
}

// ParseHeader parses a YUV4MPEG2 stream header line.
func ParseHeader(line string) (frame.Metadata, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != signature {
		return frame.Metadata{}, fmt.Errorf("y4msource: missing %s signature", signature)
	}

	meta := frame.Metadata{
		Subsampling: frame.Subsampling420,
		FPSNum:      30,
		FPSDen:      1,
		AspectNum:   1,
		AspectDen:   1,
	}
	for _, f := range fields[1:] {
		tag, val := f[0], f[1:]
		var err error
		switch tag {
		case 'W':
			meta.Width, err = strconv.Atoi(val)
		case 'H':
			meta.Height, err = strconv.Atoi(val)
		case 'F':
			meta.FPSNum, meta.FPSDen, err = ratio(val)
		case 'A':
			meta.AspectNum, meta.AspectDen, err = ratio(val)
			if err == nil && (meta.AspectNum == 0 || meta.AspectDen == 0) {
				meta.AspectNum, meta.AspectDen = 1, 1
			}
		case 'I':
			if val != "p" && val != "?" {
				return frame.Metadata{}, ErrInterlaced
			}
		case 'C':
			if strings.HasPrefix(val, "mono") {
				return frame.Metadata{}, fmt.Errorf("y4msource: colorspace %q not supported", val)
			}
			meta.Subsampling, err = frame.ParseSubsampling(val)
		}
		if err != nil {
			return frame.Metadata{}, fmt.Errorf("y4msource: bad %c parameter %q: %w", tag, val, err)
		}
	}
	if err := meta.Validate(); err != nil {
		return frame.Metadata{}, fmt.Errorf("y4msource: %w", err)
	}
	return meta, nil
}

func ratio(s string) (int, int, error) {
	num, den, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("expected n:d")
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return 0, 0, err
	}
	d, err := strconv.Atoi(den)
	if err != nil {
		return 0, 0, err
	}
	return n, d, nil
}

// Metadata describes the stream.
func (s *Source) Metadata() frame.Metadata {
	return s.meta
}

// Next reads the next frame, returning io.EOF after the last one.
func (s *Source) Next() (*frame.Frame, error) {
	if s.r == nil {
		return nil, fmt.Errorf("y4msource: not open")
	}
	line, err := s.r.ReadBytes('\n')
	if err == io.EOF && len(line) == 0 {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	if !bytes.HasPrefix(line, []byte("FRAME")) {
		return nil, fmt.Errorf("y4msource: frame %d: bad frame marker", s.frames)
	}

	f := frame.New(s.meta.Width, s.meta.Height, s.meta.Subsampling)
	for i := range f.Planes {
		if _, err := io.ReadFull(s.r, f.Planes[i].Pix); err != nil {
			return nil, fmt.Errorf("y4msource: frame %d plane %d: %w", s.frames, i, err)
		}
	}
	s.frames++
	return f, nil
}

// Close closes the underlying file.
func (s *Source) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// Ensure Source implements ports.FrameSource
var _ ports.FrameSource = (*Source)(nil)
