// Package pipeline defines the stages of an encode run and the values passed between them.
package pipeline

import (
	"context"
	"image"

	"github.com/user/subband/pkg/encoder"
	"github.com/user/subband/pkg/frame"
	"github.com/user/subband/pkg/ports"
)

// Stage is one step of an encode run. The orchestrator runs ingest, encode,
// visualize (debug runs only) and mux in that order.
type Stage[In, Out any] interface {
	Execute(ctx context.Context, input In) (Out, error)
}

// StageFunc adapts a function to Stage.
type StageFunc[In, Out any] func(ctx context.Context, input In) (Out, error)

func (f StageFunc[In, Out]) Execute(ctx context.Context, input In) (Out, error) {
	return f(ctx, input)
}

// =============================================================================
// Ingest Stage Types
// =============================================================================

// InputKind selects the frame source adapter.
type InputKind int

const (
	// InputAuto picks Y4M for *.y4m paths and the image sequence reader otherwise.
	InputAuto InputKind = iota
	InputY4M
	InputImages
)

// IngestInput contains parameters for opening the input.
type IngestInput struct {
	Path string
	Kind InputKind

	// Image sequences only.
	Width  int // 0 keeps the first image's width
	Height int // 0 keeps the first image's height
	FPSNum int
	FPSDen int
}

// IngestResult is an open frame source. The consumer must Close it.
type IngestResult struct {
	Source ports.FrameSource
	Meta   frame.Metadata
}

// =============================================================================
// Encode Stage Types
// =============================================================================

// EncodeInput contains parameters for encoding.
type EncodeInput struct {
	Source    ports.FrameSource
	Meta      frame.Metadata
	Config    encoder.Config
	MaxFrames int  // 0 encodes the whole input
	KeepLuma  bool // retain source luma for visualization
}

// FrameRecord is what the encoder decided for one frame.
type FrameRecord struct {
	Report encoder.FrameReport
	Luma   *image.Gray // nil unless EncodeInput.KeepLuma
}

// EncodeResult contains the encoder output.
type EncodeResult struct {
	Packets []frame.Packet
	Frames  []FrameRecord
	Stats   encoder.Stats
}

// =============================================================================
// Visualize Stage Types
// =============================================================================

// VisualizeInput contains the frames whose motion fields are rendered.
type VisualizeInput struct {
	Frames []FrameRecord
	Scale  int // output pixels per padded luma sample (default: 2)
}

// VisualizeResult reports how many renders were written.
type VisualizeResult struct {
	Rendered int
}

// =============================================================================
// Mux Stage Types
// =============================================================================

// MuxInput contains the packets to place into a container.
type MuxInput struct {
	Meta    frame.Metadata
	Packets []frame.Packet
}

// MuxResult contains the container bytes.
type MuxResult struct {
	Data       []byte
	Pictures   int
	DurationMs int
}
