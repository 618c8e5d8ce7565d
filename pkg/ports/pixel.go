package ports

import "github.com/user/subband/pkg/frame"

// PixelFilter provides the low-level pixel primitives the encoder core relies on.
// Implementations must be deterministic and must not modify their inputs.
type PixelFilter interface {
	// Pad returns a copy of f enlarged to width x height luma samples by edge replication.
	// Chroma planes are enlarged to the matching subsampled size.
	Pad(f *frame.Frame, width, height int) *frame.Frame

	// Downsample returns a low-pass filtered frame with every plane halved, rounded up.
	Downsample(f *frame.Frame) *frame.Frame
}
