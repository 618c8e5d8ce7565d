package ports

import (
	"image"
)

// DebugSink abstracts debug output for intermediate encoder results.
type DebugSink interface {
	// Enabled returns true if debug output is enabled.
	Enabled() bool

	// SaveConfigJSON saves the effective encoder configuration as JSON.
	SaveConfigJSON(data []byte) error

	// SaveFrameLogJSON saves the per-frame decision log as JSON.
	SaveFrameLogJSON(data []byte) error

	// SaveMotionField saves the rendered motion field of a predicted frame.
	SaveMotionField(frameNumber uint64, img image.Image) error
}
