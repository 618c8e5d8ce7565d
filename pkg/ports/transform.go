// Package ports defines interfaces for the external collaborators of the encoder core.
package ports

import (
	"context"

	"github.com/user/subband/pkg/frame"
)

// TransformStage turns a residual frame and a quantizer into opaque compressed bytes.
// It also returns the residual a decoder would reconstruct so the encoder can keep
// its reference in sync with the decoder.
type TransformStage interface {
	// Encode codes one residual frame.
	Encode(ctx context.Context, input TransformInput) (TransformOutput, error)
}

// TransformInput is everything the transform stage may look at for one picture.
type TransformInput struct {
	FrameNumber uint64
	Type        frame.Type
	Geometry    frame.Geometry
	Residual    *frame.Frame      // 128-biased samples; intra frames carry the source itself
	Quant       int               // frame-level quantizer
	Blocks      []frame.BlockInfo // one entry per block, row-major
}

// TransformOutput is the result of coding one picture.
type TransformOutput struct {
	Payload       []byte
	Reconstructed *frame.Frame // decoded residual, same shape and bias as the input residual
}
