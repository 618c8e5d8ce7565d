package mocks

import (
	"context"
	"sync"

	"github.com/user/subband/pkg/frame"
	"github.com/user/subband/pkg/ports"
)

// TransformStage is a mock implementation of ports.TransformStage.
// Without EncodeFunc it is lossless and emits a fixed 16-byte payload.
type TransformStage struct {
	mu sync.Mutex

	EncodeFunc func(ctx context.Context, input ports.TransformInput) (ports.TransformOutput, error)

	// Recorded calls for verification
	Calls []TransformCall
}

// TransformCall records a call to Encode.
type TransformCall struct {
	FrameNumber uint64
	Type        frame.Type
	Quant       int
	Blocks      []frame.BlockInfo
}

func (m *TransformStage) Encode(ctx context.Context, input ports.TransformInput) (ports.TransformOutput, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, TransformCall{
		FrameNumber: input.FrameNumber,
		Type:        input.Type,
		Quant:       input.Quant,
		Blocks:      input.Blocks,
	})
	m.mu.Unlock()

	if m.EncodeFunc != nil {
		return m.EncodeFunc(ctx, input)
	}
	return ports.TransformOutput{
		Payload:       make([]byte, 16),
		Reconstructed: input.Residual.Clone(),
	}, nil
}

var _ ports.TransformStage = (*TransformStage)(nil)
