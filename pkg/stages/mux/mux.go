// Package mux implements the container stage.
package mux

import (
	"context"
	"fmt"

	"github.com/user/subband/pkg/frame"
	"github.com/user/subband/pkg/pipeline"
	"github.com/user/subband/pkg/ports"
)

// Stage writes encoder packets into a fresh container per run.
type Stage struct {
	newMuxer func() ports.Muxer
	logger   ports.Logger
}

// NewStage creates a mux stage. newMuxer is called once per Execute.
func NewStage(newMuxer func() ports.Muxer, logger ports.Logger) *Stage {
	return &Stage{
		newMuxer: newMuxer,
		logger:   logger.WithComponent("mux"),
	}
}

// Execute muxes all packets and returns the container bytes.
func (s *Stage) Execute(ctx context.Context, input pipeline.MuxInput) (pipeline.MuxResult, error) {
	result := pipeline.MuxResult{}

	m := s.newMuxer()
	if err := m.Begin(input.Meta); err != nil {
		return result, fmt.Errorf("begin container: %w", err)
	}

	for _, pkt := range input.Packets {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := m.WritePacket(pkt); err != nil {
			return result, fmt.Errorf("write %s packet %d: %w", pkt.Kind, pkt.FrameNumber, err)
		}
		if pkt.Kind == frame.PacketPicture {
			result.Pictures++
		}
	}

	data, err := m.End()
	if err != nil {
		return result, fmt.Errorf("finalize container: %w", err)
	}
	result.Data = data
	if input.Meta.FPSNum > 0 {
		result.DurationMs = int(int64(result.Pictures) * 1000 * int64(input.Meta.FPSDen) / int64(input.Meta.FPSNum))
	}
	s.logger.Debug("Muxed %d pictures into %d bytes", result.Pictures, len(data))

	return result, nil
}
