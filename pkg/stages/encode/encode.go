// Package encode implements the video encoding stage.
package encode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/user/subband/pkg/encoder"
	"github.com/user/subband/pkg/frame"
	"github.com/user/subband/pkg/pipeline"
	"github.com/user/subband/pkg/ports"
)

// Stage pulls frames from a source through the encoder.
type Stage struct {
	transform ports.TransformStage
	filter    ports.PixelFilter
	sink      ports.DebugSink
	logger    ports.Logger
}

// NewStage creates a new encode stage.
func NewStage(transform ports.TransformStage, filter ports.PixelFilter, sink ports.DebugSink, logger ports.Logger) *Stage {
	return &Stage{
		transform: transform,
		filter:    filter,
		sink:      sink,
		logger:    logger,
	}
}

// configDump is the debug view of the effective settings.
type configDump struct {
	Stream  frame.Metadata `json:"stream"`
	Encoder encoder.Config `json:"encoder"`
	Blocks  string         `json:"blocks"`
}

// FrameLogEntry is one line of the frame decision log.
type FrameLogEntry struct {
	Number            uint64 `json:"number"`
	Type              string `json:"type"`
	Reason            string `json:"reason"`
	Quant             int    `json:"quant"`
	ScaledQuality     int    `json:"scaledQuality"`
	Bytes             int    `json:"bytes"`
	SceneChangeBlocks int    `json:"sceneChangeBlocks"`
	SkippedBlocks     int    `json:"skippedBlocks"`
}

// Execute encodes every frame of the source and finishes the stream.
func (s *Stage) Execute(ctx context.Context, input pipeline.EncodeInput) (pipeline.EncodeResult, error) {
	result := pipeline.EncodeResult{}

	enc, err := encoder.New(input.Config, s.transform, s.filter, s.logger)
	if err != nil {
		return result, err
	}
	defer enc.Close()

	if err := enc.SetMetadata(input.Meta); err != nil {
		return result, fmt.Errorf("set metadata: %w", err)
	}

	if s.sink.Enabled() {
		g := enc.Geometry()
		dump := configDump{
			Stream:  input.Meta,
			Encoder: input.Config,
			Blocks:  fmt.Sprintf("%dx%d of %dx%d", g.BlocksX, g.BlocksY, g.BlockW, g.BlockH),
		}
		if data, err := json.MarshalIndent(dump, "", "  "); err == nil {
			s.sink.SaveConfigJSON(data)
		}
	}

	for input.MaxFrames <= 0 || len(result.Frames) < input.MaxFrames {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		f, err := input.Source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result, fmt.Errorf("read frame %d: %w", len(result.Frames), err)
		}

		packets, err := enc.Encode(ctx, f)
		if err != nil {
			return result, fmt.Errorf("encode frame %d: %w", len(result.Frames), err)
		}
		result.Packets = append(result.Packets, packets...)

		report, _ := enc.LastReport()
		rec := pipeline.FrameRecord{Report: report}
		if input.KeepLuma {
			rec.Luma = cloneGray(f.Planes[0].Gray())
		}
		result.Frames = append(result.Frames, rec)
	}

	if len(result.Frames) == 0 {
		return result, fmt.Errorf("no frames to encode")
	}

	packets, err := enc.EndOfStream(ctx)
	if err != nil {
		return result, fmt.Errorf("end of stream: %w", err)
	}
	result.Packets = append(result.Packets, packets...)
	result.Stats = enc.Stats()

	if s.sink.Enabled() {
		if data, err := json.MarshalIndent(FrameLog(result.Frames), "", "  "); err == nil {
			s.sink.SaveFrameLogJSON(data)
		}
	}

	return result, nil
}

// FrameLog flattens frame records for the debug sink.
func FrameLog(frames []pipeline.FrameRecord) []FrameLogEntry {
	log := make([]FrameLogEntry, len(frames))
	for i, f := range frames {
		r := f.Report
		log[i] = FrameLogEntry{
			Number:            r.Number,
			Type:              r.Type.String(),
			Reason:            r.Reason.String(),
			Quant:             r.Quant,
			ScaledQuality:     r.ScaledQuality,
			Bytes:             r.Bytes,
			SceneChangeBlocks: r.SceneChangeBlocks,
			SkippedBlocks:     r.SkippedBlocks,
		}
	}
	return log
}

func cloneGray(g *image.Gray) *image.Gray {
	out := image.NewGray(g.Rect)
	for y := 0; y < g.Rect.Dy(); y++ {
		copy(out.Pix[y*out.Stride:y*out.Stride+g.Rect.Dx()], g.Pix[y*g.Stride:])
	}
	return out
}
