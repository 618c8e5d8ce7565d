// Package ingest implements the input opening stage.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/user/subband/pkg/adapters/imagesource"
	"github.com/user/subband/pkg/adapters/y4msource"
	"github.com/user/subband/pkg/pipeline"
	"github.com/user/subband/pkg/ports"
)

// Opener creates the frame source for an input.
type Opener func(input pipeline.IngestInput) ports.FrameSource

// Stage opens the input and reads its stream header.
type Stage struct {
	fs     ports.FileSystem
	open   Opener
	logger ports.Logger
}

// NewStage creates an ingest stage backed by the Y4M and image sequence readers.
func NewStage(fs ports.FileSystem, logger ports.Logger) *Stage {
	return NewStageWithOpener(fs, DefaultOpener(fs), logger)
}

// NewStageWithOpener creates an ingest stage with a custom source factory.
func NewStageWithOpener(fs ports.FileSystem, open Opener, logger ports.Logger) *Stage {
	return &Stage{
		fs:     fs,
		open:   open,
		logger: logger.WithComponent("ingest"),
	}
}

// DefaultOpener picks the adapter for input.Kind.
func DefaultOpener(fs ports.FileSystem) Opener {
	return func(input pipeline.IngestInput) ports.FrameSource {
		if ResolveKind(input) == pipeline.InputY4M {
			return y4msource.New(fs)
		}
		return imagesource.New(fs, imagesource.Options{
			Width:  input.Width,
			Height: input.Height,
			FPSNum: input.FPSNum,
			FPSDen: input.FPSDen,
		})
	}
}

// ResolveKind turns InputAuto into a concrete kind by file extension.
func ResolveKind(input pipeline.IngestInput) pipeline.InputKind {
	if input.Kind != pipeline.InputAuto {
		return input.Kind
	}
	if strings.EqualFold(filepath.Ext(input.Path), ".y4m") {
		return pipeline.InputY4M
	}
	return pipeline.InputImages
}

// Execute opens the input. The returned source is positioned at the first frame.
func (s *Stage) Execute(ctx context.Context, input pipeline.IngestInput) (pipeline.IngestResult, error) {
	if input.Path == "" {
		return pipeline.IngestResult{}, fmt.Errorf("no input path")
	}
	if err := ctx.Err(); err != nil {
		return pipeline.IngestResult{}, err
	}
	if !strings.ContainsAny(input.Path, "*?[") {
		ok, err := s.fs.Exists(input.Path)
		if err != nil {
			return pipeline.IngestResult{}, fmt.Errorf("stat %s: %w", input.Path, err)
		}
		if !ok {
			return pipeline.IngestResult{}, fmt.Errorf("input %s does not exist", input.Path)
		}
	}

	src := s.open(input)
	if err := src.Open(input.Path); err != nil {
		return pipeline.IngestResult{}, fmt.Errorf("open %s: %w", input.Path, err)
	}

	meta := src.Metadata()
	if err := meta.Validate(); err != nil {
		src.Close()
		return pipeline.IngestResult{}, fmt.Errorf("input %s: %w", input.Path, err)
	}
	s.logger.Debug("Opened %s: %dx%d %s at %.2f fps", input.Path, meta.Width, meta.Height, meta.Subsampling, meta.FrameRate())

	return pipeline.IngestResult{Source: src, Meta: meta}, nil
}
