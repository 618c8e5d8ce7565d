// Package orchestrator coordinates all pipeline stages.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ideamans/go-l10n"
	"github.com/user/subband/pkg/encoder"
	"github.com/user/subband/pkg/frame"
	"github.com/user/subband/pkg/gop"
	"github.com/user/subband/pkg/pipeline"
	"github.com/user/subband/pkg/ports"
)

// Config contains all configuration for the orchestrator.
type Config struct {
	// Input
	InputPath string
	InputKind pipeline.InputKind
	Width     int // image sequences: 0 keeps the first image's size
	Height    int
	FPSNum    int // image sequences only
	FPSDen    int
	MaxFrames int // 0 encodes everything

	// Output
	OutputPath string

	// Encoding
	Encoder encoder.Config

	// Debug rendering
	VisualizeScale int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		FPSNum:         30,
		FPSDen:         1,
		Encoder:        encoder.Defaults(),
		VisualizeScale: 2,
	}
}

// Orchestrator coordinates the execution of all pipeline stages.
type Orchestrator struct {
	ingestStage    pipeline.Stage[pipeline.IngestInput, pipeline.IngestResult]
	encodeStage    pipeline.Stage[pipeline.EncodeInput, pipeline.EncodeResult]
	visualizeStage pipeline.Stage[pipeline.VisualizeInput, pipeline.VisualizeResult]
	muxStage       pipeline.Stage[pipeline.MuxInput, pipeline.MuxResult]
	fs             ports.FileSystem
	sink           ports.DebugSink
	logger         ports.Logger
}

// New creates a new Orchestrator.
func New(
	ingestStage pipeline.Stage[pipeline.IngestInput, pipeline.IngestResult],
	encodeStage pipeline.Stage[pipeline.EncodeInput, pipeline.EncodeResult],
	visualizeStage pipeline.Stage[pipeline.VisualizeInput, pipeline.VisualizeResult],
	muxStage pipeline.Stage[pipeline.MuxInput, pipeline.MuxResult],
	fs ports.FileSystem,
	sink ports.DebugSink,
	logger ports.Logger,
) *Orchestrator {
	return &Orchestrator{
		ingestStage:    ingestStage,
		encodeStage:    encodeStage,
		visualizeStage: visualizeStage,
		muxStage:       muxStage,
		fs:             fs,
		sink:           sink,
		logger:         logger,
	}
}

// Run executes the complete pipeline.
func (o *Orchestrator) Run(ctx context.Context, config Config) (RunResult, error) {
	streamID := uuid.NewString()
	o.logger.Info(l10n.F("Starting pipeline for stream %s", streamID))

	// 1. Open input
	ingested, err := o.ingestStage.Execute(ctx, pipeline.IngestInput{
		Path:   config.InputPath,
		Kind:   config.InputKind,
		Width:  config.Width,
		Height: config.Height,
		FPSNum: config.FPSNum,
		FPSDen: config.FPSDen,
	})
	if err != nil {
		o.logger.Error(l10n.F("Failed to open input: %s", err))
		return RunResult{}, fmt.Errorf("ingest stage: %w", err)
	}
	defer ingested.Source.Close()
	meta := ingested.Meta
	o.logger.Info(l10n.F("Input opened: %dx%d at %.2f fps", meta.Width, meta.Height, meta.FrameRate()))

	// 2. Encode
	o.logger.Info(l10n.F("Encoding with %s rate control", config.Encoder.RateControl))
	encoded, err := o.encodeStage.Execute(ctx, pipeline.EncodeInput{
		Source:    ingested.Source,
		Meta:      meta,
		Config:    config.Encoder,
		MaxFrames: config.MaxFrames,
		KeepLuma:  o.sink.Enabled(),
	})
	if err != nil {
		o.logger.Error(l10n.F("Failed to encode video: %s", err))
		return RunResult{}, fmt.Errorf("encode stage: %w", err)
	}
	o.logger.Info(l10n.F("Encoded %d frames: %d intra, %d predicted", len(encoded.Frames), encoded.Stats.IntraFrames, encoded.Stats.PredictedFrames))

	// 3. Motion field renders (debug only)
	if o.sink.Enabled() {
		vis, err := o.visualizeStage.Execute(ctx, pipeline.VisualizeInput{
			Frames: encoded.Frames,
			Scale:  config.VisualizeScale,
		})
		if err != nil {
			o.logger.Error(l10n.F("Failed to render motion fields: %s", err))
			return RunResult{}, fmt.Errorf("visualize stage: %w", err)
		}
		o.logger.Info(l10n.F("Rendered %d motion fields", vis.Rendered))
	}

	// 4. Container
	muxed, err := o.muxStage.Execute(ctx, pipeline.MuxInput{Meta: meta, Packets: encoded.Packets})
	if err != nil {
		o.logger.Error(l10n.F("Failed to write container: %s", err))
		return RunResult{}, fmt.Errorf("mux stage: %w", err)
	}

	// 5. Write output file
	if err := o.fs.WriteFile(config.OutputPath, muxed.Data); err != nil {
		o.logger.Error(l10n.F("Failed to write output: %s", err))
		return RunResult{}, fmt.Errorf("write output: %w", err)
	}

	o.logger.Info(l10n.T("Pipeline completed successfully"))

	return RunResult{
		StreamID:        streamID,
		Meta:            meta,
		FrameCount:      len(encoded.Frames),
		IntraFrames:     encoded.Stats.IntraFrames,
		PredictedFrames: encoded.Stats.PredictedFrames,
		SceneChanges:    countReason(encoded.Frames, gop.ReasonSceneChange),
		PayloadBytes:    encoded.Stats.Bytes,
		FileSize:        int64(len(muxed.Data)),
		DurationMs:      muxed.DurationMs,
		Stats:           encoded.Stats,
	}, nil
}

func countReason(frames []pipeline.FrameRecord, r gop.Reason) int {
	n := 0
	for _, f := range frames {
		if f.Report.Reason == r {
			n++
		}
	}
	return n
}

// RunResult contains the results of a pipeline run for summary generation.
type RunResult struct {
	StreamID string
	Meta     frame.Metadata

	FrameCount      int
	IntraFrames     int
	PredictedFrames int
	SceneChanges    int

	PayloadBytes int64
	FileSize     int64
	DurationMs   int

	Stats encoder.Stats
}
