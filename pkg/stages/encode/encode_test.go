package encode

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/user/subband/pkg/adapters/logger"
	"github.com/user/subband/pkg/adapters/pixelfilter"
	"github.com/user/subband/pkg/encoder"
	"github.com/user/subband/pkg/frame"
	"github.com/user/subband/pkg/mocks"
	"github.com/user/subband/pkg/pipeline"
)

func testMeta() frame.Metadata {
	return frame.Metadata{Width: 64, Height: 48, Subsampling: frame.Subsampling420, FPSNum: 30, FPSDen: 1, AspectNum: 1, AspectDen: 1}
}

// stillSource returns n identical frames.
func stillSource(n int) *mocks.FrameSource {
	src := &mocks.FrameSource{Meta: testMeta()}
	for i := 0; i < n; i++ {
		f := frame.New(64, 48, frame.Subsampling420)
		f.Fill(90)
		src.Frames = append(src.Frames, f)
	}
	return src
}

func testConfig() encoder.Config {
	cfg := encoder.Defaults()
	cfg.Workers = 2
	cfg.GOP = 10
	return cfg
}

func TestStage_Execute(t *testing.T) {
	transform := &mocks.TransformStage{}
	sink := mocks.NewDebugSink(true)
	stage := NewStage(transform, pixelfilter.New(), sink, logger.NewNoop())

	result, err := stage.Execute(context.Background(), pipeline.EncodeInput{
		Source:   stillSource(3),
		Meta:     testMeta(),
		Config:   testConfig(),
		KeepLuma: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantKinds := []frame.PacketKind{
		frame.PacketMetadata, frame.PacketPicture, frame.PacketPicture, frame.PacketPicture, frame.PacketEndOfStream,
	}
	if len(result.Packets) != len(wantKinds) {
		t.Fatalf("expected %d packets, got %d", len(wantKinds), len(result.Packets))
	}
	for i, k := range wantKinds {
		if result.Packets[i].Kind != k {
			t.Errorf("packet %d: expected %s, got %s", i, k, result.Packets[i].Kind)
		}
	}

	if len(result.Frames) != 3 {
		t.Fatalf("expected 3 frame records, got %d", len(result.Frames))
	}
	if result.Frames[0].Report.Type != frame.Intra || result.Frames[1].Report.Type != frame.Predicted {
		t.Errorf("expected I P, got %s %s", result.Frames[0].Report.Type, result.Frames[1].Report.Type)
	}
	if l := result.Frames[2].Luma; l == nil || l.GrayAt(5, 5).Y != 90 {
		t.Error("expected retained luma")
	}
	if result.Stats.FramesEncoded != 3 || result.Stats.IntraFrames != 1 {
		t.Errorf("unexpected stats %+v", result.Stats)
	}
	if len(transform.Calls) != 3 {
		t.Errorf("expected 3 transform calls, got %d", len(transform.Calls))
	}

	if len(sink.ConfigJSON) == 0 {
		t.Error("expected config JSON to be saved")
	}
	var log []FrameLogEntry
	if err := json.Unmarshal(sink.FrameLogJSON, &log); err != nil {
		t.Fatalf("frame log: %v", err)
	}
	if len(log) != 3 || log[0].Type != "I" || log[0].Reason != "first" {
		t.Errorf("unexpected frame log %+v", log)
	}
}

func TestStage_Execute_MaxFrames(t *testing.T) {
	stage := NewStage(&mocks.TransformStage{}, pixelfilter.New(), &mocks.NullSink{}, logger.NewNoop())

	result, err := stage.Execute(context.Background(), pipeline.EncodeInput{
		Source:    stillSource(5),
		Meta:      testMeta(),
		Config:    testConfig(),
		MaxFrames: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Frames) != 2 {
		t.Errorf("expected 2 frames, got %d", len(result.Frames))
	}
	if result.Frames[0].Luma != nil {
		t.Error("expected no luma without KeepLuma")
	}
}

func TestStage_Execute_Errors(t *testing.T) {
	badConfig := testConfig()
	badConfig.Quality = 500

	failing := stillSource(0)
	failing.NextFunc = func() (*frame.Frame, error) { return nil, errors.New("disk error") }

	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name   string
		ctx    context.Context
		input  pipeline.EncodeInput
		target error
	}{
		{"invalid config", context.Background(), pipeline.EncodeInput{Source: stillSource(1), Meta: testMeta(), Config: badConfig}, encoder.ErrInvalidConfig},
		{"empty input", context.Background(), pipeline.EncodeInput{Source: stillSource(0), Meta: testMeta(), Config: testConfig()}, nil},
		{"read failure", context.Background(), pipeline.EncodeInput{Source: failing, Meta: testMeta(), Config: testConfig()}, nil},
		{"canceled", canceled, pipeline.EncodeInput{Source: stillSource(2), Meta: testMeta(), Config: testConfig()}, context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage := NewStage(&mocks.TransformStage{}, pixelfilter.New(), &mocks.NullSink{}, logger.NewNoop())
			_, err := stage.Execute(tt.ctx, tt.input)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("expected %v, got %v", tt.target, err)
			}
		})
	}
}
