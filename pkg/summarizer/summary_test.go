package summarizer

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/user/subband/pkg/mocks"
)

func TestNewSummary(t *testing.T) {
	before := time.Now()
	summary := NewSummary()
	after := time.Now()

	if summary.GeneratedAt.Before(before) || summary.GeneratedAt.After(after) {
		t.Errorf("GeneratedAt should be between %v and %v, got %v",
			before, after, summary.GeneratedAt)
	}
}

func TestBuilder_FullChain(t *testing.T) {
	summary := NewBuilder().
		WithStreamID("abc").
		WithInput(InputInfo{Path: "clip.y4m", Width: 320, Height: 240}).
		WithSettings(Settings{RateControl: "crf", Quality: 85}).
		WithOutput(OutputInfo{Frames: 30, IntraFrames: 1}).
		Build()

	if summary.StreamID != "abc" {
		t.Errorf("expected stream ID 'abc', got %q", summary.StreamID)
	}
	if summary.Input.Width != 320 || summary.Settings.Quality != 85 || summary.Output.Frames != 30 {
		t.Errorf("unexpected summary %+v", summary)
	}
}

func TestOutputInfo_Bitrate(t *testing.T) {
	tests := []struct {
		out  OutputInfo
		want int64
	}{
		{OutputInfo{PayloadBytes: 125000, DurationMs: 1000}, 1000000},
		{OutputInfo{PayloadBytes: 1000, DurationMs: 2000}, 4000},
		{OutputInfo{PayloadBytes: 1000}, 0},
	}

	for _, tt := range tests {
		if got := tt.out.Bitrate(); got != tt.want {
			t.Errorf("Bitrate(%+v) = %d, want %d", tt.out, got, tt.want)
		}
	}
}

func TestWriter_Write(t *testing.T) {
	fs := mocks.NewFileSystem()
	formatter := FormatFunc(func(s *Summary) string { return "report " + s.StreamID })
	w := NewWriter(formatter, fs)

	path := filepath.Join("out", "summary.md")
	if err := w.Write(path, &Summary{StreamID: "x1"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, ok := fs.GetFile(path)
	if !ok {
		t.Fatalf("expected %s to be written", path)
	}
	if !strings.Contains(string(data), "report x1") {
		t.Errorf("unexpected content %q", data)
	}
	if ok, _ := fs.Exists("out"); !ok {
		t.Error("expected parent directory to be created")
	}
}
