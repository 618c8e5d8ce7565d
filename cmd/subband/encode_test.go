package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/user/subband/pkg/gop"
	"github.com/user/subband/pkg/ratecontrol"
)

func ptr[T any](v T) *T { return &v }

func TestBuildConfig_Flags(t *testing.T) {
	cfg, err := buildConfig(encodeOptions{
		Input:   "clip.y4m",
		Output:  "out.mp4",
		Preset:  ptr("low"),
		Quality: ptr(70),
		GOP:     ptr("inf"),
		Workers: ptr(3),
		NoSCD:   true,
		NoPsy:   true,
		Quiet:   true,
	})
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}

	oc, err := cfg.ToOrchestratorConfig()
	if err != nil {
		t.Fatalf("ToOrchestratorConfig: %v", err)
	}
	enc := oc.Encoder
	if enc.Quality != 70 {
		t.Errorf("expected explicit quality to beat the preset, got %d", enc.Quality)
	}
	if enc.Effort != 4 || enc.PyramidLevels != 2 {
		t.Errorf("expected low preset effort and levels, got %d/%d", enc.Effort, enc.PyramidLevels)
	}
	if enc.GOP != gop.Infinite || enc.Workers != 3 {
		t.Errorf("unexpected gop/workers %d/%d", enc.GOP, enc.Workers)
	}
	if enc.SceneDetection || enc.Psy || !enc.TemporalAQ {
		t.Errorf("unexpected toggles scd=%v psy=%v taq=%v", enc.SceneDetection, enc.Psy, enc.TemporalAQ)
	}
	if cfg.Preset != "low" || cfg.LogLevel != "quiet" {
		t.Errorf("unexpected preset/log level %q/%q", cfg.Preset, cfg.LogLevel)
	}
}

func TestBuildConfig_RateControl(t *testing.T) {
	tests := []struct {
		name        string
		opts        encodeOptions
		wantMode    ratecontrol.Mode
		wantBitrate int
	}{
		{"default is crf", encodeOptions{}, ratecontrol.ModeCRF, 2000000},
		{"bitrate implies abr", encodeOptions{Bitrate: ptr(500000)}, ratecontrol.ModeABR, 500000},
		{"abr keeps default bitrate", encodeOptions{RC: ptr("abr")}, ratecontrol.ModeABR, 2000000},
		{"explicit crf wins", encodeOptions{RC: ptr("crf"), Bitrate: ptr(500000)}, ratecontrol.ModeCRF, 500000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Input, tt.opts.Output = "in.y4m", "out.mp4"
			cfg, err := buildConfig(tt.opts)
			if err != nil {
				t.Fatalf("buildConfig: %v", err)
			}
			enc, err := cfg.Encoder.ToEncoderConfig()
			if err != nil {
				t.Fatalf("ToEncoderConfig: %v", err)
			}
			if enc.RateControl != tt.wantMode || enc.Bitrate != tt.wantBitrate {
				t.Errorf("expected %v at %d, got %v at %d", tt.wantMode, tt.wantBitrate, enc.RateControl, enc.Bitrate)
			}
		})
	}
}

func TestBuildConfig_FileThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subband.yaml")
	data := []byte("input: from-file.y4m\noutput: from-file.mp4\nencoder:\n  effort: 2\n  gop: \"12\"\ndebug_dir: /tmp/dbg\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := buildConfig(encodeOptions{ConfigPath: path, Output: "flag.mp4", Debug: true})
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}
	if cfg.Input != "from-file.y4m" || cfg.Output != "flag.mp4" {
		t.Errorf("unexpected paths %q %q", cfg.Input, cfg.Output)
	}
	if cfg.Encoder.Effort != 2 || cfg.Encoder.GOP != "12" {
		t.Errorf("expected file encoder values, got effort %d gop %q", cfg.Encoder.Effort, cfg.Encoder.GOP)
	}
	if !cfg.Debug || cfg.DebugDir != "/tmp/dbg" {
		t.Errorf("unexpected debug settings %v %q", cfg.Debug, cfg.DebugDir)
	}
}

func TestBuildConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts encodeOptions
	}{
		{"missing input", encodeOptions{Output: "out.mp4"}},
		{"missing output", encodeOptions{Input: "in.y4m"}},
		{"bad preset", encodeOptions{Input: "in.y4m", Output: "out.mp4", Preset: ptr("ultra")}},
		{"bad gop", encodeOptions{Input: "in.y4m", Output: "out.mp4", GOP: ptr("-3")}},
		{"bad rc", encodeOptions{Input: "in.y4m", Output: "out.mp4", RC: ptr("cbr")}},
		{"missing config file", encodeOptions{ConfigPath: filepath.Join(t.TempDir(), "none.yaml")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := buildConfig(tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}
