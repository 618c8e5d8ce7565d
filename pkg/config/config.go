// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"

	"github.com/user/subband/pkg/encoder"
	"github.com/user/subband/pkg/orchestrator"
	"github.com/user/subband/pkg/pipeline"
	"github.com/user/subband/pkg/ports"
	"github.com/user/subband/pkg/preset"
	"github.com/user/subband/pkg/ratecontrol"
	"gopkg.in/yaml.v3"
)

// Config represents the full configuration file of the subband CLI.
type Config struct {
	// Input/Output
	Input     string       `yaml:"input"`
	InputKind string       `yaml:"input_kind"` // auto, y4m, images
	Output    string       `yaml:"output"`
	MaxFrames int          `yaml:"max_frames"`
	Images    ImagesConfig `yaml:"images"`

	// Preset supplies defaults for the encoder section; explicit keys win.
	Preset  string        `yaml:"preset"`
	Encoder EncoderConfig `yaml:"encoder"`

	// Debug
	Debug          bool   `yaml:"debug"`
	DebugDir       string `yaml:"debug_dir"`
	VisualizeScale int    `yaml:"visualize_scale"`

	// Reporting
	Summary  string `yaml:"summary"`
	LogLevel string `yaml:"log_level"`
}

// ImagesConfig applies to image sequence inputs.
type ImagesConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	FPSNum int `yaml:"fps_num"`
	FPSDen int `yaml:"fps_den"`
}

// EncoderConfig mirrors encoder.Config with file-friendly types.
type EncoderConfig struct {
	Quality               int    `yaml:"quality"`
	Effort                int    `yaml:"effort"`
	GOP                   string `yaml:"gop"` // number, "inf" or "intra"
	VariableIntraInterval bool   `yaml:"variable_intra_interval"`
	SceneDetection        bool   `yaml:"scene_detection"`
	IntraPercent          int    `yaml:"intra_percent"`
	SceneChangeDelta      int    `yaml:"scene_change_delta"`
	StableRefresh         int    `yaml:"stable_refresh"`
	TemporalAQ            bool   `yaml:"temporal_aq"`
	Psy                   bool   `yaml:"psy"`
	SkipThreshold         int    `yaml:"skip_threshold"`
	BlockWidth            int    `yaml:"block_width"`
	BlockHeight           int    `yaml:"block_height"`
	RateControl           string `yaml:"rate_control"` // crf, abr
	Bitrate               int    `yaml:"bitrate"`
	MaxStep               int    `yaml:"max_step"`
	MinQuality            int    `yaml:"min_quality"`
	MaxQuality            int    `yaml:"max_quality"`
	MinIntraQuality       int    `yaml:"min_intra_quality"`
	BPFResetInterval      int    `yaml:"bpf_reset_interval"`
	PyramidLevels         int    `yaml:"pyramid_levels"`
	Lambda                int    `yaml:"lambda"`
	Workers               int    `yaml:"workers"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		InputKind: "auto",
		Images: ImagesConfig{
			FPSNum: 30,
			FPSDen: 1,
		},
		Preset:         string(preset.QualityMedium),
		Encoder:        FromEncoderConfig(preset.NewConfigBuilder().Build()),
		DebugDir:       "./debug",
		VisualizeScale: 2,
		LogLevel:       "info",
	}
}

// FromEncoderConfig converts an encoder configuration to its file form.
func FromEncoderConfig(c encoder.Config) EncoderConfig {
	return EncoderConfig{
		Quality:               c.Quality,
		Effort:                c.Effort,
		GOP:                   preset.FormatGOP(c.GOP),
		VariableIntraInterval: c.VariableIntraInterval,
		SceneDetection:        c.SceneDetection,
		IntraPercent:          c.IntraPercent,
		SceneChangeDelta:      c.SceneChangeDelta,
		StableRefresh:         c.StableRefresh,
		TemporalAQ:            c.TemporalAQ,
		Psy:                   c.Psy,
		SkipThreshold:         c.SkipThreshold,
		BlockWidth:            c.BlockWidth,
		BlockHeight:           c.BlockHeight,
		RateControl:           c.RateControl.String(),
		Bitrate:               c.Bitrate,
		MaxStep:               c.MaxStep,
		MinQuality:            c.MinQuality,
		MaxQuality:            c.MaxQuality,
		MinIntraQuality:       c.MinIntraQuality,
		BPFResetInterval:      c.BPFResetInterval,
		PyramidLevels:         c.PyramidLevels,
		Lambda:                c.Lambda,
		Workers:               c.Workers,
	}
}

// ToEncoderConfig converts the file form back, parsing the string-typed keys.
func (e EncoderConfig) ToEncoderConfig() (encoder.Config, error) {
	gopLen, err := preset.ParseGOP(e.GOP)
	if err != nil {
		return encoder.Config{}, err
	}
	mode, err := ratecontrol.ParseMode(e.RateControl)
	if err != nil {
		return encoder.Config{}, err
	}
	return encoder.Config{
		Quality:               e.Quality,
		Effort:                e.Effort,
		GOP:                   gopLen,
		VariableIntraInterval: e.VariableIntraInterval,
		SceneDetection:        e.SceneDetection,
		IntraPercent:          e.IntraPercent,
		SceneChangeDelta:      e.SceneChangeDelta,
		StableRefresh:         e.StableRefresh,
		TemporalAQ:            e.TemporalAQ,
		Psy:                   e.Psy,
		SkipThreshold:         e.SkipThreshold,
		BlockWidth:            e.BlockWidth,
		BlockHeight:           e.BlockHeight,
		RateControl:           mode,
		Bitrate:               e.Bitrate,
		MaxStep:               e.MaxStep,
		MinQuality:            e.MinQuality,
		MaxQuality:            e.MaxQuality,
		MinIntraQuality:       e.MinIntraQuality,
		BPFResetInterval:      e.BPFResetInterval,
		PyramidLevels:         e.PyramidLevels,
		Lambda:                e.Lambda,
		Workers:               e.Workers,
	}, nil
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Defaults(), err
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults. A preset key is read first so that it
// fills the encoder section before explicit encoder keys are applied.
func Parse(data []byte) (Config, error) {
	cfg := Defaults()

	var probe struct {
		Preset string `yaml:"preset"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return cfg, err
	}
	if probe.Preset != "" {
		p, err := preset.ParseQualityPreset(probe.Preset)
		if err != nil {
			return cfg, err
		}
		cfg.Preset = string(p)
		cfg.Encoder = FromEncoderConfig(preset.NewConfigBuilder().WithQualityPreset(p).Build())
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ParseInputKind parses auto, y4m or images.
func ParseInputKind(s string) (pipeline.InputKind, error) {
	switch s {
	case "", "auto":
		return pipeline.InputAuto, nil
	case "y4m":
		return pipeline.InputY4M, nil
	case "images":
		return pipeline.InputImages, nil
	}
	return pipeline.InputAuto, fmt.Errorf("unknown input kind %q", s)
}

// ToOrchestratorConfig converts Config to orchestrator.Config and validates the encoder part.
func (c Config) ToOrchestratorConfig() (orchestrator.Config, error) {
	enc, err := c.Encoder.ToEncoderConfig()
	if err != nil {
		return orchestrator.Config{}, err
	}
	if err := enc.Validate(); err != nil {
		return orchestrator.Config{}, err
	}
	kind, err := ParseInputKind(c.InputKind)
	if err != nil {
		return orchestrator.Config{}, err
	}
	if _, err := ports.ParseLogLevel(c.LogLevel); err != nil {
		return orchestrator.Config{}, err
	}

	return orchestrator.Config{
		InputPath:      c.Input,
		InputKind:      kind,
		Width:          c.Images.Width,
		Height:         c.Images.Height,
		FPSNum:         c.Images.FPSNum,
		FPSDen:         c.Images.FPSDen,
		MaxFrames:      c.MaxFrames,
		OutputPath:     c.Output,
		Encoder:        enc,
		VisualizeScale: c.VisualizeScale,
	}, nil
}
