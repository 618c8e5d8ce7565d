// Package preset provides quality presets and a fluent builder for encoder configurations.
package preset

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/user/subband/pkg/encoder"
	"github.com/user/subband/pkg/gop"
	"github.com/user/subband/pkg/orchestrator"
	"github.com/user/subband/pkg/pipeline"
	"github.com/user/subband/pkg/ratecontrol"
)

// QualityPreset represents a quality preset name.
type QualityPreset string

const (
	QualityLow    QualityPreset = "low"
	QualityMedium QualityPreset = "medium"
	QualityHigh   QualityPreset = "high"
)

// ParseQualityPreset validates a preset name.
func ParseQualityPreset(s string) (QualityPreset, error) {
	switch p := QualityPreset(strings.ToLower(s)); p {
	case QualityLow, QualityMedium, QualityHigh:
		return p, nil
	}
	return "", fmt.Errorf("unknown preset %q (want low, medium or high)", s)
}

// QualitySettings contains the encoder parameters a preset controls.
type QualitySettings struct {
	Quality       int
	Effort        int
	PyramidLevels int
}

// GetQualitySettings returns quality settings for the given preset.
func GetQualitySettings(preset QualityPreset) QualitySettings {
	switch preset {
	case QualityLow:
		return QualitySettings{
			Quality:       60,
			Effort:        4,
			PyramidLevels: 2,
		}
	case QualityHigh:
		return QualitySettings{
			Quality:       95,
			Effort:        encoder.MaxEffort,
			PyramidLevels: 4,
		}
	default: // medium
		return QualitySettings{
			Quality:       85,
			Effort:        8,
			PyramidLevels: 3,
		}
	}
}

// ParseGOP parses a GOP length: a positive number, "inf" or "intra".
func ParseGOP(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inf", "infinite":
		return gop.Infinite, nil
	case "intra", "0":
		return gop.IntraOnly, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid GOP %q", s)
	}
	return n, nil
}

// FormatGOP is the inverse of ParseGOP.
func FormatGOP(n int) string {
	switch n {
	case gop.Infinite:
		return "inf"
	case gop.IntraOnly:
		return "intra"
	}
	return strconv.Itoa(n)
}

// ConfigBuilder provides a fluent interface for building encoder.Config.
type ConfigBuilder struct {
	config encoder.Config
}

// NewConfigBuilder creates a new ConfigBuilder with the medium preset applied.
func NewConfigBuilder() *ConfigBuilder {
	return NewConfigBuilderFrom(encoder.Defaults()).WithQualityPreset(QualityMedium)
}

// NewConfigBuilderFrom starts from an existing configuration.
func NewConfigBuilderFrom(cfg encoder.Config) *ConfigBuilder {
	return &ConfigBuilder{config: cfg}
}

// Build returns the final Config with ranges clamped. It is not validated.
func (b *ConfigBuilder) Build() encoder.Config {
	cfg := b.config

	cfg.Quality = clamp(cfg.Quality, 0, ratecontrol.MaxQuality)
	cfg.Effort = clamp(cfg.Effort, encoder.MinEffort, encoder.MaxEffort)
	cfg.PyramidLevels = clamp(cfg.PyramidLevels, 1, encoder.MaxPyramidLevels)
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	return cfg
}

// WithQualityPreset applies a quality preset (low, medium, high).
func (b *ConfigBuilder) WithQualityPreset(preset QualityPreset) *ConfigBuilder {
	s := GetQualitySettings(preset)
	b.config.Quality = s.Quality
	b.config.Effort = s.Effort
	b.config.PyramidLevels = s.PyramidLevels
	return b
}

// WithQuality sets the CRF quality (0-100, higher is better).
func (b *ConfigBuilder) WithQuality(q int) *ConfigBuilder {
	b.config.Quality = q
	return b
}

// WithEffort sets the motion search effort (0-10).
func (b *ConfigBuilder) WithEffort(effort int) *ConfigBuilder {
	b.config.Effort = effort
	return b
}

// WithGOP sets the intra period. Use gop.IntraOnly or gop.Infinite for the special cases.
func (b *ConfigBuilder) WithGOP(n int) *ConfigBuilder {
	b.config.GOP = n
	return b
}

// WithVariableIntraInterval lets scene changes restart the GOP.
func (b *ConfigBuilder) WithVariableIntraInterval(on bool) *ConfigBuilder {
	b.config.VariableIntraInterval = on
	return b
}

// WithCRF selects constant-quality rate control.
func (b *ConfigBuilder) WithCRF(quality int) *ConfigBuilder {
	b.config.RateControl = ratecontrol.ModeCRF
	b.config.Quality = quality
	return b
}

// WithABR selects one-pass average bitrate control at bps bits per second.
func (b *ConfigBuilder) WithABR(bps int) *ConfigBuilder {
	b.config.RateControl = ratecontrol.ModeABR
	b.config.Bitrate = bps
	return b
}

// WithPyramidLevels sets the number of motion search levels.
func (b *ConfigBuilder) WithPyramidLevels(n int) *ConfigBuilder {
	b.config.PyramidLevels = n
	return b
}

// WithBlockSize overrides the automatic block size. Zero keeps automatic sizing.
func (b *ConfigBuilder) WithBlockSize(w, h int) *ConfigBuilder {
	b.config.BlockWidth = w
	b.config.BlockHeight = h
	return b
}

// WithSceneDetection toggles scene-change detection.
func (b *ConfigBuilder) WithSceneDetection(on bool) *ConfigBuilder {
	b.config.SceneDetection = on
	return b
}

// WithTemporalAQ toggles temporal adaptive quantization.
func (b *ConfigBuilder) WithTemporalAQ(on bool) *ConfigBuilder {
	b.config.TemporalAQ = on
	return b
}

// WithPsy toggles the texture term of the motion cost.
func (b *ConfigBuilder) WithPsy(on bool) *ConfigBuilder {
	b.config.Psy = on
	return b
}

// WithWorkers sets the motion search parallelism.
func (b *ConfigBuilder) WithWorkers(n int) *ConfigBuilder {
	b.config.Workers = n
	return b
}

// ToOrchestratorConfig wraps an encoder configuration for a run from input to output.
func ToOrchestratorConfig(cfg encoder.Config, input, output string) orchestrator.Config {
	oc := orchestrator.DefaultConfig()
	oc.InputPath = input
	oc.InputKind = pipeline.InputAuto
	oc.OutputPath = output
	oc.Encoder = cfg
	return oc
}

// MbpsToBits converts megabits per second to bits per second.
func MbpsToBits(mbps float64) int {
	return int(math.Round(mbps * 1000 * 1000))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
