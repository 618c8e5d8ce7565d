package encoder

import (
	"fmt"
	"runtime"

	"github.com/user/subband/pkg/gop"
	"github.com/user/subband/pkg/pyramid"
	"github.com/user/subband/pkg/ratecontrol"
)

const (
	MinEffort = 0
	MaxEffort = 10

	// MaxPyramidLevels bounds Config.PyramidLevels.
	MaxPyramidLevels = pyramid.MaxLevels

	// MaxPacketsPerCall bounds the packets returned by one Encode or EndOfStream call.
	MaxPacketsPerCall = 3

	minBlockSize = 8
	maxBlockSize = 64

	// smallFrameArea is the largest picture that gets 16x16 blocks by default.
	smallFrameArea = 640 * 480
)

// Config is the encoder configuration. It may be replaced between frames with Reconfigure.
type Config struct {
	Quality int // 0..100
	Effort  int // 0..10

	// GOP is gop.IntraOnly, gop.Infinite or a positive period.
	GOP                   int
	VariableIntraInterval bool
	SceneDetection        bool
	IntraPercent          int
	SceneChangeDelta      int
	StableRefresh         int

	TemporalAQ    bool
	Psy           bool
	SkipThreshold int // -1 disables skip blocks

	// BlockWidth and BlockHeight override the automatic block size when non-zero.
	BlockWidth  int
	BlockHeight int

	RateControl      ratecontrol.Mode
	Bitrate          int // bits per second
	MaxStep          int // scaled quality units
	MinQuality       int
	MaxQuality       int
	MinIntraQuality  int
	BPFResetInterval int

	PyramidLevels int
	Lambda        int
	Workers       int
}

// Defaults returns the default configuration.
func Defaults() Config {
	return Config{
		Quality:               85,
		Effort:                MaxEffort,
		GOP:                   30,
		VariableIntraInterval: true,
		SceneDetection:        true,
		IntraPercent:          50,
		SceneChangeDelta:      4,
		StableRefresh:         14,
		TemporalAQ:            true,
		Psy:                   true,
		SkipThreshold:         0,
		RateControl:           ratecontrol.ModeCRF,
		Bitrate:               2000000,
		MaxStep:               8,
		MinQuality:            5,
		MaxQuality:            ratecontrol.MaxQuality,
		MinIntraQuality:       25,
		BPFResetInterval:      ratecontrol.DefaultBPFReset,
		PyramidLevels:         3,
		Lambda:                4,
		Workers:               runtime.NumCPU(),
	}
}

// Validate rejects configurations the encoder cannot run with.
func (c Config) Validate() error {
	if c.Quality < 0 || c.Quality > ratecontrol.MaxQuality {
		return fmt.Errorf("%w: quality %d out of range [0, %d]", ErrInvalidConfig, c.Quality, ratecontrol.MaxQuality)
	}
	if c.Effort < MinEffort || c.Effort > MaxEffort {
		return fmt.Errorf("%w: effort %d out of range [%d, %d]", ErrInvalidConfig, c.Effort, MinEffort, MaxEffort)
	}
	if c.GOP < 0 {
		return fmt.Errorf("%w: negative GOP length %d", ErrInvalidConfig, c.GOP)
	}
	if c.MinQuality < 0 || c.MaxQuality > ratecontrol.MaxQuality || c.MinQuality > c.MaxQuality {
		return fmt.Errorf("%w: quality bounds [%d, %d]", ErrInvalidConfig, c.MinQuality, c.MaxQuality)
	}
	if c.MinIntraQuality < 0 || c.MinIntraQuality > ratecontrol.MaxQuality {
		return fmt.Errorf("%w: min intra quality %d out of range", ErrInvalidConfig, c.MinIntraQuality)
	}
	if c.PyramidLevels < 1 || c.PyramidLevels > MaxPyramidLevels {
		return fmt.Errorf("%w: pyramid levels %d out of range [1, %d]", ErrInvalidConfig, c.PyramidLevels, MaxPyramidLevels)
	}
	if c.IntraPercent < 0 || c.IntraPercent > 100 {
		return fmt.Errorf("%w: intra percentage %d out of range", ErrInvalidConfig, c.IntraPercent)
	}
	if c.SceneChangeDelta < 0 {
		return fmt.Errorf("%w: negative scene change delta", ErrInvalidConfig)
	}
	if c.SkipThreshold < -1 {
		return fmt.Errorf("%w: skip threshold %d", ErrInvalidConfig, c.SkipThreshold)
	}
	for _, s := range []int{c.BlockWidth, c.BlockHeight} {
		if s != 0 && !validBlockSize(s) {
			return fmt.Errorf("%w: block size %d must be a power of two in [%d, %d]", ErrInvalidConfig, s, minBlockSize, maxBlockSize)
		}
	}
	if c.BPFResetInterval < 1 {
		return fmt.Errorf("%w: bits-per-frame reset interval %d", ErrInvalidConfig, c.BPFResetInterval)
	}
	if c.RateControl == ratecontrol.ModeABR {
		if c.Bitrate <= 0 {
			return fmt.Errorf("%w: average bitrate mode needs a positive bitrate", ErrInvalidConfig)
		}
		if c.MaxStep <= 0 {
			return fmt.Errorf("%w: average bitrate mode needs a positive max step", ErrInvalidConfig)
		}
	}
	return nil
}

func validBlockSize(s int) bool {
	return s >= minBlockSize && s <= maxBlockSize && s&(s-1) == 0
}

// BlockSize returns the block dimensions used for a picture of width x height.
func (c Config) BlockSize(width, height int) (int, int) {
	def := 32
	if width*height <= smallFrameArea {
		def = 16
	}
	bw, bh := def, def
	if c.BlockWidth != 0 {
		bw = c.BlockWidth
	}
	if c.BlockHeight != 0 {
		bh = c.BlockHeight
	}
	return bw, bh
}

func (c Config) rcConfig() ratecontrol.Config {
	return ratecontrol.Config{
		Mode:            c.RateControl,
		Quality:         c.Quality,
		Bitrate:         c.Bitrate,
		MaxStep:         c.MaxStep,
		MinQuality:      c.MinQuality,
		MaxQuality:      c.MaxQuality,
		MinIntraQuality: c.MinIntraQuality,
		BPFReset:        c.BPFResetInterval,
		TemporalAQ:      c.TemporalAQ,
	}
}

func (c Config) gopConfig() gop.Config {
	return gop.Config{
		Length:           c.GOP,
		VariableInterval: c.VariableIntraInterval,
		SceneDetection:   c.SceneDetection,
		IntraPercent:     c.IntraPercent,
		SceneChangeDelta: c.SceneChangeDelta,
		StableRefresh:    c.StableRefresh,
	}
}
