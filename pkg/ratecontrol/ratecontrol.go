// Package ratecontrol maps quality and bitrate targets to per-frame and per-block quantizers.
package ratecontrol

import (
	"fmt"
	"math"

	"github.com/user/subband/pkg/frame"
)

const (
	// MaxQuality is the top of the user quality scale.
	MaxQuality = 100
	// QualScale is the resolution of the internal quality scale per user step.
	QualScale = 4
	// QualMax is the top of the internal quality scale.
	QualMax = MaxQuality * QualScale

	// QuantMin is the finest quantizer, emitted at QualMax.
	QuantMin = 1
	// QuantMax is the coarsest quantizer, emitted at scaled quality 0.
	QuantMax = 128

	// DefaultBPFReset is the default window after which the bits-per-frame total restarts.
	DefaultBPFReset = 256

	// adaptGain converts a relative rate error into quality steps before clamping.
	adaptGain = 4.0
)

// Mode selects the rate control strategy.
type Mode int

const (
	// ModeCRF holds a constant quality.
	ModeCRF Mode = iota
	// ModeABR adapts quality in one pass to reach an average bitrate.
	ModeABR
)

func (m Mode) String() string {
	if m == ModeABR {
		return "abr"
	}
	return "crf"
}

// ParseMode parses "crf" or "abr".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "crf", "":
		return ModeCRF, nil
	case "abr":
		return ModeABR, nil
	}
	return ModeCRF, fmt.Errorf("unknown rate control mode %q", s)
}

// ScaleQuality converts a user quality to the internal scale.
func ScaleQuality(user int) int {
	return user * QualScale
}

// Quant maps a scaled quality to a quantizer. Higher quality gives a smaller quantizer.
func Quant(scaled int) int {
	scaled = clamp(scaled, 0, QualMax)
	return QuantMin + (QualMax-scaled)*(QuantMax-QuantMin)/QualMax
}

// Config is the rate control part of the encoder configuration. Qualities are user scale.
type Config struct {
	Mode            Mode
	Quality         int
	Bitrate         int // bits per second, ABR only
	MaxStep         int // largest change of the scaled quality per frame, ABR only
	MinQuality      int
	MaxQuality      int
	MinIntraQuality int
	BPFReset        int
	TemporalAQ      bool
}

// Stats is a snapshot of the controller accumulators.
type Stats struct {
	ScaledQuality int
	BPFTotal      int64
	BPFCount      int
	BPFAvg        int64
	TargetBPF     int64
	AvgPQuant     int
}

// Controller holds the running rate control state of one stream. It is driven by a
// single goroutine: FrameQuant before coding a frame, Update once its size is known.
type Controller struct {
	cfg    Config
	fpsNum int
	fpsDen int

	scaled int

	bpfTotal int64
	bpfCount int
	bpfAvg   int64

	pqTotal int
	pqCount int
	pqAvg   int
}

// New creates a controller starting at the configured quality.
func New(cfg Config) *Controller {
	c := &Controller{fpsNum: 30, fpsDen: 1}
	c.Reconfigure(cfg)
	return c
}

// Reconfigure swaps the configuration and re-clamps the current quality. Accumulators persist.
func (c *Controller) Reconfigure(cfg Config) {
	if cfg.BPFReset <= 0 {
		cfg.BPFReset = DefaultBPFReset
	}
	first := c.cfg == (Config{})
	modeChanged := c.cfg.Mode != cfg.Mode || c.cfg.Quality != cfg.Quality
	c.cfg = cfg
	if first || modeChanged || cfg.Mode == ModeCRF {
		c.scaled = ScaleQuality(cfg.Quality)
	}
	lo, hi := c.scaledBounds(frame.Predicted)
	c.scaled = clamp(c.scaled, lo, hi)
}

// SetFrameRate sets the rate used to convert the bitrate into a per-frame budget.
func (c *Controller) SetFrameRate(num, den int) {
	if num > 0 && den > 0 {
		c.fpsNum, c.fpsDen = num, den
	}
}

// TargetBPF is the bit budget of one frame in ABR mode.
func (c *Controller) TargetBPF() int64 {
	return int64(c.cfg.Bitrate) * int64(c.fpsDen) / int64(c.fpsNum)
}

// ScaledQuality returns the current internal quality.
func (c *Controller) ScaledQuality() int {
	return c.scaled
}

func (c *Controller) scaledBounds(t frame.Type) (int, int) {
	lo := ScaleQuality(c.cfg.MinQuality)
	hi := ScaleQuality(c.cfg.MaxQuality)
	if t == frame.Intra {
		if iq := ScaleQuality(c.cfg.MinIntraQuality); iq > lo {
			lo = iq
		}
		if lo > hi {
			lo = hi
		}
	}
	return lo, hi
}

// QuantBounds returns the smallest and largest quantizer FrameQuant may emit for t.
func (c *Controller) QuantBounds(t frame.Type) (int, int) {
	lo, hi := c.scaledBounds(t)
	return Quant(hi), Quant(lo)
}

// FrameQuant returns the quantizer for the next frame of type t.
func (c *Controller) FrameQuant(t frame.Type) int {
	lo, hi := c.scaledBounds(t)
	quant := Quant(clamp(c.scaled, lo, hi))
	if c.cfg.Mode == ModeABR && t == frame.Intra && c.pqAvg > 0 && quant > c.pqAvg {
		quant = c.pqAvg
	}
	qmin, qmax := c.QuantBounds(t)
	return clamp(quant, qmin, qmax)
}

// Update feeds back the size of a coded frame.
func (c *Controller) Update(t frame.Type, quant int, bits int64) {
	if t == frame.Predicted {
		c.pqTotal += quant
		c.pqCount++
		c.pqAvg = c.pqTotal / c.pqCount
	} else {
		c.pqTotal = 0
		c.pqCount = 0
	}

	c.bpfTotal += bits
	c.bpfCount++
	c.bpfAvg = c.bpfTotal / int64(c.bpfCount)
	avg := c.bpfAvg
	if c.bpfCount >= c.cfg.BPFReset {
		c.bpfTotal = 0
		c.bpfCount = 0
	}

	if c.cfg.Mode != ModeABR {
		return
	}
	target := c.TargetBPF()
	if target <= 0 {
		return
	}
	signal := (3*bits + avg) / 4
	ratio := float64(target-signal) / float64(target)
	delta := int(math.Round(ratio * float64(c.cfg.MaxStep) * adaptGain))
	delta = clamp(delta, -c.cfg.MaxStep, c.cfg.MaxStep)

	lo, hi := c.scaledBounds(frame.Predicted)
	c.scaled = clamp(c.scaled+delta, lo, hi)
}

// BlockInfo builds the per-block metadata for a frame. flags may be nil. For intra
// frames with temporal AQ, blocks that drifted over the refresh window get a finer
// quantizer and blocks that stayed put are marked stable.
func (c *Controller) BlockInfo(t frame.Type, quant int, flags []frame.BlockFlags, st *Stability, g frame.Geometry) []frame.BlockInfo {
	out := make([]frame.BlockInfo, g.Blocks())
	floor := Quant(ScaleQuality(c.cfg.MaxQuality))
	aq := t == frame.Intra && c.cfg.TemporalAQ && st != nil && st.Len() == len(out)
	for i := range out {
		out[i].Quant = quant
		if flags != nil {
			out[i].Flags = flags[i]
		}
		if !aq {
			continue
		}
		drift := st.Drift(i)
		level := 0
		switch {
		case drift >= 2*g.BlockW:
			level = 2
		case drift >= g.BlockW/2:
			level = 1
		default:
			out[i].Flags |= frame.BlockStable
		}
		if level > 0 {
			out[i].Quant = max(quant*(4-level)/4, floor)
		}
	}
	return out
}

// Stats returns a snapshot of the accumulators.
func (c *Controller) Stats() Stats {
	return Stats{
		ScaledQuality: c.scaled,
		BPFTotal:      c.bpfTotal,
		BPFCount:      c.bpfCount,
		BPFAvg:        c.bpfAvg,
		TargetBPF:     c.TargetBPF(),
		AvgPQuant:     c.pqAvg,
	}
}

func clamp(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
