// Package gop decides picture types and group-of-pictures boundaries.
package gop

import (
	"math"

	"github.com/user/subband/pkg/frame"
)

const (
	// IntraOnly codes every picture as intra.
	IntraOnly = 0
	// Infinite never forces an intra picture after the first.
	Infinite = math.MaxInt32
)

// Reason explains why a picture was coded the way it was.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonFirst
	ReasonIntraOnly
	ReasonPeriod
	ReasonSceneChange
	ReasonForced
)

func (r Reason) String() string {
	switch r {
	case ReasonFirst:
		return "first"
	case ReasonIntraOnly:
		return "intra-only"
	case ReasonPeriod:
		return "period"
	case ReasonSceneChange:
		return "scene-change"
	case ReasonForced:
		return "forced"
	default:
		return "none"
	}
}

// Config holds the GOP related settings.
type Config struct {
	Length           int  // IntraOnly, Infinite or a positive period
	VariableInterval bool // count the period from the last intra instead of from frame 0
	SceneDetection   bool
	IntraPercent     int // share of unmatched blocks that makes a scene change
	SceneChangeDelta int // sensitivity; higher lowers the share
	StableRefresh    int // frames between stability resets
}

// Input is what the manager needs to know about the picture being decided.
type Input struct {
	FrameNumber       uint64
	SceneChangeBlocks int
	Blocks            int
	Force             bool // motion search failed or the stream shape changed
}

// Decision is the outcome for one picture.
type Decision struct {
	Type           frame.Type
	Reason         Reason
	ResetStability bool
}

// Manager is the GOP state machine. It is not safe for concurrent use.
type Manager struct {
	cfg       Config
	started   bool
	prevStart uint64
	refresh   int
}

// New creates a Manager. The first decided picture is always intra.
func New(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// Reconfigure swaps the configuration without restarting the GOP.
func (m *Manager) Reconfigure(cfg Config) {
	m.cfg = cfg
}

// PrevGOPStart returns the frame number of the most recent intra picture.
func (m *Manager) PrevGOPStart() uint64 {
	return m.prevStart
}

// SceneChangeLimit is the number of unmatched blocks a picture may have before it
// counts as a scene change.
func (m *Manager) SceneChangeLimit(blocks int) int {
	return blocks * m.cfg.IntraPercent / 100 * 16 / (16 + m.cfg.SceneChangeDelta)
}

// Forced reports whether frame n is intra whatever motion search finds, so the
// caller may skip the search.
func (m *Manager) Forced(n uint64) (Reason, bool) {
	switch {
	case !m.started || n == 0:
		return ReasonFirst, true
	case m.cfg.Length == IntraOnly || m.cfg.Length == 1:
		return ReasonIntraOnly, true
	case m.cfg.Length >= Infinite || m.cfg.Length < 0:
		return ReasonNone, false
	}
	period := uint64(m.cfg.Length)
	if m.cfg.VariableInterval {
		if n-m.prevStart >= period {
			return ReasonPeriod, true
		}
	} else if n%period == 0 {
		return ReasonPeriod, true
	}
	return ReasonNone, false
}

// Decide finalizes the type of a picture and advances the state machine.
func (m *Manager) Decide(in Input) Decision {
	m.refresh++

	reason, intra := m.Forced(in.FrameNumber)
	if !intra && in.Force {
		reason, intra = ReasonForced, true
	}
	if !intra && m.cfg.SceneDetection && in.SceneChangeBlocks > m.SceneChangeLimit(in.Blocks) {
		reason, intra = ReasonSceneChange, true
	}
	if !intra {
		return Decision{Type: frame.Predicted, Reason: ReasonNone}
	}

	d := Decision{Type: frame.Intra, Reason: reason}
	m.started = true
	m.prevStart = in.FrameNumber
	if m.refresh >= m.cfg.StableRefresh {
		d.ResetStability = true
		m.refresh = 0
	}
	return d
}
