package mocks

import (
	"image"
	"sync"

	"github.com/user/subband/pkg/ports"
)

// DebugSink is a mock implementation of ports.DebugSink.
type DebugSink struct {
	mu sync.RWMutex

	enabled bool

	ConfigJSON   []byte
	FrameLogJSON []byte
	MotionFields map[uint64]image.Image

	SaveMotionFieldFunc func(frameNumber uint64, img image.Image) error
}

// NewDebugSink creates a new mock DebugSink.
func NewDebugSink(enabled bool) *DebugSink {
	return &DebugSink{
		enabled:      enabled,
		MotionFields: make(map[uint64]image.Image),
	}
}

func (m *DebugSink) Enabled() bool {
	return m.enabled
}

func (m *DebugSink) SaveConfigJSON(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ConfigJSON = data
	return nil
}

func (m *DebugSink) SaveFrameLogJSON(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FrameLogJSON = data
	return nil
}

func (m *DebugSink) SaveMotionField(frameNumber uint64, img image.Image) error {
	if m.SaveMotionFieldFunc != nil {
		if err := m.SaveMotionFieldFunc(frameNumber, img); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MotionFields[frameNumber] = img
	return nil
}

// MotionFieldCount returns the number of saved motion fields.
func (m *DebugSink) MotionFieldCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.MotionFields)
}

var _ ports.DebugSink = (*DebugSink)(nil)

// NullSink is a no-op implementation of ports.DebugSink.
type NullSink struct{}

func (m *NullSink) Enabled() bool                                         { return false }
func (m *NullSink) SaveConfigJSON(data []byte) error                      { return nil }
func (m *NullSink) SaveFrameLogJSON(data []byte) error                    { return nil }
func (m *NullSink) SaveMotionField(frameNumber uint64, img image.Image) error { return nil }

var _ ports.DebugSink = (*NullSink)(nil)
