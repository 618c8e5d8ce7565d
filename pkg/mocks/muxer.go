// Package mocks provides mock implementations for testing.
package mocks

import (
	"github.com/user/subband/pkg/frame"
	"github.com/user/subband/pkg/ports"
)

// Muxer is a mock implementation of ports.Muxer.
type Muxer struct {
	BeginFunc       func(meta frame.Metadata) error
	WritePacketFunc func(pkt frame.Packet) error
	EndFunc         func() ([]byte, error)

	// Recorded calls for verification
	BeginCalled bool
	Meta        frame.Metadata
	Packets     []frame.Packet
	EndCalled   bool
}

func (m *Muxer) Begin(meta frame.Metadata) error {
	m.BeginCalled = true
	m.Meta = meta
	if m.BeginFunc != nil {
		return m.BeginFunc(meta)
	}
	return nil
}

func (m *Muxer) WritePacket(pkt frame.Packet) error {
	m.Packets = append(m.Packets, pkt)
	if m.WritePacketFunc != nil {
		return m.WritePacketFunc(pkt)
	}
	return nil
}

func (m *Muxer) End() ([]byte, error) {
	m.EndCalled = true
	if m.EndFunc != nil {
		return m.EndFunc()
	}
	// ftyp box header
	return []byte{0x00, 0x00, 0x00, 0x08, 'f', 't', 'y', 'p'}, nil
}

// Pictures returns the number of picture packets written.
func (m *Muxer) Pictures() int {
	n := 0
	for _, p := range m.Packets {
		if p.Kind == frame.PacketPicture {
			n++
		}
	}
	return n
}

var _ ports.Muxer = (*Muxer)(nil)
