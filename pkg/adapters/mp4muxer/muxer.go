// Package mp4muxer frames encoder packets into a fragmented MP4 file using mp4ff.
//
// Each MP4 sample is one picture. Packets are stored inside samples as
// length-prefixed units: a 4-byte big-endian length, a 1-byte packet kind, then
// the body. A metadata packet rides in front of the picture that follows it.
package mp4muxer

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Eyevinn/mp4ff/bits"
	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/subband/pkg/frame"
	"github.com/user/subband/pkg/ports"
)

// SampleEntry is the four-character code of the visual sample entry.
const SampleEntry = "dsv2"

const metadataBodySize = 7 * 4

var (
	// ErrNotStarted is returned when packets arrive before Begin.
	ErrNotStarted = errors.New("mp4muxer: Begin not called")
	// ErrNoPictures is returned by End when nothing was written.
	ErrNoPictures = errors.New("mp4muxer: no pictures to mux")
)

type sample struct {
	data []byte
	sync bool
}

// Muxer implements ports.Muxer. It buffers samples in memory until End.
type Muxer struct {
	meta    frame.Metadata
	started bool
	pending []byte
	samples []sample
	bytes   int
}

// New creates a Muxer.
func New() *Muxer {
	return &Muxer{}
}

// Begin starts a new file for a stream.
func (m *Muxer) Begin(meta frame.Metadata) error {
	if err := meta.Validate(); err != nil {
		return fmt.Errorf("mp4muxer: %w", err)
	}
	m.meta = meta
	m.started = true
	m.pending = nil
	m.samples = nil
	m.bytes = 0
	return nil
}

// WritePacket appends one encoder packet.
func (m *Muxer) WritePacket(pkt frame.Packet) error {
	if !m.started {
		return ErrNotStarted
	}
	switch pkt.Kind {
	case frame.PacketMetadata:
		if pkt.Meta == nil {
			return fmt.Errorf("mp4muxer: metadata packet without metadata")
		}
		m.pending = append(m.pending, unit(frame.PacketMetadata, EncodeMetadata(*pkt.Meta))...)
	case frame.PacketPicture:
		data := append(m.pending, unit(frame.PacketPicture, pkt.Payload)...)
		m.pending = nil
		m.samples = append(m.samples, sample{data: data, sync: pkt.Type == frame.Intra})
		m.bytes += len(data)
	case frame.PacketEndOfStream:
		// The end of the file marks the end of the stream.
	default:
		return fmt.Errorf("mp4muxer: unknown packet kind %d", pkt.Kind)
	}
	return nil
}

// Samples returns the number of pictures written so far.
func (m *Muxer) Samples() int {
	return len(m.samples)
}

// End writes ftyp, moov and a single fragment holding every sample.
func (m *Muxer) End() ([]byte, error) {
	if !m.started {
		return nil, ErrNotStarted
	}
	if len(m.samples) == 0 {
		return nil, ErrNoPictures
	}

	timescale := uint32(m.meta.FPSNum)
	dur := uint32(m.meta.FPSDen)
	trackID := uint32(1)

	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(timescale, "video", "und")
	trak := init.Moov.Trak

	btrt := &mp4.BtrtBox{
		BufferSizeDB: uint32(maxSampleSize(m.samples)),
		MaxBitrate:   0,
		AvgBitrate:   uint32(int64(m.bytes) * 8 * int64(timescale) / (int64(dur) * int64(len(m.samples)))),
	}
	entry := mp4.CreateVisualSampleEntryBox(SampleEntry, uint16(m.meta.Width), uint16(m.meta.Height), btrt)
	trak.Mdia.Minf.Stbl.Stsd.AddChild(entry)
	trak.Tkhd.Width = mp4.Fixed32(m.meta.Width << 16)
	trak.Tkhd.Height = mp4.Fixed32(m.meta.Height << 16)

	frag, err := mp4.CreateFragment(1, trackID)
	if err != nil {
		return nil, fmt.Errorf("create fragment: %w", err)
	}
	for i, s := range m.samples {
		flags := mp4.NonSyncSampleFlags
		if s.sync {
			flags = mp4.SyncSampleFlags
		}
		frag.AddFullSample(mp4.FullSample{
			Sample: mp4.Sample{
				Flags: flags,
				Size:  uint32(len(s.data)),
				Dur:   dur,
			},
			DecodeTime: uint64(i) * uint64(dur),
			Data:       s.data,
		})
	}

	var buf bytes.Buffer
	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso6", SampleEntry})
	if err := ftyp.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode ftyp: %w", err)
	}
	if err := init.Moov.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode moov: %w", err)
	}
	if err := frag.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode fragment: %w", err)
	}
	return buf.Bytes(), nil
}

func maxSampleSize(samples []sample) int {
	n := 0
	for _, s := range samples {
		n = max(n, len(s.data))
	}
	return n
}

func unit(kind frame.PacketKind, body []byte) []byte {
	sw := bits.NewFixedSliceWriter(5 + len(body))
	sw.WriteUint32(uint32(len(body)))
	sw.WriteUint8(uint8(kind))
	sw.WriteBytes(body)
	return sw.Bytes()
}

// EncodeMetadata serializes stream metadata as seven big-endian uint32 values.
func EncodeMetadata(meta frame.Metadata) []byte {
	sw := bits.NewFixedSliceWriter(metadataBodySize)
	for _, v := range []int{meta.Width, meta.Height, int(meta.Subsampling), meta.FPSNum, meta.FPSDen, meta.AspectNum, meta.AspectDen} {
		sw.WriteUint32(uint32(v))
	}
	return sw.Bytes()
}

// DecodeMetadata parses the body written by EncodeMetadata.
func DecodeMetadata(body []byte) (frame.Metadata, error) {
	if len(body) != metadataBodySize {
		return frame.Metadata{}, fmt.Errorf("mp4muxer: metadata body of %d bytes", len(body))
	}
	sr := bits.NewFixedSliceReader(body)
	meta := frame.Metadata{
		Width:       int(sr.ReadUint32()),
		Height:      int(sr.ReadUint32()),
		Subsampling: frame.Subsampling(sr.ReadUint32()),
		FPSNum:      int(sr.ReadUint32()),
		FPSDen:      int(sr.ReadUint32()),
		AspectNum:   int(sr.ReadUint32()),
		AspectDen:   int(sr.ReadUint32()),
	}
	return meta, sr.AccError()
}

// Unit is one packet stored inside a sample.
type Unit struct {
	Kind frame.PacketKind
	Body []byte
}

// SplitSample parses the units of one sample.
func SplitSample(data []byte) ([]Unit, error) {
	var units []Unit
	sr := bits.NewFixedSliceReader(data)
	for sr.NrRemainingBytes() > 0 {
		n := int(sr.ReadUint32())
		kind := frame.PacketKind(sr.ReadUint8())
		body := sr.ReadBytes(n)
		if err := sr.AccError(); err != nil {
			return nil, fmt.Errorf("mp4muxer: truncated sample: %w", err)
		}
		units = append(units, Unit{Kind: kind, Body: body})
	}
	return units, nil
}

// Ensure Muxer implements ports.Muxer
var _ ports.Muxer = (*Muxer)(nil)
