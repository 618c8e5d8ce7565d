// Package zstdstage is a reference ports.TransformStage: per-block scalar quantization
// of the residual followed by zstd compression. It is lossy only through quantization
// and exists to drive the encoder end to end, not to compete with a real transform.
package zstdstage

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/user/subband/pkg/frame"
	"github.com/user/subband/pkg/ports"
)

const (
	magic   = "SB"
	version = 1
	bias    = 128

	headerSize = 2 + 1 + 1 + 4*2 + 1 + 2*1
)

// ErrCorrupt is returned by Decode for payloads it cannot parse.
var ErrCorrupt = errors.New("zstdstage: corrupt payload")

var encPool = sync.Pool{
	New: func() any {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		return enc
	},
}

var decPool = sync.Pool{
	New: func() any {
		dec, _ := zstd.NewReader(nil)
		return dec
	},
}

// Stage implements ports.TransformStage.
type Stage struct{}

// New creates a Stage.
func New() *Stage {
	return &Stage{}
}

// Encode quantizes every block of the residual with its own quantizer. Skip blocks
// carry no levels and decode to a zero residual.
func (s *Stage) Encode(ctx context.Context, in ports.TransformInput) (ports.TransformOutput, error) {
	if err := ctx.Err(); err != nil {
		return ports.TransformOutput{}, err
	}
	g := in.Geometry
	res := in.Residual
	if res == nil || len(in.Blocks) != g.Blocks() {
		return ports.TransformOutput{}, fmt.Errorf("zstdstage: %d block entries for %d blocks", len(in.Blocks), g.Blocks())
	}

	var raw bytes.Buffer
	raw.WriteString(magic)
	raw.WriteByte(version)
	raw.WriteByte(byte(in.Type))
	raw.Write(binary.BigEndian.AppendUint16(nil, uint16(res.Width)))
	raw.Write(binary.BigEndian.AppendUint16(nil, uint16(res.Height)))
	raw.Write(binary.BigEndian.AppendUint16(nil, uint16(g.BlockW)))
	raw.Write(binary.BigEndian.AppendUint16(nil, uint16(g.BlockH)))
	raw.WriteByte(byte(res.Subsampling))
	raw.Write(binary.BigEndian.AppendUint16(nil, uint16(g.BlocksX)))
	for _, b := range in.Blocks {
		q := b.Quant
		if b.Flags.Has(frame.BlockSkip) && in.Type == frame.Predicted {
			q = 0
		}
		raw.WriteByte(byte(q))
	}

	recon := frame.New(res.Width, res.Height, res.Subsampling)
	hs, vs := res.Subsampling.Shift()
	for p := range res.Planes {
		sx, sy := 0, 0
		if p > 0 {
			sx, sy = hs, vs
		}
		quantizePlane(&raw, &recon.Planes[p], &res.Planes[p], g, in.Blocks, in.Type, sx, sy)
	}

	payload, err := compress(raw.Bytes())
	if err != nil {
		return ports.TransformOutput{}, fmt.Errorf("zstd encode: %w", err)
	}
	return ports.TransformOutput{Payload: payload, Reconstructed: recon}, nil
}

func quantizePlane(w *bytes.Buffer, dst, src *frame.Plane, g frame.Geometry, blocks []frame.BlockInfo, t frame.Type, sx, sy int) {
	bw := max(g.BlockW>>sx, 1)
	bh := max(g.BlockH>>sy, 1)
	for by := 0; by < g.BlocksY; by++ {
		for bx := 0; bx < g.BlocksX; bx++ {
			b := blocks[by*g.BlocksX+bx]
			skip := t == frame.Predicted && b.Flags.Has(frame.BlockSkip)
			q := max(b.Quant, 1)
			for y := by * bh; y < (by+1)*bh && y < src.Height; y++ {
				srow, drow := src.Row(y), dst.Row(y)
				for x := bx * bw; x < (bx+1)*bw && x < src.Width; x++ {
					if skip {
						drow[x] = bias
						continue
					}
					level := quantize(int(srow[x])-bias, q)
					w.WriteByte(byte(level))
					drow[x] = dequantize(level, q)
				}
			}
		}
	}
}

func quantize(v, q int) int8 {
	var l int
	if v >= 0 {
		l = (v + q/2) / q
	} else {
		l = -((-v + q/2) / q)
	}
	return int8(min(max(l, -128), 127))
}

func dequantize(l int8, q int) byte {
	v := int(l)*q + bias
	return byte(min(max(v, 0), 255))
}

// Decode rebuilds the residual a decoder would see from an Encode payload.
func Decode(payload []byte) (*frame.Frame, frame.Type, error) {
	raw, err := decompress(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("zstd decode: %w", err)
	}
	if len(raw) < headerSize || string(raw[:2]) != magic || raw[2] != version {
		return nil, 0, ErrCorrupt
	}
	t := frame.Type(raw[3])
	width := int(binary.BigEndian.Uint16(raw[4:]))
	height := int(binary.BigEndian.Uint16(raw[6:]))
	blockW := int(binary.BigEndian.Uint16(raw[8:]))
	blockH := int(binary.BigEndian.Uint16(raw[10:]))
	sub := frame.Subsampling(raw[12])
	if blockW == 0 || blockH == 0 || width == 0 || height == 0 || sub > frame.Subsampling411 {
		return nil, 0, ErrCorrupt
	}
	g := frame.NewGeometry(width, height, blockW, blockH)
	if int(binary.BigEndian.Uint16(raw[13:])) != g.BlocksX {
		return nil, 0, ErrCorrupt
	}
	pos := headerSize
	if len(raw) < pos+g.Blocks() {
		return nil, 0, ErrCorrupt
	}
	quants := raw[pos : pos+g.Blocks()]
	pos += g.Blocks()

	out := frame.New(width, height, sub)
	hs, vs := sub.Shift()
	for p := range out.Planes {
		sx, sy := 0, 0
		if p > 0 {
			sx, sy = hs, vs
		}
		pos, err = dequantizePlane(&out.Planes[p], raw, pos, g, quants, sx, sy)
		if err != nil {
			return nil, 0, err
		}
	}
	return out, t, nil
}

func dequantizePlane(dst *frame.Plane, raw []byte, pos int, g frame.Geometry, quants []byte, sx, sy int) (int, error) {
	bw := max(g.BlockW>>sx, 1)
	bh := max(g.BlockH>>sy, 1)
	for by := 0; by < g.BlocksY; by++ {
		for bx := 0; bx < g.BlocksX; bx++ {
			q := int(quants[by*g.BlocksX+bx])
			for y := by * bh; y < (by+1)*bh && y < dst.Height; y++ {
				row := dst.Row(y)
				for x := bx * bw; x < (bx+1)*bw && x < dst.Width; x++ {
					if q == 0 {
						row[x] = bias
						continue
					}
					if pos >= len(raw) {
						return pos, ErrCorrupt
					}
					row[x] = dequantize(int8(raw[pos]), q)
					pos++
				}
			}
		}
	}
	return pos, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	enc := encPool.Get().(*zstd.Encoder)
	enc.Reset(&buf)
	if _, err := enc.Write(data); err != nil {
		_ = enc.Close()
		encPool.Put(enc)
		return nil, err
	}
	if err := enc.Close(); err != nil {
		encPool.Put(enc)
		return nil, err
	}
	encPool.Put(enc)
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	dec := decPool.Get().(*zstd.Decoder)
	defer decPool.Put(dec)
	if err := dec.Reset(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if _, err := out.ReadFrom(dec); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Ensure Stage implements ports.TransformStage
var _ ports.TransformStage = (*Stage)(nil)
