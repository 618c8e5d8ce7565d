package zstdstage

import (
	"context"
	"errors"
	"testing"

	"github.com/user/subband/pkg/frame"
	"github.com/user/subband/pkg/ports"
)

func gradient(w, h int) *frame.Frame {
	f := frame.New(w, h, frame.Subsampling420)
	for p := range f.Planes {
		pl := &f.Planes[p]
		for y := 0; y < pl.Height; y++ {
			row := pl.Row(y)
			for x := range row {
				row[x] = byte((x*7 + y*3 + p*40) % 256)
			}
		}
	}
	return f
}

func blocks(g frame.Geometry, quant int) []frame.BlockInfo {
	b := make([]frame.BlockInfo, g.Blocks())
	for i := range b {
		b[i].Quant = quant
	}
	return b
}

func samePlanes(t *testing.T, a, b *frame.Frame) {
	t.Helper()
	for p := range a.Planes {
		for y := 0; y < a.Planes[p].Height; y++ {
			ra, rb := a.Planes[p].Row(y), b.Planes[p].Row(y)
			for x := range ra {
				if ra[x] != rb[x] {
					t.Fatalf("plane %d (%d,%d): %d != %d", p, x, y, ra[x], rb[x])
				}
			}
		}
	}
}

func TestEncode_LosslessAtQuantOne(t *testing.T) {
	g := frame.NewGeometry(32, 32, 16, 16)
	res := gradient(32, 32)

	out, err := New().Encode(context.Background(), ports.TransformInput{
		Type: frame.Intra, Geometry: g, Residual: res, Quant: 1, Blocks: blocks(g, 1),
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	samePlanes(t, res, out.Reconstructed)
}

func TestEncode_DecodeMatchesReconstruction(t *testing.T) {
	g := frame.NewGeometry(48, 32, 16, 16)
	res := gradient(48, 32)
	info := blocks(g, 12)
	info[1].Flags = frame.BlockSkip
	info[4].Quant = 3

	out, err := New().Encode(context.Background(), ports.TransformInput{
		Type: frame.Predicted, Geometry: g, Residual: res, Quant: 12, Blocks: info,
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, typ, err := Decode(out.Payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if typ != frame.Predicted {
		t.Errorf("expected predicted, got %v", typ)
	}
	samePlanes(t, out.Reconstructed, decoded)

	// Skip blocks decode to a zero residual.
	if got := decoded.Planes[0].At(20, 4); got != bias {
		t.Errorf("expected %d in skip block, got %d", bias, got)
	}
}

func TestEncode_CoarserQuantIsSmaller(t *testing.T) {
	g := frame.NewGeometry(64, 64, 16, 16)
	res := gradient(64, 64)
	stage := New()

	fine, err := stage.Encode(context.Background(), ports.TransformInput{Type: frame.Intra, Geometry: g, Residual: res, Blocks: blocks(g, 1)})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	coarse, err := stage.Encode(context.Background(), ports.TransformInput{Type: frame.Intra, Geometry: g, Residual: res, Blocks: blocks(g, 64)})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(coarse.Payload) >= len(fine.Payload) {
		t.Errorf("expected coarse payload (%d) smaller than fine (%d)", len(coarse.Payload), len(fine.Payload))
	}
}

func TestEncode_BlockCountMismatch(t *testing.T) {
	g := frame.NewGeometry(32, 32, 16, 16)
	_, err := New().Encode(context.Background(), ports.TransformInput{Geometry: g, Residual: gradient(32, 32), Blocks: blocks(g, 1)[:1]})
	if err == nil {
		t.Error("expected error for missing block entries")
	}
}

func TestDecode_Corrupt(t *testing.T) {
	payload, err := compress([]byte("not a payload"))
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if _, _, err := Decode(payload); !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt, got %v", err)
	}
}

func TestQuantize(t *testing.T) {
	tests := []struct {
		v, q int
		want int8
	}{
		{0, 4, 0},
		{5, 4, 1},
		{6, 4, 2},
		{-6, 4, -2},
		{127, 1, 127},
		{-128, 1, -128},
	}
	for _, tt := range tests {
		if got := quantize(tt.v, tt.q); got != tt.want {
			t.Errorf("quantize(%d, %d) = %d, want %d", tt.v, tt.q, got, tt.want)
		}
	}
}
