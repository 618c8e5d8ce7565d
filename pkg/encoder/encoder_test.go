package encoder

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/user/subband/pkg/adapters/logger"
	"github.com/user/subband/pkg/adapters/pixelfilter"
	"github.com/user/subband/pkg/frame"
	"github.com/user/subband/pkg/gop"
	"github.com/user/subband/pkg/mocks"
	"github.com/user/subband/pkg/ports"
	"github.com/user/subband/pkg/ratecontrol"
)

func testMeta(w, h int) frame.Metadata {
	return frame.Metadata{Width: w, Height: h, Subsampling: frame.Subsampling420, FPSNum: 30, FPSDen: 1, AspectNum: 1, AspectDen: 1}
}

// wave draws a smooth pattern displaced by (dx, dy) in all planes.
func wave(w, h, dx, dy int) *frame.Frame {
	f := frame.New(w, h, frame.Subsampling420)
	for p := range f.Planes {
		pl := &f.Planes[p]
		scale := 1 << min(p, 1)
		for y := 0; y < pl.Height; y++ {
			row := pl.Row(y)
			for x := range row {
				fx := float64(x*scale + dx)
				fy := float64(y*scale + dy)
				row[x] = byte(128 + 50*math.Sin(fx*0.2) + 50*math.Cos(fy*0.15))
			}
		}
	}
	return f
}

func flat(w, h int, v byte) *frame.Frame {
	f := frame.New(w, h, frame.Subsampling420)
	f.Fill(v)
	return f
}

func newTestEncoder(t *testing.T, cfg Config, transform ports.TransformStage, meta frame.Metadata) *Encoder {
	t.Helper()
	enc, err := New(cfg, transform, pixelfilter.New(), logger.NewNoop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := enc.SetMetadata(meta); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	return enc
}

func testConfig() Config {
	cfg := Defaults()
	cfg.Workers = 2
	return cfg
}

func pictures(packets []frame.Packet) []frame.Packet {
	var out []frame.Packet
	for _, p := range packets {
		if p.Kind == frame.PacketPicture {
			out = append(out, p)
		}
	}
	return out
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"inverted quality bounds", func(c *Config) { c.MinQuality, c.MaxQuality = 80, 20 }},
		{"too many pyramid levels", func(c *Config) { c.PyramidLevels = MaxPyramidLevels + 1 }},
		{"no pyramid levels", func(c *Config) { c.PyramidLevels = 0 }},
		{"quality out of range", func(c *Config) { c.Quality = 101 }},
		{"effort out of range", func(c *Config) { c.Effort = 11 }},
		{"block size not a power of two", func(c *Config) { c.BlockWidth = 24 }},
		{"block size too large", func(c *Config) { c.BlockHeight = 128 }},
		{"negative GOP", func(c *Config) { c.GOP = -2 }},
		{"abr without bitrate", func(c *Config) { c.RateControl = ratecontrol.ModeABR; c.Bitrate = 0 }},
		{"skip threshold", func(c *Config) { c.SkipThreshold = -5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.modify(&cfg)
			_, err := New(cfg, &mocks.TransformStage{}, pixelfilter.New(), logger.NewNoop())
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestConfig_BlockSize(t *testing.T) {
	cfg := Defaults()
	if bw, bh := cfg.BlockSize(640, 480); bw != 16 || bh != 16 {
		t.Errorf("expected 16x16 for VGA, got %dx%d", bw, bh)
	}
	if bw, bh := cfg.BlockSize(1920, 1080); bw != 32 || bh != 32 {
		t.Errorf("expected 32x32 for HD, got %dx%d", bw, bh)
	}
	cfg.BlockWidth = 8
	if bw, bh := cfg.BlockSize(1920, 1080); bw != 8 || bh != 32 {
		t.Errorf("expected 8x32 with override, got %dx%d", bw, bh)
	}
}

func TestEncode_NoMetadata(t *testing.T) {
	enc, err := New(testConfig(), &mocks.TransformStage{}, pixelfilter.New(), logger.NewNoop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := enc.Encode(context.Background(), flat(64, 48, 0)); !errors.Is(err, ErrNoMetadata) {
		t.Errorf("expected ErrNoMetadata, got %v", err)
	}
}

func TestEncode_FrameShape(t *testing.T) {
	enc := newTestEncoder(t, testConfig(), &mocks.TransformStage{}, testMeta(64, 48))
	if _, err := enc.Encode(context.Background(), flat(32, 48, 0)); !errors.Is(err, ErrFrameShape) {
		t.Errorf("expected ErrFrameShape, got %v", err)
	}
}

func TestEncode_IdenticalFramesFixedGOP(t *testing.T) {
	cfg := testConfig()
	cfg.GOP = 10
	transform := &mocks.TransformStage{}
	enc := newTestEncoder(t, cfg, transform, testMeta(64, 48))

	var intra []uint64
	predQuant := -1
	for i := 0; i < 30; i++ {
		packets, err := enc.Encode(context.Background(), wave(64, 48, 0, 0))
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if i == 0 && (len(packets) != 2 || packets[0].Kind != frame.PacketMetadata) {
			t.Fatalf("frame 0: expected metadata then picture, got %+v", packets)
		}
		pics := pictures(packets)
		if len(pics) != 1 {
			t.Fatalf("frame %d: expected one picture, got %d", i, len(pics))
		}
		pic := pics[0]
		if pic.Type == frame.Intra {
			intra = append(intra, pic.FrameNumber)
			continue
		}

		if predQuant < 0 {
			predQuant = pic.Quant
		} else if pic.Quant != predQuant {
			t.Errorf("frame %d: predicted quant %d, earlier %d", i, pic.Quant, predQuant)
		}
		report, ok := enc.LastReport()
		if !ok {
			t.Fatalf("frame %d: no report", i)
		}
		for b, mv := range report.Field {
			if !mv.IsZero() {
				t.Errorf("frame %d block %d: expected zero vector, got %+v", i, b, mv)
			}
		}
	}

	want := []uint64{0, 10, 20}
	if len(intra) != len(want) {
		t.Fatalf("expected intra frames at %v, got %v", want, intra)
	}
	for i := range want {
		if intra[i] != want[i] {
			t.Errorf("expected intra frames at %v, got %v", want, intra)
		}
	}

	s := enc.Stats()
	if s.IntraFrames != 3 || s.PredictedFrames != 27 {
		t.Errorf("expected 3 intra / 27 predicted, got %d / %d", s.IntraFrames, s.PredictedFrames)
	}
	if s.PrevGOPStart != 20 {
		t.Errorf("expected last GOP start 20, got %d", s.PrevGOPStart)
	}
}

func TestEncode_SingleFrameIntraOnly(t *testing.T) {
	cfg := testConfig()
	cfg.GOP = gop.IntraOnly
	enc := newTestEncoder(t, cfg, &mocks.TransformStage{}, testMeta(64, 48))

	packets, err := enc.Encode(context.Background(), wave(64, 48, 0, 0))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	pics := pictures(packets)
	if len(pics) != 1 || pics[0].Type != frame.Intra {
		t.Fatalf("expected one intra picture, got %+v", pics)
	}

	tail, err := enc.EndOfStream(context.Background())
	if err != nil {
		t.Fatalf("EndOfStream: %v", err)
	}
	if len(tail) != 1 || tail[0].Kind != frame.PacketEndOfStream {
		t.Errorf("expected a single end-of-stream packet, got %+v", tail)
	}
	if !enc.Finished() {
		t.Error("expected stream to be finished")
	}
	if live := enc.Stats().LiveContexts; live != 0 {
		t.Errorf("expected no live contexts, got %d", live)
	}

	if _, err := enc.Encode(context.Background(), wave(64, 48, 0, 0)); !errors.Is(err, ErrStreamFinished) {
		t.Errorf("expected ErrStreamFinished from Encode, got %v", err)
	}
	if _, err := enc.EndOfStream(context.Background()); !errors.Is(err, ErrStreamFinished) {
		t.Errorf("expected ErrStreamFinished from EndOfStream, got %v", err)
	}
}

func TestEndOfStream_WithoutFrames(t *testing.T) {
	enc := newTestEncoder(t, testConfig(), &mocks.TransformStage{}, testMeta(64, 48))

	tail, err := enc.EndOfStream(context.Background())
	if err != nil {
		t.Fatalf("EndOfStream: %v", err)
	}
	if len(tail) != 2 || tail[0].Kind != frame.PacketMetadata || tail[1].Kind != frame.PacketEndOfStream {
		t.Errorf("expected metadata and end-of-stream packets, got %+v", tail)
	}
}

func TestEncode_ABRConverges(t *testing.T) {
	cfg := testConfig()
	cfg.RateControl = ratecontrol.ModeABR
	cfg.Bitrate = 480000
	cfg.MaxStep = 32
	cfg.BPFResetInterval = 20
	cfg.GOP = gop.Infinite
	cfg.SceneDetection = false
	cfg.Effort = 2

	// Coded size is inversely proportional to the quantizer.
	transform := &mocks.TransformStage{
		EncodeFunc: func(ctx context.Context, in ports.TransformInput) (ports.TransformOutput, error) {
			return ports.TransformOutput{
				Payload:       make([]byte, 64000/in.Quant),
				Reconstructed: in.Residual.Clone(),
			}, nil
		},
	}
	enc := newTestEncoder(t, cfg, transform, testMeta(64, 64))

	target := enc.Stats().RateControl.TargetBPF
	var total int64
	const frames = 100
	for i := 0; i < frames; i++ {
		packets, err := enc.Encode(context.Background(), wave(64, 64, 3*i, i))
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if i >= frames/2 {
			total += int64(len(pictures(packets)[0].Payload)) * 8
		}
	}

	avg := total / (frames / 2)
	if avg < target*9/10 || avg > target*11/10 {
		t.Errorf("expected average near %d bits, got %d", target, avg)
	}
}

func TestEncode_QuantWithinBounds(t *testing.T) {
	cfg := testConfig()
	cfg.RateControl = ratecontrol.ModeABR
	cfg.Bitrate = 100000
	cfg.GOP = 7
	cfg.Effort = 0
	cfg.MinQuality = 30
	cfg.MaxQuality = 70
	cfg.MinIntraQuality = 50

	sizes := []int{10, 5000, 1, 20000, 300, 0, 9000}
	n := 0
	transform := &mocks.TransformStage{
		EncodeFunc: func(ctx context.Context, in ports.TransformInput) (ports.TransformOutput, error) {
			n++
			return ports.TransformOutput{Payload: make([]byte, sizes[n%len(sizes)]), Reconstructed: in.Residual.Clone()}, nil
		},
	}
	enc := newTestEncoder(t, cfg, transform, testMeta(64, 48))

	pMin, pMax := ratecontrol.Quant(70*ratecontrol.QualScale), ratecontrol.Quant(30*ratecontrol.QualScale)
	iMax := ratecontrol.Quant(50 * ratecontrol.QualScale)
	for i := 0; i < 40; i++ {
		packets, err := enc.Encode(context.Background(), wave(64, 48, i, 0))
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		pic := pictures(packets)[0]
		hi := pMax
		if pic.Type == frame.Intra {
			hi = iMax
		}
		if pic.Quant < pMin || pic.Quant > hi {
			t.Errorf("frame %d (%v): quant %d outside [%d, %d]", i, pic.Type, pic.Quant, pMin, hi)
		}
	}
}

func TestEncode_SceneChangeTrigger(t *testing.T) {
	for _, detection := range []bool{true, false} {
		cfg := testConfig()
		cfg.GOP = gop.Infinite
		cfg.SceneDetection = detection
		enc := newTestEncoder(t, cfg, &mocks.TransformStage{}, testMeta(64, 48))

		if _, err := enc.Encode(context.Background(), flat(64, 48, 200)); err != nil {
			t.Fatalf("frame 0: %v", err)
		}
		packets, err := enc.Encode(context.Background(), flat(64, 48, 20))
		if err != nil {
			t.Fatalf("frame 1: %v", err)
		}

		want := frame.Predicted
		if detection {
			want = frame.Intra
		}
		if got := pictures(packets)[0].Type; got != want {
			t.Errorf("detection=%v: expected %v, got %v", detection, want, got)
		}
		report, _ := enc.LastReport()
		if report.SceneChangeBlocks != enc.Geometry().Blocks() {
			t.Errorf("detection=%v: expected every block unmatched, got %d", detection, report.SceneChangeBlocks)
		}
	}
}

func TestEncode_ContextLifetime(t *testing.T) {
	cfg := testConfig()
	cfg.GOP = gop.Infinite
	enc := newTestEncoder(t, cfg, &mocks.TransformStage{}, testMeta(64, 48))

	freed := map[uint64]int{}
	enc.OnContextFree(func(c *Context) {
		freed[c.Number]++
		if c.Source != nil || c.Reconstructed != nil || c.Pyramid != nil {
			t.Errorf("context %d freed with buffers attached", c.Number)
		}
	})

	for i := 0; i < 5; i++ {
		if _, err := enc.Encode(context.Background(), wave(64, 48, i, 0)); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if live := enc.Stats().LiveContexts; live != 1 {
			t.Errorf("frame %d: expected one live context, got %d", i, live)
		}
		ref, ok := enc.contexts.get(uint64(i))
		if !ok || ref.Refs() != 1 || ref.Ref != nil {
			t.Errorf("frame %d: expected current reference held once with no back-reference", i)
		}
	}
	if len(freed) != 4 {
		t.Errorf("expected 4 freed contexts, got %d", len(freed))
	}

	if _, err := enc.EndOfStream(context.Background()); err != nil {
		t.Fatalf("EndOfStream: %v", err)
	}
	for n, count := range freed {
		if count != 1 {
			t.Errorf("context %d freed %d times", n, count)
		}
	}
	if len(freed) != 5 {
		t.Errorf("expected all 5 contexts freed, got %d", len(freed))
	}
}

func TestContext_ReleaseTooOften(t *testing.T) {
	table := newContextTable()
	c := table.acquire(7, frame.NewGeometry(16, 16, 16, 16))
	c.Retain()
	c.Release()
	c.Release()
	if table.len() != 0 {
		t.Fatalf("expected context removed at zero references")
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic on release below zero")
		}
	}()
	c.Release()
}

func TestSetMetadata_ResolutionChange(t *testing.T) {
	cfg := testConfig()
	cfg.GOP = gop.Infinite
	enc := newTestEncoder(t, cfg, &mocks.TransformStage{}, testMeta(64, 48))

	for i := 0; i < 2; i++ {
		if _, err := enc.Encode(context.Background(), wave(64, 48, 0, 0)); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}

	if err := enc.SetMetadata(testMeta(96, 64)); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	if got := enc.Geometry().Blocks(); got != 6*4 {
		t.Errorf("expected 24 blocks, got %d", got)
	}
	if got := enc.stability.Len(); got != 6*4 {
		t.Errorf("expected stability for 24 blocks, got %d", got)
	}

	packets, err := enc.Encode(context.Background(), wave(96, 64, 0, 0))
	if err != nil {
		t.Fatalf("frame 2: %v", err)
	}
	if len(packets) != 2 || packets[0].Kind != frame.PacketMetadata || packets[0].Meta.Width != 96 {
		t.Fatalf("expected new metadata before the picture, got %+v", packets)
	}
	if packets[1].Type != frame.Intra {
		t.Errorf("expected intra after resolution change, got %v", packets[1].Type)
	}
	if report, _ := enc.LastReport(); report.Reason != gop.ReasonForced {
		t.Errorf("expected forced reason, got %v", report.Reason)
	}

	packets, err = enc.Encode(context.Background(), wave(96, 64, 0, 0))
	if err != nil {
		t.Fatalf("frame 3: %v", err)
	}
	if packets[0].Type != frame.Predicted {
		t.Errorf("expected predicted frame after the refresh, got %v", packets[0].Type)
	}
}

func TestForceMetadata(t *testing.T) {
	enc := newTestEncoder(t, testConfig(), &mocks.TransformStage{}, testMeta(64, 48))
	if _, err := enc.Encode(context.Background(), wave(64, 48, 0, 0)); err != nil {
		t.Fatalf("frame 0: %v", err)
	}

	packets, _ := enc.Encode(context.Background(), wave(64, 48, 0, 0))
	if len(packets) != 1 {
		t.Errorf("expected a single picture, got %d packets", len(packets))
	}

	enc.ForceMetadata()
	packets, _ = enc.Encode(context.Background(), wave(64, 48, 0, 0))
	if len(packets) != 2 || packets[0].Kind != frame.PacketMetadata {
		t.Errorf("expected metadata to be re-emitted, got %+v", packets)
	}
}

func TestEncode_TransformFailureBreaksStream(t *testing.T) {
	transform := &mocks.TransformStage{
		EncodeFunc: func(ctx context.Context, in ports.TransformInput) (ports.TransformOutput, error) {
			return ports.TransformOutput{}, errors.New("out of memory")
		},
	}
	enc := newTestEncoder(t, testConfig(), transform, testMeta(64, 48))

	packets, err := enc.Encode(context.Background(), wave(64, 48, 0, 0))
	if !errors.Is(err, ErrStreamBroken) {
		t.Fatalf("expected ErrStreamBroken, got %v", err)
	}
	if packets != nil {
		t.Errorf("expected no packets from a failed frame, got %d", len(packets))
	}
	if _, err := enc.Encode(context.Background(), wave(64, 48, 0, 0)); !errors.Is(err, ErrStreamBroken) {
		t.Errorf("expected stream to stay broken, got %v", err)
	}
	if live := enc.Stats().LiveContexts; live != 0 {
		t.Errorf("expected failed context released, got %d live", live)
	}
}

func TestReconfigure(t *testing.T) {
	cfg := testConfig()
	cfg.GOP = gop.Infinite
	enc := newTestEncoder(t, cfg, &mocks.TransformStage{}, testMeta(64, 48))
	if _, err := enc.Encode(context.Background(), wave(64, 48, 0, 0)); err != nil {
		t.Fatalf("frame 0: %v", err)
	}

	bad := cfg
	bad.MinQuality = 90
	bad.MaxQuality = 10
	if err := enc.Reconfigure(bad); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}

	next := cfg
	next.Quality = 40
	next.PyramidLevels = 2
	if err := enc.Reconfigure(next); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	packets, err := enc.Encode(context.Background(), wave(64, 48, 0, 0))
	if err != nil {
		t.Fatalf("frame 1: %v", err)
	}
	pic := pictures(packets)[0]
	if pic.Type != frame.Intra {
		t.Errorf("expected intra after pyramid depth change, got %v", pic.Type)
	}
	if want := ratecontrol.Quant(40 * ratecontrol.QualScale); pic.Quant != want {
		t.Errorf("expected quant %d, got %d", want, pic.Quant)
	}
}
