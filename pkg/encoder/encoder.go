// Package encoder drives the per-frame decision chain of the subband video encoder:
// pyramid construction, motion search, picture type, quantizer selection, and the
// lifetime of reference pictures.
//
// An Encoder is driven by one goroutine. Motion search parallelizes internally; all
// rate control and GOP state is mutated only from Encode.
package encoder

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/subband/pkg/frame"
	"github.com/user/subband/pkg/gop"
	"github.com/user/subband/pkg/hme"
	"github.com/user/subband/pkg/ports"
	"github.com/user/subband/pkg/pyramid"
	"github.com/user/subband/pkg/ratecontrol"
)

// FrameReport describes the decisions taken for one coded frame.
type FrameReport struct {
	Number            uint64
	Type              frame.Type
	Reason            gop.Reason
	Quant             int
	ScaledQuality     int
	Bytes             int
	SceneChangeBlocks int
	SkippedBlocks     int
	Geometry          frame.Geometry
	Field             []frame.MotionVector // nil for intra frames
}

// Stats is a snapshot of the stream state.
type Stats struct {
	FramesEncoded   uint64
	IntraFrames     int
	PredictedFrames int
	Bytes           int64
	RateControl     ratecontrol.Stats
	PrevGOPStart    uint64
	LiveContexts    int
}

// Encoder is the top-level encoder state of one stream.
type Encoder struct {
	cfg       Config
	transform ports.TransformStage
	filter    ports.PixelFilter
	logger    ports.Logger

	estimator *hme.Estimator
	rc        *ratecontrol.Controller
	gop       *gop.Manager
	stability *ratecontrol.Stability
	contexts  *contextTable

	meta        frame.Metadata
	hasMeta     bool
	metaPending bool
	forceIntra  bool
	geom        frame.Geometry

	next      uint64
	ref       *Context
	prevField []frame.MotionVector

	intraCount int
	predCount  int
	bytes      int64
	last       *FrameReport

	finished bool
	broken   bool
}

// New validates cfg and creates an encoder. SetMetadata must be called before Encode.
func New(cfg Config, transform ports.TransformStage, filter ports.PixelFilter, logger ports.Logger) (*Encoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Encoder{
		cfg:       cfg,
		transform: transform,
		filter:    filter,
		logger:    logger.WithComponent("encoder"),
		rc:        ratecontrol.New(cfg.rcConfig()),
		gop:       gop.New(cfg.gopConfig()),
		stability: ratecontrol.NewStability(0),
		contexts:  newContextTable(),
	}
	e.estimator = hme.New(e.hmeOptions(), e.logger)
	return e, nil
}

func (e *Encoder) hmeOptions() hme.Options {
	return hme.Options{
		Effort:           e.cfg.Effort,
		Psy:              e.cfg.Psy,
		SceneChangeDelta: e.cfg.SceneChangeDelta,
		SkipThreshold:    e.cfg.SkipThreshold,
		Lambda:           e.cfg.Lambda,
		Workers:          e.cfg.Workers,
	}
}

// Config returns the active configuration.
func (e *Encoder) Config() Config {
	return e.cfg
}

// Geometry returns the block grid of the stream. It is zero before SetMetadata.
func (e *Encoder) Geometry() frame.Geometry {
	return e.geom
}

// SetMetadata describes the stream. Calling it again with different dimensions
// starts a new block grid: the next frame is coded intra and metadata is re-emitted.
func (e *Encoder) SetMetadata(meta frame.Metadata) error {
	if e.finished {
		return ErrStreamFinished
	}
	if err := meta.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if e.hasMeta && meta == e.meta {
		return nil
	}

	shapeChanged := e.hasMeta && (meta.Width != e.meta.Width || meta.Height != e.meta.Height || meta.Subsampling != e.meta.Subsampling)
	e.meta = meta
	e.hasMeta = true
	e.metaPending = true
	e.rc.SetFrameRate(meta.FPSNum, meta.FPSDen)
	e.updateGeometry()
	if shapeChanged {
		e.forceIntra = true
	}

	e.logger.Info("Stream %dx%d %s at %.2f fps, %dx%d blocks of %dx%d",
		meta.Width, meta.Height, meta.Subsampling, meta.FrameRate(),
		e.geom.BlocksX, e.geom.BlocksY, e.geom.BlockW, e.geom.BlockH)
	return nil
}

func (e *Encoder) updateGeometry() {
	bw, bh := e.cfg.BlockSize(e.meta.Width, e.meta.Height)
	g := frame.NewGeometry(e.meta.Width, e.meta.Height, bw, bh)
	if g != e.geom {
		e.geom = g
		e.stability.Resize(g.Blocks())
		e.prevField = nil
	}
}

// ForceMetadata requests that the next coded frame is preceded by a metadata packet.
func (e *Encoder) ForceMetadata() {
	if e.hasMeta {
		e.metaPending = true
	}
}

// Reconfigure replaces the configuration between frames. Rate control and GOP
// accumulators carry over. A change of block size or pyramid depth forces the next
// frame intra.
func (e *Encoder) Reconfigure(cfg Config) error {
	if e.finished {
		return ErrStreamFinished
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	old := e.cfg
	e.cfg = cfg
	e.estimator = hme.New(e.hmeOptions(), e.logger)
	e.rc.Reconfigure(cfg.rcConfig())
	e.gop.Reconfigure(cfg.gopConfig())

	if e.hasMeta {
		before := e.geom
		e.updateGeometry()
		if before != e.geom {
			e.forceIntra = true
		}
	}
	if old.PyramidLevels != cfg.PyramidLevels {
		e.forceIntra = true
	}
	return nil
}

// Encode codes one frame and returns the packets that became ready. The frame is
// borrowed for the duration of the call.
func (e *Encoder) Encode(ctx context.Context, f *frame.Frame) ([]frame.Packet, error) {
	switch {
	case e.finished:
		return nil, ErrStreamFinished
	case e.broken:
		return nil, ErrStreamBroken
	case !e.hasMeta:
		return nil, ErrNoMetadata
	case f == nil || f.Width != e.meta.Width || f.Height != e.meta.Height || f.Subsampling != e.meta.Subsampling:
		return nil, ErrFrameShape
	}

	n := e.next
	g := e.geom
	c := e.contexts.acquire(n, g)
	c.Source = e.filter.Pad(f, g.PaddedWidth(), g.PaddedHeight())
	c.Pyramid = pyramid.Build(e.filter, c.Source, e.cfg.PyramidLevels)

	var search hme.Result
	force := e.forceIntra || e.ref == nil
	if _, forced := e.gop.Forced(n); !forced && !force {
		res, err := e.estimator.Estimate(ctx, c.Pyramid, e.ref.Pyramid, g, e.prevField)
		switch {
		case errors.Is(err, hme.ErrShapeMismatch):
			e.logger.Warn("Reference does not match frame %d, coding intra: %v", n, err)
			force = true
		case err != nil:
			c.Release()
			return nil, err
		default:
			search = res
		}
	}

	d := e.gop.Decide(gop.Input{
		FrameNumber:       n,
		SceneChangeBlocks: search.SceneChangeBlocks,
		Blocks:            g.Blocks(),
		Force:             force,
	})
	c.Type = d.Type

	var flags []frame.BlockFlags
	if d.Type == frame.Predicted {
		c.Ref = e.ref.Retain()
		c.Field = search.Field
		flags = search.Flags
		c.Prediction = motionCompensate(c.Ref.Reconstructed, g, c.Field, flags)
		c.Residual = residual(c.Source, c.Prediction)
	} else {
		c.Residual = c.Source
	}

	c.Quant = e.rc.FrameQuant(d.Type)
	blocks := e.rc.BlockInfo(d.Type, c.Quant, flags, e.stability, g)
	if d.ResetStability {
		e.stability.Reset()
	}

	out, err := e.transform.Encode(ctx, ports.TransformInput{
		FrameNumber: n,
		Type:        d.Type,
		Geometry:    g,
		Residual:    c.Residual,
		Quant:       c.Quant,
		Blocks:      blocks,
	})
	if err == nil && !c.Residual.SameShape(out.Reconstructed) {
		err = errors.New("reconstruction does not match residual shape")
	}
	if err != nil {
		e.broken = true
		c.Release()
		e.logger.Error("Transform failed on frame %d: %v", n, err)
		return nil, fmt.Errorf("%w: frame %d: %v", ErrStreamBroken, n, err)
	}

	if d.Type == frame.Predicted {
		c.Reconstructed = reconstruct(c.Prediction, out.Reconstructed)
		e.stability.Accumulate(c.Field)
		e.prevField = c.Field
		e.predCount++
	} else {
		c.Reconstructed = out.Reconstructed
		e.prevField = nil
		e.intraCount++
	}

	packets := make([]frame.Packet, 0, MaxPacketsPerCall)
	if e.metaPending {
		meta := e.meta
		packets = append(packets, frame.Packet{Kind: frame.PacketMetadata, FrameNumber: n, Meta: &meta})
		e.metaPending = false
	}
	packets = append(packets, frame.Packet{
		Kind:        frame.PacketPicture,
		FrameNumber: n,
		Type:        d.Type,
		Quant:       c.Quant,
		Payload:     out.Payload,
	})

	// The new context takes over the encoder's hold; the one it was predicted from
	// is dropped by both holders.
	prev := e.ref
	e.ref = c
	c.retire()
	if prev != nil {
		prev.Release()
	}

	e.rc.Update(d.Type, c.Quant, int64(len(out.Payload))*8)
	e.bytes += int64(len(out.Payload))
	e.forceIntra = false
	e.next++

	e.last = &FrameReport{
		Number:            n,
		Type:              d.Type,
		Reason:            d.Reason,
		Quant:             c.Quant,
		ScaledQuality:     e.rc.ScaledQuality(),
		Bytes:             len(out.Payload),
		SceneChangeBlocks: search.SceneChangeBlocks,
		SkippedBlocks:     countFlag(flags, frame.BlockSkip),
		Geometry:          g,
		Field:             c.Field,
	}
	e.logger.Debug("Frame %d: %s (%s), quant %d, %d bytes", n, d.Type, d.Reason, c.Quant, len(out.Payload))
	return packets, nil
}

// EndOfStream flushes pending output, appends an end-of-stream packet and marks the
// stream finished. The reference picture is released.
func (e *Encoder) EndOfStream(ctx context.Context) ([]frame.Packet, error) {
	if e.finished {
		return nil, ErrStreamFinished
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	packets := make([]frame.Packet, 0, MaxPacketsPerCall)
	if e.hasMeta && e.metaPending {
		meta := e.meta
		packets = append(packets, frame.Packet{Kind: frame.PacketMetadata, FrameNumber: e.next, Meta: &meta})
		e.metaPending = false
	}
	packets = append(packets, frame.Packet{Kind: frame.PacketEndOfStream, FrameNumber: e.next})

	e.finished = true
	e.Close()
	e.logger.Info("Stream finished after %d frames", e.next)
	return packets, nil
}

// Finished reports whether EndOfStream has been called.
func (e *Encoder) Finished() bool {
	return e.finished
}

// Close releases the reference picture without emitting anything. It is safe to
// call more than once.
func (e *Encoder) Close() {
	if e.ref != nil {
		e.ref.Release()
		e.ref = nil
	}
	e.prevField = nil
}

// LastReport returns the decisions for the most recently coded frame.
func (e *Encoder) LastReport() (FrameReport, bool) {
	if e.last == nil {
		return FrameReport{}, false
	}
	return *e.last, true
}

// Stats returns a snapshot of the stream state.
func (e *Encoder) Stats() Stats {
	return Stats{
		FramesEncoded:   e.next,
		IntraFrames:     e.intraCount,
		PredictedFrames: e.predCount,
		Bytes:           e.bytes,
		RateControl:     e.rc.Stats(),
		PrevGOPStart:    e.gop.PrevGOPStart(),
		LiveContexts:    e.contexts.len(),
	}
}

// OnContextFree registers a hook called whenever a frame context is freed.
func (e *Encoder) OnContextFree(fn func(*Context)) {
	e.contexts.mu.Lock()
	e.contexts.onFree = fn
	e.contexts.mu.Unlock()
}

func countFlag(flags []frame.BlockFlags, f frame.BlockFlags) int {
	n := 0
	for _, b := range flags {
		if b.Has(f) {
			n++
		}
	}
	return n
}
