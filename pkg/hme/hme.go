// Package hme implements hierarchical block motion estimation over resolution pyramids.
//
// The search runs from the coarsest pyramid level to the finest. Each level is a
// fork-join phase: blocks are searched in parallel, every block writing only its own
// entry of the level's field, and the next level starts only after all workers finish,
// because it seeds from the completed coarser field.
package hme

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/user/subband/pkg/frame"
	"github.com/user/subband/pkg/ports"
)

// ErrShapeMismatch is returned when source and reference pyramids disagree in shape.
var ErrShapeMismatch = errors.New("hme: source and reference pyramids differ in shape")

// MaxRange bounds vector components at the finest level.
const MaxRange = 256

// Options tune the search.
type Options struct {
	Effort           int  // 0..10, widens the coarse window and adds refinement passes
	Psy              bool // penalize candidates that change block texture
	SceneChangeDelta int  // higher values lower the per-block match threshold
	SkipThreshold    int  // mean absolute error at or below which a block is skipped; -1 disables
	Lambda           int  // weight of the vector rate bias
	Workers          int  // parallel block searches per level; <= 0 means NumCPU
}

// Result is the outcome of one estimation.
type Result struct {
	Field             []frame.MotionVector // finest-level vectors, one per block
	Errors            []int                // best-match mean absolute error per block
	Flags             []frame.BlockFlags   // BlockIntra for unmatched blocks, BlockSkip for near-perfect ones
	SceneChangeBlocks int
}

// MatchThreshold is the mean absolute error above which a block counts as unmatched.
func MatchThreshold(sceneChangeDelta int) int {
	t := 24 - sceneChangeDelta
	if t < 2 {
		t = 2
	}
	return t
}

// Estimator runs hierarchical searches. It keeps no per-frame state and may be reused.
type Estimator struct {
	opts   Options
	logger ports.Logger
}

// New creates an Estimator.
func New(opts Options, logger ports.Logger) *Estimator {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Estimator{
		opts:   opts,
		logger: logger.WithComponent("hme"),
	}
}

// Options returns the options the estimator was built with.
func (e *Estimator) Options() Options {
	return e.opts
}

// WithLambda returns a copy of the estimator using a different rate bias.
func (e *Estimator) WithLambda(lambda int) *Estimator {
	c := *e
	c.opts.Lambda = lambda
	return &c
}

// search is the working context of one estimation: per-level source, reference
// and field slices. It borrows the pyramids and owns nothing else.
type search struct {
	src    []*frame.Frame
	ref    []*frame.Frame
	fields [][]frame.MotionVector
	g      frame.Geometry
	prev   []frame.MotionVector
	opts   Options
}

// Estimate searches src against ref. prev, when it has one entry per block, supplies
// the previous frame's finest field as seeds for the coarsest level.
func (e *Estimator) Estimate(ctx context.Context, src, ref []*frame.Frame, g frame.Geometry, prev []frame.MotionVector) (Result, error) {
	if err := checkShapes(src, ref, g); err != nil {
		return Result{}, err
	}
	if len(prev) != g.Blocks() {
		prev = nil
	}

	s := &search{
		src:    src,
		ref:    ref,
		fields: make([][]frame.MotionVector, len(src)),
		g:      g,
		prev:   prev,
		opts:   e.opts,
	}

	var errs []int
	for k := len(src) - 1; k >= 0; k-- {
		s.fields[k] = make([]frame.MotionVector, g.Blocks())
		var levelErrs []int
		if k == 0 {
			levelErrs = make([]int, g.Blocks())
		}
		if err := e.runLevel(ctx, s, k, levelErrs); err != nil {
			return Result{}, err
		}
		errs = levelErrs
	}

	res := Result{
		Field:  s.fields[0],
		Errors: errs,
		Flags:  make([]frame.BlockFlags, g.Blocks()),
	}
	thresh := MatchThreshold(e.opts.SceneChangeDelta)
	skipped := 0
	for i, mae := range errs {
		switch {
		case mae > thresh:
			res.Flags[i] |= frame.BlockIntra
			res.SceneChangeBlocks++
		case e.opts.SkipThreshold >= 0 && mae <= e.opts.SkipThreshold:
			res.Flags[i] |= frame.BlockSkip
			skipped++
		}
	}

	e.logger.Debug("Motion search: %d blocks, %d unmatched, %d skipped", g.Blocks(), res.SceneChangeBlocks, skipped)
	return res, nil
}

func checkShapes(src, ref []*frame.Frame, g frame.Geometry) error {
	if len(src) == 0 || len(src) != len(ref) {
		return fmt.Errorf("%w: %d source levels, %d reference levels", ErrShapeMismatch, len(src), len(ref))
	}
	for k := range src {
		if !src[k].SameShape(ref[k]) {
			return fmt.Errorf("%w: level %d is %dx%d vs %dx%d", ErrShapeMismatch, k,
				src[k].Width, src[k].Height, ref[k].Width, ref[k].Height)
		}
	}
	if src[0].Width != g.PaddedWidth() || src[0].Height != g.PaddedHeight() {
		return fmt.Errorf("%w: base %dx%d does not cover block grid %dx%d", ErrShapeMismatch,
			src[0].Width, src[0].Height, g.PaddedWidth(), g.PaddedHeight())
	}
	return nil
}

// runLevel searches every block of level k. Rows are handed to a worker pool and
// the call returns only when all rows are done.
func (e *Estimator) runLevel(ctx context.Context, s *search, k int, errs []int) error {
	rows := s.g.BlocksY
	workers := e.opts.Workers
	if workers > rows {
		workers = rows
	}

	jobs := make(chan int, rows)
	for by := 0; by < rows; by++ {
		jobs <- by
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for by := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				for bx := 0; bx < s.g.BlocksX; bx++ {
					s.searchBlock(k, bx, by, errs)
				}
			}
		}()
	}
	wg.Wait()

	return ctx.Err()
}
