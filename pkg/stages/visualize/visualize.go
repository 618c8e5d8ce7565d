// Package visualize renders motion fields of predicted frames into the debug sink.
package visualize

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"runtime"
	"sync"

	"github.com/user/subband/pkg/pipeline"
	"github.com/user/subband/pkg/ports"
)

const (
	defaultScale = 2
	headerHeight = 16
)

// Theme defines render colors.
type Theme struct {
	Background color.Color
	Grid       color.Color
	Vector     color.Color
	Tip        color.Color
	Still      color.Color
	Text       color.Color
}

// DefaultTheme returns the default render colors.
func DefaultTheme() Theme {
	return Theme{
		Background: color.RGBA{R: 30, G: 30, B: 30, A: 255},
		Grid:       color.RGBA{R: 80, G: 80, B: 80, A: 255},
		Vector:     color.RGBA{R: 255, G: 214, B: 0, A: 255},
		Tip:        color.RGBA{R: 255, G: 64, B: 64, A: 255},
		Still:      color.RGBA{R: 76, G: 175, B: 80, A: 255},
		Text:       color.White,
	}
}

// Stage renders motion fields using a worker pool.
type Stage struct {
	renderer   ports.Renderer
	sink       ports.DebugSink
	logger     ports.Logger
	theme      Theme
	numWorkers int
}

// NewStage creates a new visualize stage.
func NewStage(renderer ports.Renderer, sink ports.DebugSink, logger ports.Logger, numWorkers int) *Stage {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &Stage{
		renderer:   renderer,
		sink:       sink,
		logger:     logger.WithComponent("visualize"),
		theme:      DefaultTheme(),
		numWorkers: numWorkers,
	}
}

// Execute renders every predicted frame that carries a motion field and luma.
func (s *Stage) Execute(ctx context.Context, input pipeline.VisualizeInput) (pipeline.VisualizeResult, error) {
	if !s.sink.Enabled() {
		return pipeline.VisualizeResult{}, nil
	}

	var jobs []int
	for i, f := range input.Frames {
		if f.Luma != nil && len(f.Report.Field) > 0 {
			jobs = append(jobs, i)
		}
	}
	if len(jobs) == 0 {
		return pipeline.VisualizeResult{}, nil
	}
	if input.Scale <= 0 {
		input.Scale = defaultScale
	}

	s.logger.Debug("Rendering %d motion fields with %d workers", len(jobs), s.numWorkers)

	jobCh := make(chan int, len(jobs))
	errChan := make(chan error, s.numWorkers)
	var rendered int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for w := 0; w < s.numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobCh {
				select {
				case <-ctx.Done():
					return
				default:
				}

				rec := input.Frames[idx]
				img := s.render(rec, input.Scale)
				if err := s.sink.SaveMotionField(rec.Report.Number, img); err != nil {
					select {
					case errChan <- fmt.Errorf("save motion field %d: %w", rec.Report.Number, err):
					default:
					}
					return
				}
				mu.Lock()
				rendered++
				mu.Unlock()
			}
		}()
	}

	for _, idx := range jobs {
		jobCh <- idx
	}
	close(jobCh)
	wg.Wait()
	close(errChan)

	if err := <-errChan; err != nil {
		return pipeline.VisualizeResult{Rendered: rendered}, err
	}
	if err := ctx.Err(); err != nil {
		return pipeline.VisualizeResult{Rendered: rendered}, err
	}
	return pipeline.VisualizeResult{Rendered: rendered}, nil
}

// render draws the frame's luma with the block grid and one arrow per block.
// Arrows point from the block centre to where it was found in the reference.
func (s *Stage) render(rec pipeline.FrameRecord, scale int) image.Image {
	r := rec.Report
	g := r.Geometry
	w, h := g.PaddedWidth()*scale, g.PaddedHeight()*scale

	canvas := s.renderer.CreateCanvas(w, h+headerHeight, s.theme.Background)
	canvas.DrawImage(s.renderer.ResizeImage(rec.Luma, g.Width*scale, g.Height*scale), 0, headerHeight)

	bw, bh := g.BlockW*scale, g.BlockH*scale
	for by := 0; by < g.BlocksY; by++ {
		for bx := 0; bx < g.BlocksX; bx++ {
			x, y := bx*bw, headerHeight+by*bh
			canvas.DrawRectStroke(x, y, bw, bh, s.theme.Grid, 1)

			i := by*g.BlocksX + bx
			if i >= len(r.Field) {
				continue
			}
			mv := r.Field[i]
			cx, cy := x+bw/2, y+bh/2
			if mv.IsZero() {
				canvas.DrawRect(cx-1, cy-1, 2, 2, s.theme.Still)
				continue
			}
			tx, ty := cx+int(mv.X)*scale, cy+int(mv.Y)*scale
			canvas.DrawLine(cx, cy, tx, ty, s.theme.Vector, 1)
			canvas.DrawRect(tx-1, ty-1, 3, 3, s.theme.Tip)
		}
	}

	label := fmt.Sprintf("#%d %s q%d %dB", r.Number, r.Type, r.Quant, r.Bytes)
	canvas.DrawText(label, 4, headerHeight/2, ports.TextStyle{Color: s.theme.Text, Align: ports.AlignLeft})
	return canvas.ToImage()
}
