package encoder

import "github.com/user/subband/pkg/frame"

// bias is the sample value that stands for a zero residual.
const bias = 128

// motionCompensate builds the prediction of every plane by copying displaced blocks
// of ref. Chroma planes use the luma field scaled by the subsampling shift. Blocks
// flagged intra predict flat gray.
func motionCompensate(ref *frame.Frame, g frame.Geometry, field []frame.MotionVector, flags []frame.BlockFlags) *frame.Frame {
	out := frame.New(ref.Width, ref.Height, ref.Subsampling)
	hs, vs := ref.Subsampling.Shift()
	for p := range out.Planes {
		sx, sy := 0, 0
		if p > 0 {
			sx, sy = hs, vs
		}
		compensatePlane(&out.Planes[p], &ref.Planes[p], g, field, flags, sx, sy)
	}
	return out
}

func compensatePlane(dst, ref *frame.Plane, g frame.Geometry, field []frame.MotionVector, flags []frame.BlockFlags, sx, sy int) {
	bw := max(g.BlockW>>sx, 1)
	bh := max(g.BlockH>>sy, 1)
	for by := 0; by < g.BlocksY; by++ {
		for bx := 0; bx < g.BlocksX; bx++ {
			i := by*g.BlocksX + bx
			x0, y0 := bx*bw, by*bh
			intra := flags != nil && flags[i].Has(frame.BlockIntra)
			dx := int(field[i].X) >> sx
			dy := int(field[i].Y) >> sy
			for y := y0; y < y0+bh && y < dst.Height; y++ {
				row := dst.Row(y)
				for x := x0; x < x0+bw && x < dst.Width; x++ {
					if intra {
						row[x] = bias
					} else {
						row[x] = ref.At(x+dx, y+dy)
					}
				}
			}
		}
	}
}

// residual returns src - pred, biased and clamped to 8 bits.
func residual(src, pred *frame.Frame) *frame.Frame {
	out := frame.New(src.Width, src.Height, src.Subsampling)
	for p := range out.Planes {
		d, s, q := &out.Planes[p], &src.Planes[p], &pred.Planes[p]
		for y := 0; y < d.Height; y++ {
			drow, srow, prow := d.Row(y), s.Row(y), q.Row(y)
			for x := range drow {
				drow[x] = clampByte(int(srow[x]) - int(prow[x]) + bias)
			}
		}
	}
	return out
}

// reconstruct adds a decoded residual back onto its prediction.
func reconstruct(pred, decoded *frame.Frame) *frame.Frame {
	out := frame.New(pred.Width, pred.Height, pred.Subsampling)
	for p := range out.Planes {
		d, q, r := &out.Planes[p], &pred.Planes[p], &decoded.Planes[p]
		for y := 0; y < d.Height; y++ {
			drow, prow, rrow := d.Row(y), q.Row(y), r.Row(y)
			for x := range drow {
				drow[x] = clampByte(int(prow[x]) + int(rrow[x]) - bias)
			}
		}
	}
	return out
}

func clampByte(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
