// Package render turns frames plus regions into blurred output frames.
// Composite is the single source of truth: the preview path and the export
// path both call it, which is what makes an exported frame byte-identical
// to the previewed one at the same index.
package render

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/obscura/obscura-agent/internal/region"
)

// Composite returns a copy of frame with every region active at timeSeconds
// blurred at its resolved position for frameIndex. The input Mat is never
// mutated; the caller owns the returned Mat and must Close it.
//
// Regions apply in stored order. Where two active regions overlap, the later
// one blurs pixels the earlier one already blurred — intentional, all
// regions contribute.
func Composite(frame gocv.Mat, timeSeconds float64, frameIndex int, regions []*region.Region) gocv.Mat {
	out := frame.Clone()
	cols, rows := out.Cols(), out.Rows()

	for _, r := range regions {
		if !r.ActiveAt(timeSeconds) {
			continue
		}

		b := r.PositionAt(frameIndex)
		x1, y1 := maxInt(0, b.X), maxInt(0, b.Y)
		x2 := minInt(cols, b.X+b.W)
		y2 := minInt(rows, b.Y+b.H)
		if x2 <= x1 || y2 <= y1 {
			// Clamped away entirely; skip, not an error.
			continue
		}

		// Strength is normalized at every write site, but regions built by
		// hand may bypass that, so re-round here.
		k := region.NormalizeBlurStrength(r.BlurStrength)

		roi := out.Region(image.Rect(x1, y1, x2, y2))
		gocv.GaussianBlur(roi, &roi, image.Pt(k, k), 0, 0, gocv.BorderDefault)
		roi.Close()
	}

	return out
}

// EncodeJPEG serializes a frame for the preview endpoint.
func EncodeJPEG(frame gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		return nil, fmt.Errorf("encode preview frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
