package detect

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/obscura/obscura-agent/internal/region"
)

const (
	cannyLow  = 50
	cannyHigh = 150

	plateMinRatio = 2.0
	plateMaxRatio = 5.0
	plateMinW     = 60
	plateMinH     = 20
	plateMaxHits  = 5
)

// DetectPlates finds license-plate shaped rectangles in the frame: edge
// detection, contour extraction, then a geometry filter. Returns at most
// five candidates.
func DetectPlates(frame gocv.Mat) []region.Box {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, cannyLow, cannyHigh)

	contours := gocv.FindContours(edges, gocv.RetrievalTree, gocv.ChainApproxSimple)
	defer contours.Close()

	rects := make([]image.Rectangle, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		rects = append(rects, gocv.BoundingRect(contours.At(i)))
	}
	return FilterPlateBoxes(rects)
}

// FilterPlateBoxes keeps rectangles with plate-like proportions: aspect
// ratio strictly between 2 and 5, at least 60px wide and 20px tall. At most
// plateMaxHits survive, in contour order.
func FilterPlateBoxes(rects []image.Rectangle) []region.Box {
	var out []region.Box
	for _, r := range rects {
		w, h := r.Dx(), r.Dy()
		if h <= 0 {
			continue
		}
		ratio := float64(w) / float64(h)
		if ratio > plateMinRatio && ratio < plateMaxRatio && w > plateMinW && h > plateMinH {
			out = append(out, region.Box{X: r.Min.X, Y: r.Min.Y, W: w, H: h})
			if len(out) == plateMaxHits {
				break
			}
		}
	}
	return out
}
