// Package detect finds blur candidates in frames: faces through Haar
// cascades and license plates through an edge-contour heuristic. Detections
// come back as plain boxes; turning them into regions is the caller's job.
package detect

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"

	"github.com/obscura/obscura-agent/internal/region"
)

const (
	frontalCascadeFile = "haarcascade_frontalface_default.xml"
	profileCascadeFile = "haarcascade_profileface.xml"

	minNeighbors = 5
	minFaceSize  = 30

	// facePadding widens a raw cascade hit so the blur covers hair and chin,
	// as a fraction of the detected width.
	facePadding = 0.2

	// DefaultSensitivity is the cascade scale factor. Lower is more
	// thorough and slower; the UI exposes 1.05 through 1.5.
	DefaultSensitivity = 1.2
	MinSensitivity     = 1.05
	MaxSensitivity     = 1.5
)

// FaceDetector wraps the frontal and profile Haar cascades. The profile
// cascade is optional; detection degrades to frontal-only without it.
type FaceDetector struct {
	frontal    gocv.CascadeClassifier
	profile    gocv.CascadeClassifier
	hasProfile bool
	logger     *slog.Logger
}

// NewFaceDetector loads the cascade XML files from dir. A missing frontal
// cascade is an error; a missing profile cascade is logged and skipped.
func NewFaceDetector(dir string, logger *slog.Logger) (*FaceDetector, error) {
	d := &FaceDetector{logger: logger}

	d.frontal = gocv.NewCascadeClassifier()
	frontalPath := filepath.Join(dir, frontalCascadeFile)
	if !d.frontal.Load(frontalPath) {
		d.frontal.Close()
		return nil, fmt.Errorf("load cascade %s", frontalPath)
	}

	profilePath := filepath.Join(dir, profileCascadeFile)
	if _, err := os.Stat(profilePath); err == nil {
		d.profile = gocv.NewCascadeClassifier()
		if d.profile.Load(profilePath) {
			d.hasProfile = true
		} else {
			d.profile.Close()
			logger.Warn("profile cascade failed to load", "path", profilePath)
		}
	} else {
		logger.Warn("profile cascade not found, frontal only", "path", profilePath)
	}

	return d, nil
}

func (d *FaceDetector) Close() error {
	d.frontal.Close()
	if d.hasProfile {
		d.profile.Close()
	}
	return nil
}

// Detect runs both cascades over the frame and returns padded boxes clamped
// to the frame. Sensitivity is the cascade scale factor; values outside the
// supported range fall back to the default.
func (d *FaceDetector) Detect(frame gocv.Mat, sensitivity float64) []region.Box {
	if sensitivity < MinSensitivity || sensitivity > MaxSensitivity {
		sensitivity = DefaultSensitivity
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

	hits := d.detectWith(&d.frontal, gray, sensitivity)
	if d.hasProfile {
		hits = append(hits, d.detectWith(&d.profile, gray, sensitivity)...)
	}

	boxes := make([]region.Box, 0, len(hits))
	for _, r := range hits {
		boxes = append(boxes, PadBox(r, facePadding, frame.Cols(), frame.Rows()))
	}
	return boxes
}

// DetectRaw runs only the frontal cascade and returns the unpadded hits.
// The whole-video scan uses it so clustering sees the cascade's raw
// geometry.
func (d *FaceDetector) DetectRaw(gray gocv.Mat, sensitivity float64) []image.Rectangle {
	if sensitivity < MinSensitivity || sensitivity > MaxSensitivity {
		sensitivity = DefaultSensitivity
	}
	return d.detectWith(&d.frontal, gray, sensitivity)
}

func (d *FaceDetector) detectWith(c *gocv.CascadeClassifier, gray gocv.Mat, scale float64) []image.Rectangle {
	return c.DetectMultiScaleWithParams(
		gray, scale, minNeighbors, 0,
		image.Pt(minFaceSize, minFaceSize), image.Pt(0, 0),
	)
}

// PadBox grows a detection rectangle by fraction pad of its width on every
// side, clamped to the frame dimensions.
func PadBox(r image.Rectangle, pad float64, frameW, frameH int) region.Box {
	p := int(float64(r.Dx()) * pad)
	x := r.Min.X - p
	y := r.Min.Y - p
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	w := r.Dx() + 2*p
	h := r.Dy() + 2*p
	if x+w > frameW {
		w = frameW - x
	}
	if y+h > frameH {
		h = frameH - y
	}
	return region.Box{X: x, Y: y, W: w, H: h}
}
