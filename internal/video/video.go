// Package video wraps decode and encode behind small interfaces so the
// render pipeline and tracking sessions can run against fakes in tests.
// Real implementations sit on gocv (OpenCV VideoCapture/VideoWriter).
package video

import (
	"errors"
	"math"

	"gocv.io/x/gocv"
)

// ErrEndOfStream signals a frame request past the end of the video. It is
// ordinary control flow, not a fault: export finalizes, preview keeps the
// last good frame.
var ErrEndOfStream = errors.New("end of stream")

// Properties are captured once when a video is opened and never change.
type Properties struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	FPS         float64 `json:"fps"`
	TotalFrames int     `json:"total_frames"`
}

// Duration is the video length in seconds.
func (p Properties) Duration() float64 {
	if p.FPS <= 0 {
		return 0
	}
	return float64(p.TotalFrames) / p.FPS
}

// FrameIndexAt converts a timestamp to a frame index: floor(t*fps), clamped
// to the valid range. Every index↔time conversion in the agent goes through
// here or TimeAt so preview and export agree on which frame a timestamp means.
func (p Properties) FrameIndexAt(t float64) int {
	idx := int(math.Floor(t * p.FPS))
	if idx < 0 {
		idx = 0
	}
	if idx > p.TotalFrames-1 {
		idx = p.TotalFrames - 1
	}
	return idx
}

// TimeAt converts a frame index to its timestamp in seconds.
func (p Properties) TimeAt(frameIndex int) float64 {
	if p.FPS <= 0 {
		return 0
	}
	return float64(frameIndex) / p.FPS
}

// FrameSource decodes frames by index. Implementations hold an independent
// cursor: the preview source and the export/tracking source never share one,
// so seeking in the UI cannot perturb a running job.
type FrameSource interface {
	Properties() Properties
	ReadFrame(frameIndex int) (gocv.Mat, error)
	Close() error
}

// Sink consumes composited frames in order during export.
type Sink interface {
	WriteFrame(frame gocv.Mat) error
	Close() error
}
