package track

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/obscura/obscura-agent/internal/region"
	"github.com/obscura/obscura-agent/internal/video"
)

// MaxTrackedFrames caps a single tracking run. Ten seconds at 30fps is long
// enough for one pass; the operator re-tracks from a later frame if the
// subject is still moving.
const MaxTrackedFrames = 300

// ErrNoBackend means no tracking algorithm accepted the seed frame.
var ErrNoBackend = errors.New("no tracking backend available")

// Result describes how a tracking run ended.
type Result struct {
	FramesTracked int
	LastFrame     int
	Lost          bool
}

// Session runs tracking passes over a frame source. One session serves one
// loaded video; runs are sequential.
type Session struct {
	logger *slog.Logger
	cap    int

	// seed builds a tracker anchored on a frame and box. Overridable so
	// tests can run without OpenCV tracker state.
	seed func(frame gocv.Mat, box image.Rectangle) Tracker
}

func NewSession(logger *slog.Logger) *Session {
	return &Session{
		logger: logger,
		cap:    MaxTrackedFrames,
		seed: func(frame gocv.Mat, box image.Rectangle) Tracker {
			return seedTracker(defaultChain, frame, box)
		},
	}
}

// SetCap overrides the per-run frame cap. Non-positive values are ignored.
func (s *Session) SetCap(n int) {
	if n > 0 {
		s.cap = n
	}
}

// Track follows the region forward from startFrame, recording a tracked
// position for every frame the tracker holds the target. The caller must
// have seeded the region's position at startFrame; the run stops at the
// region's end frame, on target loss, at end of stream, or at the
// MaxTrackedFrames cap, whichever comes first.
func (s *Session) Track(ctx context.Context, source video.FrameSource, r *region.Region, startFrame int) (*Result, error) {
	props := source.Properties()

	seedFrame, err := source.ReadFrame(startFrame)
	if err != nil {
		return nil, fmt.Errorf("read seed frame %d: %w", startFrame, err)
	}
	defer seedFrame.Close()

	seedBox := r.PositionAt(startFrame)
	tracker := s.seed(seedFrame, boxRect(seedBox))
	if tracker == nil {
		return nil, ErrNoBackend
	}
	defer tracker.Close()

	endFrame := int(r.ActiveTo * props.FPS)
	if endFrame > props.TotalFrames {
		endFrame = props.TotalFrames
	}

	res := &Result{LastFrame: startFrame}
	s.logger.Info("tracking started", "region_id", r.ID, "start_frame", startFrame, "end_frame", endFrame)

	// The first pass re-processes the seed frame so the tracker's own fix
	// replaces the hand-drawn seed position.
	for frameNum := startFrame; frameNum < endFrame && frameNum-startFrame < s.cap; frameNum++ {
		if ctx.Err() != nil {
			break
		}

		frame, err := source.ReadFrame(frameNum)
		if errors.Is(err, video.ErrEndOfStream) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read frame %d: %w", frameNum, err)
		}

		rect, ok := tracker.Advance(frame)
		frame.Close()
		if !ok {
			res.Lost = true
			s.logger.Info("target lost", "region_id", r.ID, "frame", frameNum)
			break
		}

		r.SetTrackedPosition(frameNum, rectBox(rect))
		res.FramesTracked++
		res.LastFrame = frameNum
	}

	s.logger.Info("tracking finished", "region_id", r.ID, "frames_tracked", res.FramesTracked, "lost", res.Lost)
	return res, nil
}

// Retrack discards the region's history and runs a fresh pass anchored on
// the region's static bounds at startFrame.
func (s *Session) Retrack(ctx context.Context, source video.FrameSource, r *region.Region, startFrame int) (*Result, error) {
	r.ClearTrackedPositions()
	r.SetTrackedPosition(startFrame, r.Bounds)
	return s.Track(ctx, source, r, startFrame)
}

func boxRect(b region.Box) image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

func rectBox(r image.Rectangle) region.Box {
	return region.Box{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}
