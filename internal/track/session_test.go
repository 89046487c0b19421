package track

import (
	"context"
	"errors"
	"image"
	"testing"

	"gocv.io/x/gocv"

	"github.com/obscura/obscura-agent/internal/logging"
	"github.com/obscura/obscura-agent/internal/region"
	"github.com/obscura/obscura-agent/internal/video"
)

// scriptedTracker drifts the box right by step each frame and loses the
// target after loseAfter advances (0 = never).
type scriptedTracker struct {
	box       image.Rectangle
	step      int
	loseAfter int
	advances  int
	closed    bool
}

func (t *scriptedTracker) Init(frame gocv.Mat, box image.Rectangle) bool {
	t.box = box
	return true
}

func (t *scriptedTracker) Advance(frame gocv.Mat) (image.Rectangle, bool) {
	t.advances++
	if t.loseAfter > 0 && t.advances > t.loseAfter {
		return image.Rectangle{}, false
	}
	t.box = t.box.Add(image.Pt(t.step, 0))
	return t.box, true
}

func (t *scriptedTracker) Close() error {
	t.closed = true
	return nil
}

type stubSource struct {
	props video.Properties
	reads []int
}

func newStubSource(totalFrames int, fps float64) *stubSource {
	return &stubSource{props: video.Properties{Width: 64, Height: 48, FPS: fps, TotalFrames: totalFrames}}
}

func (s *stubSource) Properties() video.Properties { return s.props }

func (s *stubSource) ReadFrame(idx int) (gocv.Mat, error) {
	if idx < 0 || idx >= s.props.TotalFrames {
		return gocv.Mat{}, video.ErrEndOfStream
	}
	s.reads = append(s.reads, idx)
	return gocv.NewMatWithSize(s.props.Height, s.props.Width, gocv.MatTypeCV8UC1), nil
}

func (s *stubSource) Close() error { return nil }

func sessionWith(t *testing.T, tracker Tracker) *Session {
	t.Helper()
	s := NewSession(logging.NewLogger("error"))
	s.seed = func(frame gocv.Mat, box image.Rectangle) Tracker {
		if tracker == nil {
			return nil
		}
		tracker.Init(frame, box)
		return tracker
	}
	return s
}

func seededRegion(activeTo float64, startFrame int) *region.Region {
	r := &region.Region{
		ID:           region.NewID(),
		Bounds:       region.Box{X: 10, Y: 10, W: 20, H: 20},
		ActiveFrom:   0,
		ActiveTo:     activeTo,
		BlurStrength: 31,
		Origin:       region.OriginTracked,
	}
	r.SetTrackedPosition(startFrame, r.Bounds)
	return r
}

func TestSession_RecordsEveryTrackedFrame(t *testing.T) {
	source := newStubSource(120, 30)
	tracker := &scriptedTracker{step: 2}
	r := seededRegion(2.0, 10) // end frame 60

	res, err := sessionWith(t, tracker).Track(context.Background(), source, r, 10)
	if err != nil {
		t.Fatalf("Track() error = %v", err)
	}

	if res.FramesTracked != 50 || res.LastFrame != 59 || res.Lost {
		t.Errorf("result = %+v, want 50 frames ending at 59", res)
	}
	for f := 10; f < 60; f++ {
		if !r.Tracked() {
			t.Fatal("region has no tracked history")
		}
		got := r.PositionAt(f)
		// Each advance moves 2px right; the first advance lands on the
		// seed frame itself.
		wantX := 10 + 2*(f-10+1)
		if got.X != wantX {
			t.Fatalf("frame %d position X = %d, want %d", f, got.X, wantX)
		}
	}
	if !tracker.closed {
		t.Error("tracker was not closed")
	}
}

func TestSession_SeedFrameOverwrittenByTrackerFix(t *testing.T) {
	source := newStubSource(120, 30)
	tracker := &scriptedTracker{step: 5}
	r := seededRegion(1.0, 0)

	if _, err := sessionWith(t, tracker).Track(context.Background(), source, r, 0); err != nil {
		t.Fatalf("Track() error = %v", err)
	}
	if got := r.PositionAt(0); got.X != 15 {
		t.Errorf("seed frame X = %d, want tracker fix 15, not hand-drawn 10", got.X)
	}
}

func TestSession_StopsAtFrameCap(t *testing.T) {
	source := newStubSource(1000, 30)
	tracker := &scriptedTracker{step: 1}
	r := seededRegion(30.0, 0) // end frame 900, far past the cap

	res, err := sessionWith(t, tracker).Track(context.Background(), source, r, 0)
	if err != nil {
		t.Fatalf("Track() error = %v", err)
	}
	if res.FramesTracked != MaxTrackedFrames {
		t.Errorf("frames tracked = %d, want cap %d", res.FramesTracked, MaxTrackedFrames)
	}
}

func TestSession_SetCapOverridesLimit(t *testing.T) {
	source := newStubSource(1000, 30)
	tracker := &scriptedTracker{step: 1}
	r := seededRegion(30.0, 0)

	s := sessionWith(t, tracker)
	s.SetCap(40)
	s.SetCap(0) // ignored

	res, err := s.Track(context.Background(), source, r, 0)
	if err != nil {
		t.Fatalf("Track() error = %v", err)
	}
	if res.FramesTracked != 40 {
		t.Errorf("frames tracked = %d, want 40", res.FramesTracked)
	}
}

func TestSession_StopsOnTargetLoss(t *testing.T) {
	source := newStubSource(120, 30)
	tracker := &scriptedTracker{step: 1, loseAfter: 7}
	r := seededRegion(4.0, 0)

	res, err := sessionWith(t, tracker).Track(context.Background(), source, r, 0)
	if err != nil {
		t.Fatalf("Track() error = %v", err)
	}
	if !res.Lost || res.FramesTracked != 7 {
		t.Errorf("result = %+v, want lost after 7 frames", res)
	}
}

func TestSession_StopsAtEndOfStream(t *testing.T) {
	source := newStubSource(20, 30)
	tracker := &scriptedTracker{step: 1}
	r := seededRegion(10.0, 15) // end frame well past the stream

	res, err := sessionWith(t, tracker).Track(context.Background(), source, r, 15)
	if err != nil {
		t.Fatalf("Track() error = %v", err)
	}
	if res.FramesTracked != 5 || res.Lost {
		t.Errorf("result = %+v, want 5 frames then clean stop", res)
	}
}

func TestSession_NoBackend(t *testing.T) {
	source := newStubSource(20, 30)
	r := seededRegion(1.0, 0)

	_, err := sessionWith(t, nil).Track(context.Background(), source, r, 0)
	if !errors.Is(err, ErrNoBackend) {
		t.Errorf("error = %v, want ErrNoBackend", err)
	}
}

func TestSession_RetrackClearsHistory(t *testing.T) {
	source := newStubSource(120, 30)
	r := seededRegion(2.0, 0)
	r.SetTrackedPosition(5, region.Box{X: 500, Y: 5, W: 20, H: 20})

	tracker := &scriptedTracker{step: 1}
	res, err := sessionWith(t, tracker).Retrack(context.Background(), source, r, 30)
	if err != nil {
		t.Fatalf("Retrack() error = %v", err)
	}
	if res.FramesTracked != 30 { // frames 30..59
		t.Errorf("frames tracked = %d, want 30", res.FramesTracked)
	}
	// The stale position at frame 5 must be gone; before the new window the
	// earliest tracked position holds.
	if got := r.PositionAt(5); got.X == 500 {
		t.Error("stale tracked position survived retrack")
	}
}

func TestSession_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := newStubSource(120, 30)
	tracker := &scriptedTracker{step: 1}
	r := seededRegion(2.0, 0)

	res, err := sessionWith(t, tracker).Track(ctx, source, r, 0)
	if err != nil {
		t.Fatalf("Track() error = %v", err)
	}
	if res.FramesTracked != 0 {
		t.Errorf("frames tracked = %d, want 0 after pre-cancelled context", res.FramesTracked)
	}
}
