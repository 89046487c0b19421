package render

import (
	"bytes"
	"sync"
	"testing"

	"gocv.io/x/gocv"

	"github.com/obscura/obscura-agent/internal/video"
)

// makeFrame builds a deterministic single-channel frame whose pixels vary by
// position and frame index, so blurring visibly changes bytes.
func makeFrame(width, height, idx int) gocv.Mat {
	m := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC1)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			m.SetUCharAt(y, x, uint8((x*7+y*13+idx*31)%251))
		}
	}
	return m
}

func matBytes(m gocv.Mat) []byte {
	return m.ToBytes()
}

func matsEqual(a, b gocv.Mat) bool {
	return a.Rows() == b.Rows() && a.Cols() == b.Cols() && bytes.Equal(matBytes(a), matBytes(b))
}

// fakeSource serves synthetic frames and records every requested index.
type fakeSource struct {
	mu        sync.Mutex
	props     video.Properties
	failAfter int           // indexes >= failAfter return ErrEndOfStream (0 = never)
	gate      chan struct{} // if set, every read blocks until the gate closes
	requested []int
}

func newFakeSource(width, height, totalFrames int) *fakeSource {
	return &fakeSource{
		props: video.Properties{Width: width, Height: height, FPS: 30, TotalFrames: totalFrames},
	}
}

func (f *fakeSource) Properties() video.Properties {
	return f.props
}

func (f *fakeSource) ReadFrame(idx int) (gocv.Mat, error) {
	if f.gate != nil {
		<-f.gate
	}
	if idx < 0 || idx >= f.props.TotalFrames {
		return gocv.Mat{}, video.ErrEndOfStream
	}
	if f.failAfter > 0 && idx >= f.failAfter {
		return gocv.Mat{}, video.ErrEndOfStream
	}

	f.mu.Lock()
	f.requested = append(f.requested, idx)
	f.mu.Unlock()

	return makeFrame(f.props.Width, f.props.Height, idx), nil
}

func (f *fakeSource) Close() error { return nil }

func (f *fakeSource) requestedIndices() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.requested))
	copy(out, f.requested)
	return out
}

// fakeSink captures written frame bytes in order.
type fakeSink struct {
	mu     sync.Mutex
	frames [][]byte
	failAt int // fail the write of frame number failAt (1-based, 0 = never)
}

func (s *fakeSink) WriteFrame(frame gocv.Mat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt > 0 && len(s.frames)+1 == s.failAt {
		return errDiskFull
	}
	s.frames = append(s.frames, matBytes(frame))
	return nil
}

func (s *fakeSink) Close() error { return nil }

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

var errDiskFull = &sinkError{"disk full"}

type sinkError struct{ msg string }

func (e *sinkError) Error() string { return e.msg }

func mustCloseMat(t *testing.T, m gocv.Mat) {
	t.Helper()
	if err := m.Close(); err != nil {
		t.Fatalf("closing mat: %v", err)
	}
}
