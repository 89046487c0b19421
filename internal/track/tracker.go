// Package track follows a region's bounding box across consecutive frames
// and records the resulting positions as the region's tracked history.
package track

import (
	"image"

	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"
)

// Algorithm names an OpenCV tracking backend.
type Algorithm string

const (
	AlgoCSRT Algorithm = "csrt"
	AlgoKCF  Algorithm = "kcf"
	AlgoMIL  Algorithm = "mil"
)

// defaultChain is the fallback order: CSRT is the most accurate, KCF is
// faster, MIL is the lowest common denominator every OpenCV build ships.
var defaultChain = []Algorithm{AlgoCSRT, AlgoKCF, AlgoMIL}

// Tracker follows one bounding box frame to frame. Init anchors it on a seed
// frame; Advance moves it onto the next frame and reports whether the target
// was found.
type Tracker interface {
	Init(frame gocv.Mat, box image.Rectangle) bool
	Advance(frame gocv.Mat) (image.Rectangle, bool)
	Close() error
}

type nativeTracker struct {
	inner gocv.Tracker
	algo  Algorithm
}

func (n *nativeTracker) Init(frame gocv.Mat, box image.Rectangle) bool {
	return n.inner.Init(frame, box)
}

func (n *nativeTracker) Advance(frame gocv.Mat) (image.Rectangle, bool) {
	return n.inner.Update(frame)
}

func (n *nativeTracker) Close() error {
	return n.inner.Close()
}

func newNative(algo Algorithm) gocv.Tracker {
	switch algo {
	case AlgoCSRT:
		return contrib.NewTrackerCSRT()
	case AlgoKCF:
		return contrib.NewTrackerKCF()
	default:
		return gocv.NewTrackerMIL()
	}
}

// seedTracker walks the fallback chain and returns the first tracker that
// accepts the seed frame and box, or nil if none does.
func seedTracker(chain []Algorithm, frame gocv.Mat, box image.Rectangle) Tracker {
	for _, algo := range chain {
		t := &nativeTracker{inner: newNative(algo), algo: algo}
		if t.Init(frame, box) {
			return t
		}
		t.Close()
	}
	return nil
}
