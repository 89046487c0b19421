// Package region holds the temporal blur-region model: rectangles with an
// activation time window, a blur strength, and optional tracked positions
// keyed by frame index. The resolver in resolve.go turns a region plus a
// frame index into the exact box to blur, which is the single piece of
// logic preview and export share.
package region

import (
	"crypto/rand"
	"fmt"
)

// Origin records how a region came to exist. It is informational only and
// never changes how a region is resolved or composited.
type Origin string

const (
	OriginManual  Origin = "manual"
	OriginFace    Origin = "face"
	OriginPlate   Origin = "plate"
	OriginTracked Origin = "tracked"
)

const (
	// MinBlurStrength is the smallest Gaussian kernel the editor accepts.
	MinBlurStrength = 5

	// MinRegionSize rejects degenerate drag selections.
	MinRegionSize = 10
)

// Blur presets matching the editor's quick buttons.
const (
	BlurLight   = 21
	BlurMedium  = 51
	BlurHeavy   = 99
	BlurMaximum = 151
)

// Box is a rectangle in video pixel coordinates.
type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Empty reports whether the box covers no pixels.
func (b Box) Empty() bool {
	return b.W <= 0 || b.H <= 0
}

// Clamp constrains the box to a width×height frame, shrinking it if it
// overhangs an edge.
func (b Box) Clamp(width, height int) Box {
	if b.X < 0 {
		b.X = 0
	}
	if b.Y < 0 {
		b.Y = 0
	}
	if b.X > width {
		b.X = width
	}
	if b.Y > height {
		b.Y = height
	}
	if b.X+b.W > width {
		b.W = width - b.X
	}
	if b.Y+b.H > height {
		b.H = height - b.Y
	}
	return b
}

// Region is a rectangle blurred over a bounded time span, optionally
// following tracked motion. The live set is owned by a single Store, which
// only ever hands out detached copies; a Region value held outside the
// store belongs to exactly one goroutine.
type Region struct {
	ID               string      `json:"id"`
	Bounds           Box         `json:"bounds"`
	ActiveFrom       float64     `json:"active_from"`
	ActiveTo         float64     `json:"active_to"`
	BlurStrength     int         `json:"blur_strength"`
	Origin           Origin      `json:"origin"`
	TrackedPositions map[int]Box `json:"tracked_positions,omitempty"`
}

// NormalizeBlurStrength enforces the kernel invariant: odd and at least 5.
// Even values are bumped up to the next odd value, never down.
func NormalizeBlurStrength(v int) int {
	if v < MinBlurStrength {
		v = MinBlurStrength
	}
	if v%2 == 0 {
		v++
	}
	return v
}

// ActiveAt reports whether the region is active at time t. The window is
// closed at both ends.
func (r *Region) ActiveAt(t float64) bool {
	return r.ActiveFrom <= t && t <= r.ActiveTo
}

// Tracked reports whether the region carries any tracked positions.
func (r *Region) Tracked() bool {
	return len(r.TrackedPositions) > 0
}

// SetTrackedPosition records a box for a frame index verbatim. No clamping
// happens here; the compositor clamps at render time.
func (r *Region) SetTrackedPosition(frameIndex int, b Box) {
	if r.TrackedPositions == nil {
		r.TrackedPositions = make(map[int]Box)
	}
	r.TrackedPositions[frameIndex] = b
}

// ClearTrackedPositions drops all tracked history, returning the region to
// static geometry.
func (r *Region) ClearTrackedPositions() {
	r.TrackedPositions = nil
}

// clone deep-copies the region, including its tracked-position map.
func (r *Region) clone() *Region {
	c := *r
	if r.TrackedPositions != nil {
		c.TrackedPositions = make(map[int]Box, len(r.TrackedPositions))
		for k, v := range r.TrackedPositions {
			c.TrackedPositions[k] = v
		}
	}
	return &c
}

func (r *Region) String() string {
	return fmt.Sprintf("region %s %s [%+.2fs..%+.2fs] k=%d", r.ID, r.Origin, r.ActiveFrom, r.ActiveTo, r.BlurStrength)
}

// NewID returns a random identifier in the same shape the rest of the agent
// uses for entities.
func NewID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}
