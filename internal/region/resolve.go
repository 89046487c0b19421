package region

import "sort"

// PositionAt resolves the box to use for a region at the given frame index.
//
// A region with no tracked positions is static: its bounds are returned for
// every frame index, regardless of whether the region is currently active.
// With tracked positions, an exact key wins verbatim; indices before the
// first key hold the first known box, indices after the last key hold the
// last one, and anything in between interpolates linearly per coordinate.
//
// Interpolated values are truncated to int, not rounded, matching the
// renderer's historical output. The function is pure: no state, no
// dependence on traversal direction, so preview seeks and sequential export
// resolve identically.
func (r *Region) PositionAt(frameIndex int) Box {
	if len(r.TrackedPositions) == 0 {
		return r.Bounds
	}

	if b, ok := r.TrackedPositions[frameIndex]; ok {
		return b
	}

	keys := make([]int, 0, len(r.TrackedPositions))
	for k := range r.TrackedPositions {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	if frameIndex <= keys[0] {
		return r.TrackedPositions[keys[0]]
	}
	if frameIndex >= keys[len(keys)-1] {
		return r.TrackedPositions[keys[len(keys)-1]]
	}

	// Bracketing pair exists since frameIndex is strictly inside the key range.
	i := sort.SearchInts(keys, frameIndex) - 1
	k0, k1 := keys[i], keys[i+1]
	p0, p1 := r.TrackedPositions[k0], r.TrackedPositions[k1]
	t := float64(frameIndex-k0) / float64(k1-k0)

	return Box{
		X: lerpTrunc(p0.X, p1.X, t),
		Y: lerpTrunc(p0.Y, p1.Y, t),
		W: lerpTrunc(p0.W, p1.W, t),
		H: lerpTrunc(p0.H, p1.H, t),
	}
}

func lerpTrunc(v0, v1 int, t float64) int {
	return int(float64(v0) + t*float64(v1-v0))
}
