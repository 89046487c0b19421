package region

import "sync"

// Store is the region list for one loaded video: the editing session.
// Insertion order is display order, and later regions paint last during
// compositing. All mutation goes through the store so the geometry and
// kernel invariants hold at every write site.
//
// Every region the store hands out is a detached copy. Preview renders and
// background workers read concurrently with interactive edits, so the live
// set never leaves the lock; workers mutate their copies freely and write
// tracked history back through ReplaceTracked.
type Store struct {
	mu      sync.Mutex
	width   int
	height  int
	regions []*Region
}

// NewStore creates a store bounded by the video's pixel dimensions.
func NewStore(width, height int) *Store {
	return &Store{width: width, height: height}
}

// Add appends a region. Selections under MinRegionSize in either dimension
// are a silent no-op and return nil: the caller drew a degenerate rectangle
// and nothing should be stored.
func (s *Store) Add(b Box, activeFrom, activeTo float64, blurStrength int, origin Origin) *Region {
	if b.W < MinRegionSize || b.H < MinRegionSize {
		return nil
	}
	if activeTo < activeFrom {
		activeTo = activeFrom
	}

	r := &Region{
		ID:           NewID(),
		Bounds:       b.Clamp(s.width, s.height),
		ActiveFrom:   activeFrom,
		ActiveTo:     activeTo,
		BlurStrength: NormalizeBlurStrength(blurStrength),
		Origin:       origin,
	}

	s.mu.Lock()
	s.regions = append(s.regions, r)
	s.mu.Unlock()
	return r.clone()
}

// Update describes a partial mutation; nil fields are left untouched.
type Update struct {
	Bounds       *Box
	ActiveFrom   *float64
	ActiveTo     *float64
	BlurStrength *int
}

// Apply mutates the identified region, reclamping geometry and renormalizing
// the kernel. Returns a copy of the result, or nil if the id is unknown.
func (s *Store) Apply(id string, u Update) *Region {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.find(id)
	if r == nil {
		return nil
	}

	if u.Bounds != nil {
		r.Bounds = u.Bounds.Clamp(s.width, s.height)
	}
	if u.ActiveFrom != nil {
		r.ActiveFrom = *u.ActiveFrom
	}
	if u.ActiveTo != nil {
		r.ActiveTo = *u.ActiveTo
	}
	if r.ActiveTo < r.ActiveFrom {
		r.ActiveTo = r.ActiveFrom
	}
	if u.BlurStrength != nil {
		r.BlurStrength = NormalizeBlurStrength(*u.BlurStrength)
	}
	return r.clone()
}

// Get returns a copy of the region for id, or nil.
func (s *Store) Get(id string) *Region {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.find(id); r != nil {
		return r.clone()
	}
	return nil
}

// List returns copies of the regions in paint order.
func (s *Store) List() []*Region {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Region, len(s.regions))
	for i, r := range s.regions {
		out[i] = r.clone()
	}
	return out
}

// ReplaceTracked swaps the region's tracked history wholesale, copying the
// map so the caller keeps no reference into the store. This is how track and
// scan workers publish their results. Returns a copy of the updated region,
// or nil if the region was deleted while the worker ran.
func (s *Store) ReplaceTracked(id string, positions map[int]Box) *Region {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.find(id)
	if r == nil {
		return nil
	}

	if len(positions) == 0 {
		r.TrackedPositions = nil
	} else {
		r.TrackedPositions = make(map[int]Box, len(positions))
		for k, v := range positions {
			r.TrackedPositions[k] = v
		}
	}
	return r.clone()
}

// Delete removes the identified region. Unknown ids are a no-op.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.regions {
		if r.ID == id {
			s.regions = append(s.regions[:i], s.regions[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes every region.
func (s *Store) Clear() {
	s.mu.Lock()
	s.regions = nil
	s.mu.Unlock()
}

// Duplicate appends a copy of the identified region, nudged 20px down-right
// so it is visible next to the original. Tracked history is not copied; the
// duplicate starts static.
func (s *Store) Duplicate(id string) *Region {
	s.mu.Lock()
	defer s.mu.Unlock()

	orig := s.find(id)
	if orig == nil {
		return nil
	}

	dup := &Region{
		ID:           NewID(),
		Bounds:       Box{X: orig.Bounds.X + 20, Y: orig.Bounds.Y + 20, W: orig.Bounds.W, H: orig.Bounds.H}.Clamp(s.width, s.height),
		ActiveFrom:   orig.ActiveFrom,
		ActiveTo:     orig.ActiveTo,
		BlurStrength: orig.BlurStrength,
		Origin:       orig.Origin,
	}
	s.regions = append(s.regions, dup)
	return dup.clone()
}

// Snapshot deep-copies the region list for a worker. The copies share
// nothing with the live regions, so export can run while the operator keeps
// editing.
func (s *Store) Snapshot() []*Region {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Region, len(s.regions))
	for i, r := range s.regions {
		out[i] = r.clone()
	}
	return out
}

// Restore replaces the list wholesale, used when loading a saved project.
func (s *Store) Restore(regions []*Region) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regions = nil
	for _, r := range regions {
		c := r.clone()
		c.Bounds = c.Bounds.Clamp(s.width, s.height)
		c.BlurStrength = NormalizeBlurStrength(c.BlurStrength)
		s.regions = append(s.regions, c)
	}
}

// Len reports the number of regions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.regions)
}

func (s *Store) find(id string) *Region {
	for _, r := range s.regions {
		if r.ID == id {
			return r
		}
	}
	return nil
}
