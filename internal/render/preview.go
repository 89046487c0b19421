package render

import (
	"errors"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"

	"github.com/obscura/obscura-agent/internal/region"
	"github.com/obscura/obscura-agent/internal/video"
)

// Preview renders single frames for arbitrary seeks. Seeking to the same
// time twice renders identically; a decode failure keeps showing the last
// good frame instead of erroring at the operator.
type Preview struct {
	mu      sync.Mutex
	source  video.FrameSource
	store   *region.Store
	logger  *slog.Logger
	last    gocv.Mat
	hasLast bool
}

func NewPreview(source video.FrameSource, store *region.Store, logger *slog.Logger) *Preview {
	return &Preview{source: source, store: store, logger: logger}
}

// FrameAt decodes the frame for time t, composites the active regions, and
// returns the result. The caller owns the returned Mat and must Close it.
func (p *Preview) FrameAt(t float64) (gocv.Mat, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	props := p.source.Properties()
	idx := props.FrameIndexAt(t)

	frame, err := p.source.ReadFrame(idx)
	if errors.Is(err, video.ErrEndOfStream) {
		if p.hasLast {
			return p.last.Clone(), nil
		}
		return gocv.Mat{}, err
	}
	if err != nil {
		return gocv.Mat{}, err
	}
	defer frame.Close()

	out := Composite(frame, t, idx, p.store.List())

	if p.hasLast {
		p.last.Close()
	}
	p.last = out.Clone()
	p.hasLast = true

	return out, nil
}

// Close releases the cached frame. The frame source belongs to the caller.
func (p *Preview) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hasLast {
		p.last.Close()
		p.hasLast = false
	}
}
