package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/obscura/obscura-agent/internal/region"
	"github.com/obscura/obscura-agent/internal/video"
)

// ErrExportRunning rejects a second export while one is in flight. Exports
// are never queued.
var ErrExportRunning = errors.New("export already in progress")

// ExportRequest carries everything one export run needs. Regions must be a
// snapshot (region.Store.Snapshot) so the run cannot race region edits.
type ExportRequest struct {
	Source  video.FrameSource
	Sink    video.Sink
	Regions []*region.Region

	// Progress, if set, is called after each written frame with the number
	// of frames done and the total. It must not block.
	Progress func(done, total int)
}

// ExportResult reports how a run ended.
type ExportResult struct {
	FramesWritten int
	Cancelled     bool
}

// Exporter runs full-video exports: every frame from 0 to totalFrames-1,
// strictly in order, composited through the same Composite the preview uses.
type Exporter struct {
	logger  *slog.Logger
	running atomic.Bool
	cancel  atomic.Bool
}

func NewExporter(logger *slog.Logger) *Exporter {
	return &Exporter{logger: logger}
}

// Running reports whether an export is in flight.
func (e *Exporter) Running() bool {
	return e.running.Load()
}

// Cancel requests a stop. The flag is checked once per frame; the partial
// output file is left as-is for the caller to keep or delete.
func (e *Exporter) Cancel() {
	e.cancel.Store(true)
}

// Run executes one export. A sink write failure aborts the run and is
// returned; end-of-stream before the expected frame count finalizes cleanly
// with whatever was written. The caller closes the sink and source.
func (e *Exporter) Run(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	if e.running.Swap(true) {
		return nil, ErrExportRunning
	}
	defer e.running.Store(false)
	e.cancel.Store(false)

	props := req.Source.Properties()
	total := props.TotalFrames
	res := &ExportResult{}

	e.logger.Info("export started", "total_frames", total, "regions", len(req.Regions))

	for idx := 0; idx < total; idx++ {
		if e.cancel.Load() || ctx.Err() != nil {
			res.Cancelled = true
			e.logger.Info("export cancelled", "frames_written", res.FramesWritten)
			return res, nil
		}

		frame, err := req.Source.ReadFrame(idx)
		if errors.Is(err, video.ErrEndOfStream) {
			e.logger.Warn("source ended early", "frame", idx, "expected", total)
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode frame %d: %w", idx, err)
		}

		out := Composite(frame, props.TimeAt(idx), idx, req.Regions)
		frame.Close()

		err = req.Sink.WriteFrame(out)
		out.Close()
		if err != nil {
			return nil, fmt.Errorf("export frame %d: %w", idx, err)
		}

		res.FramesWritten++
		if req.Progress != nil {
			req.Progress(res.FramesWritten, total)
		}
	}

	e.logger.Info("export finished", "frames_written", res.FramesWritten)
	return res, nil
}
