package render

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/obscura/obscura-agent/internal/logging"
	"github.com/obscura/obscura-agent/internal/region"
)

func testRegions() []*region.Region {
	return []*region.Region{{
		ID:           "r1",
		Bounds:       region.Box{X: 8, Y: 8, W: 24, H: 16},
		ActiveFrom:   0,
		ActiveTo:     100,
		BlurStrength: 11,
	}}
}

func TestExporter_VisitsEveryFrameInOrder(t *testing.T) {
	source := newFakeSource(64, 48, 20)
	sink := &fakeSink{}
	e := NewExporter(logging.NewLogger("error"))

	var progress []int
	res, err := e.Run(context.Background(), ExportRequest{
		Source:  source,
		Sink:    sink,
		Regions: testRegions(),
		Progress: func(done, total int) {
			progress = append(progress, done)
		},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.FramesWritten != 20 || res.Cancelled {
		t.Errorf("result = %+v, want 20 frames, not cancelled", res)
	}
	if sink.count() != 20 {
		t.Errorf("sink received %d frames, want 20", sink.count())
	}

	got := source.requestedIndices()
	if len(got) != 20 {
		t.Fatalf("source saw %d reads, want 20", len(got))
	}
	for i, idx := range got {
		if idx != i {
			t.Fatalf("read order broken: position %d requested frame %d", i, idx)
		}
	}

	if len(progress) != 20 || progress[0] != 1 || progress[19] != 20 {
		t.Errorf("progress callbacks = %v", progress)
	}
}

func TestExporter_MatchesPreviewByteForByte(t *testing.T) {
	// The consistency property: a frame captured from the preview path and
	// the same frame from an export must be identical.
	store := region.NewStore(64, 48)
	store.Add(region.Box{X: 10, Y: 10, W: 20, H: 20}, 0, 100, 21, region.OriginManual)

	exportSource := newFakeSource(64, 48, 10)
	sink := &fakeSink{}
	e := NewExporter(logging.NewLogger("error"))

	if _, err := e.Run(context.Background(), ExportRequest{
		Source:  exportSource,
		Sink:    sink,
		Regions: store.Snapshot(),
	}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	previewSource := newFakeSource(64, 48, 10)
	p := NewPreview(previewSource, store, logging.NewLogger("error"))
	defer p.Close()

	for idx := 0; idx < 10; idx++ {
		// Seek mid-frame so flooring lands exactly on idx.
		frame, err := p.FrameAt((float64(idx) + 0.5) / 30.0)
		if err != nil {
			t.Fatalf("FrameAt(frame %d) error = %v", idx, err)
		}
		if !bytes.Equal(matBytes(frame), sink.frames[idx]) {
			t.Errorf("frame %d differs between preview and export", idx)
		}
		mustCloseMat(t, frame)
	}
}

func TestExporter_EndOfStreamFinalizesCleanly(t *testing.T) {
	source := newFakeSource(64, 48, 20)
	source.failAfter = 5
	sink := &fakeSink{}
	e := NewExporter(logging.NewLogger("error"))

	res, err := e.Run(context.Background(), ExportRequest{Source: source, Sink: sink, Regions: nil})
	if err != nil {
		t.Fatalf("Run() error = %v, want clean finalize", err)
	}
	if res.FramesWritten != 5 || res.Cancelled {
		t.Errorf("result = %+v, want 5 frames written", res)
	}
}

func TestExporter_SinkFailureAborts(t *testing.T) {
	source := newFakeSource(64, 48, 20)
	sink := &fakeSink{failAt: 3}
	e := NewExporter(logging.NewLogger("error"))

	_, err := e.Run(context.Background(), ExportRequest{Source: source, Sink: sink, Regions: nil})
	if err == nil {
		t.Fatal("Run() succeeded despite sink failure")
	}
	if !errors.Is(err, errDiskFull) {
		t.Errorf("error = %v, want wrapped sink error", err)
	}
}

func TestExporter_CancelChecksOncePerFrame(t *testing.T) {
	source := newFakeSource(64, 48, 50)
	sink := &fakeSink{}
	e := NewExporter(logging.NewLogger("error"))

	res, err := e.Run(context.Background(), ExportRequest{
		Source:  source,
		Sink:    sink,
		Regions: nil,
		Progress: func(done, total int) {
			if done == 3 {
				e.Cancel()
			}
		},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Cancelled {
		t.Fatal("result not marked cancelled")
	}
	if res.FramesWritten != 3 {
		t.Errorf("frames written = %d, want 3 (cancel honored on next frame)", res.FramesWritten)
	}
	// Partial output is left as-is.
	if sink.count() != 3 {
		t.Errorf("sink frames = %d, want partial output kept", sink.count())
	}
}

func TestExporter_RejectsConcurrentRun(t *testing.T) {
	gate := make(chan struct{})
	source := newFakeSource(64, 48, 5)
	source.gate = gate
	e := NewExporter(logging.NewLogger("error"))

	done := make(chan error, 1)
	go func() {
		_, err := e.Run(context.Background(), ExportRequest{Source: source, Sink: &fakeSink{}})
		done <- err
	}()

	// Wait for the first run to take the slot.
	deadline := time.Now().Add(2 * time.Second)
	for !e.Running() {
		if time.Now().After(deadline) {
			t.Fatal("first export never started")
		}
		time.Sleep(time.Millisecond)
	}

	_, err := e.Run(context.Background(), ExportRequest{Source: newFakeSource(64, 48, 5), Sink: &fakeSink{}})
	if !errors.Is(err, ErrExportRunning) {
		t.Errorf("second Run() error = %v, want ErrExportRunning", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
}

func TestExporter_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	source := newFakeSource(64, 48, 50)
	sink := &fakeSink{}
	e := NewExporter(logging.NewLogger("error"))

	res, err := e.Run(ctx, ExportRequest{
		Source: source,
		Sink:   sink,
		Progress: func(done, total int) {
			if done == 2 {
				cancel()
			}
		},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Cancelled || res.FramesWritten != 2 {
		t.Errorf("result = %+v, want cancelled after 2 frames", res)
	}
}
