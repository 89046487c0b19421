package video

import (
	"fmt"

	"gocv.io/x/gocv"
)

const defaultFourCC = "mp4v"

// Writer is a gocv-backed Sink writing an mp4v stream.
type Writer struct {
	path    string
	writer  *gocv.VideoWriter
	written int
}

// NewWriter opens the output file for sequential frame writes.
func NewWriter(path string, fps float64, width, height int) (*Writer, error) {
	vw, err := gocv.VideoWriterFile(path, defaultFourCC, fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("cannot open export sink %s: %w", path, err)
	}
	if !vw.IsOpened() {
		vw.Close()
		return nil, fmt.Errorf("cannot open export sink %s", path)
	}
	return &Writer{path: path, writer: vw}, nil
}

func (w *Writer) WriteFrame(frame gocv.Mat) error {
	if err := w.writer.Write(frame); err != nil {
		return fmt.Errorf("write frame %d to %s: %w", w.written, w.path, err)
	}
	w.written++
	return nil
}

// Written reports how many frames have been written so far.
func (w *Writer) Written() int {
	return w.written
}

func (w *Writer) Close() error {
	return w.writer.Close()
}
