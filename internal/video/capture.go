package video

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Capture is a gocv-backed FrameSource over a video file. Each Capture owns
// its own decoder cursor; open the file again for another independent stream.
type Capture struct {
	mu    sync.Mutex
	path  string
	cap   *gocv.VideoCapture
	props Properties
}

// Open opens a video file and captures its properties.
func Open(path string) (*Capture, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open video %s: %w", path, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("cannot open video %s", path)
	}

	props := Properties{
		Width:       int(vc.Get(gocv.VideoCaptureFrameWidth)),
		Height:      int(vc.Get(gocv.VideoCaptureFrameHeight)),
		FPS:         vc.Get(gocv.VideoCaptureFPS),
		TotalFrames: int(vc.Get(gocv.VideoCaptureFrameCount)),
	}
	if props.Width <= 0 || props.Height <= 0 || props.FPS <= 0 {
		vc.Close()
		return nil, fmt.Errorf("video %s has unusable properties %+v", path, props)
	}

	return &Capture{path: path, cap: vc, props: props}, nil
}

func (c *Capture) Properties() Properties {
	return c.props
}

// ReadFrame seeks to and decodes one frame. Requests outside the frame range
// return ErrEndOfStream.
func (c *Capture) ReadFrame(frameIndex int) (gocv.Mat, error) {
	if frameIndex < 0 || frameIndex >= c.props.TotalFrames {
		return gocv.Mat{}, ErrEndOfStream
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cap.Set(gocv.VideoCapturePosFrames, float64(frameIndex))
	frame := gocv.NewMat()
	if ok := c.cap.Read(&frame); !ok || frame.Empty() {
		frame.Close()
		return gocv.Mat{}, ErrEndOfStream
	}
	return frame, nil
}

func (c *Capture) Path() string {
	return c.path
}

func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cap.Close()
}
