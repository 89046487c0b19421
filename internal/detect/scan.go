package detect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/obscura/obscura-agent/internal/region"
	"github.com/obscura/obscura-agent/internal/video"
)

// Observation is one raw face hit at one sampled frame.
type Observation struct {
	Frame int
	Box   region.Box
}

// Cluster groups observations of what looks like the same face across the
// video: a mean box, the frame window it was seen in, and the raw members.
type Cluster struct {
	Box        region.Box
	FirstFrame int
	LastFrame  int
	Members    []Observation
}

// Window converts the cluster's frame span to seconds.
func (c Cluster) Window(fps float64) (from, to float64) {
	return float64(c.FirstFrame) / fps, float64(c.LastFrame) / fps
}

// Scanner samples frames across a whole video and collects face
// observations for clustering.
type Scanner struct {
	faces  *FaceDetector
	logger *slog.Logger
}

func NewScanner(faces *FaceDetector, logger *slog.Logger) *Scanner {
	return &Scanner{faces: faces, logger: logger}
}

// ScanFaces samples every half second of video (at least every frame) and
// runs frontal face detection on each sample. Progress is reported in
// sampled frames. Early end of stream stops the scan cleanly.
func (s *Scanner) ScanFaces(ctx context.Context, source video.FrameSource, sensitivity float64, progress func(done, total int)) ([]Observation, error) {
	props := source.Properties()
	interval := int(props.FPS / 2)
	if interval < 1 {
		interval = 1
	}
	samples := (props.TotalFrames + interval - 1) / interval

	s.logger.Info("face scan started", "total_frames", props.TotalFrames, "interval", interval)

	var obs []Observation
	done := 0
	for frameNum := 0; frameNum < props.TotalFrames; frameNum += interval {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frame, err := source.ReadFrame(frameNum)
		if errors.Is(err, video.ErrEndOfStream) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read frame %d: %w", frameNum, err)
		}

		gray := gocv.NewMat()
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
		frame.Close()

		for _, r := range s.faces.DetectRaw(gray, sensitivity) {
			obs = append(obs, Observation{
				Frame: frameNum,
				Box:   region.Box{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()},
			})
		}
		gray.Close()

		done++
		if progress != nil {
			progress(done, samples)
		}
	}

	s.logger.Info("face scan finished", "observations", len(obs))
	return obs, nil
}

// ClusterObservations groups face hits by proximity: each unclaimed
// observation anchors a cluster, and any other observation whose top-left
// corner is within the anchor's width and height joins it. The cluster box
// is the member mean.
func ClusterObservations(obs []Observation) []Cluster {
	var clusters []Cluster
	used := make([]bool, len(obs))

	for i, anchor := range obs {
		if used[i] {
			continue
		}
		used[i] = true
		members := []Observation{anchor}

		for j := i + 1; j < len(obs); j++ {
			if used[j] {
				continue
			}
			o := obs[j]
			if abs(anchor.Box.X-o.Box.X) < anchor.Box.W && abs(anchor.Box.Y-o.Box.Y) < anchor.Box.H {
				used[j] = true
				members = append(members, o)
			}
		}

		clusters = append(clusters, buildCluster(members))
	}
	return clusters
}

func buildCluster(members []Observation) Cluster {
	var sx, sy, sw, sh int
	first, last := members[0].Frame, members[0].Frame
	for _, m := range members {
		sx += m.Box.X
		sy += m.Box.Y
		sw += m.Box.W
		sh += m.Box.H
		if m.Frame < first {
			first = m.Frame
		}
		if m.Frame > last {
			last = m.Frame
		}
	}
	n := float64(len(members))
	return Cluster{
		Box: region.Box{
			X: int(float64(sx) / n),
			Y: int(float64(sy) / n),
			W: int(float64(sw) / n),
			H: int(float64(sh) / n),
		},
		FirstFrame: first,
		LastFrame:  last,
		Members:    members,
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
