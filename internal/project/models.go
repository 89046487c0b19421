// Package project manages editing sessions: the loaded video, its blur
// regions, persistence of both, and the background jobs (export, face scan,
// tracking) that operate on them.
package project

import (
	"crypto/rand"
	"fmt"
	"time"
)

// Video is the persisted record of a file that has been opened for editing.
// Geometry is probed once at open and kept so regions can be validated
// without decoding.
type Video struct {
	ID           string    `json:"id"`
	Path         string    `json:"path"`
	Filename     string    `json:"filename"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	FPS          float64   `json:"fps"`
	TotalFrames  int       `json:"total_frames"`
	CreatedAt    time.Time `json:"created_at"`
	LastOpenedAt time.Time `json:"last_opened_at"`
}

// Duration reports the video length in seconds.
func (v *Video) Duration() float64 {
	if v.FPS <= 0 {
		return 0
	}
	return float64(v.TotalFrames) / v.FPS
}

const (
	JobTypeExport    = "export"
	JobTypeScanFaces = "scan_faces"
	JobTypeTrack     = "track"

	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

// Job is one background unit of work. Export jobs carry an output path;
// track jobs carry the region and the frame the pass starts from.
type Job struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	VideoID    string    `json:"video_id,omitempty"`
	RegionID   string    `json:"region_id,omitempty"`
	Frame      int       `json:"frame,omitempty"`
	Progress   int       `json:"progress"`
	Error      string    `json:"error,omitempty"`
	OutputPath string    `json:"output_path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// analysisJob reports whether the job belongs to the detection/tracking
// family, which shares one concurrency slot.
func analysisJob(jobType string) bool {
	return jobType == JobTypeScanFaces || jobType == JobTypeTrack
}

func NewID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}
