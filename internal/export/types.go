// Package export names output files and writes the JSON report that
// accompanies every finished export: which regions were burned in, over
// which windows, and how the run ended.
package export

import "time"

// Report is the sidecar written next to an exported file.
type Report struct {
	SourcePath    string         `json:"source_path"`
	OutputPath    string         `json:"output_path"`
	Width         int            `json:"width"`
	Height        int            `json:"height"`
	FPS           float64        `json:"fps"`
	TotalFrames   int            `json:"total_frames"`
	FramesWritten int            `json:"frames_written"`
	Cancelled     bool           `json:"cancelled"`
	Regions       []ReportRegion `json:"regions"`
	CreatedAt     time.Time      `json:"created_at"`
}

// ReportRegion is the audit record of one applied region.
type ReportRegion struct {
	ID            string  `json:"id"`
	Origin        string  `json:"origin"`
	X             int     `json:"x"`
	Y             int     `json:"y"`
	W             int     `json:"w"`
	H             int     `json:"h"`
	ActiveFrom    float64 `json:"active_from"`
	ActiveTo      float64 `json:"active_to"`
	BlurStrength  int     `json:"blur_strength"`
	TrackedFrames int     `json:"tracked_frames"`
}
