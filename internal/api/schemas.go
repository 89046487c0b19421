package api

import (
	"time"

	"github.com/obscura/obscura-agent/internal/project"
	"github.com/obscura/obscura-agent/internal/region"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State        string       `json:"state"`
	LastError    string       `json:"last_error,omitempty"`
	VideoLoaded  bool         `json:"video_loaded"`
	VideoID      string       `json:"video_id,omitempty"`
	RegionsCount int          `json:"regions_count"`
	JobsRunning  int          `json:"jobs_running"`
	ActiveJob    *JobResponse `json:"active_job,omitempty"`
}

type OpenVideoRequest struct {
	Path string `json:"path"`
}

type VideoResponse struct {
	ID           string  `json:"id"`
	Path         string  `json:"path"`
	Filename     string  `json:"filename"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	FPS          float64 `json:"fps"`
	TotalFrames  int     `json:"total_frames"`
	DurationS    float64 `json:"duration_s"`
	CreatedAt    string  `json:"created_at"`
	LastOpenedAt string  `json:"last_opened_at"`
}

type VideosResponse struct {
	Videos []VideoResponse `json:"videos"`
}

type SessionResponse struct {
	Video   VideoResponse    `json:"video"`
	Regions []RegionResponse `json:"regions"`
}

type RegionCreateRequest struct {
	X            int     `json:"x"`
	Y            int     `json:"y"`
	W            int     `json:"w"`
	H            int     `json:"h"`
	ActiveFrom   float64 `json:"active_from"`
	ActiveTo     float64 `json:"active_to"`
	BlurStrength int     `json:"blur_strength"`
}

// RegionUpdateRequest carries a partial edit; absent fields keep their
// current value. Bounds move as a unit.
type RegionUpdateRequest struct {
	Bounds       *BoundsPayload `json:"bounds,omitempty"`
	ActiveFrom   *float64       `json:"active_from,omitempty"`
	ActiveTo     *float64       `json:"active_to,omitempty"`
	BlurStrength *int           `json:"blur_strength,omitempty"`
}

type BoundsPayload struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type RegionResponse struct {
	ID            string  `json:"id"`
	X             int     `json:"x"`
	Y             int     `json:"y"`
	W             int     `json:"w"`
	H             int     `json:"h"`
	ActiveFrom    float64 `json:"active_from"`
	ActiveTo      float64 `json:"active_to"`
	BlurStrength  int     `json:"blur_strength"`
	Origin        string  `json:"origin"`
	Tracked       bool    `json:"tracked"`
	TrackedFrames int     `json:"tracked_frames"`
}

type RegionsResponse struct {
	Regions []RegionResponse `json:"regions"`
}

type BlurPreset struct {
	Name     string `json:"name"`
	Strength int    `json:"strength"`
}

type PresetsResponse struct {
	BlurPresets        []BlurPreset `json:"blur_presets"`
	SensitivityMin     float64      `json:"sensitivity_min"`
	SensitivityMax     float64      `json:"sensitivity_max"`
	SensitivityDefault float64      `json:"sensitivity_default"`
}

// WindowRequest retimes a region's active window relative to the playhead.
type WindowRequest struct {
	Mode string  `json:"mode"` // whole, from_here, to_here
	T    float64 `json:"t"`
}

type DetectRequest struct {
	T           float64 `json:"t"`
	ActiveFrom  float64 `json:"active_from"`
	ActiveTo    float64 `json:"active_to"`
	Sensitivity float64 `json:"sensitivity,omitempty"`
}

type TrackRequest struct {
	Frame int `json:"frame"`
}

type ExportRequest struct {
	OutputDir string `json:"output_dir"`
}

type JobCreatedResponse struct {
	JobID string `json:"job_id"`
}

type JobResponse struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	VideoID    string `json:"video_id,omitempty"`
	RegionID   string `json:"region_id,omitempty"`
	Frame      int    `json:"frame,omitempty"`
	Progress   int    `json:"progress"`
	Error      string `json:"error,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func VideoToResponse(v *project.Video) VideoResponse {
	return VideoResponse{
		ID:           v.ID,
		Path:         v.Path,
		Filename:     v.Filename,
		Width:        v.Width,
		Height:       v.Height,
		FPS:          v.FPS,
		TotalFrames:  v.TotalFrames,
		DurationS:    v.Duration(),
		CreatedAt:    v.CreatedAt.Format(time.RFC3339),
		LastOpenedAt: v.LastOpenedAt.Format(time.RFC3339),
	}
}

func RegionToResponse(r *region.Region) RegionResponse {
	return RegionResponse{
		ID:            r.ID,
		X:             r.Bounds.X,
		Y:             r.Bounds.Y,
		W:             r.Bounds.W,
		H:             r.Bounds.H,
		ActiveFrom:    r.ActiveFrom,
		ActiveTo:      r.ActiveTo,
		BlurStrength:  r.BlurStrength,
		Origin:        string(r.Origin),
		Tracked:       r.Tracked(),
		TrackedFrames: len(r.TrackedPositions),
	}
}

func RegionsToResponse(regions []*region.Region) RegionsResponse {
	resp := RegionsResponse{Regions: make([]RegionResponse, len(regions))}
	for i, r := range regions {
		resp.Regions[i] = RegionToResponse(r)
	}
	return resp
}

func JobToResponse(j *project.Job) JobResponse {
	return JobResponse{
		ID:         j.ID,
		Type:       j.Type,
		Status:     j.Status,
		VideoID:    j.VideoID,
		RegionID:   j.RegionID,
		Frame:      j.Frame,
		Progress:   j.Progress,
		Error:      j.Error,
		OutputPath: j.OutputPath,
		CreatedAt:  j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  j.UpdatedAt.Format(time.RFC3339),
	}
}
