package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/obscura/obscura-agent/internal/detect"
	"github.com/obscura/obscura-agent/internal/export"
	"github.com/obscura/obscura-agent/internal/region"
	"github.com/obscura/obscura-agent/internal/render"
	"github.com/obscura/obscura-agent/internal/track"
	"github.com/obscura/obscura-agent/internal/video"
)

var (
	ErrNoSession     = errors.New("no video loaded")
	ErrJobInProgress = errors.New("a job of this kind is already in progress")
)

const (
	configKeySensitivity  = "detect_sensitivity"
	configKeyBlurStrength = "default_blur_strength"
)

// Session is one loaded video under edit: its record, live region store,
// and the preview renderer over a dedicated decode stream.
type Session struct {
	Video   *Video
	Store   *region.Store
	Preview *render.Preview

	source *video.Capture
}

// Properties reports the loaded video's decode properties.
func (s *Session) Properties() video.Properties {
	return s.source.Properties()
}

func (s *Session) close() {
	s.Preview.Close()
	s.source.Close()
}

// Service owns the current editing session and runs the operations the API
// exposes: loading videos, region edits with persistence, synchronous
// detection, and the background export/scan/track jobs.
type Service struct {
	repo     Repository
	faces    *detect.FaceDetector
	exporter *render.Exporter
	tracker  *track.Session
	logger   *slog.Logger

	mu      sync.Mutex
	session *Session
}

func NewService(repo Repository, faces *detect.FaceDetector, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		faces:    faces,
		exporter: render.NewExporter(logger),
		tracker:  track.NewSession(logger),
		logger:   logger,
	}
}

// OpenVideo loads a file for editing, probing its properties, upserting its
// catalog record, and restoring any persisted regions. A previously open
// session is saved and closed first.
func (s *Service) OpenVideo(ctx context.Context, path string) (*Session, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	source, err := video.Open(absPath)
	if err != nil {
		return nil, err
	}
	props := source.Properties()

	existing, err := s.repo.GetVideoByPath(ctx, absPath)
	if err != nil {
		source.Close()
		return nil, err
	}

	now := time.Now()
	v := &Video{
		ID:           NewID(),
		Path:         absPath,
		Filename:     filepath.Base(absPath),
		Width:        props.Width,
		Height:       props.Height,
		FPS:          props.FPS,
		TotalFrames:  props.TotalFrames,
		CreatedAt:    now,
		LastOpenedAt: now,
	}
	if existing != nil {
		v.ID = existing.ID
		v.CreatedAt = existing.CreatedAt
	}
	if err := s.repo.UpsertVideo(ctx, v); err != nil {
		source.Close()
		return nil, err
	}

	store := region.NewStore(props.Width, props.Height)
	saved, err := s.repo.GetRegions(ctx, v.ID)
	if err != nil {
		source.Close()
		return nil, err
	}
	store.Restore(saved)

	session := &Session{
		Video:   v,
		Store:   store,
		Preview: render.NewPreview(source, store, s.logger),
		source:  source,
	}

	s.mu.Lock()
	prev := s.session
	s.session = session
	s.mu.Unlock()

	if prev != nil {
		s.saveRegions(ctx, prev)
		prev.close()
	}

	s.logger.Info("video opened", "video_id", v.ID, "path", absPath,
		"frames", props.TotalFrames, "regions", store.Len())
	return session, nil
}

// Current returns the active session, or ErrNoSession.
func (s *Service) Current() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, ErrNoSession
	}
	return s.session, nil
}

// CloseVideo saves the session's regions and releases its decoders.
func (s *Service) CloseVideo(ctx context.Context) error {
	s.mu.Lock()
	session := s.session
	s.session = nil
	s.mu.Unlock()

	if session == nil {
		return ErrNoSession
	}
	err := s.saveRegions(ctx, session)
	session.close()
	s.logger.Info("video closed", "video_id", session.Video.ID)
	return err
}

// SaveRegions persists the current session's region list.
func (s *Service) SaveRegions(ctx context.Context) error {
	session, err := s.Current()
	if err != nil {
		return err
	}
	return s.saveRegions(ctx, session)
}

func (s *Service) saveRegions(ctx context.Context, session *Session) error {
	return s.repo.ReplaceRegions(ctx, session.Video.ID, session.Store.Snapshot())
}

func (s *Service) ListVideos(ctx context.Context) ([]*Video, error) {
	return s.repo.ListVideos(ctx)
}

func (s *Service) DeleteVideo(ctx context.Context, id string) error {
	return s.repo.DeleteVideo(ctx, id)
}

// DetectFaces runs face detection on the frame at time t and adds a region
// per hit, active over the given window. Returns the regions created.
func (s *Service) DetectFaces(ctx context.Context, t, from, to float64, sensitivity float64) ([]*region.Region, error) {
	session, err := s.Current()
	if err != nil {
		return nil, err
	}
	if s.faces == nil {
		return nil, errors.New("face detection unavailable: cascades not loaded")
	}

	props := session.Properties()
	frame, err := session.source.ReadFrame(props.FrameIndexAt(t))
	if err != nil {
		return nil, err
	}
	defer frame.Close()

	strength := s.defaultBlurStrength(ctx)
	var created []*region.Region
	for _, box := range s.faces.Detect(frame, sensitivity) {
		if r := session.Store.Add(box, from, to, strength, region.OriginFace); r != nil {
			created = append(created, r)
		}
	}

	if err := s.saveRegions(ctx, session); err != nil {
		return nil, err
	}
	s.logger.Info("faces detected", "video_id", session.Video.ID, "count", len(created), "t", t)
	return created, nil
}

// DetectPlates runs the plate heuristic on the frame at time t and adds a
// region per candidate, active over the given window.
func (s *Service) DetectPlates(ctx context.Context, t, from, to float64) ([]*region.Region, error) {
	session, err := s.Current()
	if err != nil {
		return nil, err
	}

	props := session.Properties()
	frame, err := session.source.ReadFrame(props.FrameIndexAt(t))
	if err != nil {
		return nil, err
	}
	defer frame.Close()

	strength := s.defaultBlurStrength(ctx)
	var created []*region.Region
	for _, box := range detect.DetectPlates(frame) {
		if r := session.Store.Add(box, from, to, strength, region.OriginPlate); r != nil {
			created = append(created, r)
		}
	}

	if err := s.saveRegions(ctx, session); err != nil {
		return nil, err
	}
	s.logger.Info("plates detected", "video_id", session.Video.ID, "count", len(created), "t", t)
	return created, nil
}

// CreateExportJob queues an export of the current session into outputDir.
// Only one export may be open at a time; a busy slot is a rejection, not a
// queue position.
func (s *Service) CreateExportJob(ctx context.Context, outputDir string) (*Job, error) {
	session, err := s.Current()
	if err != nil {
		return nil, err
	}
	if err := export.ValidateOutputDir(outputDir); err != nil {
		return nil, err
	}

	busy, err := s.repo.HasOpenJob(ctx, false)
	if err != nil {
		return nil, err
	}
	if busy {
		return nil, ErrJobInProgress
	}

	now := time.Now()
	job := &Job{
		ID:         NewID(),
		Type:       JobTypeExport,
		Status:     JobStatusPending,
		VideoID:    session.Video.ID,
		OutputPath: export.OutputPath(outputDir, session.Video.Filename),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	s.logger.Info("export job created", "job_id", job.ID, "output", job.OutputPath)
	return job, nil
}

// CreateScanJob queues a whole-video face scan. Shares one slot with track
// jobs; a busy slot is a rejection.
func (s *Service) CreateScanJob(ctx context.Context) (*Job, error) {
	session, err := s.Current()
	if err != nil {
		return nil, err
	}
	if s.faces == nil {
		return nil, errors.New("face detection unavailable: cascades not loaded")
	}

	busy, err := s.repo.HasOpenJob(ctx, true)
	if err != nil {
		return nil, err
	}
	if busy {
		return nil, ErrJobInProgress
	}

	now := time.Now()
	job := &Job{
		ID:        NewID(),
		Type:      JobTypeScanFaces,
		Status:    JobStatusPending,
		VideoID:   session.Video.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	s.logger.Info("scan job created", "job_id", job.ID, "video_id", session.Video.ID)
	return job, nil
}

// CreateTrackJob queues a re-track of one region starting at frame. The
// region's history is cleared and rebuilt by the run.
func (s *Service) CreateTrackJob(ctx context.Context, regionID string, frame int) (*Job, error) {
	session, err := s.Current()
	if err != nil {
		return nil, err
	}
	if session.Store.Get(regionID) == nil {
		return nil, fmt.Errorf("region %s not found", regionID)
	}

	busy, err := s.repo.HasOpenJob(ctx, true)
	if err != nil {
		return nil, err
	}
	if busy {
		return nil, ErrJobInProgress
	}

	now := time.Now()
	job := &Job{
		ID:        NewID(),
		Type:      JobTypeTrack,
		Status:    JobStatusPending,
		VideoID:   session.Video.ID,
		RegionID:  regionID,
		Frame:     frame,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	s.logger.Info("track job created", "job_id", job.ID, "region_id", regionID, "frame", frame)
	return job, nil
}

// SetTrackCap overrides the tracked-frames-per-run limit.
func (s *Service) SetTrackCap(n int) {
	s.tracker.SetCap(n)
}

// CancelExport asks the running export to stop at the next frame boundary.
func (s *Service) CancelExport() {
	s.exporter.Cancel()
}

// ExportRunning reports whether an export is currently writing frames.
func (s *Service) ExportRunning() bool {
	return s.exporter.Running()
}

func (s *Service) defaultBlurStrength(ctx context.Context) int {
	if val, err := s.repo.GetConfig(ctx, configKeyBlurStrength); err == nil && val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return region.NormalizeBlurStrength(n)
		}
	}
	return region.BlurMedium
}

func (s *Service) detectSensitivity(ctx context.Context) float64 {
	if val, err := s.repo.GetConfig(ctx, configKeySensitivity); err == nil && val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return detect.DefaultSensitivity
}
