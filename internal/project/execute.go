package project

import (
	"context"
	"fmt"

	"github.com/obscura/obscura-agent/internal/detect"
	"github.com/obscura/obscura-agent/internal/export"
	"github.com/obscura/obscura-agent/internal/region"
	"github.com/obscura/obscura-agent/internal/render"
	"github.com/obscura/obscura-agent/internal/video"
)

// ExecuteExport runs one export job to completion. The run decodes through
// its own capture so the preview stream is untouched, and composites a
// region snapshot so concurrent edits cannot race the output.
func (s *Service) ExecuteExport(ctx context.Context, job *Job) error {
	session, err := s.Current()
	if err != nil || session.Video.ID != job.VideoID {
		s.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, "video no longer loaded")
		return ErrNoSession
	}

	s.repo.UpdateJobStatus(ctx, job.ID, JobStatusRunning, "")

	source, err := video.Open(session.Video.Path)
	if err != nil {
		s.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, err.Error())
		return err
	}
	defer source.Close()
	props := source.Properties()

	sink, err := video.NewWriter(job.OutputPath, props.FPS, props.Width, props.Height)
	if err != nil {
		s.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, err.Error())
		return err
	}

	regions := session.Store.Snapshot()
	lastPct := -1
	res, err := s.exporter.Run(ctx, render.ExportRequest{
		Source:  source,
		Sink:    sink,
		Regions: regions,
		Progress: func(done, total int) {
			pct := done * 100 / total
			if pct != lastPct {
				lastPct = pct
				s.repo.UpdateJobProgress(ctx, job.ID, pct)
			}
		},
	})
	sink.Close()

	if err != nil {
		s.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, err.Error())
		return err
	}

	// A cancelled run leaves the partial file on disk for the operator.
	if res.Cancelled {
		s.repo.UpdateJobStatus(ctx, job.ID, JobStatusCancelled, "")
		s.logger.Info("export cancelled", "job_id", job.ID, "frames_written", res.FramesWritten)
		return nil
	}

	rep := export.BuildReport(session.Video.Path, job.OutputPath, props, res.FramesWritten, false, regions)
	if err := export.WriteReport(rep); err != nil {
		s.logger.Warn("export report not written", "job_id", job.ID, "error", err)
	}

	s.repo.UpdateJobProgress(ctx, job.ID, 100)
	s.repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, "")
	s.logger.Info("export completed", "job_id", job.ID, "frames_written", res.FramesWritten, "output", job.OutputPath)
	return nil
}

// ExecuteScanFaces samples the whole video for faces, clusters the hits,
// and materializes one tracked region per cluster.
func (s *Service) ExecuteScanFaces(ctx context.Context, job *Job) error {
	session, err := s.Current()
	if err != nil || session.Video.ID != job.VideoID {
		s.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, "video no longer loaded")
		return ErrNoSession
	}
	if s.faces == nil {
		s.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, "cascades not loaded")
		return fmt.Errorf("face detection unavailable")
	}

	s.repo.UpdateJobStatus(ctx, job.ID, JobStatusRunning, "")

	source, err := video.Open(session.Video.Path)
	if err != nil {
		s.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, err.Error())
		return err
	}
	defer source.Close()

	scanner := detect.NewScanner(s.faces, s.logger)
	lastPct := -1
	obs, err := scanner.ScanFaces(ctx, source, s.detectSensitivity(ctx), func(done, total int) {
		pct := done * 100 / total
		if pct != lastPct {
			lastPct = pct
			s.repo.UpdateJobProgress(ctx, job.ID, pct)
		}
	})
	if err != nil {
		s.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, err.Error())
		return err
	}

	props := source.Properties()
	strength := s.defaultBlurStrength(ctx)
	created := 0
	for _, cluster := range detect.ClusterObservations(obs) {
		from, to := cluster.Window(props.FPS)
		r := session.Store.Add(cluster.Box, from, to, strength, region.OriginFace)
		if r == nil {
			continue
		}
		positions := make(map[int]region.Box, len(cluster.Members))
		for _, m := range cluster.Members {
			positions[m.Frame] = m.Box
		}
		session.Store.ReplaceTracked(r.ID, positions)
		created++
	}

	if err := s.saveRegions(ctx, session); err != nil {
		s.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, err.Error())
		return err
	}

	s.repo.UpdateJobProgress(ctx, job.ID, 100)
	s.repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, "")
	s.logger.Info("face scan completed", "job_id", job.ID, "observations", len(obs), "regions_created", created)
	return nil
}

// ExecuteTrack re-tracks one region from the job's start frame, replacing
// its position history with the tracker's output.
func (s *Service) ExecuteTrack(ctx context.Context, job *Job) error {
	session, err := s.Current()
	if err != nil || session.Video.ID != job.VideoID {
		s.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, "video no longer loaded")
		return ErrNoSession
	}

	r := session.Store.Get(job.RegionID)
	if r == nil {
		s.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, "region not found")
		return fmt.Errorf("region %s not found", job.RegionID)
	}

	s.repo.UpdateJobStatus(ctx, job.ID, JobStatusRunning, "")

	source, err := video.Open(session.Video.Path)
	if err != nil {
		s.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, err.Error())
		return err
	}
	defer source.Close()

	// Retrack runs against the detached copy Get returned; the history is
	// published back in one locked swap so preview never sees a half-built
	// map.
	res, err := s.tracker.Retrack(ctx, source, r, job.Frame)
	if err != nil {
		s.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, err.Error())
		return err
	}

	if session.Store.ReplaceTracked(r.ID, r.TrackedPositions) == nil {
		s.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, "region deleted during tracking")
		return fmt.Errorf("region %s deleted during tracking", job.RegionID)
	}

	if err := s.saveRegions(ctx, session); err != nil {
		s.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, err.Error())
		return err
	}

	s.repo.UpdateJobProgress(ctx, job.ID, 100)
	s.repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, "")
	s.logger.Info("track completed", "job_id", job.ID, "region_id", job.RegionID,
		"frames_tracked", res.FramesTracked, "lost", res.Lost)
	return nil
}
