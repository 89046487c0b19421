package project

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Runner polls for pending jobs and dispatches them. Exports occupy one
// slot; face scans and track runs share a second, so an export can keep
// writing while an analysis pass runs, but neither family ever doubles up.
type Runner struct {
	service      *Service
	repo         Repository
	logger       *slog.Logger
	pollInterval time.Duration

	running      atomic.Bool
	exportBusy   atomic.Bool
	analysisBusy atomic.Bool
}

func NewRunner(service *Service, repo Repository, logger *slog.Logger) *Runner {
	return &Runner{
		service:      service,
		repo:         repo,
		logger:       logger,
		pollInterval: time.Second,
	}
}

// Start blocks, polling for pending jobs until the context is cancelled.
func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("job runner started")

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("job runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
			r.dispatchPending(ctx)
		}
	}
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

func (r *Runner) dispatchPending(ctx context.Context) {
	jobs, err := r.repo.ListPendingJobs(ctx)
	if err != nil {
		r.logger.Error("failed to list pending jobs", "error", err)
		return
	}

	for _, job := range jobs {
		if analysisJob(job.Type) {
			if r.analysisBusy.Swap(true) {
				continue
			}
			go r.run(ctx, job, &r.analysisBusy)
		} else {
			if r.exportBusy.Swap(true) {
				continue
			}
			go r.run(ctx, job, &r.exportBusy)
		}
	}
}

func (r *Runner) run(ctx context.Context, job *Job, slot *atomic.Bool) {
	defer slot.Store(false)

	r.logger.Info("processing job", "job_id", job.ID, "type", job.Type)

	var err error
	switch job.Type {
	case JobTypeExport:
		err = r.service.ExecuteExport(ctx, job)
	case JobTypeScanFaces:
		err = r.service.ExecuteScanFaces(ctx, job)
	case JobTypeTrack:
		err = r.service.ExecuteTrack(ctx, job)
	default:
		r.logger.Warn("unknown job type", "type", job.Type)
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, "unknown job type")
		return
	}

	if err != nil {
		r.logger.Error("job failed", "job_id", job.ID, "type", job.Type, "error", err)
	}
}

// ActiveJobCount reports how many jobs are currently running.
func (r *Runner) ActiveJobCount(ctx context.Context) int {
	jobs, err := r.repo.ListJobs(ctx, 100)
	if err != nil {
		return 0
	}
	count := 0
	for _, j := range jobs {
		if j.Status == JobStatusRunning {
			count++
		}
	}
	return count
}
