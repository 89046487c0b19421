package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/obscura/obscura-agent/internal/detect"
	"github.com/obscura/obscura-agent/internal/project"
	"github.com/obscura/obscura-agent/internal/region"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Get("/videos", listVideosHandler(cfg))
		r.Post("/videos/open", openVideoHandler(cfg))
		r.Post("/videos/close", closeVideoHandler(cfg))
		r.Delete("/videos/{id}", deleteVideoHandler(cfg))

		r.Get("/regions", listRegionsHandler(cfg))
		r.Post("/regions", createRegionHandler(cfg))
		r.Delete("/regions", clearRegionsHandler(cfg))
		r.Patch("/regions/{id}", updateRegionHandler(cfg))
		r.Delete("/regions/{id}", deleteRegionHandler(cfg))
		r.Post("/regions/{id}/duplicate", duplicateRegionHandler(cfg))
		r.Post("/regions/{id}/window", regionWindowHandler(cfg))
		r.Post("/regions/{id}/retrack", retrackRegionHandler(cfg))

		r.Get("/preview", previewHandler(cfg))
		r.Post("/detect/faces", detectFacesHandler(cfg))
		r.Post("/detect/plates", detectPlatesHandler(cfg))
		r.Post("/scan", scanHandler(cfg))

		r.Post("/export", exportHandler(cfg))
		r.Post("/export/cancel", cancelExportHandler(cfg))

		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/jobs/{id}", getJobHandler(cfg))
		r.Get("/jobs/{id}/output", jobOutputHandler(cfg))

		r.Get("/presets", presetsHandler(cfg))
		r.Get("/playback", playbackHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  "0.1.0",
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		resp := StatusResponse{State: "idle"}

		if session, err := cfg.Service.Current(); err == nil {
			resp.VideoLoaded = true
			resp.VideoID = session.Video.ID
			resp.RegionsCount = session.Store.Len()
		}

		jobs, _ := cfg.Repository.ListJobs(ctx, 10)
		for _, j := range jobs {
			if j.Status == project.JobStatusRunning {
				if resp.ActiveJob == nil {
					jr := JobToResponse(j)
					resp.ActiveJob = &jr
					resp.State = "working"
				}
				resp.JobsRunning++
			}
			if j.Status == project.JobStatusFailed && resp.LastError == "" {
				resp.LastError = j.Error
			}
		}

		if resp.LastError != "" && resp.State == "idle" {
			resp.State = "error"
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := cfg.Repository.ListJobs(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}

		resp := JobsResponse{Jobs: make([]JobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Jobs[i] = JobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "job id required", "BAD_REQUEST")
			return
		}

		job, err := cfg.Repository.GetJob(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

func presetsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, PresetsResponse{
			BlurPresets: []BlurPreset{
				{Name: "light", Strength: region.BlurLight},
				{Name: "medium", Strength: region.BlurMedium},
				{Name: "heavy", Strength: region.BlurHeavy},
				{Name: "maximum", Strength: region.BlurMaximum},
			},
			SensitivityMin:     detect.MinSensitivity,
			SensitivityMax:     detect.MaxSensitivity,
			SensitivityDefault: detect.DefaultSensitivity,
		})
	}
}

// jobOutputHandler streams a completed export's output file so the editor
// can play back the result.
func jobOutputHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.Repository.GetJob(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil || job.OutputPath == "" {
			WriteError(w, http.StatusNotFound, "job output not found", "NOT_FOUND")
			return
		}
		if job.Status != project.JobStatusCompleted {
			WriteError(w, http.StatusConflict, "job has no finished output", "JOB_NOT_DONE")
			return
		}

		if err := cfg.Playback.ServeFile(w, r, job.OutputPath); err != nil {
			cfg.Logger.Error("playback error", "error", err, "job_id", job.ID)
		}
	}
}

func playbackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := cfg.Service.Current()
		if err != nil {
			WriteError(w, http.StatusConflict, "no video loaded", "NO_SESSION")
			return
		}

		if err := cfg.Playback.ServeFile(w, r, session.Video.Path); err != nil {
			cfg.Logger.Error("playback error", "error", err, "video_id", session.Video.ID)
		}
	}
}

// writeServiceError maps known service failures onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, project.ErrNoSession):
		WriteError(w, http.StatusConflict, "no video loaded", "NO_SESSION")
	case errors.Is(err, project.ErrJobInProgress):
		WriteError(w, http.StatusConflict, err.Error(), "JOB_IN_PROGRESS")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}
