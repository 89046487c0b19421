package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/obscura/obscura-agent/internal/export"
	"github.com/obscura/obscura-agent/internal/render"
)

func previewHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := cfg.Service.Current()
		if err != nil {
			writeServiceError(w, err)
			return
		}

		t, err := parsePreviewT(r.URL.Query().Get("t"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "t must be a non-negative number of seconds", "BAD_REQUEST")
			return
		}

		frame, err := session.Preview.FrameAt(t)
		if err != nil {
			WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
			return
		}
		defer frame.Close()

		buf, err := render.EncodeJPEG(frame)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to encode frame", "INTERNAL_ERROR")
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", strconv.Itoa(len(buf)))
		w.WriteHeader(http.StatusOK)
		w.Write(buf)
	}
}

func parsePreviewT(raw string) (float64, error) {
	t, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if t < 0 {
		return 0, fmt.Errorf("negative timestamp %v", t)
	}
	return t, nil
}

func detectFacesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DetectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		created, err := cfg.Service.DetectFaces(r.Context(), req.T, req.ActiveFrom, req.ActiveTo, req.Sensitivity)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, RegionsToResponse(created))
	}
}

func detectPlatesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DetectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		created, err := cfg.Service.DetectPlates(r.Context(), req.T, req.ActiveFrom, req.ActiveTo)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, RegionsToResponse(created))
	}
}

func scanHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.Service.CreateScanJob(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, JobCreatedResponse{JobID: job.ID})
	}
}

func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if err := export.ValidateOutputDir(req.OutputDir); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		job, err := cfg.Service.CreateExportJob(r.Context(), req.OutputDir)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, JobCreatedResponse{JobID: job.ID})
	}
}

func cancelExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !cfg.Service.ExportRunning() {
			WriteError(w, http.StatusConflict, "no export in progress", "NO_EXPORT")
			return
		}
		cfg.Service.CancelExport()
		w.WriteHeader(http.StatusAccepted)
	}
}
