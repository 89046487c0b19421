package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/obscura/obscura-agent/internal/region"
)

func listRegionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := cfg.Service.Current()
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, RegionsToResponse(session.Store.List()))
	}
}

func createRegionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := cfg.Service.Current()
		if err != nil {
			writeServiceError(w, err)
			return
		}

		var req RegionCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		created := session.Store.Add(
			region.Box{X: req.X, Y: req.Y, W: req.W, H: req.H},
			req.ActiveFrom, req.ActiveTo, req.BlurStrength, region.OriginManual,
		)
		if created == nil {
			WriteError(w, http.StatusBadRequest,
				"region must be at least "+strconv.Itoa(region.MinRegionSize)+"px in both dimensions", "BAD_REQUEST")
			return
		}

		if err := cfg.Service.SaveRegions(r.Context()); err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, RegionToResponse(created))
	}
}

func updateRegionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := cfg.Service.Current()
		if err != nil {
			writeServiceError(w, err)
			return
		}

		var req RegionUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		update := region.Update{
			ActiveFrom:   req.ActiveFrom,
			ActiveTo:     req.ActiveTo,
			BlurStrength: req.BlurStrength,
		}
		if req.Bounds != nil {
			update.Bounds = &region.Box{X: req.Bounds.X, Y: req.Bounds.Y, W: req.Bounds.W, H: req.Bounds.H}
		}

		updated := session.Store.Apply(chi.URLParam(r, "id"), update)
		if updated == nil {
			WriteError(w, http.StatusNotFound, "region not found", "NOT_FOUND")
			return
		}

		if err := cfg.Service.SaveRegions(r.Context()); err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, RegionToResponse(updated))
	}
}

func deleteRegionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := cfg.Service.Current()
		if err != nil {
			writeServiceError(w, err)
			return
		}

		if !session.Store.Delete(chi.URLParam(r, "id")) {
			WriteError(w, http.StatusNotFound, "region not found", "NOT_FOUND")
			return
		}

		if err := cfg.Service.SaveRegions(r.Context()); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func clearRegionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := cfg.Service.Current()
		if err != nil {
			writeServiceError(w, err)
			return
		}

		session.Store.Clear()
		if err := cfg.Service.SaveRegions(r.Context()); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func duplicateRegionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := cfg.Service.Current()
		if err != nil {
			writeServiceError(w, err)
			return
		}

		dup := session.Store.Duplicate(chi.URLParam(r, "id"))
		if dup == nil {
			WriteError(w, http.StatusNotFound, "region not found", "NOT_FOUND")
			return
		}

		if err := cfg.Service.SaveRegions(r.Context()); err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, RegionToResponse(dup))
	}
}

func regionWindowHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := cfg.Service.Current()
		if err != nil {
			writeServiceError(w, err)
			return
		}

		var req WindowRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		var update region.Update
		switch req.Mode {
		case "whole":
			from, to := 0.0, session.Video.Duration()
			update.ActiveFrom, update.ActiveTo = &from, &to
		case "from_here":
			update.ActiveFrom = &req.T
		case "to_here":
			update.ActiveTo = &req.T
		default:
			WriteError(w, http.StatusBadRequest, "mode must be whole, from_here or to_here", "BAD_REQUEST")
			return
		}

		updated := session.Store.Apply(chi.URLParam(r, "id"), update)
		if updated == nil {
			WriteError(w, http.StatusNotFound, "region not found", "NOT_FOUND")
			return
		}

		if err := cfg.Service.SaveRegions(r.Context()); err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, RegionToResponse(updated))
	}
}

func retrackRegionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TrackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Frame < 0 {
			WriteError(w, http.StatusBadRequest, "frame must not be negative", "BAD_REQUEST")
			return
		}

		job, err := cfg.Service.CreateTrackJob(r.Context(), chi.URLParam(r, "id"), req.Frame)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, JobCreatedResponse{JobID: job.ID})
	}
}
