package api

import (
	"errors"
	"net/http"

	"github.com/pevans/newsharvest/harvest"
	"github.com/pevans/newsharvest/storage"
)

// RunStatusResponse represents the response for GET /api/v1/runs/status.
type RunStatusResponse struct {
	Running bool `json:"running"`
}

// HandleStartRun handles POST /api/v1/runs. The run starts in the background
// unless wait=true is given, in which case the report is returned.
func (s *Server) HandleStartRun(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("wait") == "true" {
		report, err := s.service.RunNow(r.Context())
		if err != nil {
			s.runError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
		return
	}

	if err := s.service.Trigger(); err != nil {
		s.runError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, RunStatusResponse{Running: true})
}

func (s *Server) runError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, harvest.ErrRunInProgress):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, harvest.ErrServiceStopped):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err.Error())
	case errors.Is(err, harvest.ErrEmptyRegistry):
		writeError(w, http.StatusUnprocessableEntity, "configuration_error", err.Error())
	default:
		s.logger.Error().Err(err).Msg("Collection run failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to run collection")
	}
}

// HandleLatestRun handles GET /api/v1/runs/latest.
func (s *Server) HandleLatestRun(w http.ResponseWriter, r *http.Request) {
	if report := s.service.Last(); report != nil {
		writeJSON(w, http.StatusOK, report)
		return
	}

	report, err := s.store.LatestReport(r.Context())
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "No run has finished yet")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to load run report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleRunStatus handles GET /api/v1/runs/status.
func (s *Server) HandleRunStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, RunStatusResponse{Running: s.service.Running()})
}
