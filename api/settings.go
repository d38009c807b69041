package api

import (
	"errors"
	"net/http"

	"github.com/pevans/newsharvest/config"
)

// HandleGetSettings handles GET /api/v1/settings.
func (s *Server) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settings.GetSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to retrieve settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// HandleUpdateSettings handles PUT /api/v1/settings. Turning the scheduler
// off cancels a scheduled run in flight on the next poll.
func (s *Server) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var update config.SettingsUpdate
	if err := decodeJSON(r, &update); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	settings, err := s.settings.UpdateSettings(r.Context(), update)
	if errors.Is(err, config.ErrInvalidInterval) {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to update settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}
