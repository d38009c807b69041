package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pevans/newsharvest/target"
)

// Target origins reported by the API.
const (
	OriginFile  = "file"
	OriginStore = "store"
)

// TargetView is a target with where it was defined.
type TargetView struct {
	target.Target
	Origin string `json:"origin"`
}

// ListTargetsResponse represents the response for GET /api/v1/targets.
type ListTargetsResponse struct {
	Targets []TargetView `json:"targets"`
	Total   int          `json:"total"`
}

// UpdateTargetRequest represents the request for PUT
// /api/v1/targets/{name}.
type UpdateTargetRequest struct {
	BaseURL       *string          `json:"base_url,omitempty"`
	Enabled       *bool            `json:"enabled,omitempty"`
	SelectorHints []string         `json:"selector_hints,omitempty"`
	FetchStrategy *target.Strategy `json:"fetch_strategy,omitempty"`
	Mode          *target.Mode     `json:"mode,omitempty"`
	LinkSelectors []string         `json:"link_selectors,omitempty"`
	FeedURL       *string          `json:"feed_url,omitempty"`
	MaxArticles   *int             `json:"max_articles,omitempty"`
	Timeout       *target.Duration `json:"timeout,omitempty"`
	MaxDelay      *target.Duration `json:"max_delay,omitempty"`
}

// handleTargetError maps domain errors to HTTP responses.
func (s *Server) handleTargetError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, target.ErrTargetNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, target.ErrDuplicateName):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case target.IsConfigError(err):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	default:
		s.logger.Error().Err(err).Msg("Target store failure")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to process request")
	}
}

// HandleListTargets handles GET /api/v1/targets. File targets come first,
// then stored targets, which is the order runs use.
func (s *Server) HandleListTargets(w http.ResponseWriter, r *http.Request) {
	views := make([]TargetView, 0, len(s.fileTargets))
	for _, t := range s.fileTargets {
		views = append(views, TargetView{Target: t.WithDefaults(), Origin: OriginFile})
	}

	stored, err := s.targets.ListTargets()
	if err != nil {
		s.handleTargetError(w, err)
		return
	}
	for _, st := range stored {
		views = append(views, TargetView{Target: st.Target, Origin: OriginStore})
	}

	if enabled := r.URL.Query().Get("enabled"); enabled != "" {
		want := enabled == "true"
		filtered := views[:0]
		for _, v := range views {
			if v.Enabled == want {
				filtered = append(filtered, v)
			}
		}
		views = filtered
	}

	writeJSON(w, http.StatusOK, ListTargetsResponse{Targets: views, Total: len(views)})
}

// HandleGetTarget handles GET /api/v1/targets/{name}.
func (s *Server) HandleGetTarget(w http.ResponseWriter, r *http.Request) {
	st, err := s.targets.GetTarget(chi.URLParam(r, "name"))
	if err != nil {
		s.handleTargetError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleCreateTarget handles POST /api/v1/targets.
func (s *Server) HandleCreateTarget(w http.ResponseWriter, r *http.Request) {
	var t target.Target
	if err := decodeJSON(r, &t); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	for _, ft := range s.fileTargets {
		if ft.Name == t.Name {
			s.handleTargetError(w, target.ErrDuplicateName)
			return
		}
	}

	st, err := s.targets.CreateTarget(t)
	if err != nil {
		s.handleTargetError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

// HandleUpdateTarget handles PUT /api/v1/targets/{name}.
func (s *Server) HandleUpdateTarget(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req UpdateTargetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	update := target.TargetUpdate{
		BaseURL:       req.BaseURL,
		Enabled:       req.Enabled,
		SelectorHints: req.SelectorHints,
		FetchStrategy: req.FetchStrategy,
		Mode:          req.Mode,
		LinkSelectors: req.LinkSelectors,
		FeedURL:       req.FeedURL,
		MaxArticles:   req.MaxArticles,
		Timeout:       req.Timeout,
		MaxDelay:      req.MaxDelay,
	}
	if err := s.targets.UpdateTarget(name, update); err != nil {
		s.handleTargetError(w, err)
		return
	}

	st, err := s.targets.GetTarget(name)
	if err != nil {
		s.handleTargetError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleDeleteTarget handles DELETE /api/v1/targets/{name}.
func (s *Server) HandleDeleteTarget(w http.ResponseWriter, r *http.Request) {
	if err := s.targets.DeleteTarget(chi.URLParam(r, "name")); err != nil {
		s.handleTargetError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
