package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pevans/newsharvest/filter"
	"github.com/pevans/newsharvest/storage"
)

const maxLimit = 1000

// ListContentsResponse represents the response for GET /api/v1/contents.
type ListContentsResponse struct {
	Items  []filter.ScoredContent `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

// HandleListContents handles GET /api/v1/contents.
func (s *Server) HandleListContents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 50 // default
	if limitParam := q.Get("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid limit parameter")
			return
		}
		limit = min(parsed, maxLimit)
	}

	offset := 0
	if offsetParam := q.Get("offset"); offsetParam != "" {
		parsed, err := strconv.Atoi(offsetParam)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid_parameter", "Invalid offset parameter")
			return
		}
		offset = parsed
	}

	items, err := s.store.List(r.Context(), storage.ListOptions{
		Target: q.Get("target"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to list content")
		return
	}
	total, err := s.store.Count(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to count content")
		return
	}

	if items == nil {
		items = []filter.ScoredContent{}
	}
	writeJSON(w, http.StatusOK, ListContentsResponse{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// HandleGetContent handles GET /api/v1/contents/{id}.
func (s *Server) HandleGetContent(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to load content")
		return
	}
	writeJSON(w, http.StatusOK, c)
}
