package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"notebook-ai/internal/contextutil"
	"notebook-ai/internal/llm"
	"notebook-ai/internal/search"
)

// SearchHandler handles search requests.
type SearchHandler struct {
	engine search.Engine
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(engine search.Engine) *SearchHandler {
	return &SearchHandler{engine: engine}
}

// ScopeRequest narrows a search to sources, notes, or both. Omitted fields
// default to true, so an absent scope searches everything.
type ScopeRequest struct {
	Sources *bool `json:"sources"`
	Notes   *bool `json:"notes"`
}

func (s *ScopeRequest) toScope() search.Scope {
	scope := search.Scope{Sources: true, Notes: true}
	if s == nil {
		return scope
	}
	if s.Sources != nil {
		scope.Sources = *s.Sources
	}
	if s.Notes != nil {
		scope.Notes = *s.Notes
	}
	return scope
}

// SearchRequest is the payload for a search call.
type SearchRequest struct {
	Query string        `json:"query"`
	Mode  string        `json:"mode"`
	Limit int           `json:"limit"`
	Scope *ScopeRequest `json:"scope"`
}

// SearchResponse wraps the ranked results of one search.
type SearchResponse struct {
	Query   string          `json:"query"`
	Mode    string          `json:"mode"`
	Results []search.Result `json:"results"`
}

// Search handles POST /api/search.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Mode == "" {
		req.Mode = string(search.ModeText)
	}

	results, err := h.engine.Search(ctx, req.Query, search.Mode(req.Mode), req.Limit, req.Scope.toScope())
	switch {
	case errors.Is(err, search.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, "Query and a valid mode are required")
		return
	case errors.Is(err, llm.ErrModelUnavailable):
		writeError(w, http.StatusServiceUnavailable, "No embedding model is configured")
		return
	case errors.Is(err, llm.ErrTransient):
		writeError(w, http.StatusBadGateway, "Embedding provider is unavailable")
		return
	case err != nil:
		logger.ErrorContext(ctx, "search failed", "mode", req.Mode, "error", err)
		writeError(w, http.StatusInternalServerError, "Search failed")
		return
	}

	if results == nil {
		results = []search.Result{}
	}
	logger.DebugContext(ctx, "search completed", "mode", req.Mode, "results", len(results))
	writeJSON(w, http.StatusOK, SearchResponse{
		Query:   req.Query,
		Mode:    req.Mode,
		Results: results,
	})
}
