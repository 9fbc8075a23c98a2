package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"notebook-ai/internal/assembler"
	"notebook-ai/internal/contextutil"
	"notebook-ai/internal/storage"
)

// Default bounds applied when a context request omits them.
const (
	defaultContextMaxItems        = 10
	defaultContextMaxCharsPerItem = 2000
)

// ContextHandler handles context bundle assembly requests.
type ContextHandler struct {
	assembler *assembler.Assembler
}

// NewContextHandler creates a new ContextHandler.
func NewContextHandler(a *assembler.Assembler) *ContextHandler {
	return &ContextHandler{assembler: a}
}

// ContextRequest is the payload for a context assembly call. Omitted scope
// fields default to true so an empty body bundles the whole notebook.
type ContextRequest struct {
	MaxItems        int   `json:"max_items"`
	MaxCharsPerItem int   `json:"max_chars_per_item"`
	IncludeNotes    *bool `json:"include_notes"`
	IncludeSources  *bool `json:"include_sources"`
	RecencyBias     bool  `json:"recency_bias"`
}

func (r ContextRequest) toConfig() assembler.Config {
	cfg := assembler.Config{
		MaxItems:        r.MaxItems,
		MaxCharsPerItem: r.MaxCharsPerItem,
		IncludeNotes:    true,
		IncludeSources:  true,
		RecencyBias:     r.RecencyBias,
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = defaultContextMaxItems
	}
	if cfg.MaxCharsPerItem <= 0 {
		cfg.MaxCharsPerItem = defaultContextMaxCharsPerItem
	}
	if r.IncludeNotes != nil {
		cfg.IncludeNotes = *r.IncludeNotes
	}
	if r.IncludeSources != nil {
		cfg.IncludeSources = *r.IncludeSources
	}
	return cfg
}

// Assemble handles POST /api/notebooks/{notebookID}/context.
func (h *ContextHandler) Assemble(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	notebookID := chi.URLParam(r, "notebookID")

	var req ContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	bundle, err := h.assembler.Assemble(ctx, notebookID, req.toConfig())
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Notebook not found")
		return
	}
	if err != nil {
		logger.ErrorContext(ctx, "context assembly failed", "notebook_id", notebookID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to assemble context")
		return
	}

	writeJSON(w, http.StatusOK, bundle)
}
