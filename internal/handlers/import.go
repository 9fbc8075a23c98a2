package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"notebook-ai/internal/contextutil"
	"notebook-ai/internal/importer"
	"notebook-ai/internal/storage"
)

// ImportHandler handles markdown directory import requests.
type ImportHandler struct {
	importer *importer.Importer
}

// NewImportHandler creates a new ImportHandler.
func NewImportHandler(im *importer.Importer) *ImportHandler {
	return &ImportHandler{importer: im}
}

// ImportRequest is the payload for an import call.
type ImportRequest struct {
	Path  string `json:"path"`
	Embed bool   `json:"embed"`
}

// Import handles POST /api/notebooks/{notebookID}/import.
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	notebookID := chi.URLParam(r, "notebookID")

	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeError(w, http.StatusBadRequest, "Path is required")
		return
	}

	result, err := h.importer.Import(ctx, notebookID, req.Path, req.Embed)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "Notebook not found")
		return
	case errors.Is(err, importer.ErrBadRoot):
		writeError(w, http.StatusBadRequest, "Path does not exist or is not a directory")
		return
	case err != nil:
		logger.ErrorContext(ctx, "import failed", "notebook_id", notebookID, "path", req.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "Import failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
