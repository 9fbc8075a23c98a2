package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"notebook-ai/internal/contextutil"
	"notebook-ai/internal/storage"
)

// NotebookHandler handles notebook CRUD requests.
type NotebookHandler struct {
	notebooks storage.NotebookStore
	items     storage.ItemStore
}

// NewNotebookHandler creates a new NotebookHandler.
func NewNotebookHandler(notebooks storage.NotebookStore, items storage.ItemStore) *NotebookHandler {
	return &NotebookHandler{
		notebooks: notebooks,
		items:     items,
	}
}

// NotebookRequest is the payload for creating or updating a notebook.
type NotebookRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// NotebookResponse is the API shape of a notebook.
type NotebookResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func notebookResponse(nb *storage.Notebook) NotebookResponse {
	return NotebookResponse{
		ID:          nb.ID,
		Name:        nb.Name,
		Description: nb.Description,
		CreatedAt:   nb.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   nb.UpdatedAt.Format(time.RFC3339),
	}
}

// Create handles POST /api/notebooks.
func (h *NotebookHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req NotebookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}

	nb := &storage.Notebook{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
	}
	if err := h.notebooks.Create(ctx, nb); err != nil {
		logger.ErrorContext(ctx, "failed to create notebook", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create notebook")
		return
	}

	logger.InfoContext(ctx, "notebook created", "notebook_id", nb.ID, "name", nb.Name)
	writeJSON(w, http.StatusCreated, notebookResponse(nb))
}

// List handles GET /api/notebooks.
func (h *NotebookHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	notebooks, err := h.notebooks.List(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list notebooks", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list notebooks")
		return
	}

	out := make([]NotebookResponse, 0, len(notebooks))
	for i := range notebooks {
		out = append(out, notebookResponse(&notebooks[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// Get handles GET /api/notebooks/{notebookID}.
func (h *NotebookHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	nb, err := h.notebooks.GetByID(ctx, chi.URLParam(r, "notebookID"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Notebook not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get notebook")
		return
	}
	writeJSON(w, http.StatusOK, notebookResponse(nb))
}

// Update handles PUT /api/notebooks/{notebookID}.
func (h *NotebookHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req NotebookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}

	nb := &storage.Notebook{
		ID:          chi.URLParam(r, "notebookID"),
		Name:        req.Name,
		Description: req.Description,
	}
	err := h.notebooks.Update(ctx, nb)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Notebook not found")
		return
	}
	if err != nil {
		logger.ErrorContext(ctx, "failed to update notebook", "notebook_id", nb.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update notebook")
		return
	}

	updated, err := h.notebooks.GetByID(ctx, nb.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get notebook")
		return
	}
	writeJSON(w, http.StatusOK, notebookResponse(updated))
}

// Delete handles DELETE /api/notebooks/{notebookID}. The delete cascades to
// the notebook's items, index entries, and embeddings.
func (h *NotebookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	id := chi.URLParam(r, "notebookID")

	err := h.notebooks.Delete(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Notebook not found")
		return
	}
	if err != nil {
		logger.ErrorContext(ctx, "failed to delete notebook", "notebook_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete notebook")
		return
	}

	logger.InfoContext(ctx, "notebook deleted", "notebook_id", id)
	w.WriteHeader(http.StatusNoContent)
}
