package handlers

import (
	"encoding/json"
	"net/http"

	"notebook-ai/internal/contextutil"
	"notebook-ai/internal/storage"
)

// ModelHandler handles model binding requests.
type ModelHandler struct {
	bindings storage.BindingStore
}

// NewModelHandler creates a new ModelHandler.
func NewModelHandler(bindings storage.BindingStore) *ModelHandler {
	return &ModelHandler{bindings: bindings}
}

// BindingRequest is the payload for setting a model binding.
type BindingRequest struct {
	Role     string `json:"role"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// BindingResponse is the API shape of a model binding.
type BindingResponse struct {
	Role     string `json:"role"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

func validRole(role string) bool {
	switch role {
	case storage.RoleEmbedding, storage.RoleStrategy, storage.RoleAnswer, storage.RoleFinalAnswer:
		return true
	}
	return false
}

// List handles GET /api/models.
func (h *ModelHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	bindings, err := h.bindings.List(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list model bindings", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list model bindings")
		return
	}

	out := make([]BindingResponse, 0, len(bindings))
	for _, b := range bindings {
		out = append(out, BindingResponse{Role: b.Role, Provider: b.Provider, Model: b.Model})
	}
	writeJSON(w, http.StatusOK, out)
}

// Set handles PUT /api/models. Setting a role that already has a binding
// replaces it.
func (h *ModelHandler) Set(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req BindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !validRole(req.Role) {
		writeError(w, http.StatusBadRequest, "Unknown model role")
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "Model is required")
		return
	}

	b := &storage.ModelBinding{Role: req.Role, Provider: req.Provider, Model: req.Model}
	if err := h.bindings.Set(ctx, b); err != nil {
		logger.ErrorContext(ctx, "failed to set model binding", "role", req.Role, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to set model binding")
		return
	}

	logger.InfoContext(ctx, "model binding set", "role", req.Role, "model", req.Model)
	writeJSON(w, http.StatusOK, BindingResponse{Role: b.Role, Provider: b.Provider, Model: b.Model})
}
