package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"notebook-ai/internal/contextutil"
	"notebook-ai/internal/llm"
	"notebook-ai/internal/storage"
)

// EmbedHandler handles explicit embed and re-embed requests.
type EmbedHandler struct {
	embedder ItemEmbedder
}

// NewEmbedHandler creates a new EmbedHandler.
func NewEmbedHandler(embedder ItemEmbedder) *EmbedHandler {
	return &EmbedHandler{embedder: embedder}
}

// EmbedRequest is the payload for an embed call.
type EmbedRequest struct {
	ItemID   string `json:"item_id"`
	ItemKind string `json:"item_kind"`
}

// EmbedResponse reports the outcome of an embed call.
type EmbedResponse struct {
	ItemID string `json:"item_id"`
	Model  string `json:"model"`
	Chunks int    `json:"chunks"`
}

// Embed handles POST /api/embed. Re-embedding an item replaces its previous
// chunks atomically, so the call is safe to repeat.
func (h *EmbedHandler) Embed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req EmbedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ItemID == "" {
		writeError(w, http.StatusBadRequest, "Item ID is required")
		return
	}
	kind := storage.ItemKind(req.ItemKind)
	if !kind.Valid() {
		writeError(w, http.StatusBadRequest, "Item kind must be 'source' or 'note'")
		return
	}

	records, err := h.embedder.Embed(ctx, req.ItemID, kind)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "Item not found")
		return
	case errors.Is(err, llm.ErrModelUnavailable):
		writeError(w, http.StatusServiceUnavailable, "No embedding model is configured")
		return
	case errors.Is(err, llm.ErrTransient):
		writeError(w, http.StatusBadGateway, "Embedding provider is unavailable")
		return
	case err != nil:
		logger.ErrorContext(ctx, "embed failed", "item_id", req.ItemID, "error", err)
		writeError(w, http.StatusInternalServerError, "Embed failed")
		return
	}

	resp := EmbedResponse{ItemID: req.ItemID, Chunks: len(records)}
	if len(records) > 0 {
		resp.Model = records[0].Model
	}
	logger.InfoContext(ctx, "item embedded", "item_id", req.ItemID, "chunks", resp.Chunks)
	writeJSON(w, http.StatusOK, resp)
}
