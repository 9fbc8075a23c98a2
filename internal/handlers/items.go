package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"notebook-ai/internal/contextutil"
	"notebook-ai/internal/embedding"
	"notebook-ai/internal/storage"
)

// ItemEmbedder embeds an item's current content. Satisfied by *embedding.Service.
type ItemEmbedder interface {
	Embed(ctx context.Context, itemID string, kind storage.ItemKind) ([]storage.EmbeddingRecord, error)
}

// ItemHandler handles source or note CRUD requests for one item kind.
// Two instances are mounted, one per kind, sharing the same code path.
type ItemHandler struct {
	kind       storage.ItemKind
	noun       string
	items      storage.ItemStore
	notebooks  storage.NotebookStore
	embeddings storage.EmbeddingStore
	embedder   ItemEmbedder
}

// NewItemHandler creates an ItemHandler scoped to one item kind.
func NewItemHandler(kind storage.ItemKind, items storage.ItemStore, notebooks storage.NotebookStore, embeddings storage.EmbeddingStore, embedder ItemEmbedder) *ItemHandler {
	return &ItemHandler{
		kind:       kind,
		noun:       string(kind),
		items:      items,
		notebooks:  notebooks,
		embeddings: embeddings,
		embedder:   embedder,
	}
}

// ItemRequest is the payload for creating or updating a source or note.
// Title is optional on create; when blank it is derived from the content.
type ItemRequest struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	NoteType string   `json:"note_type,omitempty"`
	Topics   []string `json:"topics,omitempty"`
	Embed    bool     `json:"embed,omitempty"`
}

// ItemResponse is the API shape of a source or note.
type ItemResponse struct {
	ID             string   `json:"id"`
	NotebookID     string   `json:"notebook_id"`
	Kind           string   `json:"kind"`
	NoteType       string   `json:"note_type,omitempty"`
	Topics         []string `json:"topics,omitempty"`
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	EmbeddedChunks int      `json:"embedded_chunks"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

func itemResponse(item *storage.Item, embeddedChunks int) ItemResponse {
	return ItemResponse{
		ID:             item.ID,
		NotebookID:     item.NotebookID,
		Kind:           string(item.Kind),
		NoteType:       item.NoteType,
		Topics:         item.Topics,
		Title:          item.Title,
		Content:        item.Content,
		EmbeddedChunks: embeddedChunks,
		CreatedAt:      item.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      item.UpdatedAt.Format(time.RFC3339),
	}
}

// Create handles POST /api/notebooks/{notebookID}/sources (or /notes).
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	notebookID := chi.URLParam(r, "notebookID")

	var req ItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "Content is required")
		return
	}

	noteType, ok := h.resolveNoteType(req.NoteType)
	if !ok {
		writeError(w, http.StatusBadRequest, "note_type must be 'human' or 'ai'")
		return
	}

	if _, err := h.notebooks.GetByID(ctx, notebookID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Notebook not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get notebook")
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = embedding.ExtractTitle(req.Content, "Untitled "+h.noun)
	}

	item := &storage.Item{
		ID:         uuid.New().String(),
		NotebookID: notebookID,
		Kind:       h.kind,
		NoteType:   noteType,
		Topics:     req.Topics,
		Title:      title,
		Content:    req.Content,
	}
	if err := h.items.Create(ctx, item); err != nil {
		logger.ErrorContext(ctx, "failed to create item", "kind", h.noun, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create "+h.noun)
		return
	}

	embeddedChunks := 0
	if req.Embed && h.embedder != nil {
		records, err := h.embedder.Embed(ctx, item.ID, h.kind)
		if err != nil {
			// The item exists either way; embedding can be retried later.
			logger.WarnContext(ctx, "failed to embed item on create",
				"item_id", item.ID, "kind", h.noun, "error", err)
		} else {
			embeddedChunks = len(records)
		}
	}

	logger.InfoContext(ctx, "item created",
		"item_id", item.ID, "notebook_id", notebookID, "kind", h.noun, "embedded_chunks", embeddedChunks)
	writeJSON(w, http.StatusCreated, itemResponse(item, embeddedChunks))
}

// List handles GET /api/notebooks/{notebookID}/sources (or /notes).
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	notebookID := chi.URLParam(r, "notebookID")

	if _, err := h.notebooks.GetByID(ctx, notebookID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Notebook not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get notebook")
		return
	}

	items, err := h.items.ListByNotebook(ctx, notebookID, h.kind)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list items", "kind", h.noun, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list "+h.noun+"s")
		return
	}

	out := make([]ItemResponse, 0, len(items))
	for i := range items {
		count, err := h.embeddings.CountCurrentByItem(ctx, items[i].ID)
		if err != nil {
			logger.WarnContext(ctx, "failed to count embedded chunks", "item_id", items[i].ID, "error", err)
			count = 0
		}
		out = append(out, itemResponse(&items[i], count))
	}
	writeJSON(w, http.StatusOK, out)
}

// Get handles GET /api/notebooks/{notebookID}/sources/{itemID} (or /notes/{itemID}).
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	item, ok := h.fetch(w, r)
	if !ok {
		return
	}

	count, err := h.embeddings.CountCurrentByItem(ctx, item.ID)
	if err != nil {
		count = 0
	}
	writeJSON(w, http.StatusOK, itemResponse(item, count))
}

// Update handles PUT /api/notebooks/{notebookID}/sources/{itemID} (or /notes/{itemID}).
// Existing embeddings are left in place and go stale until the item is re-embedded.
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req ItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "Content is required")
		return
	}

	item, ok := h.fetch(w, r)
	if !ok {
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = embedding.ExtractTitle(req.Content, item.Title)
	}
	item.Title = title
	item.Topics = req.Topics
	item.Content = req.Content

	if err := h.items.Update(ctx, item); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, h.notFoundMessage())
			return
		}
		logger.ErrorContext(ctx, "failed to update item", "item_id", item.ID, "kind", h.noun, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update "+h.noun)
		return
	}

	count, err := h.embeddings.CountCurrentByItem(ctx, item.ID)
	if err != nil {
		count = 0
	}
	writeJSON(w, http.StatusOK, itemResponse(item, count))
}

// Delete handles DELETE /api/notebooks/{notebookID}/sources/{itemID} (or /notes/{itemID}).
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	item, ok := h.fetch(w, r)
	if !ok {
		return
	}

	if err := h.items.Delete(ctx, item.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, h.notFoundMessage())
			return
		}
		logger.ErrorContext(ctx, "failed to delete item", "item_id", item.ID, "kind", h.noun, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete "+h.noun)
		return
	}

	logger.InfoContext(ctx, "item deleted", "item_id", item.ID, "kind", h.noun)
	w.WriteHeader(http.StatusNoContent)
}

// fetch loads the item from the URL and verifies it belongs to the notebook in
// the URL and matches the handler's kind. Writes the error response itself.
func (h *ItemHandler) fetch(w http.ResponseWriter, r *http.Request) (*storage.Item, bool) {
	ctx := r.Context()
	notebookID := chi.URLParam(r, "notebookID")
	itemID := chi.URLParam(r, "itemID")

	item, err := h.items.GetByID(ctx, itemID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, h.notFoundMessage())
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get "+h.noun)
		return nil, false
	}
	if item.NotebookID != notebookID || item.Kind != h.kind {
		writeError(w, http.StatusNotFound, h.notFoundMessage())
		return nil, false
	}
	return item, true
}

func (h *ItemHandler) resolveNoteType(noteType string) (string, bool) {
	if h.kind != storage.KindNote {
		return "", noteType == ""
	}
	switch noteType {
	case "":
		return storage.NoteTypeHuman, true
	case storage.NoteTypeHuman, storage.NoteTypeAI:
		return noteType, true
	default:
		return "", false
	}
}

func (h *ItemHandler) notFoundMessage() string {
	return strings.ToUpper(h.noun[:1]) + h.noun[1:] + " not found"
}
