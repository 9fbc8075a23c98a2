package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"notebook-ai/internal/ask"
	"notebook-ai/internal/contextutil"
	"notebook-ai/internal/llm"
	"notebook-ai/internal/storage"
)

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_asker.go -package=mocks notebook-ai/internal/handlers Asker

// defaultAskTimeout bounds an ask call when the client does not supply one.
const defaultAskTimeout = 60 * time.Second

// Asker runs the question answering pipeline. Satisfied by *ask.Pipeline.
type Asker interface {
	Ask(ctx context.Context, req ask.Request) (*ask.Response, error)
}

// AskHandler handles multi-stage question answering requests.
type AskHandler struct {
	pipeline Asker
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(pipeline Asker) *AskHandler {
	return &AskHandler{pipeline: pipeline}
}

// AskRequest is the payload for an ask call.
type AskRequest struct {
	Question       string `json:"question"`
	NotebookID     string `json:"notebook_id"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Ask handles POST /api/ask.
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "Question is required")
		return
	}
	if req.NotebookID == "" {
		writeError(w, http.StatusBadRequest, "Notebook ID is required")
		return
	}
	timeout := defaultAskTimeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}

	resp, err := h.pipeline.Ask(ctx, ask.Request{
		Question:   req.Question,
		NotebookID: req.NotebookID,
		Timeout:    timeout,
	})
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "Notebook not found")
		return
	case errors.Is(err, llm.ErrModelUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Required models are not configured")
		return
	case errors.Is(err, ask.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "Ask exceeded its time budget")
		return
	case errors.Is(err, ask.ErrFinalization):
		// Sub-answers survive a finalization failure; return them so the
		// client can show partial results.
		logger.WarnContext(ctx, "ask finalization failed", "notebook_id", req.NotebookID, "error", err)
		writeJSON(w, http.StatusBadGateway, resp)
		return
	case errors.Is(err, ask.ErrStrategy):
		logger.WarnContext(ctx, "ask strategy failed", "notebook_id", req.NotebookID, "error", err)
		writeError(w, http.StatusBadGateway, "Question decomposition failed")
		return
	case err != nil:
		logger.ErrorContext(ctx, "ask failed", "notebook_id", req.NotebookID, "error", err)
		writeError(w, http.StatusInternalServerError, "Ask failed")
		return
	}

	logger.InfoContext(ctx, "ask completed",
		"notebook_id", req.NotebookID, "sub_answers", len(resp.SubAnswers), "citations", len(resp.Citations))
	writeJSON(w, http.StatusOK, resp)
}
