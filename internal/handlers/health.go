package handlers

import (
	"database/sql"
	"net/http"

	"notebook-ai/internal/contextutil"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	db *sql.DB
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// HealthResponse reports service health.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Health handles GET /api/health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	resp := HealthResponse{Status: "healthy", Database: "up"}
	status := http.StatusOK
	if err := h.db.PingContext(ctx); err != nil {
		logger.WarnContext(ctx, "database ping failed", "error", err)
		resp = HealthResponse{Status: "degraded", Database: "down"}
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
