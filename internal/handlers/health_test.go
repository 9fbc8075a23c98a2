package handlers

import (
	"net/http"
	"testing"
)

func TestHealthHandler(t *testing.T) {
	db := newTestDB(t)
	handler := NewHealthHandler(db)

	rec := doRequest(t, http.HandlerFunc(handler.Health), http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Health returned %d", rec.Code)
	}
	var got HealthResponse
	decodeBody(t, rec, &got)
	if got.Status != "healthy" || got.Database != "up" {
		t.Errorf("Health = %+v, want healthy/up", got)
	}
}

func TestHealthHandlerDatabaseDown(t *testing.T) {
	db := newTestDB(t)
	_ = db.Close()
	handler := NewHealthHandler(db)

	rec := doRequest(t, http.HandlerFunc(handler.Health), http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Health returned %d, want 503", rec.Code)
	}
	var got HealthResponse
	decodeBody(t, rec, &got)
	if got.Status != "degraded" || got.Database != "down" {
		t.Errorf("Health = %+v, want degraded/down", got)
	}
}
