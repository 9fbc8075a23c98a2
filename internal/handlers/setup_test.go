package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"

	"notebook-ai/internal/storage"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// fakeItemEmbedder records Embed calls and returns canned results.
type fakeItemEmbedder struct {
	records []storage.EmbeddingRecord
	err     error
	calls   int
}

func (f *fakeItemEmbedder) Embed(ctx context.Context, itemID string, kind storage.ItemKind) ([]storage.EmbeddingRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

// fixture wires the notebook and item handlers over a real database the way
// the router does, so tests exercise URL params and status mapping end to end.
type fixture struct {
	db         *sql.DB
	notebooks  *storage.NotebookRepo
	items      *storage.ItemRepo
	embeddings *storage.EmbeddingRepo
	embedder   *fakeItemEmbedder
	router     chi.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)
	f := &fixture{
		db:         db,
		notebooks:  storage.NewNotebookRepo(db),
		items:      storage.NewItemRepo(db),
		embeddings: storage.NewEmbeddingRepo(db),
		embedder:   &fakeItemEmbedder{},
	}

	notebookHandler := NewNotebookHandler(f.notebooks, f.items)
	sourceHandler := NewItemHandler(storage.KindSource, f.items, f.notebooks, f.embeddings, f.embedder)
	noteHandler := NewItemHandler(storage.KindNote, f.items, f.notebooks, f.embeddings, f.embedder)

	r := chi.NewRouter()
	r.Route("/api/notebooks", func(r chi.Router) {
		r.Post("/", notebookHandler.Create)
		r.Get("/", notebookHandler.List)
		r.Route("/{notebookID}", func(r chi.Router) {
			r.Get("/", notebookHandler.Get)
			r.Put("/", notebookHandler.Update)
			r.Delete("/", notebookHandler.Delete)
			r.Route("/sources", func(r chi.Router) {
				r.Post("/", sourceHandler.Create)
				r.Get("/", sourceHandler.List)
				r.Get("/{itemID}", sourceHandler.Get)
				r.Put("/{itemID}", sourceHandler.Update)
				r.Delete("/{itemID}", sourceHandler.Delete)
			})
			r.Route("/notes", func(r chi.Router) {
				r.Post("/", noteHandler.Create)
				r.Get("/", noteHandler.List)
				r.Get("/{itemID}", noteHandler.Get)
				r.Put("/{itemID}", noteHandler.Update)
				r.Delete("/{itemID}", noteHandler.Delete)
			})
		})
	})
	f.router = r
	return f
}

func (f *fixture) createNotebook(t *testing.T, name string) *storage.Notebook {
	t.Helper()

	rec := doRequest(t, f.router, http.MethodPost, "/api/notebooks", NotebookRequest{Name: name})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create notebook returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp NotebookResponse
	decodeBody(t, rec, &resp)
	nb, err := f.notebooks.GetByID(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("created notebook not readable: %v", err)
	}
	return nb
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()

	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}
