package embedding

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"notebook-ai/internal/llm"
	"notebook-ai/internal/storage"
	"notebook-ai/internal/vectorstore"
)

// fakeEmbedder returns unit vectors of a fixed size, optionally failing the
// first N calls with a transient error.
type fakeEmbedder struct {
	size     int
	failures int
	calls    int
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, fmt.Errorf("%w: provider overloaded", llm.ErrTransient)
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, f.size)
		vec[0] = 1
		out[i] = vec
	}
	return out, nil
}

type serviceFixture struct {
	service  *Service
	items    *storage.ItemRepo
	records  *storage.EmbeddingRepo
	bindings *storage.BindingRepo
	vectors  *vectorstore.SQLiteStore
	embedder *fakeEmbedder
	notebook *storage.Notebook
}

func newServiceFixture(t *testing.T, maxChars int, embedder *fakeEmbedder) *serviceFixture {
	t.Helper()

	db, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	f := &serviceFixture{
		items:    storage.NewItemRepo(db),
		records:  storage.NewEmbeddingRepo(db),
		bindings: storage.NewBindingRepo(db),
		vectors:  vectorstore.NewSQLiteStore(db),
		embedder: embedder,
	}
	f.service = NewService(f.items, f.records, f.bindings, f.vectors, f.embedder, NewChunker(maxChars, maxChars/10))

	f.notebook = &storage.Notebook{ID: uuid.NewString(), Name: "test"}
	if err := storage.NewNotebookRepo(db).Create(context.Background(), f.notebook); err != nil {
		t.Fatalf("failed to create notebook: %v", err)
	}
	return f
}

func (f *serviceFixture) bindModel(t *testing.T, model string) {
	t.Helper()
	err := f.bindings.Set(context.Background(), &storage.ModelBinding{
		Role: storage.RoleEmbedding, Provider: "openai", Model: model,
	})
	if err != nil {
		t.Fatalf("failed to set binding: %v", err)
	}
}

func (f *serviceFixture) createItem(t *testing.T, kind storage.ItemKind, content string) *storage.Item {
	t.Helper()
	item := &storage.Item{
		ID:         uuid.NewString(),
		NotebookID: f.notebook.ID,
		Kind:       kind,
		Title:      "test item",
		Content:    content,
	}
	if err := f.items.Create(context.Background(), item); err != nil {
		t.Fatalf("failed to create item: %v", err)
	}
	return item
}

func TestEmbedShortItemProducesOneRecord(t *testing.T) {
	f := newServiceFixture(t, 1000, &fakeEmbedder{size: 4})
	f.bindModel(t, "test-model")
	item := f.createItem(t, storage.KindSource, "A short source about topic X.")
	ctx := context.Background()

	records, err := f.service.Embed(ctx, item.ID, storage.KindSource)
	if err != nil {
		t.Fatalf("Embed() failed: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("expected exactly 1 record for short item, got %d", len(records))
	}
	if records[0].Dim != 4 {
		t.Errorf("expected dim 4, got %d", records[0].Dim)
	}
	if records[0].Model != "test-model" {
		t.Errorf("expected model test-model, got %s", records[0].Model)
	}

	// the vector point is queryable
	hits, err := f.vectors.QueryTopK(ctx, []float32{1, 0, 0, 0}, "test-model", vectorstore.Scope{Sources: true, Notes: true}, 5)
	if err != nil {
		t.Fatalf("failed to query vectors: %v", err)
	}
	if len(hits) != 1 || hits[0].PointID != records[0].ID {
		t.Fatalf("expected the record's point in the store, got %v", hits)
	}
}

func TestEmbedLongItemChunks(t *testing.T) {
	f := newServiceFixture(t, 100, &fakeEmbedder{size: 4})
	f.bindModel(t, "test-model")
	content := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 20)
	item := f.createItem(t, storage.KindSource, content)

	records, err := f.service.Embed(context.Background(), item.ID, storage.KindSource)
	if err != nil {
		t.Fatalf("Embed() failed: %v", err)
	}

	if len(records) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(records))
	}
	for i, rec := range records {
		if rec.ChunkIndex != i {
			t.Errorf("record %d has chunk index %d", i, rec.ChunkIndex)
		}
	}
}

func TestEmbedIdempotentReplace(t *testing.T) {
	f := newServiceFixture(t, 100, &fakeEmbedder{size: 4})
	f.bindModel(t, "test-model")
	content := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 20)
	item := f.createItem(t, storage.KindSource, content)
	ctx := context.Background()

	first, err := f.service.Embed(ctx, item.ID, storage.KindSource)
	if err != nil {
		t.Fatalf("first Embed() failed: %v", err)
	}
	second, err := f.service.Embed(ctx, item.ID, storage.KindSource)
	if err != nil {
		t.Fatalf("second Embed() failed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("expected same record count, got %d then %d", len(first), len(second))
	}

	// old record IDs are fully replaced
	current, err := f.records.ListCurrent(ctx, item.ID, "test-model")
	if err != nil {
		t.Fatalf("failed to list current records: %v", err)
	}
	if len(current) != len(second) {
		t.Fatalf("expected %d current records, got %d", len(second), len(current))
	}
	firstIDs := map[string]bool{}
	for _, rec := range first {
		firstIDs[rec.ID] = true
	}
	for _, rec := range current {
		if firstIDs[rec.ID] {
			t.Errorf("stale record %s still current", rec.ID)
		}
	}

	// stale vector points are gone
	hits, err := f.vectors.QueryTopK(ctx, []float32{1, 0, 0, 0}, "test-model", vectorstore.Scope{Sources: true, Notes: true}, 100)
	if err != nil {
		t.Fatalf("failed to query vectors: %v", err)
	}
	if len(hits) != len(second) {
		t.Fatalf("expected %d points after re-embed, got %d", len(second), len(hits))
	}
	for _, hit := range hits {
		if firstIDs[hit.PointID] {
			t.Errorf("stale point %s still queryable", hit.PointID)
		}
	}
}

func TestEmbedItemNotFound(t *testing.T) {
	f := newServiceFixture(t, 1000, &fakeEmbedder{size: 4})
	f.bindModel(t, "test-model")

	_, err := f.service.Embed(context.Background(), uuid.NewString(), storage.KindSource)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEmbedKindMismatch(t *testing.T) {
	f := newServiceFixture(t, 1000, &fakeEmbedder{size: 4})
	f.bindModel(t, "test-model")
	item := f.createItem(t, storage.KindNote, "a note")

	_, err := f.service.Embed(context.Background(), item.ID, storage.KindSource)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound for kind mismatch, got %v", err)
	}
}

func TestEmbedNoModelConfigured(t *testing.T) {
	f := newServiceFixture(t, 1000, &fakeEmbedder{size: 4})
	item := f.createItem(t, storage.KindSource, "content")

	_, err := f.service.Embed(context.Background(), item.ID, storage.KindSource)
	if !errors.Is(err, llm.ErrModelUnavailable) {
		t.Errorf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestEmbedRetriesTransientOnce(t *testing.T) {
	embedder := &fakeEmbedder{size: 4, failures: 1}
	f := newServiceFixture(t, 1000, embedder)
	f.bindModel(t, "test-model")
	item := f.createItem(t, storage.KindSource, "content to embed")

	records, err := f.service.Embed(context.Background(), item.ID, storage.KindSource)
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if embedder.calls != 2 {
		t.Errorf("expected 2 embedder calls, got %d", embedder.calls)
	}
}

func TestEmbedTransientExhausted(t *testing.T) {
	embedder := &fakeEmbedder{size: 4, failures: 2}
	f := newServiceFixture(t, 1000, embedder)
	f.bindModel(t, "test-model")
	item := f.createItem(t, storage.KindSource, "content to embed")

	_, err := f.service.Embed(context.Background(), item.ID, storage.KindSource)
	if !errors.Is(err, llm.ErrTransient) {
		t.Errorf("expected ErrTransient after one retry, got %v", err)
	}
	if embedder.calls != 2 {
		t.Errorf("expected exactly 2 embedder calls, got %d", embedder.calls)
	}
}
