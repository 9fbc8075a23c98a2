package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func makeRecords(itemID string, model string, texts ...string) []EmbeddingRecord {
	records := make([]EmbeddingRecord, 0, len(texts))
	for i, text := range texts {
		records = append(records, EmbeddingRecord{
			ID:         uuid.NewString(),
			ItemID:     itemID,
			Kind:       KindSource,
			Model:      model,
			ChunkIndex: i,
			ChunkText:  text,
			Dim:        3,
		})
	}
	return records
}

func TestEmbeddingRepoReplaceAndList(t *testing.T) {
	db := newTestDB(t)
	nb := createTestNotebook(t, db, "research")
	item := createTestItem(t, db, nb.ID, KindSource, "Doc", "some body")
	repo := NewEmbeddingRepo(db)
	ctx := context.Background()

	stale, err := repo.ReplaceForItem(ctx, item.ID, "m1", makeRecords(item.ID, "m1", "chunk a", "chunk b"))
	if err != nil {
		t.Fatalf("ReplaceForItem() failed: %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("first embed returned %d stale IDs, want 0", len(stale))
	}

	records, err := repo.ListCurrent(ctx, item.ID, "m1")
	if err != nil {
		t.Fatalf("ListCurrent() failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("ListCurrent() returned %d records, want 2", len(records))
	}
	if records[0].ChunkIndex != 0 || records[1].ChunkIndex != 1 {
		t.Errorf("records not ordered by chunk index: %+v", records)
	}
	if records[0].Version != 1 {
		t.Errorf("first version = %d, want 1", records[0].Version)
	}
}

func TestEmbeddingRepoReplaceIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	nb := createTestNotebook(t, db, "research")
	item := createTestItem(t, db, nb.ID, KindSource, "Doc", "some body")
	repo := NewEmbeddingRepo(db)
	ctx := context.Background()

	first := makeRecords(item.ID, "m1", "chunk a", "chunk b")
	if _, err := repo.ReplaceForItem(ctx, item.ID, "m1", first); err != nil {
		t.Fatalf("first ReplaceForItem() failed: %v", err)
	}

	second := makeRecords(item.ID, "m1", "chunk a", "chunk b")
	stale, err := repo.ReplaceForItem(ctx, item.ID, "m1", second)
	if err != nil {
		t.Fatalf("second ReplaceForItem() failed: %v", err)
	}
	if len(stale) != 2 {
		t.Errorf("second embed returned %d stale IDs, want 2", len(stale))
	}

	// Exactly the prior record count remains and old IDs are gone.
	records, err := repo.ListCurrent(ctx, item.ID, "m1")
	if err != nil {
		t.Fatalf("ListCurrent() failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("ListCurrent() returned %d records after re-embed, want 2", len(records))
	}
	if records[0].Version != 2 {
		t.Errorf("version after re-embed = %d, want 2", records[0].Version)
	}
	for _, old := range first {
		if _, err := repo.GetCurrentByID(ctx, old.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("stale record %s still queryable: %v", old.ID, err)
		}
	}
	for _, rec := range second {
		if _, err := repo.GetCurrentByID(ctx, rec.ID); err != nil {
			t.Errorf("current record %s not queryable: %v", rec.ID, err)
		}
	}
}

func TestEmbeddingRepoModelsAreIndependent(t *testing.T) {
	db := newTestDB(t)
	nb := createTestNotebook(t, db, "research")
	item := createTestItem(t, db, nb.ID, KindSource, "Doc", "some body")
	repo := NewEmbeddingRepo(db)
	ctx := context.Background()

	if _, err := repo.ReplaceForItem(ctx, item.ID, "m1", makeRecords(item.ID, "m1", "a")); err != nil {
		t.Fatalf("ReplaceForItem(m1) failed: %v", err)
	}
	if _, err := repo.ReplaceForItem(ctx, item.ID, "m2", makeRecords(item.ID, "m2", "a", "b")); err != nil {
		t.Fatalf("ReplaceForItem(m2) failed: %v", err)
	}

	m1, _ := repo.ListCurrent(ctx, item.ID, "m1")
	m2, _ := repo.ListCurrent(ctx, item.ID, "m2")
	if len(m1) != 1 || len(m2) != 2 {
		t.Errorf("per-model record counts = %d, %d, want 1, 2", len(m1), len(m2))
	}

	count, err := repo.CountCurrentByItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("CountCurrentByItem() failed: %v", err)
	}
	if count != 3 {
		t.Errorf("CountCurrentByItem() = %d, want 3", count)
	}
}

func TestEmbeddingRepoGetCurrentByIDNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewEmbeddingRepo(db)

	_, err := repo.GetCurrentByID(context.Background(), uuid.NewString())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetCurrentByID() error = %v, want ErrNotFound", err)
	}
}
