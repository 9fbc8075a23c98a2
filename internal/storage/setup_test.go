package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

// newTestDB opens a fresh migrated database in a temp directory.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	return db
}

// createTestNotebook inserts a notebook and returns it.
func createTestNotebook(t *testing.T, db *sql.DB, name string) *Notebook {
	t.Helper()

	nb := &Notebook{ID: uuid.NewString(), Name: name}
	if err := NewNotebookRepo(db).Create(context.Background(), nb); err != nil {
		t.Fatalf("failed to create notebook: %v", err)
	}
	return nb
}

// createTestItem inserts an item and returns it.
func createTestItem(t *testing.T, db *sql.DB, notebookID string, kind ItemKind, title, content string) *Item {
	t.Helper()

	item := &Item{
		ID:         uuid.NewString(),
		NotebookID: notebookID,
		Kind:       kind,
		Title:      title,
		Content:    content,
	}
	if err := NewItemRepo(db).Create(context.Background(), item); err != nil {
		t.Fatalf("failed to create item: %v", err)
	}
	return item
}
