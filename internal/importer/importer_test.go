package importer

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

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

func writeFile(t *testing.T, root, relPath, content string) {
	t.Helper()

	path := filepath.Join(root, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
}

func createNotebook(t *testing.T, db *sql.DB) *storage.Notebook {
	t.Helper()

	nb := &storage.Notebook{ID: uuid.NewString(), Name: "imported"}
	if err := storage.NewNotebookRepo(db).Create(context.Background(), nb); err != nil {
		t.Fatalf("failed to create notebook: %v", err)
	}
	return nb
}

func TestScanFindsMarkdownOnly(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "# A")
	writeFile(t, root, "sub/b.md", "# B")
	writeFile(t, root, "sub/c.txt", "not markdown")
	writeFile(t, root, ".obsidian/config.md", "editor config")

	files, err := Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("Scan() found %d files, want 2: %+v", len(files), files)
	}
	paths := map[string]bool{}
	for _, f := range files {
		paths[f.RelPath] = true
	}
	if !paths["a.md"] || !paths["sub/b.md"] {
		t.Errorf("Scan() paths = %v, want a.md and sub/b.md", paths)
	}
}

func TestScanRejectsNonDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "# A")

	if _, err := Scan(context.Background(), filepath.Join(root, "a.md")); err == nil {
		t.Fatal("Scan() on a file should fail")
	}
	if _, err := Scan(context.Background(), filepath.Join(root, "missing")); err == nil {
		t.Fatal("Scan() on a missing path should fail")
	}
}

func TestImportCreatesSources(t *testing.T) {
	db := newTestDB(t)
	nb := createNotebook(t, db)
	items := storage.NewItemRepo(db)

	root := t.TempDir()
	writeFile(t, root, "meeting.md", "# Retrieval sync\n\nDiscussed hybrid search.")
	writeFile(t, root, "untitled.md", "Plain text without a heading.")
	writeFile(t, root, "empty.md", "   \n")

	im := New(storage.NewNotebookRepo(db), items, nil)
	result, err := im.Import(context.Background(), nb.ID, root, false)
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if result.Imported != 2 || result.Skipped != 1 {
		t.Fatalf("Import() = %+v, want 2 imported 1 skipped", result)
	}

	got, err := items.ListByNotebook(context.Background(), nb.ID, storage.KindSource)
	if err != nil {
		t.Fatalf("ListByNotebook() failed: %v", err)
	}
	titles := map[string]bool{}
	for _, item := range got {
		titles[item.Title] = true
		if item.Kind != storage.KindSource {
			t.Errorf("imported item kind = %q, want source", item.Kind)
		}
	}
	if !titles["Retrieval sync"] {
		t.Error("heading-derived title missing")
	}
	if !titles["Plain text without a heading."] && !titles["untitled"] {
		t.Errorf("fallback title missing: %v", titles)
	}
}

func TestImportNotebookNotFound(t *testing.T) {
	db := newTestDB(t)
	im := New(storage.NewNotebookRepo(db), storage.NewItemRepo(db), nil)

	_, err := im.Import(context.Background(), uuid.NewString(), t.TempDir(), false)
	if err == nil {
		t.Fatal("Import() into missing notebook should fail")
	}
}

type countingEmbedder struct {
	calls int
	fail  bool
}

func (c *countingEmbedder) Embed(ctx context.Context, itemID string, kind storage.ItemKind) ([]storage.EmbeddingRecord, error) {
	c.calls++
	if c.fail {
		return nil, os.ErrDeadlineExceeded
	}
	return nil, nil
}

func TestImportEmbedFlag(t *testing.T) {
	db := newTestDB(t)
	nb := createNotebook(t, db)

	root := t.TempDir()
	writeFile(t, root, "a.md", "# A\nbody")
	writeFile(t, root, "b.md", "# B\nbody")

	embedder := &countingEmbedder{}
	im := New(storage.NewNotebookRepo(db), storage.NewItemRepo(db), embedder)
	result, err := im.Import(context.Background(), nb.ID, root, true)
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if embedder.calls != 2 {
		t.Errorf("embedder calls = %d, want one per imported file", embedder.calls)
	}
	if result.Imported != 2 {
		t.Errorf("Imported = %d, want 2", result.Imported)
	}
}

func TestImportEmbedFailureStillImports(t *testing.T) {
	db := newTestDB(t)
	nb := createNotebook(t, db)

	root := t.TempDir()
	writeFile(t, root, "a.md", "# A\nbody")

	im := New(storage.NewNotebookRepo(db), storage.NewItemRepo(db), &countingEmbedder{fail: true})
	result, err := im.Import(context.Background(), nb.ID, root, true)
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if result.Imported != 1 {
		t.Errorf("Imported = %d, want 1 despite embed failure", result.Imported)
	}
}
