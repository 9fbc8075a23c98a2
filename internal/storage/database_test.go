package storage

import (
	"path/filepath"
	"testing"
)

func TestNewAndMigrate(t *testing.T) {
	db := newTestDB(t)

	// Migrate must be idempotent
	if err := Migrate(db); err != nil {
		t.Fatalf("second Migrate() failed: %v", err)
	}

	// All tables exist
	tables := []string{"notebooks", "items", "embeddings", "embedding_versions", "model_bindings", "vector_points"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found after Migrate: %v", table, err)
		}
	}

	var name string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE name='items_fts'").Scan(&name)
	if err != nil {
		t.Errorf("full-text table items_fts not found after Migrate: %v", err)
	}
}

func TestNewInvalidPath(t *testing.T) {
	_, err := New(filepath.Join("/nonexistent-dir-for-test", "x", "y.db"))
	if err == nil {
		t.Fatal("New() with invalid path should fail")
	}
}
