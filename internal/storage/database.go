package storage

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// New opens a SQLite database connection at the given path.
// It enables foreign keys and sets connection pool settings.
func New(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys (disabled by default in SQLite)
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate runs database migrations to create the required tables.
// It is idempotent and can be run multiple times safely.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS notebooks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS items (
			id TEXT PRIMARY KEY,
			notebook_id TEXT NOT NULL,
			kind TEXT NOT NULL CHECK (kind IN ('source', 'note')),
			note_type TEXT NOT NULL DEFAULT '',
			topics TEXT NOT NULL DEFAULT '[]',
			title TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (notebook_id) REFERENCES notebooks(id) ON DELETE CASCADE
		);`,
		// Full-text index over item title and content. Maintained in the same
		// transaction as item writes; search joins back to items so a deleted
		// item can never surface through a stale index row.
		`CREATE VIRTUAL TABLE IF NOT EXISTS items_fts USING fts5(
			item_id UNINDEXED,
			kind UNINDEXED,
			title,
			content
		);`,
		// One row per embedded chunk. version groups the chunks produced by a
		// single embed call; embedding_versions points at the version readers see.
		`CREATE TABLE IF NOT EXISTS embeddings (
			id TEXT PRIMARY KEY,
			item_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			model TEXT NOT NULL,
			version INTEGER NOT NULL,
			chunk_index INTEGER NOT NULL,
			chunk_text TEXT NOT NULL,
			dim INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_embeddings_item_model ON embeddings(item_id, model, version);`,
		`CREATE TABLE IF NOT EXISTS embedding_versions (
			item_id TEXT NOT NULL,
			model TEXT NOT NULL,
			version INTEGER NOT NULL,
			PRIMARY KEY (item_id, model)
		);`,
		`CREATE TABLE IF NOT EXISTS model_bindings (
			role TEXT PRIMARY KEY,
			provider TEXT NOT NULL,
			model TEXT NOT NULL
		);`,
		// Vector storage for the SQLite-backed vector store. The qdrant store
		// keeps its points server-side instead.
		`CREATE TABLE IF NOT EXISTS vector_points (
			id TEXT PRIMARY KEY,
			item_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			model TEXT NOT NULL,
			dim INTEGER NOT NULL,
			vector TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_vector_points_model_dim ON vector_points(model, dim);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
