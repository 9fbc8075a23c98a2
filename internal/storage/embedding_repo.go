package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedding_store.go -package=mocks notebook-ai/internal/storage EmbeddingStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// EmbeddingStore defines the interface for embedding record storage.
type EmbeddingStore interface {
	// ReplaceForItem atomically replaces all records for an (item, model) pair.
	// Records are written under a new version and the current-version pointer is
	// swapped in the same transaction, so readers always see a complete set.
	// Returns the IDs of the replaced records so callers can garbage-collect
	// vector store points lazily.
	ReplaceForItem(ctx context.Context, itemID string, model string, records []EmbeddingRecord) (stale []string, err error)
	// ListCurrent returns the current-version records for an (item, model) pair,
	// ordered by chunk index. Returns an empty slice when nothing is embedded.
	ListCurrent(ctx context.Context, itemID string, model string) ([]EmbeddingRecord, error)
	// GetCurrentByID returns a record by ID only if it belongs to its item's
	// current version. Returns ErrNotFound for stale or unknown IDs.
	GetCurrentByID(ctx context.Context, id string) (*EmbeddingRecord, error)
	// CountCurrentByItem returns the number of current-version chunks for an item
	// across all models.
	CountCurrentByItem(ctx context.Context, itemID string) (int, error)
}

// EmbeddingRepo provides methods for embedding record operations.
// It implements the EmbeddingStore interface.
type EmbeddingRepo struct {
	db *sql.DB
}

// NewEmbeddingRepo creates a new EmbeddingRepo.
func NewEmbeddingRepo(db *sql.DB) *EmbeddingRepo {
	return &EmbeddingRepo{db: db}
}

// ReplaceForItem atomically replaces all records for an (item, model) pair.
func (r *EmbeddingRepo) ReplaceForItem(ctx context.Context, itemID string, model string, records []EmbeddingRecord) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Current version, 0 when the pair has never been embedded.
	var current int
	err = tx.QueryRowContext(ctx,
		"SELECT version FROM embedding_versions WHERE item_id = ? AND model = ?",
		itemID, model,
	).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query embedding version: %w", err)
	}
	next := current + 1

	// Collect the IDs being replaced before removing the rows.
	var stale []string
	rows, err := tx.QueryContext(ctx,
		"SELECT id FROM embeddings WHERE item_id = ? AND model = ?",
		itemID, model,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale records: %w", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan stale record: %w", err)
		}
		stale = append(stale, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("failed to iterate stale records: %w", err)
	}
	_ = rows.Close()

	now := time.Now().UTC().Format(timeLayout)
	for i := range records {
		rec := &records[i]
		rec.Version = next
		_, err = tx.ExecContext(ctx,
			"INSERT INTO embeddings (id, item_id, kind, model, version, chunk_index, chunk_text, dim, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			rec.ID, rec.ItemID, string(rec.Kind), rec.Model, rec.Version, rec.ChunkIndex, rec.ChunkText, rec.Dim, now,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert embedding record: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(timeLayout, now)
	}

	// Swap the current-version pointer.
	_, err = tx.ExecContext(ctx,
		`INSERT INTO embedding_versions (item_id, model, version) VALUES (?, ?, ?)
		 ON CONFLICT(item_id, model) DO UPDATE SET version = excluded.version`,
		itemID, model, next,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to swap embedding version: %w", err)
	}

	// Old rows can go in the same transaction; external vector stores are
	// cleaned up lazily by the caller using the returned IDs.
	_, err = tx.ExecContext(ctx,
		"DELETE FROM embeddings WHERE item_id = ? AND model = ? AND version < ?",
		itemID, model, next,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to delete stale records: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit embedding replace: %w", err)
	}
	return stale, nil
}

// ListCurrent returns the current-version records for an (item, model) pair.
func (r *EmbeddingRepo) ListCurrent(ctx context.Context, itemID string, model string) ([]EmbeddingRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT e.id, e.item_id, e.kind, e.model, e.version, e.chunk_index, e.chunk_text, e.dim, e.created_at
		 FROM embeddings e
		 JOIN embedding_versions v ON v.item_id = e.item_id AND v.model = e.model AND v.version = e.version
		 WHERE e.item_id = ? AND e.model = ?
		 ORDER BY e.chunk_index ASC`,
		itemID, model,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list embedding records: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanRecords(rows)
}

// GetCurrentByID returns a record by ID only if it belongs to the current version.
func (r *EmbeddingRepo) GetCurrentByID(ctx context.Context, id string) (*EmbeddingRecord, error) {
	var rec EmbeddingRecord
	var kind, createdAtStr string

	err := r.db.QueryRowContext(ctx,
		`SELECT e.id, e.item_id, e.kind, e.model, e.version, e.chunk_index, e.chunk_text, e.dim, e.created_at
		 FROM embeddings e
		 JOIN embedding_versions v ON v.item_id = e.item_id AND v.model = e.model AND v.version = e.version
		 WHERE e.id = ?`,
		id,
	).Scan(&rec.ID, &rec.ItemID, &kind, &rec.Model, &rec.Version, &rec.ChunkIndex, &rec.ChunkText, &rec.Dim, &createdAtStr)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query embedding record: %w", err)
	}

	rec.Kind = ItemKind(kind)
	rec.CreatedAt, _ = time.Parse(timeLayout, createdAtStr)
	return &rec, nil
}

// CountCurrentByItem returns the number of current-version chunks for an item.
func (r *EmbeddingRepo) CountCurrentByItem(ctx context.Context, itemID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*)
		 FROM embeddings e
		 JOIN embedding_versions v ON v.item_id = e.item_id AND v.model = e.model AND v.version = e.version
		 WHERE e.item_id = ?`,
		itemID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count embedding records: %w", err)
	}
	return count, nil
}

func scanRecords(rows *sql.Rows) ([]EmbeddingRecord, error) {
	records := []EmbeddingRecord{}
	for rows.Next() {
		var rec EmbeddingRecord
		var kind, createdAtStr string
		if err := rows.Scan(&rec.ID, &rec.ItemID, &kind, &rec.Model, &rec.Version, &rec.ChunkIndex, &rec.ChunkText, &rec.Dim, &createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan embedding record: %w", err)
		}
		rec.Kind = ItemKind(kind)
		rec.CreatedAt, _ = time.Parse(timeLayout, createdAtStr)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate embedding records: %w", err)
	}
	return records, nil
}
