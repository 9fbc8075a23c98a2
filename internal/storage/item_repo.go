package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_item_store.go -package=mocks notebook-ai/internal/storage ItemStore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// timeLayout is the DATETIME format SQLite stores by default.
const timeLayout = "2006-01-02 15:04:05"

// ItemStore defines the interface for content item storage operations.
type ItemStore interface {
	// Create inserts a new item. The item.ID must be set (UUID) before calling.
	Create(ctx context.Context, item *Item) error
	// GetByID gets an item by its ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*Item, error)
	// ListByNotebook lists items for a notebook ordered by updated_at descending,
	// then id ascending. kind filters to one item kind; empty means both.
	ListByNotebook(ctx context.Context, notebookID string, kind ItemKind) ([]Item, error)
	// Update replaces the title, topics, and content of an existing item and bumps updated_at.
	Update(ctx context.Context, item *Item) error
	// Delete removes an item and its full-text index entry in one transaction.
	Delete(ctx context.Context, id string) error
}

// ItemRepo provides methods for item operations.
// It implements the ItemStore interface and keeps the items_fts full-text
// table in sync within the same transaction as every item write.
type ItemRepo struct {
	db *sql.DB
}

// NewItemRepo creates a new ItemRepo.
func NewItemRepo(db *sql.DB) *ItemRepo {
	return &ItemRepo{db: db}
}

// Create inserts a new item and indexes it for full-text search.
func (r *ItemRepo) Create(ctx context.Context, item *Item) error {
	if !item.Kind.Valid() {
		return fmt.Errorf("invalid item kind %q", item.Kind)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC().Format(timeLayout)
	_, err = tx.ExecContext(ctx,
		"INSERT INTO items (id, notebook_id, kind, note_type, topics, title, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		item.ID, item.NotebookID, string(item.Kind), item.NoteType, marshalTopics(item.Topics), item.Title, item.Content, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO items_fts (item_id, kind, title, content) VALUES (?, ?, ?, ?)",
		item.ID, string(item.Kind), item.Title, item.Content,
	)
	if err != nil {
		return fmt.Errorf("failed to index item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit item: %w", err)
	}

	item.CreatedAt, _ = time.Parse(timeLayout, now)
	item.UpdatedAt = item.CreatedAt
	return nil
}

// GetByID gets an item by its ID. Returns ErrNotFound if not found.
func (r *ItemRepo) GetByID(ctx context.Context, id string) (*Item, error) {
	var item Item
	var kind, topics, createdAtStr, updatedAtStr string

	err := r.db.QueryRowContext(ctx,
		"SELECT id, notebook_id, kind, note_type, topics, title, content, created_at, updated_at FROM items WHERE id = ?",
		id,
	).Scan(&item.ID, &item.NotebookID, &kind, &item.NoteType, &topics, &item.Title, &item.Content, &createdAtStr, &updatedAtStr)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query item: %w", err)
	}

	item.Kind = ItemKind(kind)
	item.Topics = unmarshalTopics(topics)
	item.CreatedAt, err = time.Parse(timeLayout, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	item.UpdatedAt, err = time.Parse(timeLayout, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return &item, nil
}

// ListByNotebook lists items for a notebook ordered by updated_at descending,
// then id ascending for a stable order within equal timestamps.
func (r *ItemRepo) ListByNotebook(ctx context.Context, notebookID string, kind ItemKind) ([]Item, error) {
	query := "SELECT id, notebook_id, kind, note_type, topics, title, content, created_at, updated_at FROM items WHERE notebook_id = ?"
	args := []any{notebookID}
	if kind != "" {
		if !kind.Valid() {
			return nil, fmt.Errorf("invalid item kind %q", kind)
		}
		query += " AND kind = ?"
		args = append(args, string(kind))
	}
	query += " ORDER BY updated_at DESC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var items []Item
	for rows.Next() {
		var item Item
		var k, topics, createdAtStr, updatedAtStr string
		if err := rows.Scan(&item.ID, &item.NotebookID, &k, &item.NoteType, &topics, &item.Title, &item.Content, &createdAtStr, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		item.Kind = ItemKind(k)
		item.Topics = unmarshalTopics(topics)
		item.CreatedAt, _ = time.Parse(timeLayout, createdAtStr)
		item.UpdatedAt, _ = time.Parse(timeLayout, updatedAtStr)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}

	return items, nil
}

func marshalTopics(topics []string) string {
	if len(topics) == 0 {
		return "[]"
	}
	b, err := json.Marshal(topics)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func unmarshalTopics(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var topics []string
	if err := json.Unmarshal([]byte(raw), &topics); err != nil {
		return nil
	}
	return topics
}

// Update replaces the title, topics, and content of an existing item, bumps updated_at,
// and refreshes the full-text index entry in the same transaction.
func (r *ItemRepo) Update(ctx context.Context, item *Item) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC().Format(timeLayout)
	res, err := tx.ExecContext(ctx,
		"UPDATE items SET title = ?, topics = ?, content = ?, updated_at = ? WHERE id = ?",
		item.Title, marshalTopics(item.Topics), item.Content, now, item.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM items_fts WHERE item_id = ?", item.ID)
	if err != nil {
		return fmt.Errorf("failed to clear item index: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO items_fts (item_id, kind, title, content) VALUES (?, ?, ?, ?)",
		item.ID, string(item.Kind), item.Title, item.Content,
	)
	if err != nil {
		return fmt.Errorf("failed to reindex item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit item update: %w", err)
	}

	item.UpdatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// Delete removes an item, its full-text index entry, and its embedding
// records in one transaction. Returns ErrNotFound if the item does not exist.
func (r *ItemRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, "DELETE FROM items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM items_fts WHERE item_id = ?", id); err != nil {
		return fmt.Errorf("failed to remove item index: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM embeddings WHERE item_id = ?", id); err != nil {
		return fmt.Errorf("failed to remove item embeddings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM embedding_versions WHERE item_id = ?", id); err != nil {
		return fmt.Errorf("failed to remove embedding versions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM vector_points WHERE item_id = ?", id); err != nil {
		return fmt.Errorf("failed to remove vector points: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit item delete: %w", err)
	}
	return nil
}
