package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_notebook_store.go -package=mocks notebook-ai/internal/storage NotebookStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// NotebookStore defines the interface for notebook storage operations.
type NotebookStore interface {
	// Create inserts a new notebook. The notebook.ID must be set before calling.
	Create(ctx context.Context, nb *Notebook) error
	// GetByID gets a notebook by its ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*Notebook, error)
	// List returns all notebooks ordered by updated_at descending.
	List(ctx context.Context) ([]Notebook, error)
	// Update replaces name and description and bumps updated_at.
	Update(ctx context.Context, nb *Notebook) error
	// Delete removes a notebook and everything it owns (items, index entries,
	// embeddings, vector points) in one transaction.
	Delete(ctx context.Context, id string) error
}

// NotebookRepo provides methods for notebook operations.
// It implements the NotebookStore interface.
type NotebookRepo struct {
	db *sql.DB
}

// NewNotebookRepo creates a new NotebookRepo.
func NewNotebookRepo(db *sql.DB) *NotebookRepo {
	return &NotebookRepo{db: db}
}

// Create inserts a new notebook.
func (r *NotebookRepo) Create(ctx context.Context, nb *Notebook) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO notebooks (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		nb.ID, nb.Name, nb.Description, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notebook: %w", err)
	}
	nb.CreatedAt, _ = time.Parse(timeLayout, now)
	nb.UpdatedAt = nb.CreatedAt
	return nil
}

// GetByID gets a notebook by its ID. Returns ErrNotFound if not found.
func (r *NotebookRepo) GetByID(ctx context.Context, id string) (*Notebook, error) {
	var nb Notebook
	var createdAtStr, updatedAtStr string

	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, description, created_at, updated_at FROM notebooks WHERE id = ?",
		id,
	).Scan(&nb.ID, &nb.Name, &nb.Description, &createdAtStr, &updatedAtStr)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query notebook: %w", err)
	}

	nb.CreatedAt, _ = time.Parse(timeLayout, createdAtStr)
	nb.UpdatedAt, _ = time.Parse(timeLayout, updatedAtStr)
	return &nb, nil
}

// List returns all notebooks ordered by updated_at descending, then id ascending.
func (r *NotebookRepo) List(ctx context.Context) ([]Notebook, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, description, created_at, updated_at FROM notebooks ORDER BY updated_at DESC, id ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notebooks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var notebooks []Notebook
	for rows.Next() {
		var nb Notebook
		var createdAtStr, updatedAtStr string
		if err := rows.Scan(&nb.ID, &nb.Name, &nb.Description, &createdAtStr, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan notebook: %w", err)
		}
		nb.CreatedAt, _ = time.Parse(timeLayout, createdAtStr)
		nb.UpdatedAt, _ = time.Parse(timeLayout, updatedAtStr)
		notebooks = append(notebooks, nb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notebooks: %w", err)
	}

	return notebooks, nil
}

// Update replaces name and description and bumps updated_at.
func (r *NotebookRepo) Update(ctx context.Context, nb *Notebook) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := r.db.ExecContext(ctx,
		"UPDATE notebooks SET name = ?, description = ?, updated_at = ? WHERE id = ?",
		nb.Name, nb.Description, now, nb.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update notebook: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	nb.UpdatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// Delete removes a notebook and everything it owns in one transaction.
func (r *NotebookRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Clean up per-item state that is not covered by the foreign-key cascade.
	cleanups := []string{
		"DELETE FROM items_fts WHERE item_id IN (SELECT id FROM items WHERE notebook_id = ?)",
		"DELETE FROM embeddings WHERE item_id IN (SELECT id FROM items WHERE notebook_id = ?)",
		"DELETE FROM embedding_versions WHERE item_id IN (SELECT id FROM items WHERE notebook_id = ?)",
		"DELETE FROM vector_points WHERE item_id IN (SELECT id FROM items WHERE notebook_id = ?)",
		"DELETE FROM items WHERE notebook_id = ?",
	}
	for _, stmt := range cleanups {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("failed to clean up notebook items: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM notebooks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete notebook: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit notebook delete: %w", err)
	}
	return nil
}
