package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_binding_store.go -package=mocks notebook-ai/internal/storage BindingStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// BindingStore defines the interface for model binding lookups.
// Bindings map logical roles (embedding, strategy, answer, final_answer)
// to a provider and model name.
type BindingStore interface {
	// Get returns the binding for a role. Returns ErrNotFound if unset.
	Get(ctx context.Context, role string) (*ModelBinding, error)
	// Set inserts or replaces the binding for a role.
	Set(ctx context.Context, b *ModelBinding) error
	// List returns all configured bindings ordered by role.
	List(ctx context.Context) ([]ModelBinding, error)
}

// BindingRepo provides methods for model binding operations.
// It implements the BindingStore interface.
type BindingRepo struct {
	db *sql.DB
}

// NewBindingRepo creates a new BindingRepo.
func NewBindingRepo(db *sql.DB) *BindingRepo {
	return &BindingRepo{db: db}
}

// Get returns the binding for a role. Returns ErrNotFound if unset.
func (r *BindingRepo) Get(ctx context.Context, role string) (*ModelBinding, error) {
	var b ModelBinding
	err := r.db.QueryRowContext(ctx,
		"SELECT role, provider, model FROM model_bindings WHERE role = ?",
		role,
	).Scan(&b.Role, &b.Provider, &b.Model)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query model binding: %w", err)
	}
	return &b, nil
}

// Set inserts or replaces the binding for a role.
func (r *BindingRepo) Set(ctx context.Context, b *ModelBinding) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO model_bindings (role, provider, model) VALUES (?, ?, ?)
		 ON CONFLICT(role) DO UPDATE SET provider = excluded.provider, model = excluded.model`,
		b.Role, b.Provider, b.Model,
	)
	if err != nil {
		return fmt.Errorf("failed to set model binding: %w", err)
	}
	return nil
}

// List returns all configured bindings ordered by role.
func (r *BindingRepo) List(ctx context.Context) ([]ModelBinding, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT role, provider, model FROM model_bindings ORDER BY role ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list model bindings: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var bindings []ModelBinding
	for rows.Next() {
		var b ModelBinding
		if err := rows.Scan(&b.Role, &b.Provider, &b.Model); err != nil {
			return nil, fmt.Errorf("failed to scan model binding: %w", err)
		}
		bindings = append(bindings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate model bindings: %w", err)
	}
	return bindings, nil
}
