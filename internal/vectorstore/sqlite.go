package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// SQLiteStore implements VectorStore on the local SQLite database, with
// similarity computed in process. It is the default store when no Qdrant
// instance is configured and carries the full load in tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore returns a VectorStore backed by the given *sql.DB.
// The vector_points table must already exist (storage.Migrate creates it).
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Upsert inserts or replaces points by ID.
func (s *SQLiteStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, point := range points {
		vecJSON, err := json.Marshal(point.Vec)
		if err != nil {
			return fmt.Errorf("failed to marshal vector: %w", err)
		}
		// delete-then-insert for idempotency
		if _, err := tx.ExecContext(ctx, "DELETE FROM vector_points WHERE id = ?", point.ID); err != nil {
			return fmt.Errorf("failed to clear point: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO vector_points (id, item_id, kind, model, dim, vector) VALUES (?, ?, ?, ?, ?, ?)",
			point.ID, point.ItemID, point.Kind, point.Model, len(point.Vec), string(vecJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to insert point: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit points: %w", err)
	}
	return nil
}

// QueryTopK returns the k nearest points by cosine similarity.
// Filtering by dimension avoids mixing models with different vector sizes.
func (s *SQLiteStore) QueryTopK(ctx context.Context, query []float32, model string, scope Scope, k int) ([]Hit, error) {
	if len(query) == 0 || k <= 0 {
		return nil, nil
	}
	if scope.Empty() {
		return []Hit{}, nil
	}

	sqlQuery := "SELECT id, item_id, kind, vector FROM vector_points WHERE model = ? AND dim = ?"
	args := []any{model, len(query)}
	switch {
	case scope.Sources && !scope.Notes:
		sqlQuery += " AND kind = 'source'"
	case scope.Notes && !scope.Sources:
		sqlQuery += " AND kind = 'note'"
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var hits []Hit
	for rows.Next() {
		var id, itemID, kind, vecStr string
		if err := rows.Scan(&id, &itemID, &kind, &vecStr); err != nil {
			return nil, fmt.Errorf("failed to scan point: %w", err)
		}
		var vec []float32
		if err := json.Unmarshal([]byte(vecStr), &vec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal vector: %w", err)
		}
		hits = append(hits, Hit{PointID: id, ItemID: itemID, Score: cosine(query, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate points: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score == hits[j].Score {
			return hits[i].ItemID < hits[j].ItemID
		}
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Delete removes points by their IDs.
func (s *SQLiteStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM vector_points WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete point: %w", err)
		}
	}
	return nil
}

// cosine computes cosine similarity between two vectors of equal length.
func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
