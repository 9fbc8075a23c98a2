package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks notebook-ai/internal/vectorstore VectorStore

import "context"

// Point represents a vector point for one embedded chunk.
// The point ID equals the embedding record ID in storage.
type Point struct {
	ID     string
	ItemID string
	Kind   string // "source" or "note"
	Model  string
	Vec    []float32
}

// Scope restricts a query to item kinds.
type Scope struct {
	Sources bool
	Notes   bool
}

// Empty reports whether the scope excludes everything.
func (s Scope) Empty() bool {
	return !s.Sources && !s.Notes
}

// Hit represents a single vector search hit.
type Hit struct {
	PointID string
	ItemID  string
	Score   float32
}

// VectorStore defines the interface for vector storage operations.
type VectorStore interface {
	// Upsert inserts or replaces points by ID.
	Upsert(ctx context.Context, points []Point) error

	// QueryTopK returns the k nearest points by cosine similarity for the given
	// model, restricted to the scope. Ties are broken by item ID ascending.
	QueryTopK(ctx context.Context, query []float32, model string, scope Scope, k int) ([]Hit, error)

	// Delete removes points by their IDs. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error
}
