package search

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_engine.go -package=mocks notebook-ai/internal/search Engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"notebook-ai/internal/contextutil"
	"notebook-ai/internal/embedding"
	"notebook-ai/internal/lexical"
	"notebook-ai/internal/llm"
	"notebook-ai/internal/storage"
	"notebook-ai/internal/vectorstore"
)

const (
	defaultLimit = 10
	// oversample factor for vector queries so collapse-to-best-chunk and
	// stale-point filtering still leave enough candidates
	vectorOversample = 4
)

// Engine merges lexical and vector retrieval behind one search call.
type Engine interface {
	// Search returns up to limit ranked results for the query.
	// Returns ErrInvalidQuery for a blank query or unknown mode. An empty
	// scope yields an empty result set with a nil error.
	Search(ctx context.Context, query string, mode Mode, limit int, scope Scope) ([]Result, error)
}

// hybridEngine implements the Engine interface.
type hybridEngine struct {
	lexical  *lexical.Index
	vectors  vectorstore.VectorStore
	records  storage.EmbeddingStore
	items    storage.ItemStore
	bindings storage.BindingStore
	embedder embedding.Embedder
}

// NewEngine creates a hybrid search engine.
func NewEngine(
	lexicalIndex *lexical.Index,
	vectors vectorstore.VectorStore,
	records storage.EmbeddingStore,
	items storage.ItemStore,
	bindings storage.BindingStore,
	embedder embedding.Embedder,
) Engine {
	return &hybridEngine{
		lexical:  lexicalIndex,
		vectors:  vectors,
		records:  records,
		items:    items,
		bindings: bindings,
		embedder: embedder,
	}
}

func (e *hybridEngine) Search(ctx context.Context, query string, mode Mode, limit int, scope Scope) ([]Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidQuery)
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidQuery, mode)
	}
	if scope.Empty() {
		logger.DebugContext(ctx, "search scope excludes all kinds", "query", query)
		return []Result{}, nil
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	var results []Result
	var err error
	switch mode {
	case ModeText:
		results, err = e.searchText(ctx, query, limit, scope)
	case ModeVector:
		results, err = e.searchVector(ctx, query, limit, scope)
	}
	if err != nil {
		return nil, err
	}

	normalizeScores(results)
	for i := range results {
		results[i].Rank = i + 1
	}

	logger.InfoContext(ctx, "search completed", "mode", mode, "query", query, "results", len(results))
	return results, nil
}

func (e *hybridEngine) searchText(ctx context.Context, query string, limit int, scope Scope) ([]Result, error) {
	matches, err := e.lexical.Search(ctx, query, limit, scope.Kinds())
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		results = append(results, Result{
			ItemID:  m.ItemID,
			Kind:    m.Kind,
			Title:   m.Title,
			Excerpt: m.Excerpt,
			Score:   m.Score,
		})
	}
	return results, nil
}

func (e *hybridEngine) searchVector(ctx context.Context, query string, limit int, scope Scope) ([]Result, error) {
	binding, err := e.bindings.Get(ctx, storage.RoleEmbedding)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: no embedding model configured", llm.ErrModelUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up embedding binding: %w", err)
	}

	vectors, err := e.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 query vector, got %d", len(vectors))
	}

	hits, err := e.vectors.QueryTopK(ctx, vectors[0], binding.Model, vectorstore.Scope{
		Sources: scope.Sources,
		Notes:   scope.Notes,
	}, limit*vectorOversample)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}

	// Hits arrive score-descending. Resolving each through the current-version
	// records drops stale points and deleted items; keeping only the first hit
	// per item collapses multiple chunks to the item's best one.
	seen := make(map[string]bool)
	results := make([]Result, 0, limit)
	for _, hit := range hits {
		if len(results) == limit {
			break
		}
		if seen[hit.ItemID] {
			continue
		}

		record, err := e.records.GetCurrentByID(ctx, hit.PointID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve hit: %w", err)
		}

		item, err := e.items.GetByID(ctx, record.ItemID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load item: %w", err)
		}

		seen[hit.ItemID] = true
		results = append(results, Result{
			ItemID:  item.ID,
			Kind:    item.Kind,
			Title:   item.Title,
			Excerpt: record.ChunkText,
			Score:   float64(hit.Score),
		})
	}
	return results, nil
}

// normalizeScores rescales scores to [0,1] within one call, preserving order.
// A single result, or a set of equal scores, normalizes to 1.
func normalizeScores(results []Result) {
	if len(results) == 0 {
		return
	}

	minScore, maxScore := results[0].Score, results[0].Score
	for _, r := range results[1:] {
		if r.Score < minScore {
			minScore = r.Score
		}
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}

	if maxScore == minScore {
		for i := range results {
			results[i].Score = 1
		}
		return
	}
	for i := range results {
		results[i].Score = (results[i].Score - minScore) / (maxScore - minScore)
	}
}
