package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"notebook-ai/internal/contextutil"
	"notebook-ai/internal/llm"
	"notebook-ai/internal/storage"
	"notebook-ai/internal/vectorstore"
)

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedder.go -package=mocks notebook-ai/internal/embedding Embedder

// Embedder produces one vector per input text. Satisfied by llm.EmbeddingsClient.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Service turns an item's text into embedded chunks and keeps the embedding
// records and vector store points in sync.
type Service struct {
	items    storage.ItemStore
	records  storage.EmbeddingStore
	bindings storage.BindingStore
	vectors  vectorstore.VectorStore
	embedder Embedder
	chunker  *Chunker

	// Serializes embedding replacement per (item, model) pair so a concurrent
	// re-embed cannot interleave with an in-flight replace.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates an embedding service.
func NewService(items storage.ItemStore, records storage.EmbeddingStore, bindings storage.BindingStore, vectors vectorstore.VectorStore, embedder Embedder, chunker *Chunker) *Service {
	return &Service{
		items:    items,
		records:  records,
		bindings: bindings,
		vectors:  vectors,
		embedder: embedder,
		chunker:  chunker,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Embed chunks the item's text, embeds each chunk with the configured
// embedding model, and atomically replaces any prior records for the
// (item, model) pair. Re-embedding the same item is idempotent.
//
// Returns storage.ErrNotFound when the item does not exist (or its kind does
// not match the given kind), llm.ErrModelUnavailable when no embedding model
// is configured, and llm.ErrTransient after one internal retry for upstream
// failures.
func (s *Service) Embed(ctx context.Context, itemID string, kind storage.ItemKind) ([]storage.EmbeddingRecord, error) {
	logger := contextutil.LoggerFromContext(ctx)

	binding, err := s.bindings.Get(ctx, storage.RoleEmbedding)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: no embedding model configured", llm.ErrModelUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up embedding binding: %w", err)
	}

	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if kind != "" && item.Kind != kind {
		return nil, storage.ErrNotFound
	}

	chunks := s.chunker.Chunk(PlainText(item.Content))

	var vectors [][]float32
	if len(chunks) > 0 {
		vectors, err = s.embedChunks(ctx, chunks)
		if err != nil {
			return nil, err
		}
	}

	records := make([]storage.EmbeddingRecord, len(chunks))
	points := make([]vectorstore.Point, len(chunks))
	for i, chunk := range chunks {
		id := uuid.New().String()
		records[i] = storage.EmbeddingRecord{
			ID:         id,
			ItemID:     item.ID,
			Kind:       item.Kind,
			Model:      binding.Model,
			ChunkIndex: i,
			ChunkText:  chunk,
			Dim:        len(vectors[i]),
		}
		points[i] = vectorstore.Point{
			ID:     id,
			ItemID: item.ID,
			Kind:   string(item.Kind),
			Model:  binding.Model,
			Vec:    vectors[i],
		}
	}

	unlock := s.lock(item.ID, binding.Model)
	defer unlock()

	stale, err := s.records.ReplaceForItem(ctx, item.ID, binding.Model, records)
	if err != nil {
		return nil, fmt.Errorf("failed to replace embedding records: %w", err)
	}

	if err := s.vectors.Upsert(ctx, points); err != nil {
		return nil, fmt.Errorf("failed to upsert vectors: %w", err)
	}

	// Stale points are garbage, not state: readers only resolve hits through
	// current-version records, so a failed cleanup here is retried on the
	// next replace rather than failing the embed.
	if len(stale) > 0 {
		if err := s.vectors.Delete(ctx, stale); err != nil {
			logger.WarnContext(ctx, "failed to delete stale vector points", "item_id", item.ID, "count", len(stale), "error", err)
		}
	}

	logger.InfoContext(ctx, "embedded item", "item_id", item.ID, "kind", item.Kind, "model", binding.Model, "chunks", len(records))
	return records, nil
}

// embedChunks calls the embedder, retrying once on a transient failure.
func (s *Service) embedChunks(ctx context.Context, chunks []string) ([][]float32, error) {
	logger := contextutil.LoggerFromContext(ctx)

	vectors, err := s.embedder.EmbedTexts(ctx, chunks)
	if err != nil && errors.Is(err, llm.ErrTransient) && ctx.Err() == nil {
		logger.WarnContext(ctx, "transient embedding failure, retrying", "error", err)
		vectors, err = s.embedder.EmbedTexts(ctx, chunks)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	return vectors, nil
}

func (s *Service) lock(itemID, model string) func() {
	key := itemID + "\x00" + model
	s.mu.Lock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m.Unlock
}
