package storage

import "time"

// ItemKind distinguishes the two kinds of content items a notebook holds.
type ItemKind string

const (
	// KindSource is ingested external content (link, upload, pasted text).
	KindSource ItemKind = "source"
	// KindNote is user- or AI-authored text.
	KindNote ItemKind = "note"
)

// Valid reports whether k is a known item kind.
func (k ItemKind) Valid() bool {
	return k == KindSource || k == KindNote
}

// Notebook groups sources and notes.
type Notebook struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Item is a content item (source or note) owned by a notebook.
// All core algorithms operate on the shared fields and branch only on Kind.
type Item struct {
	ID         string // UUID
	NotebookID string
	Kind       ItemKind
	// NoteType distinguishes human-authored from AI-authored notes.
	// Empty for sources.
	NoteType  string
	Topics    []string
	Title     string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Note type values.
const (
	NoteTypeHuman = "human"
	NoteTypeAI    = "ai"
)

// EmbeddingRecord is one embedded chunk of an item under a specific model.
// Its ID doubles as the vector store point ID.
type EmbeddingRecord struct {
	ID         string // UUID (same as vector point ID)
	ItemID     string
	Kind       ItemKind
	Model      string
	Version    int
	ChunkIndex int
	ChunkText  string
	Dim        int
	CreatedAt  time.Time
}

// ModelBinding maps a logical model role to a provider and model name.
type ModelBinding struct {
	Role     string // e.g. "embedding", "strategy", "answer", "final_answer"
	Provider string
	Model    string
}

// Model role constants used by the ask pipeline and embedding service.
const (
	RoleEmbedding   = "embedding"
	RoleStrategy    = "strategy"
	RoleAnswer      = "answer"
	RoleFinalAnswer = "final_answer"
)
