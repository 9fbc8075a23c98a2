package search

import (
	"errors"

	"notebook-ai/internal/storage"
)

// Mode selects the retrieval strategy for a search call.
type Mode string

const (
	// ModeText searches the lexical index only.
	ModeText Mode = "text"
	// ModeVector embeds the query and searches stored vectors by cosine similarity.
	ModeVector Mode = "vector"
)

// Valid reports whether m is a known search mode.
func (m Mode) Valid() bool {
	return m == ModeText || m == ModeVector
}

// Scope restricts a search to item kinds.
type Scope struct {
	Sources bool
	Notes   bool
}

// Empty reports whether the scope excludes everything.
func (s Scope) Empty() bool {
	return !s.Sources && !s.Notes
}

// Kinds returns the item kinds included in the scope.
func (s Scope) Kinds() []storage.ItemKind {
	var kinds []storage.ItemKind
	if s.Sources {
		kinds = append(kinds, storage.KindSource)
	}
	if s.Notes {
		kinds = append(kinds, storage.KindNote)
	}
	return kinds
}

// Result is one ranked search hit. Score is normalized to [0,1] within a
// single call and is not comparable across calls.
type Result struct {
	ItemID  string           `json:"item_id"`
	Kind    storage.ItemKind `json:"kind"`
	Title   string           `json:"title"`
	Excerpt string           `json:"excerpt"`
	Score   float64          `json:"score"`
	Rank    int              `json:"rank"`
}

// ErrInvalidQuery is returned for an empty query string or unknown mode.
// A scope excluding both sources and notes is not an error; the engine
// returns an empty result set for it.
var ErrInvalidQuery = errors.New("invalid search query")
