// Package assembler selects and bounds the set of item excerpts a chat or
// answer call sees for a notebook. Assembly is deterministic: the same
// notebook contents and configuration always produce the same bundle.
package assembler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"notebook-ai/internal/contextutil"
	"notebook-ai/internal/storage"
)

// Config bounds one assembly call.
type Config struct {
	MaxItems        int  `json:"max_items"`
	MaxCharsPerItem int  `json:"max_chars_per_item"`
	IncludeNotes    bool `json:"include_notes"`
	IncludeSources  bool `json:"include_sources"`
	RecencyBias     bool `json:"recency_bias"`
}

// Excerpt is one bounded slice of an item's text with its attribution.
type Excerpt struct {
	ItemID string           `json:"item_id"`
	Kind   storage.ItemKind `json:"kind"`
	Title  string           `json:"title"`
	Text   string           `json:"text"`
}

// Bundle is the assembled context for one chat or ask call. Ephemeral.
type Bundle struct {
	NotebookID string    `json:"notebook_id"`
	Excerpts   []Excerpt `json:"excerpts"`
	CharCount  int       `json:"char_count"`
	Config     Config    `json:"config"`
}

// Assembler builds context bundles from notebook items.
type Assembler struct {
	notebooks  storage.NotebookStore
	items      storage.ItemStore
	charBudget int
}

// New creates an assembler. charBudget is the global character cap across all
// excerpts in one bundle.
func New(notebooks storage.NotebookStore, items storage.ItemStore, charBudget int) *Assembler {
	return &Assembler{
		notebooks:  notebooks,
		items:      items,
		charBudget: charBudget,
	}
}

// Assemble gathers items in the notebook per the configuration, truncates each
// excerpt, and accumulates until MaxItems or the global character budget binds.
// Returns storage.ErrNotFound when the notebook does not exist.
func (a *Assembler) Assemble(ctx context.Context, notebookID string, cfg Config) (*Bundle, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if _, err := a.notebooks.GetByID(ctx, notebookID); err != nil {
		return nil, err
	}

	items, err := a.gather(ctx, notebookID, cfg)
	if err != nil {
		return nil, err
	}

	// Recency bias ranks by last update; the default is notebook insertion
	// order. Both tie-break on item ID so assembly stays reproducible.
	if cfg.RecencyBias {
		sort.SliceStable(items, func(i, j int) bool {
			if items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
				return items[i].ID < items[j].ID
			}
			return items[i].UpdatedAt.After(items[j].UpdatedAt)
		})
	} else {
		sort.SliceStable(items, func(i, j int) bool {
			if items[i].CreatedAt.Equal(items[j].CreatedAt) {
				return items[i].ID < items[j].ID
			}
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		})
	}

	bundle := &Bundle{
		NotebookID: notebookID,
		Excerpts:   []Excerpt{},
		Config:     cfg,
	}
	for _, item := range items {
		if cfg.MaxItems > 0 && len(bundle.Excerpts) == cfg.MaxItems {
			break
		}

		text := truncate(item.Content, cfg.MaxCharsPerItem)
		if text == "" {
			continue
		}
		// the global budget binds whole excerpts; a partial excerpt would
		// change shape whenever unrelated items change
		if a.charBudget > 0 && bundle.CharCount+len([]rune(text)) > a.charBudget {
			break
		}

		bundle.Excerpts = append(bundle.Excerpts, Excerpt{
			ItemID: item.ID,
			Kind:   item.Kind,
			Title:  item.Title,
			Text:   text,
		})
		bundle.CharCount += len([]rune(text))
	}

	logger.DebugContext(ctx, "context assembled",
		"notebook_id", notebookID, "excerpts", len(bundle.Excerpts), "chars", bundle.CharCount)
	return bundle, nil
}

func (a *Assembler) gather(ctx context.Context, notebookID string, cfg Config) ([]storage.Item, error) {
	var items []storage.Item
	if cfg.IncludeSources {
		sources, err := a.items.ListByNotebook(ctx, notebookID, storage.KindSource)
		if err != nil {
			return nil, fmt.Errorf("failed to list sources: %w", err)
		}
		items = append(items, sources...)
	}
	if cfg.IncludeNotes {
		notes, err := a.items.ListByNotebook(ctx, notebookID, storage.KindNote)
		if err != nil {
			return nil, fmt.Errorf("failed to list notes: %w", err)
		}
		items = append(items, notes...)
	}
	return items, nil
}

// truncate bounds text to max runes, preferring a sentence boundary, then a
// word boundary. It never cuts mid-word unless the text is one unbroken word.
func truncate(text string, max int) string {
	text = strings.TrimSpace(text)
	if max <= 0 {
		return text
	}

	runes := []rune(text)
	if len(runes) <= max {
		return text
	}

	cut := max
	if sentence := lastSentenceEnd(runes, max); sentence > 0 {
		cut = sentence
	} else if word := lastWordEnd(runes, max); word > 0 {
		cut = word
	}
	return strings.TrimSpace(string(runes[:cut]))
}

func lastSentenceEnd(runes []rune, end int) int {
	for i := end - 1; i > 0; i-- {
		if !unicode.IsSpace(runes[i]) {
			continue
		}
		switch runes[i-1] {
		case '.', '!', '?':
			return i
		}
	}
	return 0
}

func lastWordEnd(runes []rune, end int) int {
	for i := end; i > 0; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i - 1
		}
	}
	return 0
}
