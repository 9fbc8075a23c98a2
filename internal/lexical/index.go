// Package lexical provides full-text search over notebook items using the
// items_fts FTS5 table. Item writes keep the index in sync transactionally
// (see storage.ItemRepo); this package owns querying and standalone re-index.
package lexical

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode"

	"notebook-ai/internal/contextutil"
	"notebook-ai/internal/storage"
)

// Match is one ranked full-text match. Score is a relevance value where
// higher is better (negated bm25); it is only meaningful within one call.
type Match struct {
	ItemID    string
	Kind      storage.ItemKind
	Title     string
	Excerpt   string
	Score     float64
	UpdatedAt time.Time
}

// Index queries and maintains the full-text index.
type Index struct {
	db *sql.DB
}

// NewIndex creates a lexical index over the given database.
func NewIndex(db *sql.DB) *Index {
	return &Index{db: db}
}

// Index upserts the full-text entry for an item.
func (x *Index) Index(ctx context.Context, item *storage.Item) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM items_fts WHERE item_id = ?", item.ID); err != nil {
		return fmt.Errorf("failed to clear index entry: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO items_fts (item_id, kind, title, content) VALUES (?, ?, ?, ?)",
		item.ID, string(item.Kind), item.Title, item.Content,
	)
	if err != nil {
		return fmt.Errorf("failed to insert index entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit index entry: %w", err)
	}
	return nil
}

// Delete removes the full-text entry for an item.
func (x *Index) Delete(ctx context.Context, itemID string) error {
	if _, err := x.db.ExecContext(ctx, "DELETE FROM items_fts WHERE item_id = ?", itemID); err != nil {
		return fmt.Errorf("failed to delete index entry: %w", err)
	}
	return nil
}

// Search returns up to limit matches ranked by bm25, ties broken by item
// update time descending then item ID ascending. kinds filters to the given
// item kinds; empty means both. The join on items guarantees a deleted item
// can never surface through a leftover index row.
func (x *Index) Search(ctx context.Context, query string, limit int, kinds []storage.ItemKind) ([]Match, error) {
	logger := contextutil.LoggerFromContext(ctx)

	match := buildMatchQuery(query)
	if match == "" || limit <= 0 {
		return []Match{}, nil
	}

	sqlQuery := `
		SELECT f.item_id, i.kind, i.title, snippet(items_fts, 3, '', '', ' … ', 24), bm25(items_fts), i.updated_at
		FROM items_fts f
		JOIN items i ON i.id = f.item_id
		WHERE items_fts MATCH ?`
	args := []any{match}

	if len(kinds) > 0 {
		placeholders := make([]string, len(kinds))
		for i, kind := range kinds {
			placeholders[i] = "?"
			args = append(args, string(kind))
		}
		sqlQuery += " AND i.kind IN (" + strings.Join(placeholders, ", ") + ")"
	}

	sqlQuery += " ORDER BY bm25(items_fts) ASC, i.updated_at DESC, i.id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := x.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	matches := []Match{}
	for rows.Next() {
		var m Match
		var kind, updatedAtStr string
		var bm25 float64
		if err := rows.Scan(&m.ItemID, &kind, &m.Title, &m.Excerpt, &bm25, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		m.Kind = storage.ItemKind(kind)
		// bm25 is lower-is-better; flip so callers can rank descending
		m.Score = -bm25
		m.UpdatedAt, _ = time.Parse("2006-01-02 15:04:05", updatedAtStr)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate matches: %w", err)
	}

	logger.DebugContext(ctx, "lexical search completed", "terms", match, "results", len(matches))
	return matches, nil
}

// buildMatchQuery turns free text into an FTS5 MATCH expression. Terms are
// reduced to word characters and quoted so user input cannot inject FTS5
// syntax; terms are OR-ed so partial matches still rank.
func buildMatchQuery(query string) string {
	fields := strings.Fields(query)
	terms := make([]string, 0, len(fields))
	for _, field := range fields {
		term := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
				return r
			}
			return -1
		}, field)
		if term == "" {
			continue
		}
		terms = append(terms, `"`+term+`"`)
	}
	return strings.Join(terms, " OR ")
}
