// Package importer ingests markdown files from a local directory as sources.
package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"notebook-ai/internal/contextutil"
	"notebook-ai/internal/embedding"
	"notebook-ai/internal/storage"
)

// ScannedFile is a markdown file found during a directory scan.
type ScannedFile struct {
	RelPath string // Relative path from the import root, forward slashes.
	AbsPath string
}

// Result summarizes one import run. Files that could not be read are skipped
// and counted rather than failing the run.
type Result struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	ItemIDs  []string `json:"item_ids"`
}

// ErrBadRoot marks an import root that does not exist or is not a directory.
var ErrBadRoot = errors.New("invalid import root")

// ItemEmbedder embeds an imported item. Satisfied by *embedding.Service.
type ItemEmbedder interface {
	Embed(ctx context.Context, itemID string, kind storage.ItemKind) ([]storage.EmbeddingRecord, error)
}

// Importer creates source items from markdown files on disk.
type Importer struct {
	notebooks storage.NotebookStore
	items     storage.ItemStore
	embedder  ItemEmbedder
}

// New creates an importer. embedder may be nil; imports then skip embedding.
func New(notebooks storage.NotebookStore, items storage.ItemStore, embedder ItemEmbedder) *Importer {
	return &Importer{
		notebooks: notebooks,
		items:     items,
		embedder:  embedder,
	}
}

// Scan walks root and returns every markdown file under it, skipping hidden
// directories (".obsidian" and friends).
func Scan(ctx context.Context, root string) ([]ScannedFile, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrBadRoot, root)
	}

	var files []ScannedFile
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access path %s: %w", path, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".md" {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
		}
		files = append(files, ScannedFile{
			RelPath: filepath.ToSlash(relPath),
			AbsPath: path,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Import scans root and creates one source item per markdown file found.
// Titles come from the file's first heading, falling back to the filename.
// When embed is true each imported item is embedded; embedding failures are
// logged and do not fail the import.
// Returns storage.ErrNotFound when the notebook does not exist.
func (im *Importer) Import(ctx context.Context, notebookID, root string, embed bool) (*Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if _, err := im.notebooks.GetByID(ctx, notebookID); err != nil {
		return nil, err
	}

	files, err := Scan(ctx, root)
	if err != nil {
		return nil, err
	}

	result := &Result{ItemIDs: []string{}}
	for _, file := range files {
		raw, err := os.ReadFile(file.AbsPath)
		if err != nil {
			logger.WarnContext(ctx, "skipping unreadable file", "path", file.RelPath, "error", err)
			result.Skipped++
			continue
		}
		content := string(raw)
		if strings.TrimSpace(content) == "" {
			result.Skipped++
			continue
		}

		fallback := strings.TrimSuffix(filepath.Base(file.RelPath), ".md")
		item := &storage.Item{
			ID:         uuid.New().String(),
			NotebookID: notebookID,
			Kind:       storage.KindSource,
			Title:      embedding.ExtractTitle(content, fallback),
			Content:    content,
		}
		if err := im.items.Create(ctx, item); err != nil {
			return result, fmt.Errorf("failed to import %s: %w", file.RelPath, err)
		}
		result.Imported++
		result.ItemIDs = append(result.ItemIDs, item.ID)

		if embed && im.embedder != nil {
			if _, err := im.embedder.Embed(ctx, item.ID, storage.KindSource); err != nil {
				logger.WarnContext(ctx, "failed to embed imported file",
					"path", file.RelPath, "item_id", item.ID, "error", err)
			}
		}
	}

	logger.InfoContext(ctx, "import completed",
		"notebook_id", notebookID, "imported", result.Imported, "skipped", result.Skipped)
	return result, nil
}
