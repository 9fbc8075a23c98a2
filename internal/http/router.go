package http

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"notebook-ai/internal/ask"
	"notebook-ai/internal/assembler"
	"notebook-ai/internal/handlers"
	"notebook-ai/internal/importer"
	"notebook-ai/internal/search"
	"notebook-ai/internal/storage"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	DB         *sql.DB
	Notebooks  storage.NotebookStore
	Items      storage.ItemStore
	Embeddings storage.EmbeddingStore
	Bindings   storage.BindingStore
	Embedder   handlers.ItemEmbedder
	Engine     search.Engine
	Assembler  *assembler.Assembler
	Pipeline   *ask.Pipeline
	Importer   *importer.Importer
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(LoggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	healthHandler := handlers.NewHealthHandler(deps.DB)
	notebookHandler := handlers.NewNotebookHandler(deps.Notebooks, deps.Items)
	sourceHandler := handlers.NewItemHandler(storage.KindSource, deps.Items, deps.Notebooks, deps.Embeddings, deps.Embedder)
	noteHandler := handlers.NewItemHandler(storage.KindNote, deps.Items, deps.Notebooks, deps.Embeddings, deps.Embedder)
	contextHandler := handlers.NewContextHandler(deps.Assembler)
	searchHandler := handlers.NewSearchHandler(deps.Engine)
	askHandler := handlers.NewAskHandler(deps.Pipeline)
	embedHandler := handlers.NewEmbedHandler(deps.Embedder)
	modelHandler := handlers.NewModelHandler(deps.Bindings)
	importHandler := handlers.NewImportHandler(deps.Importer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)

		r.Route("/notebooks", func(r chi.Router) {
			r.Post("/", notebookHandler.Create)
			r.Get("/", notebookHandler.List)

			r.Route("/{notebookID}", func(r chi.Router) {
				r.Get("/", notebookHandler.Get)
				r.Put("/", notebookHandler.Update)
				r.Delete("/", notebookHandler.Delete)
				r.Post("/context", contextHandler.Assemble)
				r.Post("/import", importHandler.Import)

				r.Route("/sources", func(r chi.Router) {
					r.Post("/", sourceHandler.Create)
					r.Get("/", sourceHandler.List)
					r.Get("/{itemID}", sourceHandler.Get)
					r.Put("/{itemID}", sourceHandler.Update)
					r.Delete("/{itemID}", sourceHandler.Delete)
				})
				r.Route("/notes", func(r chi.Router) {
					r.Post("/", noteHandler.Create)
					r.Get("/", noteHandler.List)
					r.Get("/{itemID}", noteHandler.Get)
					r.Put("/{itemID}", noteHandler.Update)
					r.Delete("/{itemID}", noteHandler.Delete)
				})
			})
		})

		r.Post("/search", searchHandler.Search)
		r.Post("/ask", askHandler.Ask)
		r.Post("/embed", embedHandler.Embed)

		r.Get("/models", modelHandler.List)
		r.Put("/models", modelHandler.Set)
	})

	return r
}
