package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"notebook-ai/internal/ask"
	"notebook-ai/internal/assembler"
	"notebook-ai/internal/config"
	"notebook-ai/internal/embedding"
	"notebook-ai/internal/http"
	"notebook-ai/internal/importer"
	"notebook-ai/internal/lexical"
	"notebook-ai/internal/llm"
	"notebook-ai/internal/search"
	"notebook-ai/internal/storage"
	"notebook-ai/internal/vectorstore"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	// Create repository instances
	notebookRepo := storage.NewNotebookRepo(db)
	itemRepo := storage.NewItemRepo(db)
	embeddingRepo := storage.NewEmbeddingRepo(db)
	bindingRepo := storage.NewBindingRepo(db)

	ctx := context.Background()

	// Seed model bindings from the environment for roles not yet configured.
	// Bindings set through the API take precedence on later runs.
	seedBindings(ctx, bindingRepo, cfg)

	// Pick the vector store: Qdrant when configured, embedded SQLite otherwise
	var vectorStore vectorstore.VectorStore
	if cfg.QdrantURL != "" {
		qdrantStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL, cfg.QdrantCollection)
		if err != nil {
			log.Fatalf("Failed to create Qdrant client: %v", err)
		}
		if err := qdrantStore.EnsureCollection(ctx, cfg.EmbeddingVectorSize); err != nil {
			log.Fatalf("Failed to ensure Qdrant collection: %v", err)
		}
		slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.EmbeddingVectorSize)
		vectorStore = qdrantStore
	} else {
		vectorStore = vectorstore.NewSQLiteStore(db)
		slog.Info("Using embedded SQLite vector store")
	}

	// Embedding client and chunk pipeline
	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.EmbeddingVectorSize)
	chunker := embedding.NewChunker(cfg.ChunkMaxChars, cfg.ChunkOverlapChars)
	embedService := embedding.NewService(itemRepo, embeddingRepo, bindingRepo, vectorStore, embedder, chunker)

	// Search engine over the lexical index and the vector store
	lexicalIndex := lexical.NewIndex(db)
	engine := search.NewEngine(lexicalIndex, vectorStore, embeddingRepo, itemRepo, bindingRepo, embedder)

	// Context assembler and ask pipeline
	ctxAssembler := assembler.New(notebookRepo, itemRepo, cfg.ContextCharBudget)
	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.AnswerModelName)
	pipeline := ask.NewPipeline(llmClient, engine, ctxAssembler, notebookRepo, bindingRepo, cfg.MaxSubQueries, cfg.MaxModelCalls)
	slog.Info("Ask pipeline initialized", "max_sub_queries", cfg.MaxSubQueries, "max_model_calls", cfg.MaxModelCalls)

	// Markdown directory importer
	mdImporter := importer.New(notebookRepo, itemRepo, embedService)

	// Create router with dependencies
	deps := &http.Deps{
		DB:         db,
		Notebooks:  notebookRepo,
		Items:      itemRepo,
		Embeddings: embeddingRepo,
		Bindings:   bindingRepo,
		Embedder:   embedService,
		Engine:     engine,
		Assembler:  ctxAssembler,
		Pipeline:   pipeline,
		Importer:   mdImporter,
	}
	router := http.NewRouter(deps)

	// Start API server
	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "embedding_model", cfg.EmbeddingModelName)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}

// seedBindings fills in model bindings from the environment for any role that
// has none persisted yet.
func seedBindings(ctx context.Context, bindings storage.BindingStore, cfg *config.Config) {
	defaults := []storage.ModelBinding{
		{Role: storage.RoleEmbedding, Provider: "openai-compatible", Model: cfg.EmbeddingModelName},
		{Role: storage.RoleStrategy, Provider: "openai-compatible", Model: cfg.StrategyModelName},
		{Role: storage.RoleAnswer, Provider: "openai-compatible", Model: cfg.AnswerModelName},
		{Role: storage.RoleFinalAnswer, Provider: "openai-compatible", Model: cfg.FinalModelName},
	}
	for _, b := range defaults {
		if b.Model == "" {
			continue
		}
		_, err := bindings.Get(ctx, b.Role)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			slog.Warn("Failed to check model binding", "role", b.Role, "error", err)
			continue
		}
		binding := b
		if err := bindings.Set(ctx, &binding); err != nil {
			slog.Warn("Failed to seed model binding", "role", b.Role, "error", err)
			continue
		}
		slog.Info("Seeded model binding", "role", b.Role, "model", b.Model)
	}
}
