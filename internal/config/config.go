package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	LLMBaseURL          string
	LLMAPIKey           string
	StrategyModelName   string
	AnswerModelName     string
	FinalModelName      string
	EmbeddingBaseURL    string
	EmbeddingModelName  string
	EmbeddingVectorSize int
	DBPath              string
	QdrantURL           string // Empty means the SQLite vector store is used instead.
	QdrantCollection    string
	APIPort             string
	LogLevel            slog.Level
	LogFormat           string // "text" or "json"

	// Chunking and retrieval tuning.
	ChunkMaxChars     int // Max characters per embedding chunk.
	ChunkOverlapChars int // Overlap between adjacent chunks.
	MaxSubQueries     int // Sanity cap on strategy sub-queries.
	MaxModelCalls     int // Concurrent model call limit for the ask pipeline.

	// Context assembly budgets.
	ContextMaxItems        int
	ContextMaxCharsPerItem int
	ContextCharBudget      int
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	// Check current directory first, then walk up to find project root (where go.mod is)
	_ = godotenv.Load() // Try current directory

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break // Reached filesystem root
			}
			dir = parent
		}
	}

	cfg := &Config{
		LLMBaseURL:         getEnv("LLM_BASE_URL", "http://localhost:8080"),
		LLMAPIKey:          getEnv("LLM_API_KEY", "dummy-key"),
		StrategyModelName:  getEnv("STRATEGY_MODEL", "Llama-3.1-8B-Instruct"),
		AnswerModelName:    getEnv("ANSWER_MODEL", "Llama-3.1-8B-Instruct"),
		FinalModelName:     getEnv("FINAL_ANSWER_MODEL", "Llama-3.1-8B-Instruct"),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "granite-embedding-278m-multilingual"),
		DBPath:             getEnv("DB_PATH", "./data/notebook-ai.db"),
		QdrantURL:          getEnv("QDRANT_URL", ""),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "notebook_chunks"),
		APIPort:            getEnv("API_PORT", "9000"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
	}

	cfg.LogLevel, err = parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	// EMBEDDING_VECTOR_SIZE must match the output vector size of the embeddings model.
	// If the vector size changes, stored embeddings must be rebuilt.
	vectorSizeStr := getEnv("EMBEDDING_VECTOR_SIZE", "")
	if vectorSizeStr == "" {
		return nil, fmt.Errorf("EMBEDDING_VECTOR_SIZE is required")
	}
	vectorSize, err := strconv.Atoi(vectorSizeStr)
	if err != nil {
		return nil, fmt.Errorf("EMBEDDING_VECTOR_SIZE must be a valid integer: %w", err)
	}
	if vectorSize <= 0 {
		return nil, fmt.Errorf("EMBEDDING_VECTOR_SIZE must be greater than 0")
	}
	cfg.EmbeddingVectorSize = vectorSize

	cfg.ChunkMaxChars, err = getEnvInt("CHUNK_MAX_CHARS", 1000)
	if err != nil {
		return nil, err
	}
	// Default overlap is 10% of the chunk bound so context survives chunk boundaries.
	cfg.ChunkOverlapChars, err = getEnvInt("CHUNK_OVERLAP_CHARS", cfg.ChunkMaxChars/10)
	if err != nil {
		return nil, err
	}
	if cfg.ChunkOverlapChars >= cfg.ChunkMaxChars {
		return nil, fmt.Errorf("CHUNK_OVERLAP_CHARS (%d) must be smaller than CHUNK_MAX_CHARS (%d)",
			cfg.ChunkOverlapChars, cfg.ChunkMaxChars)
	}

	cfg.MaxSubQueries, err = getEnvInt("ASK_MAX_SUBQUERIES", 5)
	if err != nil {
		return nil, err
	}
	cfg.MaxModelCalls, err = getEnvInt("ASK_MAX_MODEL_CALLS", 4)
	if err != nil {
		return nil, err
	}

	cfg.ContextMaxItems, err = getEnvInt("CONTEXT_MAX_ITEMS", 10)
	if err != nil {
		return nil, err
	}
	cfg.ContextMaxCharsPerItem, err = getEnvInt("CONTEXT_MAX_CHARS_PER_ITEM", 2000)
	if err != nil {
		return nil, err
	}
	cfg.ContextCharBudget, err = getEnvInt("CONTEXT_CHAR_BUDGET", 12000)
	if err != nil {
		return nil, err
	}

	// Create ./data directory if it doesn't exist (for the DB file)
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// parseLogLevel maps a LOG_LEVEL value to a slog level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", level)
	}
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value.
func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return n, nil
}
