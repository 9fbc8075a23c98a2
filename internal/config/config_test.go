package config

import (
	"os"
	"testing"
)

// setEnv sets an environment variable, ignoring errors (for test setup)
func setEnv(key, value string) {
	_ = os.Setenv(key, value)
}

// unsetEnv unsets an environment variable, ignoring errors (for test cleanup)
func unsetEnv(key string) {
	_ = os.Unsetenv(key)
}

func TestLoad(t *testing.T) {
	// Save original env vars
	originalEnv := make(map[string]string)
	envVars := []string{
		"EMBEDDING_VECTOR_SIZE", "LLM_BASE_URL", "LLM_API_KEY",
		"STRATEGY_MODEL", "ANSWER_MODEL", "FINAL_ANSWER_MODEL",
		"EMBEDDING_BASE_URL", "EMBEDDING_MODEL_NAME",
		"DB_PATH", "QDRANT_URL", "QDRANT_COLLECTION", "API_PORT",
		"CHUNK_MAX_CHARS", "CHUNK_OVERLAP_CHARS",
		"ASK_MAX_SUBQUERIES", "ASK_MAX_MODEL_CALLS",
		"CONTEXT_MAX_ITEMS", "CONTEXT_MAX_CHARS_PER_ITEM", "CONTEXT_CHAR_BUDGET",
	}
	for _, key := range envVars {
		originalEnv[key] = os.Getenv(key)
		unsetEnv(key)
	}
	defer func() {
		for key, value := range originalEnv {
			if value != "" {
				setEnv(key, value)
			} else {
				unsetEnv(key)
			}
		}
	}()

	tests := []struct {
		name        string
		setupEnv    func(*testing.T)
		wantErr     bool
		checkConfig func(*Config) bool
	}{
		{
			name: "valid config with required fields",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_VECTOR_SIZE", "768")
				setEnv("DB_PATH", t.TempDir()+"/test.db")
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.EmbeddingVectorSize == 768 &&
					cfg.ChunkMaxChars == 1000 &&
					cfg.ChunkOverlapChars == 100 &&
					cfg.MaxSubQueries == 5
			},
		},
		{
			name:     "missing EMBEDDING_VECTOR_SIZE",
			setupEnv: func(t *testing.T) {},
			wantErr:  true,
		},
		{
			name: "invalid EMBEDDING_VECTOR_SIZE",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_VECTOR_SIZE", "not-a-number")
			},
			wantErr: true,
		},
		{
			name: "negative EMBEDDING_VECTOR_SIZE",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_VECTOR_SIZE", "-1")
			},
			wantErr: true,
		},
		{
			name: "overlap must be smaller than chunk size",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_VECTOR_SIZE", "768")
				setEnv("CHUNK_MAX_CHARS", "200")
				setEnv("CHUNK_OVERLAP_CHARS", "200")
			},
			wantErr: true,
		},
		{
			name: "custom chunking knobs",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_VECTOR_SIZE", "384")
				setEnv("DB_PATH", t.TempDir()+"/test.db")
				setEnv("CHUNK_MAX_CHARS", "500")
				setEnv("CHUNK_OVERLAP_CHARS", "50")
				setEnv("ASK_MAX_SUBQUERIES", "3")
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.ChunkMaxChars == 500 &&
					cfg.ChunkOverlapChars == 50 &&
					cfg.MaxSubQueries == 3
			},
		},
		{
			name: "invalid ASK_MAX_MODEL_CALLS",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_VECTOR_SIZE", "768")
				setEnv("ASK_MAX_MODEL_CALLS", "0")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear env vars between cases
			for _, key := range envVars {
				unsetEnv(key)
			}
			tt.setupEnv(t)

			cfg, err := Load()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if tt.checkConfig != nil && !tt.checkConfig(cfg) {
				t.Errorf("Load() config check failed: %+v", cfg)
			}
		})
	}
}
