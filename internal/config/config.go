// Package config provides configuration loading and structs for tanya.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	LLM       LLMConfig       `yaml:"llm"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
}

// CorpusConfig describes the document folder that grounds answers.
type CorpusConfig struct {
	Directory string   `yaml:"directory"`
	Recursive bool     `yaml:"recursive"`
	Exclude   []string `yaml:"exclude"`
}

// StorageConfig holds paths for the ledger database, the index, and CLI session files.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	IndexPath    string `yaml:"index_path"`
	SessionsPath string `yaml:"sessions_path"`
}

// EmbeddingConfig selects and configures the embedding model.
type EmbeddingConfig struct {
	// Backend is "onnx", "ollama", or "mock".
	Backend     string        `yaml:"backend"`
	Model       string        `yaml:"model"`
	ModelPath   string        `yaml:"model_path"`
	BaseURL     string        `yaml:"base_url"`
	Dimensions  int           `yaml:"dimensions"`
	MaxTokens   int           `yaml:"max_tokens"`
	// OutputName, Pooling and TextPrefix describe an ONNX model's graph; see embedding.ONNXConfig.
	OutputName  string        `yaml:"output_name"`
	Pooling     string        `yaml:"pooling"`
	TextPrefix  string        `yaml:"text_prefix"`
	CacheSize   int           `yaml:"cache_size"`
	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int           `yaml:"concurrency"`
}

// IndexConfig configures the vector index and retrieval.
type IndexConfig struct {
	// Type is "memory" or "faiss".
	Type string `yaml:"type"`
	TopK int    `yaml:"top_k"`
	// Mode is "similarity" (vector only) or "hybrid" (vector fused with keyword search).
	Mode           string  `yaml:"mode"`
	KeywordWeight  float64 `yaml:"keyword_weight"`
	SemanticWeight float64 `yaml:"semantic_weight"`
}

// ChunkingConfig holds the splitter window (characters).
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// LLMConfig configures the chat model.
type LLMConfig struct {
	Backend     string        `yaml:"backend"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float64       `yaml:"temperature"`
}

// PipelineConfig controls the conversational retrieval pipeline.
type PipelineConfig struct {
	// ContextualizeEmptyHistory calls the rewriting model even when there is no history.
	ContextualizeEmptyHistory bool `yaml:"contextualize_empty_history"`
	// RefuseOnEmptyContext answers with the refusal message without calling the model
	// when retrieval returns nothing. Pointer so an explicit false survives defaults.
	RefuseOnEmptyContext *bool `yaml:"refuse_on_empty_context"`
	// MaxContextTokens caps the retrieved context injected into the prompt; 0 disables the cap.
	MaxContextTokens int `yaml:"max_context_tokens"`
	// Refresh is "always" (ingest on every turn) or "watch" (ingest after corpus changes).
	Refresh string `yaml:"refresh"`
}

// RefuseOnEmptyContextOrDefault returns whether to refuse without a model call; defaults to true.
func (p *PipelineConfig) RefuseOnEmptyContextOrDefault() bool {
	if p.RefuseOnEmptyContext != nil {
		return *p.RefuseOnEmptyContext
	}
	return true
}

// Load reads and parses the config file at path, applies environment overrides, expands paths,
// and applies defaults. A .env file next to the config is loaded first when present.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	envFile := filepath.Join(configDir, ".env")
	if _, statErr := os.Stat(envFile); statErr == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)

	cfg.Corpus.Directory = expandPath(cfg.Corpus.Directory, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	cfg.Storage.SessionsPath = expandPath(cfg.Storage.SessionsPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Environment variables that override file values.
const (
	EnvDebug            = "TANYA_DEBUG"
	EnvCorpusDir        = "TANYA_CORPUS_DIR"
	EnvOllamaURL        = "TANYA_OLLAMA_URL"
	EnvLLMModel         = "TANYA_LLM_MODEL"
	EnvEmbeddingBackend = "TANYA_EMBEDDING_BACKEND"
	EnvEmbeddingModel   = "TANYA_EMBEDDING_MODEL"
)

// ApplyEnv overrides cfg with any TANYA_* environment variables that are set.
func ApplyEnv(cfg *Config) {
	if v, ok := os.LookupEnv(EnvDebug); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
	if v := os.Getenv(EnvCorpusDir); v != "" {
		cfg.Corpus.Directory = v
	}
	if v := os.Getenv(EnvOllamaURL); v != "" {
		cfg.LLM.BaseURL = v
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv(EnvLLMModel); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv(EnvEmbeddingBackend); v != "" {
		cfg.Embedding.Backend = v
	}
	if v := os.Getenv(EnvEmbeddingModel); v != "" {
		cfg.Embedding.Model = v
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
