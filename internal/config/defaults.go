package config

import "time"

// Defaults for the splitter and retriever.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 100
	DefaultTopK         = 3
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Corpus.Directory == "" {
		cfg.Corpus.Directory = "./documents"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./data/tanya.db"
	}
	if cfg.Storage.IndexPath == "" {
		cfg.Storage.IndexPath = "./vector_db"
	}
	if cfg.Storage.SessionsPath == "" {
		cfg.Storage.SessionsPath = "./data/sessions"
	}
	if cfg.Embedding.Backend == "" {
		cfg.Embedding.Backend = "ollama"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "nomic-embed-text"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "./data/models/all-indo-e5-small-v4.onnx"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "http://localhost:11434"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 768
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}
	if cfg.Embedding.Concurrency == 0 {
		cfg.Embedding.Concurrency = 4
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "memory"
	}
	if cfg.Index.TopK == 0 {
		cfg.Index.TopK = DefaultTopK
	}
	if cfg.Index.Mode == "" {
		cfg.Index.Mode = "similarity"
	}
	if cfg.Index.KeywordWeight == 0 && cfg.Index.SemanticWeight == 0 {
		cfg.Index.KeywordWeight = 0.3
		cfg.Index.SemanticWeight = 0.7
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = DefaultChunkSize
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = DefaultChunkOverlap
	}
	if cfg.LLM.Backend == "" {
		cfg.LLM.Backend = "ollama"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "http://localhost:11434"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "qwen2.5:3b"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 120 * time.Second
	}
	if cfg.Pipeline.Refresh == "" {
		cfg.Pipeline.Refresh = "always"
	}
}
