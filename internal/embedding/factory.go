package embedding

import (
	"fmt"

	"github.com/hyperjump/tanya/internal/config"
)

// Embedding backends selectable in configuration.
const (
	BackendONNX   = "onnx"
	BackendOllama = "ollama"
	BackendMock   = "mock"
)

// New builds the configured embedder, wrapped in an LRU cache and a timeout guard.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	var base Embedder
	window := 1
	switch cfg.Backend {
	case BackendOllama, "":
		base = NewOllamaEmbedder(OllamaConfig{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Timeout:     cfg.Timeout,
			Dimensions:  cfg.Dimensions,
			Concurrency: cfg.Concurrency,
		})
		window = cfg.Concurrency
	case BackendONNX:
		e, err := NewONNXEmbedder(ONNXConfig{
			ModelPath:  cfg.ModelPath,
			Dimensions: cfg.Dimensions,
			MaxTokens:  cfg.MaxTokens,
			OutputName: cfg.OutputName,
			Pooling:    cfg.Pooling,
			TextPrefix: cfg.TextPrefix,
		})
		if err != nil {
			return nil, err
		}
		base = e
	case BackendMock:
		base = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding backend: %s (supported: onnx, ollama, mock)", cfg.Backend)
	}
	if cfg.CacheSize > 0 {
		base = NewCachedEmbedder(base, cfg.CacheSize)
	}
	return WithTimeout(base, cfg.Timeout, WithWindow(window)), nil
}
