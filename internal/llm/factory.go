package llm

import (
	"fmt"

	"github.com/hyperjump/tanya/internal/config"
)

// Model backends selectable in configuration.
const (
	BackendOllama = "ollama"
	BackendMock   = "mock"
)

// New builds the configured chat model wrapped in a timeout guard. The mock backend echoes the
// user message and is meant for offline runs.
func New(cfg config.LLMConfig) (Model, error) {
	var base Model
	switch cfg.Backend {
	case BackendOllama, "":
		base = NewOllamaModel(OllamaConfig{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		})
	case BackendMock:
		base = NewMockModel(func(req Request) (string, error) { return req.User, nil })
	default:
		return nil, fmt.Errorf("unknown llm backend: %s (supported: ollama, mock)", cfg.Backend)
	}
	return WithTimeout(base, cfg.Timeout), nil
}
