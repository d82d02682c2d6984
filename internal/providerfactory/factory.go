// internal/providerfactory/factory.go
// Package providerfactory builds the embedding and generation backends
// selected by the configuration.
package providerfactory

import (
	"github.com/ragline/ragline/internal/appconfig"
	"github.com/ragline/ragline/internal/providers/ollama"
	"github.com/ragline/ragline/internal/providers/openai"
	"github.com/ragline/ragline/internal/rag"
)

// backend is satisfied by both provider implementations.
type backend interface {
	rag.Embedder
	rag.Generator
}

// New returns the embedder and generator for the configured backend.
func New(cfg appconfig.Config) (rag.Embedder, rag.Generator, error) {
	var b backend
	switch cfg.Backend {
	case "openai":
		p, err := openai.New(openai.Config{
			BaseURL:       cfg.BackendURL,
			GenerateModel: cfg.GenerateModel,
			EmbedModel:    cfg.EmbeddingModel,
			APIKeyEnv:     cfg.APIKeyEnv,
			Timeout:       cfg.RequestTimeout(),
		})
		if err != nil {
			return nil, nil, err
		}
		b = p
	default:
		b = ollama.New(ollama.Config{
			BaseURL:       cfg.BackendURL,
			GenerateModel: cfg.GenerateModel,
			EmbedModel:    cfg.EmbeddingModel,
			Timeout:       cfg.RequestTimeout(),
			EmbedTimeout:  cfg.EmbedTimeout(),
		})
	}
	return b, b, nil
}
