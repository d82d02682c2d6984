// internal/commands/pipeline.go
package commands

import (
	"context"

	"github.com/ragline/ragline/internal/appconfig"
	"github.com/ragline/ragline/internal/cache"
	"github.com/ragline/ragline/internal/providerfactory"
	"github.com/ragline/ragline/internal/rag"
)

// buildPipeline loads the persisted index and assembles the query pipeline
// for the configured backend.
func buildPipeline(ctx context.Context, cfg *appconfig.Config) (*rag.Pipeline, error) {
	embedder, generator, err := providerfactory.New(*cfg)
	if err != nil {
		return nil, err
	}

	index, err := rag.LoadIndex(ctx, cfg.IndexDir, embedder)
	if err != nil {
		return nil, err
	}

	var responses *cache.Cache
	if cfg.EnableCache {
		responses = cache.New(cfg.CacheTTL())
	}

	return rag.NewPipeline(embedder, index, generator, responses, rag.PipelineOptions{
		SearchK:           cfg.SearchK,
		ContextTokenLimit: cfg.ContextTokenLimit,
		MinQueryLength:    cfg.MinQueryLength,
		MaxQueryLength:    cfg.MaxQueryLength,
		RetryAttempts:     cfg.RetryAttempts(),
		RetryBaseDelay:    cfg.RetryDelay(),
	}), nil
}
