// internal/rag/pipeline.go
package rag

import (
	"context"
	"errors"
	"time"

	"github.com/ragline/ragline/internal/cache"
	"github.com/ragline/ragline/internal/logging"
)

// PipelineOptions fix the per-process pipeline policy.
type PipelineOptions struct {
	SearchK           int
	ContextTokenLimit int
	MinQueryLength    int
	MaxQueryLength    int
	RetryAttempts     int
	RetryBaseDelay    time.Duration
}

// Pipeline composes the embedder, index, and generation backend into one
// query-to-answer operation. It is immutable after construction and safe
// to share across concurrent requests.
type Pipeline struct {
	embedder  Embedder
	index     *Index
	generator Generator
	opts      PipelineOptions
	responses *cache.Cache
}

// NewPipeline builds a pipeline. responses may be nil to disable caching.
func NewPipeline(embedder Embedder, index *Index, generator Generator, responses *cache.Cache, opts PipelineOptions) *Pipeline {
	if opts.SearchK <= 0 {
		opts.SearchK = 3
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = time.Second
	}
	return &Pipeline{
		embedder:  embedder,
		index:     index,
		generator: generator,
		opts:      opts,
		responses: responses,
	}
}

// IndexMetadata exposes the metadata of the underlying index.
func (p *Pipeline) IndexMetadata() IndexMetadata {
	return p.index.Metadata()
}

// assemble validates the question, embeds it, retrieves the top-K chunks,
// and returns the generation-ready prompt.
func (p *Pipeline) assemble(ctx context.Context, question string) (string, error) {
	query, err := ValidateQuery(question, p.opts.MinQueryLength, p.opts.MaxQueryLength)
	if err != nil {
		return "", err
	}

	queryVec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return "", &RetrievalError{Stage: "embed", Err: err}
	}

	retrieved := p.index.Search(queryVec, p.opts.SearchK)
	contextText, contextTokens, sources := FormatContext(retrieved, p.opts.ContextTokenLimit)
	logging.LogDebug("[PIPELINE] Retrieved %d chunks (%d tokens, %d sources) for %q", len(retrieved), contextTokens, sources, query)

	return BuildPrompt(contextText, query), nil
}

// Answer runs the full pipeline and blocks until the complete answer is
// available. Transient generation failures are retried with exponential
// backoff before a GenerationError is surfaced.
func (p *Pipeline) Answer(ctx context.Context, question string) (string, error) {
	if p.responses != nil {
		if answer, ok := p.responses.Get(question); ok {
			logging.LogDebug("[PIPELINE] Cache hit for %q", question)
			return answer, nil
		}
	}

	prompt, err := p.assemble(ctx, question)
	if err != nil {
		return "", err
	}

	var answer string
	err = retryWithBackoff(ctx, p.opts.RetryAttempts, p.opts.RetryBaseDelay, func() error {
		var genErr error
		answer, genErr = p.generator.Generate(ctx, prompt)
		return genErr
	})
	if err != nil {
		return "", &GenerationError{Attempts: p.opts.RetryAttempts, Err: err}
	}

	if p.responses != nil {
		p.responses.Set(question, answer)
	}
	return answer, nil
}

// AnswerStream runs the full pipeline and delivers the answer as fragments
// on the returned channel, closed when generation finishes. A single error
// (or nil) is sent on the error channel after the fragment channel closes.
// The stream is not restartable; consuming it twice re-invokes generation.
func (p *Pipeline) AnswerStream(ctx context.Context, question string) (<-chan string, <-chan error) {
	fragments := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(fragments)
		defer close(errs)

		prompt, err := p.assemble(ctx, question)
		if err != nil {
			errs <- err
			return
		}

		emitted := false
		var midStreamErr error
		err = retryWithBackoff(ctx, p.opts.RetryAttempts, p.opts.RetryBaseDelay, func() error {
			streamErr := p.generator.Stream(ctx, prompt, func(fragment string) error {
				emitted = true
				select {
				case fragments <- fragment:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			})
			// Fragments already sent cannot be unsent, so a mid-stream
			// failure is surfaced instead of retried.
			if streamErr != nil && emitted {
				midStreamErr = streamErr
				return nil
			}
			return streamErr
		})
		if err == nil {
			err = midStreamErr
		}
		if err != nil {
			errs <- &GenerationError{Attempts: p.opts.RetryAttempts, Err: err}
		}
	}()

	return fragments, errs
}

// Warmup probes the embedder, index, and generation backend so the first
// real query does not pay model-load latency.
func (p *Pipeline) Warmup(ctx context.Context) error {
	start := time.Now()
	vec, err := p.embedder.Embed(ctx, "warmup probe")
	if err != nil {
		return &RetrievalError{Stage: "embed", Err: err}
	}
	p.index.Search(vec, 1)
	if err := p.generator.Ping(ctx); err != nil {
		return &GenerationError{Attempts: 1, Err: err}
	}
	logging.LogEvent("[PIPELINE] Warmup completed in %s", time.Since(start).Truncate(time.Millisecond))
	return nil
}

// ErrorCategory maps a pipeline error to its metrics label.
func ErrorCategory(err error) string {
	var validationErr *ValidationError
	var retrievalErr *RetrievalError
	var generationErr *GenerationError
	var dimensionErr *DimensionMismatchError
	var configErr *ConfigError
	switch {
	case errors.As(err, &validationErr):
		return "validation"
	case errors.As(err, &retrievalErr):
		return "retrieval"
	case errors.As(err, &generationErr):
		return "generation"
	case errors.As(err, &dimensionErr):
		return "dimension_mismatch"
	case errors.As(err, &configErr):
		return "config"
	default:
		return "other"
	}
}
