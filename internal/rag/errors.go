// internal/rag/errors.go
package rag

import "fmt"

// ConfigError indicates a fatal configuration or resource problem that
// prevents startup or ingestion. The message names the offending key or path.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

// NewConfigError builds a ConfigError with a formatted message.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// LoadError indicates a single document failed to load. Ingestion logs it
// and moves on to the next file.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load %s: %v", e.Path, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// ValidationError indicates a user query was rejected before reaching the
// pipeline. Its message is safe to show to the user.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// DimensionMismatchError indicates a persisted index was built with a
// different embedding dimension than the configured embedder produces.
type DimensionMismatchError struct {
	IndexDim    int
	EmbedderDim int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("index embedding dimension %d does not match embedder dimension %d; re-run ingest with the current embedding model", e.IndexDim, e.EmbedderDim)
}

// RetrievalError wraps an embedding or index-search failure. The caller
// decides whether to retry the whole query.
type RetrievalError struct {
	Stage string // "embed" or "search"
	Err   error
}

func (e *RetrievalError) Error() string { return fmt.Sprintf("retrieval (%s): %v", e.Stage, e.Err) }
func (e *RetrievalError) Unwrap() error { return e.Err }

// GenerationError indicates the generation backend failed after the
// configured number of retry attempts.
type GenerationError struct {
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed after %d attempts: %v", e.Attempts, e.Err)
}
func (e *GenerationError) Unwrap() error { return e.Err }
