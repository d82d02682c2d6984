// internal/rag/types.go
// Package rag implements the retrieval-augmented generation pipeline:
// embedding, a persisted cosine-similarity index, prompt assembly, and the
// query-to-answer orchestration shared by the CLI and web surfaces.
package rag

import "context"

// Chunk is a bounded span of document text, the unit indexed and retrieved.
type Chunk struct {
	Doc    string // source document name
	Index  int    // sequence position within the document
	Offset int    // rune offset of the chunk start in the document
	Text   string
	Tokens int // whitespace-token count, used for context budgeting
}

// IndexEntry is a single indexed chunk with its embedding.
type IndexEntry struct {
	ChunkID    string    `json:"chunk_id"`
	Doc        string    `json:"doc"`
	Offset     int       `json:"offset"`
	Text       string    `json:"text"`
	Embedding  []float64 `json:"embedding"`
	TokenCount int       `json:"token_count"`
}

// RetrievedChunk is a chunk plus similarity score.
type RetrievedChunk struct {
	Entry IndexEntry
	Score float64
}

// Embedder maps a text span to a fixed-length vector. The dimension must
// match between index-build time and query time.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Dimension() int
	Model() string
}

// Generator produces text from an assembled prompt, either whole or as a
// stream of fragments delivered through onFragment in generation order.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Stream(ctx context.Context, prompt string, onFragment func(fragment string) error) error
	Ping(ctx context.Context) error
}
