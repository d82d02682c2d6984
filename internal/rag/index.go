// internal/rag/index.go
package rag

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ragline/ragline/internal/logging"
)

const (
	indexEntriesFile  = "index.jsonl"
	indexMetadataFile = "metadata.json"
)

// IndexMetadata records what the persisted entries were built with. It is
// validated against metadataSchema before any entry is decoded.
type IndexMetadata struct {
	Dimension  int    `json:"dimension"`
	Model      string `json:"model"`
	EntryCount int    `json:"entry_count"`
	CreatedAt  string `json:"created_at"`
}

// metadataSchema constrains metadata.json. The index directory may have
// been written by another process, so the file set and the metadata are
// checked before deserializing anything; loading never executes code.
const metadataSchema = `{
	"type": "object",
	"required": ["dimension", "model", "entry_count", "created_at"],
	"additionalProperties": false,
	"properties": {
		"dimension":   {"type": "integer", "minimum": 1},
		"model":       {"type": "string", "minLength": 1},
		"entry_count": {"type": "integer", "minimum": 0},
		"created_at":  {"type": "string"}
	}
}`

// Index stores embedded chunks and answers cosine top-k queries. Entries
// are immutable after Build or Load; the lock makes the shared instance
// safe for concurrent searches.
type Index struct {
	mu       sync.RWMutex
	entries  []IndexEntry
	metadata IndexMetadata
}

// BuildIndex embeds every chunk in order and returns a ready index.
// Chunks are processed in their given order so re-ingestion of the same
// input produces an identical index.
func BuildIndex(ctx context.Context, chunks []Chunk, embedder Embedder) (*Index, error) {
	if len(chunks) == 0 {
		return nil, NewConfigError("no chunks to index")
	}

	entries := make([]IndexEntry, 0, len(chunks))
	dimension := 0
	for i, c := range chunks {
		vector, err := embedder.Embed(ctx, c.Text)
		if err != nil {
			return nil, fmt.Errorf("embed chunk %s:%d: %w", c.Doc, c.Index, err)
		}
		if dimension == 0 {
			dimension = len(vector)
		} else if len(vector) != dimension {
			return nil, &DimensionMismatchError{IndexDim: dimension, EmbedderDim: len(vector)}
		}
		entries = append(entries, IndexEntry{
			ChunkID:    fmt.Sprintf("%s:%d", c.Doc, c.Index),
			Doc:        c.Doc,
			Offset:     c.Offset,
			Text:       c.Text,
			Embedding:  vector,
			TokenCount: c.Tokens,
		})
		if (i+1)%25 == 0 {
			logging.LogEvent("[INDEX] Embedded %d/%d chunks", i+1, len(chunks))
		}
	}

	return &Index{
		entries: entries,
		metadata: IndexMetadata{
			Dimension:  dimension,
			Model:      embedder.Model(),
			EntryCount: len(entries),
			CreatedAt:  time.Now().UTC().Format(time.RFC3339),
		},
	}, nil
}

// Save persists the index to dir as a JSONL entry file plus a metadata
// file. The directory is created if needed and replaced wholesale.
func (idx *Index) Save(dir string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	metaData, err := json.MarshalIndent(idx.metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, indexMetadataFile), metaData, 0o644); err != nil {
		return fmt.Errorf("write index metadata: %w", err)
	}

	out, err := os.Create(filepath.Join(dir, indexEntriesFile))
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer out.Close()

	writer := bufio.NewWriter(out)
	encoder := json.NewEncoder(writer)
	encoder.SetEscapeHTML(false)
	for _, entry := range idx.entries {
		if err := encoder.Encode(entry); err != nil {
			return fmt.Errorf("write index entry: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush index: %w", err)
	}
	return nil
}

// LoadIndex restores a persisted index from dir. It validates the expected
// file set and the metadata schema before decoding entries, then verifies
// the embedder produces vectors of the persisted dimension, failing with
// DimensionMismatchError otherwise.
func LoadIndex(ctx context.Context, dir string, embedder Embedder) (*Index, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, NewConfigError("index directory %s does not exist; run ingest first", dir)
	}
	for _, name := range []string{indexMetadataFile, indexEntriesFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return nil, NewConfigError("index directory %s is missing %s; re-run ingest", dir, name)
		}
	}

	metadata, err := loadMetadata(filepath.Join(dir, indexMetadataFile))
	if err != nil {
		return nil, err
	}

	embedderDim := embedder.Dimension()
	if embedderDim == 0 {
		// Lazy-dimension embedders establish their dimension on first use.
		probe, err := embedder.Embed(ctx, "dimension probe")
		if err != nil {
			return nil, &RetrievalError{Stage: "embed", Err: err}
		}
		embedderDim = len(probe)
	}
	if embedderDim != metadata.Dimension {
		return nil, &DimensionMismatchError{IndexDim: metadata.Dimension, EmbedderDim: embedderDim}
	}

	entries, err := loadEntries(filepath.Join(dir, indexEntriesFile), metadata.Dimension)
	if err != nil {
		return nil, err
	}
	if len(entries) != metadata.EntryCount {
		return nil, fmt.Errorf("index %s holds %d entries but metadata records %d", dir, len(entries), metadata.EntryCount)
	}

	logging.LogEvent("[INDEX] Loaded %d entries (dimension %d, model %s)", len(entries), metadata.Dimension, metadata.Model)
	return &Index{entries: entries, metadata: metadata}, nil
}

func loadMetadata(path string) (IndexMetadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return IndexMetadata{}, fmt.Errorf("read index metadata: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(metadataSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return IndexMetadata{}, fmt.Errorf("validate index metadata: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return IndexMetadata{}, fmt.Errorf("index metadata is invalid: %s", strings.Join(problems, "; "))
	}

	var metadata IndexMetadata
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return IndexMetadata{}, fmt.Errorf("parse index metadata: %w", err)
	}
	return metadata, nil
}

func loadEntries(path string, dimension int) ([]IndexEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 8*1024*1024)

	var entries []IndexEntry
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry IndexEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("parse index line %d: %w", lineNo, err)
		}
		if len(entry.Embedding) != dimension {
			return nil, fmt.Errorf("index line %d has dimension %d, metadata records %d", lineNo, len(entry.Embedding), dimension)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	return entries, nil
}

// Metadata returns a copy of the index metadata.
func (idx *Index) Metadata() IndexMetadata {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.metadata
}

// Len returns the number of indexed entries.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Search returns up to k entries ordered by descending cosine similarity
// to the query vector. Fewer than k stored entries returns all of them.
func (idx *Index) Search(queryVec []float64, k int) []RetrievedChunk {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	queryNorm := vectorNorm(queryVec)
	chunks := make([]RetrievedChunk, 0, len(idx.entries))
	for _, entry := range idx.entries {
		if len(entry.Embedding) != len(queryVec) {
			continue
		}
		chunks = append(chunks, RetrievedChunk{
			Entry: entry,
			Score: cosineSimilarity(queryVec, entry.Embedding, queryNorm),
		})
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})

	if k > 0 && k < len(chunks) {
		chunks = chunks[:k]
	}
	return chunks
}

func cosineSimilarity(a, b []float64, normA float64) float64 {
	if normA == 0 {
		return 0
	}
	normB := vectorNorm(b)
	if normB == 0 {
		return 0
	}
	dot := 0.0
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot / (normA * normB)
}

func vectorNorm(v []float64) float64 {
	sum := 0.0
	for _, val := range v {
		sum += val * val
	}
	return math.Sqrt(sum)
}
