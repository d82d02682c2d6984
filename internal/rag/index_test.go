// internal/rag/index_test.go
package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hashEmbedder produces a deterministic bag-of-characters vector, enough
// to exercise index mechanics without a real model.
type hashEmbedder struct {
	dim int
}

func (e *hashEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, e.dim)
	for i, r := range text {
		vec[(i+int(r))%e.dim]++
	}
	return vec, nil
}

func (e *hashEmbedder) Dimension() int { return e.dim }
func (e *hashEmbedder) Model() string  { return "hash-test-embedder" }

func testChunks() []Chunk {
	return []Chunk{
		{Doc: "a.txt", Index: 0, Offset: 0, Text: "The sky is blue.", Tokens: 4},
		{Doc: "a.txt", Index: 1, Offset: 12, Text: "Grass is green.", Tokens: 3},
		{Doc: "b.txt", Index: 0, Offset: 0, Text: "Roses are red.", Tokens: 3},
	}
}

func TestBuildIndexDeterministic(t *testing.T) {
	embedder := &hashEmbedder{dim: 8}
	ctx := context.Background()

	first, err := BuildIndex(ctx, testChunks(), embedder)
	require.NoError(t, err)
	second, err := BuildIndex(ctx, testChunks(), embedder)
	require.NoError(t, err)

	require.Equal(t, first.Len(), second.Len())
	for i := range first.entries {
		assert.Equal(t, first.entries[i], second.entries[i])
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	embedder := &hashEmbedder{dim: 8}
	ctx := context.Background()
	dir := t.TempDir()

	built, err := BuildIndex(ctx, testChunks(), embedder)
	require.NoError(t, err)
	require.NoError(t, built.Save(dir))

	loaded, err := LoadIndex(ctx, dir, embedder)
	require.NoError(t, err)
	require.Equal(t, built.Len(), loaded.Len())
	assert.Equal(t, built.Metadata().Dimension, loaded.Metadata().Dimension)
	assert.Equal(t, "hash-test-embedder", loaded.Metadata().Model)

	probe, err := embedder.Embed(ctx, "The sky is blue.")
	require.NoError(t, err)
	want := built.Search(probe, 2)
	got := loaded.Search(probe, 2)
	require.Equal(t, len(want), len(got))
	for i := range want {
		assert.Equal(t, want[i].Entry.ChunkID, got[i].Entry.ChunkID)
		assert.InDelta(t, want[i].Score, got[i].Score, 1e-12)
	}
}

func TestLoadRejectsDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	built, err := BuildIndex(ctx, testChunks(), &hashEmbedder{dim: 8})
	require.NoError(t, err)
	require.NoError(t, built.Save(dir))

	_, err = LoadIndex(ctx, dir, &hashEmbedder{dim: 16})
	var mismatch *DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 8, mismatch.IndexDim)
	assert.Equal(t, 16, mismatch.EmbedderDim)
}

func TestLoadMissingFilesIsConfigError(t *testing.T) {
	ctx := context.Background()
	embedder := &hashEmbedder{dim: 8}

	_, err := LoadIndex(ctx, filepath.Join(t.TempDir(), "absent"), embedder)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)

	// Directory exists but holds no index files.
	_, err = LoadIndex(ctx, t.TempDir(), embedder)
	require.ErrorAs(t, err, &cfgErr)
}

func TestLoadRejectsInvalidMetadata(t *testing.T) {
	ctx := context.Background()
	embedder := &hashEmbedder{dim: 8}
	dir := t.TempDir()

	built, err := BuildIndex(ctx, testChunks(), embedder)
	require.NoError(t, err)
	require.NoError(t, built.Save(dir))

	cases := map[string]string{
		"negative dimension": `{"dimension": -1, "model": "m", "entry_count": 3, "created_at": "now"}`,
		"missing model":      `{"dimension": 8, "entry_count": 3, "created_at": "now"}`,
		"extra field":        `{"dimension": 8, "model": "m", "entry_count": 3, "created_at": "now", "exec": "rm -rf"}`,
		"not an object":      `[1, 2, 3]`,
	}
	for name, payload := range cases {
		require.NoError(t, os.WriteFile(filepath.Join(dir, indexMetadataFile), []byte(payload), 0o644))
		_, err := LoadIndex(ctx, dir, embedder)
		assert.Error(t, err, name)
		var mismatch *DimensionMismatchError
		assert.False(t, errors.As(err, &mismatch), "%s should fail validation, not dimension check", name)
	}
}

func TestSearchReturnsAllWhenKExceedsEntries(t *testing.T) {
	ctx := context.Background()
	embedder := &hashEmbedder{dim: 8}

	idx, err := BuildIndex(ctx, testChunks(), embedder)
	require.NoError(t, err)

	probe, err := embedder.Embed(ctx, "anything")
	require.NoError(t, err)

	results := idx.Search(probe, 50)
	require.Len(t, results, 3)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score, "results must be ordered by similarity")
	}
}

func TestSearchTopK(t *testing.T) {
	ctx := context.Background()
	embedder := &hashEmbedder{dim: 8}

	idx, err := BuildIndex(ctx, testChunks(), embedder)
	require.NoError(t, err)

	probe, err := embedder.Embed(ctx, "The sky is blue.")
	require.NoError(t, err)

	results := idx.Search(probe, 1)
	require.Len(t, results, 1)
	assert.Equal(t, "a.txt:0", results[0].Entry.ChunkID)
}
