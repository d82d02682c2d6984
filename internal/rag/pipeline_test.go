// internal/rag/pipeline_test.go
package rag

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragline/ragline/internal/cache"
)

// keywordEmbedder counts occurrences of a fixed vocabulary, so texts about
// the sky and texts about grass land in clearly separated directions.
type keywordEmbedder struct {
	mu    sync.Mutex
	calls int
}

var keywordVocabulary = []string{"sky", "blue", "grass", "green"}

func (e *keywordEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	lower := strings.ToLower(text)
	vec := make([]float64, len(keywordVocabulary))
	for i, word := range keywordVocabulary {
		vec[i] = float64(strings.Count(lower, word))
	}
	// Avoid the zero vector for texts outside the vocabulary.
	vec = append(vec, 0.01)
	return vec, nil
}

func (e *keywordEmbedder) Dimension() int { return len(keywordVocabulary) + 1 }
func (e *keywordEmbedder) Model() string  { return "keyword-test-embedder" }

func (e *keywordEmbedder) embedCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// scriptedGenerator fails a fixed number of times, then streams the given
// fragments. When echoPrompt is set the fragments are the prompt split in two.
type scriptedGenerator struct {
	failures   int
	fragments  []string
	echoPrompt bool
	failMid    bool

	mu    sync.Mutex
	calls int
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var b strings.Builder
	if err := g.Stream(ctx, prompt, func(fragment string) error {
		b.WriteString(fragment)
		return nil
	}); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (g *scriptedGenerator) Stream(_ context.Context, prompt string, onFragment func(string) error) error {
	g.mu.Lock()
	g.calls++
	call := g.calls
	g.mu.Unlock()

	if call <= g.failures {
		return errors.New("connection refused")
	}

	fragments := g.fragments
	if g.echoPrompt {
		half := len(prompt) / 2
		fragments = []string{prompt[:half], prompt[half:]}
	}
	for i, fragment := range fragments {
		if g.failMid && i == 1 {
			return errors.New("stream interrupted")
		}
		if err := onFragment(fragment); err != nil {
			return err
		}
	}
	return nil
}

func (g *scriptedGenerator) Ping(context.Context) error { return nil }

func (g *scriptedGenerator) streamCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// skyIndex builds an index over the two chunks that splitting
// "The sky is blue. Grass is green." into 20-rune windows with a 5-rune
// overlap produces.
func skyIndex(t *testing.T, embedder Embedder) *Index {
	t.Helper()
	chunks := []Chunk{
		{Doc: "facts.txt", Index: 0, Offset: 0, Text: "The sky is blue. ", Tokens: 4},
		{Doc: "facts.txt", Index: 1, Offset: 12, Text: "lue. Grass is green.", Tokens: 4},
	}
	idx, err := BuildIndex(context.Background(), chunks, embedder)
	require.NoError(t, err)
	return idx
}

func testOptions() PipelineOptions {
	return PipelineOptions{
		SearchK:        1,
		MinQueryLength: 2,
		MaxQueryLength: 2000,
		RetryAttempts:  3,
		RetryBaseDelay: time.Millisecond,
	}
}

func TestAnswerRetrievesRelevantChunk(t *testing.T) {
	embedder := &keywordEmbedder{}
	gen := &scriptedGenerator{echoPrompt: true}
	p := NewPipeline(embedder, skyIndex(t, embedder), gen, nil, testOptions())

	answer, err := p.Answer(context.Background(), "What color is the sky?")
	require.NoError(t, err)

	assert.Contains(t, answer, "[doc:facts.txt] The sky is blue.")
	assert.NotContains(t, answer, "Grass is green.")
	assert.Contains(t, answer, "Question:\nWhat color is the sky?")
}

func TestAnswerRejectsInvalidQueryBeforeEmbedding(t *testing.T) {
	embedder := &keywordEmbedder{}
	idx := skyIndex(t, embedder)
	embedsAfterBuild := embedder.embedCalls()

	gen := &scriptedGenerator{fragments: []string{"never reached"}}
	p := NewPipeline(embedder, idx, gen, nil, testOptions())

	_, err := p.Answer(context.Background(), "a")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, embedsAfterBuild, embedder.embedCalls(), "rejected query must not be embedded")
	assert.Zero(t, gen.streamCalls())
}

func TestAnswerStreamYieldsFragmentsInOrder(t *testing.T) {
	embedder := &keywordEmbedder{}
	gen := &scriptedGenerator{echoPrompt: true}
	p := NewPipeline(embedder, skyIndex(t, embedder), gen, nil, testOptions())

	fragments, errs := p.AnswerStream(context.Background(), "What color is the sky?")

	var got []string
	for fragment := range fragments {
		got = append(got, fragment)
	}
	require.NoError(t, <-errs)

	require.Len(t, got, 2)
	reassembled := got[0] + got[1]
	assert.Contains(t, reassembled, "The sky is blue.")
	assert.Contains(t, reassembled, "What color is the sky?")
}

func TestAnswerStreamSurfacesValidationError(t *testing.T) {
	embedder := &keywordEmbedder{}
	gen := &scriptedGenerator{}
	p := NewPipeline(embedder, skyIndex(t, embedder), gen, nil, testOptions())

	fragments, errs := p.AnswerStream(context.Background(), "")

	for range fragments {
		t.Fatal("no fragments expected for a rejected query")
	}
	var verr *ValidationError
	require.ErrorAs(t, <-errs, &verr)
}

func TestAnswerRetriesTransientGenerationFailures(t *testing.T) {
	embedder := &keywordEmbedder{}
	gen := &scriptedGenerator{failures: 3, fragments: []string{"The sky ", "is blue."}}
	opts := testOptions()
	opts.RetryAttempts = 5
	p := NewPipeline(embedder, skyIndex(t, embedder), gen, nil, opts)

	answer, err := p.Answer(context.Background(), "What color is the sky?")
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue.", answer)
	assert.Equal(t, 4, gen.streamCalls(), "should succeed on the fourth attempt")
}

func TestAnswerSurfacesGenerationErrorAfterExhaustion(t *testing.T) {
	embedder := &keywordEmbedder{}
	gen := &scriptedGenerator{failures: 100}
	p := NewPipeline(embedder, skyIndex(t, embedder), gen, nil, testOptions())

	_, err := p.Answer(context.Background(), "What color is the sky?")
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, 3, genErr.Attempts)
	assert.Equal(t, 3, gen.streamCalls())
}

func TestAnswerStreamMidStreamFailureIsNotRetried(t *testing.T) {
	embedder := &keywordEmbedder{}
	gen := &scriptedGenerator{fragments: []string{"The sky ", "is blue."}, failMid: true}
	p := NewPipeline(embedder, skyIndex(t, embedder), gen, nil, testOptions())

	fragments, errs := p.AnswerStream(context.Background(), "What color is the sky?")

	var got []string
	for fragment := range fragments {
		got = append(got, fragment)
	}
	var genErr *GenerationError
	require.ErrorAs(t, <-errs, &genErr)
	assert.Equal(t, []string{"The sky "}, got)
	assert.Equal(t, 1, gen.streamCalls(), "partial output must not trigger a retry")
}

func TestAnswerUsesResponseCache(t *testing.T) {
	embedder := &keywordEmbedder{}
	gen := &scriptedGenerator{fragments: []string{"The sky is blue."}}
	responses := cache.New(time.Minute)
	p := NewPipeline(embedder, skyIndex(t, embedder), gen, responses, testOptions())

	first, err := p.Answer(context.Background(), "What color is the sky?")
	require.NoError(t, err)
	second, err := p.Answer(context.Background(), "What color is the sky?")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, gen.streamCalls(), "second answer must come from the cache")
}

func TestWarmupProbesBackends(t *testing.T) {
	embedder := &keywordEmbedder{}
	gen := &scriptedGenerator{}
	p := NewPipeline(embedder, skyIndex(t, embedder), gen, nil, testOptions())

	require.NoError(t, p.Warmup(context.Background()))
}

func TestErrorCategory(t *testing.T) {
	cases := map[string]struct {
		err  error
		want string
	}{
		"validation": {&ValidationError{Msg: "too short"}, "validation"},
		"retrieval":  {&RetrievalError{Stage: "embed", Err: errors.New("down")}, "retrieval"},
		"generation": {&GenerationError{Attempts: 3, Err: errors.New("down")}, "generation"},
		"dimension":  {&DimensionMismatchError{IndexDim: 8, EmbedderDim: 4}, "dimension_mismatch"},
		"config":     {NewConfigError("bad dir"), "config"},
		"other":      {errors.New("mystery"), "other"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, ErrorCategory(tc.err))
		})
	}
}
