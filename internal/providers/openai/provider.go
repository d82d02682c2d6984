// internal/providers/openai/provider.go
// Package openai provides embedding and generation against any
// OpenAI-compatible endpoint (llama.cpp server, LM Studio, vLLM, or the
// hosted API).
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
)

// Provider wraps a go-openai client for one endpoint.
type Provider struct {
	client        *goopenai.Client
	generateModel string
	embedModel    string
	timeout       time.Duration

	mu        sync.Mutex
	dimension int
}

// Config configures the OpenAI-compatible provider.
type Config struct {
	BaseURL       string
	GenerateModel string
	EmbedModel    string
	APIKeyEnv     string
	Timeout       time.Duration
}

// New constructs a Provider. The API key is read from the environment
// variable named by APIKeyEnv; local servers usually accept any value.
func New(cfg Config) (*Provider, error) {
	keyEnv := cfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(keyEnv)
	if key == "" {
		// Local OpenAI-compatible servers ignore the key entirely.
		key = "unused"
	}

	clientCfg := goopenai.DefaultConfig(key)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &Provider{
		client:        goopenai.NewClientWithConfig(clientCfg),
		generateModel: cfg.GenerateModel,
		embedModel:    cfg.EmbedModel,
		timeout:       timeout,
	}, nil
}

// Embed returns an embedding vector for the given text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Model: goopenai.EmbeddingModel(p.embedModel),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings request failed: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embedding data returned")
	}

	v32 := resp.Data[0].Embedding
	vector := make([]float64, len(v32))
	for i := range v32 {
		vector[i] = float64(v32[i])
	}

	p.mu.Lock()
	if p.dimension == 0 {
		p.dimension = len(vector)
	}
	p.mu.Unlock()
	return vector, nil
}

// Dimension returns the embedding dimension, or zero before the first
// successful Embed call.
func (p *Provider) Dimension() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dimension
}

// Model returns the embedding model identifier.
func (p *Provider) Model() string { return p.embedModel }

// Generate runs a blocking chat completion and returns the full answer.
func (p *Provider) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: p.generateModel,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream runs a streaming chat completion, invoking onFragment for every
// delta in order.
func (p *Provider) Stream(ctx context.Context, prompt string, onFragment func(fragment string) error) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	stream, err := p.client.CreateChatCompletionStream(ctx, goopenai.ChatCompletionRequest{
		Model: p.generateModel,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		Stream: true,
	})
	if err != nil {
		return fmt.Errorf("completion stream failed: %w", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read completion stream: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			if err := onFragment(delta); err != nil {
				return err
			}
		}
	}
}

// Ping verifies the endpoint responds to a model listing.
func (p *Provider) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("openai endpoint unreachable: %w", err)
	}
	return nil
}
