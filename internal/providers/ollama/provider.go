// internal/providers/ollama/provider.go
// Package ollama provides embedding and generation backed by an Ollama
// HTTP endpoint.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ragline/ragline/internal/logging"
)

// Provider talks to one Ollama host for both embeddings and generation.
type Provider struct {
	baseURL       string
	generateModel string
	embedModel    string
	client        *http.Client
	timeout       time.Duration
	embedTimeout  time.Duration

	mu        sync.Mutex
	dimension int
}

// Config configures the Ollama provider.
type Config struct {
	BaseURL       string
	GenerateModel string
	EmbedModel    string
	Timeout       time.Duration
	EmbedTimeout  time.Duration
}

// New constructs a Provider for the given host and models.
func New(cfg Config) *Provider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	embedTimeout := cfg.EmbedTimeout
	if embedTimeout <= 0 {
		embedTimeout = 30 * time.Second
	}
	return &Provider{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		generateModel: cfg.GenerateModel,
		embedModel:    cfg.EmbedModel,
		client: &http.Client{
			Transport: &http.Transport{ForceAttemptHTTP2: false},
		},
		timeout:      timeout,
		embedTimeout: embedTimeout,
	}
}

type embeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed requests an embedding vector from the configured embedding model.
func (p *Provider) Embed(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(p.embedModel) == "" {
		return nil, fmt.Errorf("embedding model is empty")
	}
	payload := map[string]any{
		"model":  p.embedModel,
		"prompt": text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.embedTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding request failed: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}
	var parsed embeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse embedding response: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("embedding response returned empty vector")
	}
	p.mu.Lock()
	if p.dimension == 0 {
		p.dimension = len(parsed.Embedding)
	}
	p.mu.Unlock()
	return parsed.Embedding, nil
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

// streamChunk is a single NDJSON line of a streaming generate response.
type streamChunk struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate runs a blocking completion and returns the full answer.
func (p *Provider) Generate(ctx context.Context, prompt string) (string, error) {
	var b strings.Builder
	if err := p.Stream(ctx, prompt, func(fragment string) error {
		b.WriteString(fragment)
		return nil
	}); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Stream runs a streaming completion, invoking onFragment for every piece
// of generated text in order.
func (p *Provider) Stream(ctx context.Context, prompt string, onFragment func(fragment string) error) error {
	payload := map[string]any{
		"model":  p.generateModel,
		"prompt": prompt,
		"stream": true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal generate request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	endpoint := p.baseURL + "/api/generate"
	logging.LogRequest("ragline->llm", p.baseURL, p.generateModel, map[string]any{"prompt_chars": len(prompt)})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("generate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("generate request failed: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var chunk streamChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			return fmt.Errorf("parse generate chunk: %w", err)
		}
		if chunk.Response != "" {
			if err := onFragment(chunk.Response); err != nil {
				return err
			}
		}
		if chunk.Done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read generate stream: %w", err)
	}
	return nil
}

// Ping verifies the Ollama host is reachable.
func (p *Provider) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama host unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama: /api/tags returned %s", resp.Status)
	}
	return nil
}
