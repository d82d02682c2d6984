// internal/appconfig/appconfig_test.go
package appconfig

import (
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	cfg := Config{KnowledgeBaseDir: "kb"}
	ApplyDefaults(&cfg)
	if cfg.KnowledgeBaseDir != "kb" {
		t.Fatalf("expected knowledgeBaseDir kb, got %s", cfg.KnowledgeBaseDir)
	}
	if cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 100 {
		t.Fatalf("expected default chunking, got size=%d overlap=%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.SearchK != 3 {
		t.Fatalf("expected default searchK 3, got %d", cfg.SearchK)
	}
	if cfg.Backend != "ollama" {
		t.Fatalf("expected default backend ollama, got %s", cfg.Backend)
	}
}

func TestValidateRejectsOverlapNotSmallerThanSize(t *testing.T) {
	cfg := Config{}
	ApplyDefaults(&cfg)
	cfg.ChunkSize = 100
	cfg.ChunkOverlap = 100
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for overlap == size")
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := Config{}
	ApplyDefaults(&cfg)
	cfg.Backend = "gpt4all"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Config{}
	if cfg.RequestTimeout() != 120*time.Second {
		t.Fatalf("unexpected default request timeout: %s", cfg.RequestTimeout())
	}
	if cfg.RetryDelay() != time.Second {
		t.Fatalf("unexpected default retry delay: %s", cfg.RetryDelay())
	}
	cfg.RetryBaseDelay = 0.5
	if cfg.RetryDelay() != 500*time.Millisecond {
		t.Fatalf("unexpected retry delay: %s", cfg.RetryDelay())
	}
	if cfg.RetryAttempts() != 3 {
		t.Fatalf("unexpected default retry attempts: %d", cfg.RetryAttempts())
	}
}
