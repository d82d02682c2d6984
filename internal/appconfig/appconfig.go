// internal/appconfig/appconfig.go
// Package appconfig defines the application configuration, its defaults,
// and its validation. Loading happens through viper in internal/commands.
package appconfig

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.json"
	// defaultRequestTimeout is the default timeout for generation-backend requests.
	defaultRequestTimeout = 120 * time.Second
	// defaultEmbedTimeout is the default timeout for embedding requests.
	defaultEmbedTimeout = 30 * time.Second
	// defaultRetryBaseDelay is the starting delay for generation retries.
	defaultRetryBaseDelay = 1 * time.Second
)

// Config represents the top-level application configuration. Fields whose
// config key does not match their name carry an explicit mapstructure tag;
// viper matches keys against those tags, not the json ones.
type Config struct {
	KnowledgeBaseDir string `json:"knowledgeBaseDir" mapstructure:"knowledgeBaseDir"`
	IndexDir         string `json:"indexDir" mapstructure:"indexDir"`
	Recursive        bool   `json:"recursive" mapstructure:"recursive"`

	ChunkSize    int `json:"chunkSize" mapstructure:"chunkSize"`
	ChunkOverlap int `json:"chunkOverlap" mapstructure:"chunkOverlap"`

	SearchK           int `json:"searchK" mapstructure:"searchK"`
	ContextTokenLimit int `json:"contextTokenLimit" mapstructure:"contextTokenLimit"`

	Backend        string `json:"backend" mapstructure:"backend"` // "ollama" or "openai"
	BackendURL     string `json:"backendUrl" mapstructure:"backendUrl"`
	GenerateModel  string `json:"generateModel" mapstructure:"generateModel"`
	EmbeddingModel string `json:"embeddingModel" mapstructure:"embeddingModel"`
	TimeoutSeconds int    `json:"timeout,omitempty" mapstructure:"timeout"`
	APIKeyEnv      string `json:"apiKeyEnv,omitempty" mapstructure:"apiKeyEnv"`

	MaxRetries     int     `json:"maxRetries" mapstructure:"maxRetries"`
	RetryBaseDelay float64 `json:"retryBaseDelaySeconds,omitempty" mapstructure:"retryBaseDelaySeconds"`

	MinQueryLength int `json:"minQueryLength" mapstructure:"minQueryLength"`
	MaxQueryLength int `json:"maxQueryLength" mapstructure:"maxQueryLength"`

	EnableCache  bool `json:"enableCache" mapstructure:"enableCache"`
	CacheTTLSecs int  `json:"cacheTtl,omitempty" mapstructure:"cacheTtl"`

	WebAddr string `json:"webAddr,omitempty" mapstructure:"webAddr"`

	Debug      bool   `json:"debug" mapstructure:"debug"`
	LogFile    string `json:"logFile,omitempty" mapstructure:"logFile"`
	ConfigPath string `json:"-" mapstructure:"-"`
}

// RequestTimeout returns the timeout duration for generation requests,
// falling back to the default if not specified.
func (c Config) RequestTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// EmbedTimeout returns the timeout duration for embedding requests.
func (c Config) EmbedTimeout() time.Duration {
	if c.TimeoutSeconds > 0 && c.TimeoutSeconds < 30 {
		return time.Duration(c.TimeoutSeconds) * time.Second
	}
	return defaultEmbedTimeout
}

// RetryDelay returns the base delay between generation retry attempts.
func (c Config) RetryDelay() time.Duration {
	if c.RetryBaseDelay <= 0 {
		return defaultRetryBaseDelay
	}
	return time.Duration(c.RetryBaseDelay * float64(time.Second))
}

// RetryAttempts returns the configured number of generation attempts.
func (c Config) RetryAttempts() int {
	if c.MaxRetries <= 0 {
		return 3
	}
	return c.MaxRetries
}

// CacheTTL returns the lifetime of cached query responses.
func (c Config) CacheTTL() time.Duration {
	if c.CacheTTLSecs <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.CacheTTLSecs) * time.Second
}

// ListenAddr returns the address the web server binds to.
func (c Config) ListenAddr() string {
	if strings.TrimSpace(c.WebAddr) == "" {
		return ":8000"
	}
	return c.WebAddr
}

// LogFilePath returns the path to the application log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if path := c.LogFile; strings.TrimSpace(path) != "" {
		return path
	}
	return "ragline.log"
}

// ApplyDefaults fills in zero-valued fields with working defaults.
func ApplyDefaults(c *Config) {
	if c.KnowledgeBaseDir == "" {
		c.KnowledgeBaseDir = "knowledge_base"
	}
	if c.IndexDir == "" {
		c.IndexDir = "index"
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 1000
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = 100
	}
	if c.SearchK == 0 {
		c.SearchK = 3
	}
	if c.Backend == "" {
		c.Backend = "ollama"
	}
	if c.BackendURL == "" {
		c.BackendURL = "http://localhost:11434"
	}
	if c.GenerateModel == "" {
		c.GenerateModel = "llama3"
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = "nomic-embed-text"
	}
	if c.MinQueryLength == 0 {
		c.MinQueryLength = 2
	}
	if c.MaxQueryLength == 0 {
		c.MaxQueryLength = 2000
	}
}

// Validate checks the configuration for values that cannot produce a
// working pipeline. The returned error names the offending key.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunkSize must be greater than zero")
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("chunkOverlap must be zero or greater")
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunkOverlap must be smaller than chunkSize")
	}
	if c.SearchK <= 0 {
		return fmt.Errorf("searchK must be greater than zero")
	}
	if c.MinQueryLength < 1 {
		return fmt.Errorf("minQueryLength must be at least 1")
	}
	if c.MaxQueryLength <= c.MinQueryLength {
		return fmt.Errorf("maxQueryLength must be greater than minQueryLength")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("maxRetries must be zero or greater")
	}
	switch c.Backend {
	case "ollama", "openai":
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", "ollama", "openai", c.Backend)
	}
	if strings.TrimSpace(c.BackendURL) == "" {
		return fmt.Errorf("backendUrl is required")
	}
	if strings.TrimSpace(c.EmbeddingModel) == "" {
		return fmt.Errorf("embeddingModel is required")
	}
	if strings.TrimSpace(c.GenerateModel) == "" {
		return fmt.Errorf("generateModel is required")
	}
	return nil
}
