package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Corpus     CorpusConfig     `yaml:"corpus"`
	Chunker    ChunkerConfig    `yaml:"chunker,omitempty"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Rerank     RerankConfig     `yaml:"rerank"`
	Index      IndexConfig      `yaml:"index,omitempty"`
	Retrieval  RetrievalConfig  `yaml:"retrieval,omitempty"`
	Search     SearchConfig     `yaml:"search,omitempty"`
	Resilience ResilienceConfig `yaml:"resilience,omitempty"`
	Server     ServerConfig     `yaml:"server,omitempty"`
}

// CorpusConfig describes where source documents live
type CorpusConfig struct {
	Path    string   `yaml:"path"`              // Data folder with case documents
	Include []string `yaml:"include,omitempty"` // doublestar patterns, relative to Path
	Exclude []string `yaml:"exclude,omitempty"` // doublestar patterns, relative to Path
}

// ChunkerConfig holds chunking parameters
type ChunkerConfig struct {
	MaxWords int `yaml:"max_words,omitempty"`
}

// EmbeddingConfig holds embedding service configuration
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "openai" | "tei"

	APIKey   string `yaml:"api_key,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"` // Base URL of the provider
	Model    string `yaml:"model,omitempty"`

	Dimensions int           `yaml:"dimensions"`           // Vector size produced by the model
	BatchSize  int           `yaml:"batch_size,omitempty"` // Max texts per provider request
	Normalize  bool          `yaml:"normalize,omitempty"`  // Ask the provider for unit vectors (tei)
	Timeout    time.Duration `yaml:"timeout,omitempty"`    // Deadline per provider call
	RateLimit  float64       `yaml:"rate_limit,omitempty"` // Requests per second, 0 = unlimited
}

// RerankConfig holds pairwise relevance service configuration
type RerankConfig struct {
	Provider string `yaml:"provider"` // "tei"

	APIKey   string `yaml:"api_key,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
	Model    string `yaml:"model,omitempty"`

	Timeout   time.Duration `yaml:"timeout,omitempty"`
	RateLimit float64       `yaml:"rate_limit,omitempty"`
}

// IndexConfig holds artifact storage and build options
type IndexConfig struct {
	// Directory holding index generations
	// If empty, uses ~/.caseindex/data/<corpus-name>-<hash>
	Dir             string `yaml:"dir,omitempty"`
	Workers         int    `yaml:"workers,omitempty"`          // Parallel embedding workers
	KeepGenerations int    `yaml:"keep_generations,omitempty"` // Published generations kept on disk
}

// RetrievalConfig holds first-stage retrieval options
type RetrievalConfig struct {
	DenseWeight   float64 `yaml:"dense_weight,omitempty"`
	LexicalWeight float64 `yaml:"lexical_weight,omitempty"`
	Metric        string  `yaml:"metric,omitempty"`    // "l2" | "cosine"
	Normalize     string  `yaml:"normalize,omitempty"` // "none" | "minmax"
	Operator      string  `yaml:"operator,omitempty"`  // "and" | "or"
}

// SearchConfig holds query-time defaults
type SearchConfig struct {
	TopK        int `yaml:"top_k,omitempty"`        // Candidates from hybrid retrieval
	TopN        int `yaml:"top_n,omitempty"`        // Results after reranking
	SnippetSize int `yaml:"snippet_size,omitempty"` // Snippet budget in characters
}

// ResilienceConfig holds retry and circuit breaker settings for model calls
type ResilienceConfig struct {
	RetryMaxAttempts    int           `yaml:"retry_max_attempts,omitempty"`
	RetryInitialBackoff time.Duration `yaml:"retry_initial_backoff,omitempty"`
	RetryMaxBackoff     time.Duration `yaml:"retry_max_backoff,omitempty"`
	BreakerEnabled      *bool         `yaml:"breaker_enabled,omitempty"`
	BreakerOpenTimeout  time.Duration `yaml:"breaker_open_timeout,omitempty"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// Load loads configuration from the default config file
// Default location: ~/.caseindex/config/caseindex.yaml
func Load() (*Config, error) {
	configPath, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadFromFile(configPath)
}

// DefaultPath returns the default config file location
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".caseindex", "config", "caseindex.yaml"), nil
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			defaultPath, _ := DefaultPath()
			return nil, &ConfigNotFoundError{
				RequestedPath: path,
				DefaultPath:   defaultPath,
			}
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies environment overrides and defaults, and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// ConfigNotFoundError is returned when config file is not found
type ConfigNotFoundError struct {
	RequestedPath string
	DefaultPath   string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("config file not found at: %s\n\nDefault location: %s\n\nYou can:\n"+
		"  1. Create the config file at the default location\n"+
		"  2. Specify a custom path with -config flag\n"+
		"  3. Run 'caseindex index' once to write a template",
		e.RequestedPath, e.DefaultPath)
}

// IsConfigNotFound checks if error is config not found
func IsConfigNotFound(err error) bool {
	_, ok := err.(*ConfigNotFoundError)
	return ok
}

// expandPath expands ~ and $HOME to the user's home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "$HOME/") || path == "$HOME" {
		homeDir := os.Getenv("HOME")
		if homeDir == "" {
			var err error
			homeDir, err = os.UserHomeDir()
			if err != nil {
				return path
			}
		}
		if path == "$HOME" {
			return homeDir
		}
		return filepath.Join(homeDir, path[6:])
	}

	if strings.HasPrefix(path, "~/") || path == "~" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return homeDir
		}
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

// applyEnv lets secrets live outside the YAML file
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("CASEINDEX_EMBEDDING_API_KEY")); v != "" {
		c.Embedding.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("CASEINDEX_RERANK_API_KEY")); v != "" {
		c.Rerank.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("CASEINDEX_CORPUS_PATH")); v != "" {
		c.Corpus.Path = v
	}
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	if c.Corpus.Path == "" {
		c.Corpus.Path = "data"
	}
	c.Corpus.Path = expandPath(c.Corpus.Path)
	if len(c.Corpus.Include) == 0 {
		c.Corpus.Include = []string{"**/*.xml"}
	}

	if c.Chunker.MaxWords == 0 {
		c.Chunker.MaxWords = 250
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "tei"
	}
	switch c.Embedding.Provider {
	case "openai":
		if c.Embedding.Model == "" {
			c.Embedding.Model = "text-embedding-3-small"
		}
		if c.Embedding.Dimensions == 0 {
			c.Embedding.Dimensions = 1536
		}
	case "tei":
		if c.Embedding.Model == "" {
			c.Embedding.Model = "sentence-transformers/all-MiniLM-L6-v2"
		}
		if c.Embedding.Endpoint == "" {
			c.Embedding.Endpoint = "http://127.0.0.1:8080"
		}
		if c.Embedding.Dimensions == 0 {
			c.Embedding.Dimensions = 384
		}
	}
	if c.Embedding.BatchSize == 0 {
		c.Embedding.BatchSize = 32
	}
	if c.Embedding.Timeout == 0 {
		c.Embedding.Timeout = 30 * time.Second
	}

	if c.Rerank.Provider == "" {
		c.Rerank.Provider = "tei"
	}
	if c.Rerank.Model == "" {
		c.Rerank.Model = "cross-encoder/ms-marco-MiniLM-L-6-v2"
	}
	if c.Rerank.Endpoint == "" {
		c.Rerank.Endpoint = "http://127.0.0.1:8081"
	}
	if c.Rerank.Timeout == 0 {
		c.Rerank.Timeout = 30 * time.Second
	}

	if c.Index.Dir != "" {
		c.Index.Dir = expandPath(c.Index.Dir)
	}
	if c.Index.Workers == 0 {
		c.Index.Workers = 1
	}
	if c.Index.KeepGenerations == 0 {
		c.Index.KeepGenerations = 2
	}

	if c.Retrieval.DenseWeight == 0 && c.Retrieval.LexicalWeight == 0 {
		c.Retrieval.DenseWeight = 0.5
		c.Retrieval.LexicalWeight = 0.5
	}
	if c.Retrieval.Metric == "" {
		c.Retrieval.Metric = "l2"
	}
	if c.Retrieval.Normalize == "" {
		c.Retrieval.Normalize = "none"
	}
	if c.Retrieval.Operator == "" {
		c.Retrieval.Operator = "and"
	}

	if c.Search.TopK == 0 {
		c.Search.TopK = 20
	}
	if c.Search.TopN == 0 {
		c.Search.TopN = 3
	}
	if c.Search.SnippetSize == 0 {
		c.Search.SnippetSize = 400
	}

	if c.Resilience.RetryMaxAttempts == 0 {
		c.Resilience.RetryMaxAttempts = 3
	}
	if c.Resilience.RetryInitialBackoff == 0 {
		c.Resilience.RetryInitialBackoff = 200 * time.Millisecond
	}
	if c.Resilience.RetryMaxBackoff == 0 {
		c.Resilience.RetryMaxBackoff = 2 * time.Second
	}
	if c.Resilience.BreakerEnabled == nil {
		enabled := true
		c.Resilience.BreakerEnabled = &enabled
	}
	if c.Resilience.BreakerOpenTimeout == 0 {
		c.Resilience.BreakerOpenTimeout = 30 * time.Second
	}

	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:7700"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "openai":
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("openai provider requires embedding.api_key")
		}
	case "tei":
		if c.Embedding.Endpoint == "" {
			return fmt.Errorf("tei provider requires embedding.endpoint")
		}
	default:
		return fmt.Errorf("unsupported embedding provider: %s", c.Embedding.Provider)
	}

	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got: %d", c.Embedding.Dimensions)
	}
	if c.Embedding.BatchSize <= 0 || c.Embedding.BatchSize > 2048 {
		return fmt.Errorf("embedding.batch_size must be between 1 and 2048, got: %d", c.Embedding.BatchSize)
	}

	switch c.Rerank.Provider {
	case "tei":
		if c.Rerank.Endpoint == "" {
			return fmt.Errorf("tei rerank provider requires rerank.endpoint")
		}
	default:
		return fmt.Errorf("unsupported rerank provider: %s", c.Rerank.Provider)
	}

	if c.Chunker.MaxWords < 0 {
		return fmt.Errorf("chunker.max_words must not be negative, got: %d", c.Chunker.MaxWords)
	}
	if c.Retrieval.DenseWeight < 0 || c.Retrieval.LexicalWeight < 0 {
		return fmt.Errorf("retrieval weights must not be negative")
	}
	switch c.Retrieval.Metric {
	case "l2", "cosine":
	default:
		return fmt.Errorf("retrieval.metric must be l2 or cosine, got: %s", c.Retrieval.Metric)
	}
	switch c.Retrieval.Normalize {
	case "none", "minmax":
	default:
		return fmt.Errorf("retrieval.normalize must be none or minmax, got: %s", c.Retrieval.Normalize)
	}
	switch c.Retrieval.Operator {
	case "and", "or":
	default:
		return fmt.Errorf("retrieval.operator must be and or or, got: %s", c.Retrieval.Operator)
	}
	if c.Search.TopK <= 0 || c.Search.TopN <= 0 {
		return fmt.Errorf("search.top_k and search.top_n must be positive")
	}
	if c.Index.Workers < 1 {
		return fmt.Errorf("index.workers must be at least 1, got: %d", c.Index.Workers)
	}
	if c.Index.KeepGenerations < 1 {
		return fmt.Errorf("index.keep_generations must be at least 1, got: %d", c.Index.KeepGenerations)
	}

	return nil
}

// BreakerOn reports whether the circuit breaker is enabled.
func (r ResilienceConfig) BreakerOn() bool {
	return r.BreakerEnabled == nil || *r.BreakerEnabled
}

// SaveToFile saves the configuration to a specific file
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

const defaultConfigTemplate = `# caseindex configuration
#
# Default location: $HOME/.caseindex/config/caseindex.yaml

corpus:
  # Folder with case documents (.xml with <sentence> elements, .txt, .pdf)
  path: ./data
  include:
    - "**/*.xml"

chunker:
  max_words: 250

embedding:
  # Provider: "tei" (text-embeddings-inference) or "openai"
  provider: tei
  endpoint: http://127.0.0.1:8080
  model: sentence-transformers/all-MiniLM-L6-v2
  dimensions: 384
  batch_size: 32
  timeout: 30s

  # OpenAI configuration (alternative)
  # provider: openai
  # api_key: your-openai-api-key
  # model: text-embedding-3-small
  # dimensions: 1536

rerank:
  provider: tei
  endpoint: http://127.0.0.1:8081
  model: cross-encoder/ms-marco-MiniLM-L-6-v2
  timeout: 30s

retrieval:
  dense_weight: 0.5
  lexical_weight: 0.5
  metric: l2        # l2 | cosine
  normalize: none   # none | minmax
  operator: and     # and | or

search:
  top_k: 20
  top_n: 3
  snippet_size: 400
`

// WriteDefaultTemplate creates a default configuration file if it does not exist.
// It returns true if a file was created, false if it already existed.
func WriteDefaultTemplate(path string) (bool, error) {
	if path == "" {
		return false, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0644); err != nil {
		return false, fmt.Errorf("failed to write config template: %w", err)
	}

	return true, nil
}
