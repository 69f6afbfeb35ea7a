// Package config loads and validates the CiteWise configuration.
//
// Configuration is an explicit struct constructed once at process start and
// validated before any storage or backend client is built. The storage layer
// never reads the environment itself; all overrides are applied here.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config filename looked up in the working directory.
const DefaultConfigFile = "citewise.yaml"

// Config represents the complete CiteWise configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Rerank     RerankConfig     `yaml:"rerank" json:"rerank"`
	Extract    ExtractConfig    `yaml:"extract" json:"extract"`
	Ingest     IngestConfig     `yaml:"ingest" json:"ingest"`
	Sync       SyncConfig       `yaml:"sync" json:"sync"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// PathsConfig configures on-disk locations.
type PathsConfig struct {
	// DataDir holds the vector store and metadata database.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// DocsDir is the watched root of source documents.
	DocsDir string `yaml:"docs_dir" json:"docs_dir"`
}

// StoreConfig configures the vector store and its collections.
type StoreConfig struct {
	// Collection is the base collection name; definitions live in
	// "<collection>_defs".
	Collection string `yaml:"collection" json:"collection"`
	// Dimensions is the embedding dimension (must match the embedder).
	Dimensions int `yaml:"dimensions" json:"dimensions"`
	// M is HNSW max connections per layer.
	M int `yaml:"m" json:"m"`
	// EfConstruction is HNSW build-time search width.
	EfConstruction int `yaml:"ef_construction" json:"ef_construction"`
	// EfSearch is HNSW query-time search width.
	EfSearch int `yaml:"ef_search" json:"ef_search"`
}

// SearchConfig configures hybrid retrieval parameters.
type SearchConfig struct {
	// SemanticTopK is the semantic candidate pool size for the general path.
	SemanticTopK int `yaml:"semantic_top_k" json:"semantic_top_k"`
	// DefsTopK is the result count for the definitions path.
	DefsTopK int `yaml:"defs_top_k" json:"defs_top_k"`
	// RerankTopK is the final result count after reranking.
	RerankTopK int `yaml:"rerank_top_k" json:"rerank_top_k"`
	// SemanticWeight is the rank-decay component weight (0.0-1.0).
	// Must sum to 1.0 with KeywordWeight.
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`
	// KeywordWeight is the BM25 component weight (0.0-1.0).
	KeywordWeight float64 `yaml:"keyword_weight" json:"keyword_weight"`
}

// EmbeddingsConfig configures the embedding backend.
type EmbeddingsConfig struct {
	// Provider selects the backend: "ollama" or "static" (offline).
	Provider string `yaml:"provider" json:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model" json:"model"`
	// Host is the Ollama API endpoint.
	Host string `yaml:"host" json:"host"`
	// BatchSize is texts per embedding request.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// Timeout bounds each embedding call.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// CacheSize is the number of query embeddings kept in the LRU cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// RerankConfig configures the cross-encoder reranking backend.
type RerankConfig struct {
	// Enabled turns cross-encoder reranking on. When disabled or when the
	// backend errors, search falls back to the fused order.
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Endpoint is the rerank service URL.
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// Timeout bounds each rerank call.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// ExtractConfig configures LLM-based definition extraction at index time.
type ExtractConfig struct {
	// Enabled turns structured definition extraction on. When disabled or
	// when the model errors, raw definition chunks are stored as-is.
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Model is the chat model used for extraction.
	Model string `yaml:"model" json:"model"`
	// Host is the Ollama API endpoint.
	Host string `yaml:"host" json:"host"`
	// Timeout bounds each extraction call.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// IngestConfig configures document chunking.
type IngestConfig struct {
	ChunkSize    int `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`
}

// SyncConfig configures directory reconciliation.
type SyncConfig struct {
	// Interval between timer-driven syncs in watch mode (0 = events only).
	Interval time.Duration `yaml:"interval" json:"interval"`
	// Debounce window for coalescing file events before a sync.
	Debounce time.Duration `yaml:"debounce" json:"debounce"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir: "./citewise_data",
			DocsDir: "./data",
		},
		Store: StoreConfig{
			Collection:     "legal_docs",
			Dimensions:     768,
			M:              16,
			EfConstruction: 200,
			EfSearch:       64,
		},
		Search: SearchConfig{
			SemanticTopK:   10,
			DefsTopK:       3,
			RerankTopK:     5,
			SemanticWeight: 0.6,
			KeywordWeight:  0.4,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "ollama",
			Model:     "nomic-embed-text",
			Host:      "http://localhost:11434",
			BatchSize: 32,
			Timeout:   60 * time.Second,
			CacheSize: 1000,
		},
		Rerank: RerankConfig{
			Enabled: false,
			Timeout: 10 * time.Second,
		},
		Extract: ExtractConfig{
			Enabled: false,
			Model:   "llama3",
			Host:    "http://localhost:11434",
			Timeout: 30 * time.Second,
		},
		Ingest: IngestConfig{
			ChunkSize:    1000,
			ChunkOverlap: 150,
		},
		Sync: SyncConfig{
			Interval: 0,
			Debounce: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the given path (or DefaultConfigFile if path
// is empty and it exists), applies CITEWISE_* environment overrides, and
// validates the result. A missing default file is not an error; a missing
// explicit path is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if path == "" {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// Defaults only
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv applies CITEWISE_* environment variable overrides.
// Environment has the highest precedence.
func (c *Config) applyEnv() {
	if v := os.Getenv("CITEWISE_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("CITEWISE_DOCS_DIR"); v != "" {
		c.Paths.DocsDir = v
	}
	if v := os.Getenv("CITEWISE_COLLECTION"); v != "" {
		c.Store.Collection = v
	}
	if v := os.Getenv("CITEWISE_EMBEDDING_DIM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Store.Dimensions = n
		}
	}
	if v := os.Getenv("CITEWISE_EMBEDDING_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("CITEWISE_OLLAMA_HOST"); v != "" {
		c.Embeddings.Host = v
		c.Extract.Host = v
	}
	if v := os.Getenv("CITEWISE_RERANK_ENDPOINT"); v != "" {
		c.Rerank.Endpoint = v
		c.Rerank.Enabled = true
	}
	if v := os.Getenv("CITEWISE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for invalid values.
// Called before any storage or backend client is constructed.
func (c *Config) Validate() error {
	if c.Paths.DataDir == "" {
		return fmt.Errorf("paths.data_dir must not be empty")
	}
	if c.Store.Collection == "" {
		return fmt.Errorf("store.collection must not be empty")
	}
	if c.Store.Dimensions <= 0 {
		return fmt.Errorf("store.dimensions must be positive, got %d", c.Store.Dimensions)
	}
	if c.Store.M <= 0 || c.Store.EfConstruction <= 0 || c.Store.EfSearch <= 0 {
		return fmt.Errorf("store HNSW parameters must be positive")
	}
	if c.Search.SemanticTopK <= 0 || c.Search.DefsTopK <= 0 || c.Search.RerankTopK <= 0 {
		return fmt.Errorf("search top-k values must be positive")
	}
	sum := c.Search.SemanticWeight + c.Search.KeywordWeight
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("search weights must sum to 1.0, got %.3f", sum)
	}
	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be positive")
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be in [0, chunk_size)")
	}
	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("embeddings.batch_size must be positive")
	}
	if c.Rerank.Enabled && c.Rerank.Endpoint == "" {
		return fmt.Errorf("rerank.endpoint required when rerank is enabled")
	}
	return nil
}

// DatabasePath returns the metadata database path under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "citewise.db")
}

// DefsCollection returns the definitions collection name.
func (c *Config) DefsCollection() string {
	return c.Store.Collection + "_defs"
}

// Save writes the configuration to the given path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
