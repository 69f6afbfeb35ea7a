package embed

import (
	"fmt"

	"github.com/citewise/citewise/internal/config"
)

// New constructs the embedder selected by the configuration and wraps it
// with an LRU cache.
func New(cfg config.EmbeddingsConfig, dims int) (Embedder, error) {
	var inner Embedder
	switch cfg.Provider {
	case "", "ollama":
		inner = NewOllamaEmbedder(OllamaConfig{
			Host:       cfg.Host,
			Model:      cfg.Model,
			Dimensions: dims,
			BatchSize:  cfg.BatchSize,
			Timeout:    cfg.Timeout,
		})
	case "static":
		inner = NewStaticEmbedder(dims)
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", cfg.Provider)
	}
	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}
