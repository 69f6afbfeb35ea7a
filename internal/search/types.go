// Package search answers queries by fusing semantic retrieval with BM25
// keyword scoring and an optional cross-encoder reranking pass.
//
// The general path runs three stages over one semantic candidate pool:
// BM25 re-scoring of the candidates, a weighted rank/keyword blend, and
// reranking. The definitions path is semantic-only; its vector order is
// final.
package search

import "github.com/citewise/citewise/internal/store"

// Default retrieval parameters.
const (
	DefaultSemanticTopK = 10
	DefaultDefsTopK     = 3
	DefaultRerankTopK   = 5

	DefaultSemanticWeight = 0.6
	DefaultKeywordWeight  = 0.4
)

// Config holds the hybrid retrieval parameters.
type Config struct {
	// SemanticTopK is the candidate pool size for the general path.
	SemanticTopK int

	// DefsTopK is the result count for the definitions path.
	DefsTopK int

	// RerankTopK is the final result count after reranking.
	RerankTopK int

	// SemanticWeight scales the rank-decay component of the blend.
	SemanticWeight float64

	// KeywordWeight scales the normalized BM25 component.
	KeywordWeight float64

	// GeneralCollection and DefsCollection name the two collections.
	GeneralCollection string
	DefsCollection    string
}

// DefaultConfig returns the standard retrieval parameters.
func DefaultConfig(general, defs string) Config {
	return Config{
		SemanticTopK:      DefaultSemanticTopK,
		DefsTopK:          DefaultDefsTopK,
		RerankTopK:        DefaultRerankTopK,
		SemanticWeight:    DefaultSemanticWeight,
		KeywordWeight:     DefaultKeywordWeight,
		GeneralCollection: general,
		DefsCollection:    defs,
	}
}

// Result is one fused retrieval hit.
type Result struct {
	Chunk store.Chunk `json:"chunk"`

	// Score is the combined score: blend of semantic rank decay and
	// normalized BM25, or the reranker score after the rerank stage.
	Score float64 `json:"score"`

	// SemanticScore is the vector similarity from the store.
	SemanticScore float32 `json:"semantic_score"`

	// KeywordScore is the normalized BM25 score over the candidate set.
	KeywordScore float64 `json:"keyword_score"`
}
