package search

import "context"

// RerankResult is a single reranked document.
type RerankResult struct {
	// Index is the original position in the input documents slice.
	Index int

	// Score is the cross-encoder relevance score.
	Score float64
}

// Reranker reorders documents by relevance to the query using a
// cross-encoder. Cross-encoders jointly encode query-document pairs for
// higher precision than bi-encoders at higher latency, so they run only
// over the small fused candidate list.
type Reranker interface {
	// Rerank scores the documents and returns results sorted by score
	// descending, truncated to topK (0 = all).
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error)

	// Available reports whether the reranking backend is reachable.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// NoOpReranker preserves the incoming order. Used when reranking is
// disabled.
type NoOpReranker struct{}

var _ Reranker = (*NoOpReranker)(nil)

// Rerank returns documents in original order with decreasing scores.
func (n *NoOpReranker) Rerank(_ context.Context, _ string, documents []string, topK int) ([]RerankResult, error) {
	results := make([]RerankResult, len(documents))
	for i := range documents {
		results[i] = RerankResult{
			Index: i,
			Score: 1.0 - float64(i)*0.01, // 1.0, 0.99, 0.98, ...
		}
	}
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (n *NoOpReranker) Available(context.Context) bool { return true }

func (n *NoOpReranker) Close() error { return nil }
