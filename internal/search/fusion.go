package search

import (
	"sort"

	"github.com/citewise/citewise/internal/keyword"
	"github.com/citewise/citewise/internal/store"
)

// Fuse re-scores the semantic candidates with BM25, blends the two signals,
// and deduplicates by chunk ID.
//
// The semantic component is a rank-decay score (n-i)/n over the candidate
// order, not the raw similarity, so the blend is scale-free. BM25 scores are
// max-normalized over the candidate set. Ties keep semantic order: the sort
// is stable over candidates already in semantic rank order.
func Fuse(query string, hits []store.SearchHit, semanticWeight, keywordWeight float64) []Result {
	if len(hits) == 0 {
		return []Result{}
	}

	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Chunk.Text
	}
	kwScores := keyword.Normalize(keyword.Scores(query, texts))

	n := float64(len(hits))
	results := make([]Result, len(hits))
	for i, h := range hits {
		semRank := (n - float64(i)) / n
		results[i] = Result{
			Chunk:         h.Chunk,
			Score:         semanticWeight*semRank + keywordWeight*kwScores[i],
			SemanticScore: h.Score,
			KeywordScore:  kwScores[i],
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return dedupeByID(results)
}

// dedupeByID keeps the first (highest-combined-score) occurrence of each
// chunk ID.
func dedupeByID(results []Result) []Result {
	seen := make(map[string]struct{}, len(results))
	out := results[:0]
	for _, r := range results {
		if _, ok := seen[r.Chunk.ID]; ok {
			continue
		}
		seen[r.Chunk.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}
