package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/citewise/citewise/internal/embed"
	citeerrors "github.com/citewise/citewise/internal/errors"
	"github.com/citewise/citewise/internal/store"
)

// Retriever is the top-level query entry point. It runs the general fusion
// path and the definitions path in parallel and returns both result sets.
type Retriever struct {
	store    *store.Store
	embedder embed.Embedder
	reranker Reranker
	cfg      Config
}

// NewRetriever wires the retriever. Store and embedder are required; a nil
// reranker falls back to NoOpReranker.
func NewRetriever(s *store.Store, e embed.Embedder, r Reranker, cfg Config) (*Retriever, error) {
	if s == nil {
		return nil, fmt.Errorf("store is required")
	}
	if e == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if r == nil {
		r = &NoOpReranker{}
	}
	if cfg.SemanticTopK <= 0 {
		cfg.SemanticTopK = DefaultSemanticTopK
	}
	if cfg.DefsTopK <= 0 {
		cfg.DefsTopK = DefaultDefsTopK
	}
	if cfg.RerankTopK <= 0 {
		cfg.RerankTopK = DefaultRerankTopK
	}
	if cfg.SemanticWeight == 0 && cfg.KeywordWeight == 0 {
		cfg.SemanticWeight = DefaultSemanticWeight
		cfg.KeywordWeight = DefaultKeywordWeight
	}
	return &Retriever{store: s, embedder: e, reranker: r, cfg: cfg}, nil
}

// Retrieve answers a query with a ranked general result set and a
// definitions result set. The query is embedded once and reused for both
// collections. On an unrecoverable internal error both lists come back
// empty alongside the error, never partially filled.
func (r *Retriever) Retrieve(ctx context.Context, query string) (general, definitions []Result, err error) {
	if strings.TrimSpace(query) == "" {
		return []Result{}, []Result{}, citeerrors.New(citeerrors.ErrCodeQueryEmpty,
			"query must not be empty", nil)
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return []Result{}, []Result{}, citeerrors.SearchFailed("embed query", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var gerr error
		general, gerr = r.generalPath(gctx, query, vector)
		return gerr
	})
	g.Go(func() error {
		var derr error
		definitions, derr = r.definitionsPath(gctx, vector)
		return derr
	})

	if err := g.Wait(); err != nil {
		return []Result{}, []Result{}, err
	}
	return general, definitions, nil
}

// generalPath runs semantic retrieval, BM25 fusion, and reranking. A
// reranker failure falls back to the fused order and is logged, never
// surfaced to the caller.
func (r *Retriever) generalPath(ctx context.Context, query string, vector []float32) ([]Result, error) {
	hits, err := r.store.Search(ctx, r.cfg.GeneralCollection, vector, r.cfg.SemanticTopK)
	if err != nil {
		return nil, err
	}

	fused := Fuse(query, hits, r.cfg.SemanticWeight, r.cfg.KeywordWeight)
	if len(fused) == 0 {
		return []Result{}, nil
	}

	texts := make([]string, len(fused))
	for i, res := range fused {
		texts[i] = res.Chunk.Text
	}

	ranked, err := r.reranker.Rerank(ctx, query, texts, r.cfg.RerankTopK)
	if err != nil {
		slog.Warn("rerank failed, using fused order", "error", err)
		if len(fused) > r.cfg.RerankTopK {
			fused = fused[:r.cfg.RerankTopK]
		}
		return fused, nil
	}

	out := make([]Result, 0, len(ranked))
	for _, item := range ranked {
		res := fused[item.Index]
		res.Score = item.Score
		out = append(out, res)
	}
	return out, nil
}

// definitionsPath is semantic-only; the vector order is final.
func (r *Retriever) definitionsPath(ctx context.Context, vector []float32) ([]Result, error) {
	hits, err := r.store.Search(ctx, r.cfg.DefsCollection, vector, r.cfg.DefsTopK)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{
			Chunk:         h.Chunk,
			Score:         float64(h.Score),
			SemanticScore: h.Score,
		}
	}
	return results, nil
}
