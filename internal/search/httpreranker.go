package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	citeerrors "github.com/citewise/citewise/internal/errors"
)

// rerankRequest is the JSON body sent to the rerank service.
type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopK      int      `json:"top_k,omitempty"`
}

// rerankResponse mirrors the common cross-encoder service reply shape.
type rerankResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float64 `json:"relevance_score"`
	} `json:"results"`
}

// HTTPReranker calls an external cross-encoder service over HTTP.
type HTTPReranker struct {
	client   *http.Client
	endpoint string
	timeout  time.Duration
}

var _ Reranker = (*HTTPReranker)(nil)

// NewHTTPReranker creates a reranker against the given endpoint.
func NewHTTPReranker(endpoint string, timeout time.Duration) *HTTPReranker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPReranker{
		client:   &http.Client{},
		endpoint: endpoint,
		timeout:  timeout,
	}
}

// Rerank posts the query and documents and returns results sorted by score
// descending. Out-of-range indices in the reply are an error: a reply that
// cannot be mapped back to the candidates must not silently reorder them.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	if len(documents) == 0 {
		return []RerankResult{}, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	body, err := json.Marshal(rerankRequest{Query: query, Documents: documents, TopK: topK})
	if err != nil {
		return nil, citeerrors.New(citeerrors.ErrCodeRerankUnavailable, "marshal rerank request", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, citeerrors.New(citeerrors.ErrCodeRerankUnavailable, "build rerank request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, citeerrors.New(citeerrors.ErrCodeRerankUnavailable, "rerank request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, citeerrors.New(citeerrors.ErrCodeRerankUnavailable,
			fmt.Sprintf("rerank service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data))), nil)
	}

	var out rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, citeerrors.New(citeerrors.ErrCodeRerankUnavailable, "decode rerank response", err)
	}

	results := make([]RerankResult, 0, len(out.Results))
	for _, item := range out.Results {
		if item.Index < 0 || item.Index >= len(documents) {
			return nil, citeerrors.New(citeerrors.ErrCodeRerankUnavailable,
				fmt.Sprintf("rerank reply references document %d of %d", item.Index, len(documents)), nil)
		}
		results = append(results, RerankResult{Index: item.Index, Score: item.Score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Available probes the endpoint with a HEAD request.
func (r *HTTPReranker) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, r.endpoint, nil)
	if err != nil {
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// Close releases pooled connections.
func (r *HTTPReranker) Close() error {
	r.client.CloseIdleConnections()
	return nil
}
