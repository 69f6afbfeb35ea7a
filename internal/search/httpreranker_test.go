package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	citeerrors "github.com/citewise/citewise/internal/errors"
)

func TestHTTPReranker_Rerank(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "termination notice", req.Query)
		require.Len(t, req.Documents, 3)

		// Score the last document highest
		w.Write([]byte(`{"results":[` + //nolint:errcheck
			`{"index":2,"relevance_score":0.95},` +
			`{"index":0,"relevance_score":0.40},` +
			`{"index":1,"relevance_score":0.10}]}`))
	}))
	defer srv.Close()

	r := NewHTTPReranker(srv.URL, 0)
	defer r.Close()

	results, err := r.Rerank(context.Background(), "termination notice",
		[]string{"doc a", "doc b", "doc c"}, 2)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, 2, results[0].Index)
	assert.Equal(t, 0, results[1].Index)
}

func TestHTTPReranker_OutOfRangeIndexIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"index":7,"relevance_score":0.9}]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	r := NewHTTPReranker(srv.URL, 0)
	defer r.Close()

	_, err := r.Rerank(context.Background(), "q", []string{"only doc"}, 0)
	require.Error(t, err)
	assert.Equal(t, citeerrors.ErrCodeRerankUnavailable, citeerrors.GetCode(err))
}

func TestHTTPReranker_ServiceDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := NewHTTPReranker(srv.URL, 0)
	defer r.Close()

	_, err := r.Rerank(context.Background(), "q", []string{"doc"}, 0)
	require.Error(t, err)
	assert.Equal(t, citeerrors.ErrCodeRerankUnavailable, citeerrors.GetCode(err))
}

func TestHTTPReranker_EmptyDocuments(t *testing.T) {
	r := NewHTTPReranker("http://localhost:1", 0)
	defer r.Close()

	results, err := r.Rerank(context.Background(), "q", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestNoOpReranker_PreservesOrder(t *testing.T) {
	r := &NoOpReranker{}

	results, err := r.Rerank(context.Background(), "q", []string{"a", "b", "c"}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].Index)
	assert.Equal(t, 1, results[1].Index)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.True(t, r.Available(context.Background()))
}
