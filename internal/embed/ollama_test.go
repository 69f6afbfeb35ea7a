package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	citeerrors "github.com/citewise/citewise/internal/errors"
)

func newEmbedServer(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"models":[{"name":"nomic-embed-text"}]}`)) //nolint:errcheck
		case "/api/embed":
			var req ollamaEmbedRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			texts := req.Input.([]any)
			embeddings := make([][]float32, len(texts))
			for i := range texts {
				embeddings[i] = make([]float32, dims)
				embeddings[i][0] = 1
			}
			json.NewEncoder(w).Encode(ollamaEmbedResponse{ //nolint:errcheck
				Model:      req.Model,
				Embeddings: embeddings,
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestOllamaEmbedder_EmbedBatch(t *testing.T) {
	srv := newEmbedServer(t, 8)
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL, Dimensions: 8, BatchSize: 2})
	defer e.Close()

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Len(t, vecs[0], 8)
}

func TestOllamaEmbedder_DimensionMismatchNotRetried(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(ollamaEmbedResponse{ //nolint:errcheck
			Embeddings: [][]float32{{1, 2, 3}},
		})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL, Dimensions: 8, MaxRetries: 3})
	defer e.Close()

	_, err := e.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Equal(t, citeerrors.ErrCodeDimensionMismatch, citeerrors.GetCode(err))
	assert.Equal(t, int64(1), calls.Load())
}

func TestOllamaEmbedder_RetriesTransientFailure(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{ //nolint:errcheck
			Embeddings: [][]float32{{1, 0, 0, 0}},
		})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL, Dimensions: 4, MaxRetries: 2})
	defer e.Close()

	vec, err := e.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
	assert.Equal(t, int64(2), calls.Load())
}

func TestOllamaEmbedder_Available(t *testing.T) {
	srv := newEmbedServer(t, 8)
	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL})
	assert.True(t, e.Available(context.Background()))

	srv.Close()
	assert.False(t, e.Available(context.Background()))
	assert.NoError(t, e.Close())
}

func TestOllamaEmbedder_ClosedRejectsCalls(t *testing.T) {
	e := NewOllamaEmbedder(OllamaConfig{Host: "http://localhost:1"})
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Equal(t, citeerrors.ErrCodeEmbeddingFailed, citeerrors.GetCode(err))
}

func TestOllamaEmbedder_EmptyBatch(t *testing.T) {
	e := NewOllamaEmbedder(OllamaConfig{Host: "http://localhost:1", Timeout: time.Second})
	defer e.Close()

	vecs, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}
