package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	citeerrors "github.com/citewise/citewise/internal/errors"
)

func testOptions() Options {
	return Options{Dimensions: 4, M: 16, EfConstruction: 200, EfSearch: 64}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), testOptions())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// unit-ish vectors along distinct axes so nearest-neighbor order is exact
func axisVector(axis int) []float32 {
	v := make([]float32, 4)
	v[axis%4] = 1
	return v
}

func TestOpen_RejectsZeroDimensions(t *testing.T) {
	_, err := Open(t.TempDir(), Options{})
	require.Error(t, err)
	assert.Equal(t, citeerrors.ErrCodeConfigInvalid, citeerrors.GetCode(err))
}

func TestOpen_SecondProcessBlockedByLock(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions()

	s1, err := Open(dir, opts)
	require.NoError(t, err)
	defer s1.Close()

	opts.LockTimeout = 200 * time.Millisecond
	_, err = Open(dir, opts)
	require.Error(t, err)
	assert.Equal(t, citeerrors.ErrCodeLockHeld, citeerrors.GetCode(err))
	assert.True(t, citeerrors.IsFatal(err))
}

func TestEnsureCollection_Idempotent(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.EnsureCollection("legal_docs"))
	require.NoError(t, s.EnsureCollection("legal_docs"))
	assert.ElementsMatch(t, []string{"legal_docs"}, s.Collections())
}

func TestUpsertAndSearch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureCollection("docs"))

	chunks := []Chunk{
		{ID: "a__p1__c0__deadbeef", Text: "termination clause", Source: "a.pdf", Page: 1},
		{ID: "b__p2__c1__cafef00d", Text: "rent schedule", Source: "b.pdf", Page: 2},
	}
	vectors := [][]float32{axisVector(0), axisVector(1)}
	n, err := s.Upsert(ctx, "docs", chunks, vectors)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hits, err := s.Search(ctx, "docs", axisVector(0), 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a__p1__c0__deadbeef", hits[0].Chunk.ID)
	assert.Equal(t, "termination clause", hits[0].Chunk.Text)
	assert.Equal(t, int32(1), hits[0].Chunk.Page)
	assert.InDelta(t, 1.0, float64(hits[0].Score), 1e-5)
}

func TestUpsert_ReplacesExistingID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureCollection("docs"))

	chunk := Chunk{ID: "c1", Text: "old text", Source: "a.pdf"}
	_, err := s.Upsert(ctx, "docs", []Chunk{chunk}, [][]float32{axisVector(0)})
	require.NoError(t, err)

	chunk.Text = "new text"
	_, err = s.Upsert(ctx, "docs", []Chunk{chunk}, [][]float32{axisVector(0)})
	require.NoError(t, err)

	stats, err := s.Stats(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Chunks)

	hits, err := s.Search(ctx, "docs", axisVector(0), 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "new text", hits[0].Chunk.Text)
}

func TestUpsert_EmptyIDGetsGenerated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureCollection("docs"))

	n, err := s.Upsert(ctx, "docs", []Chunk{{Text: "anonymous", Source: "a.pdf"}},
		[][]float32{axisVector(2)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	hits, err := s.Search(ctx, "docs", axisVector(2), 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.NotEmpty(t, hits[0].Chunk.ID)
}

func TestUpsert_Validation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureCollection("docs"))

	t.Run("dimension mismatch", func(t *testing.T) {
		n, err := s.Upsert(ctx, "docs", []Chunk{{ID: "x", Text: "t", Source: "a.pdf"}},
			[][]float32{{1, 2}})
		require.Error(t, err)
		assert.Zero(t, n)
		assert.Equal(t, citeerrors.ErrCodeDimensionMismatch, citeerrors.GetCode(err))
	})

	t.Run("invalid source", func(t *testing.T) {
		_, err := s.Upsert(ctx, "docs", []Chunk{{ID: "x", Text: "t", Source: "a'.pdf"}},
			[][]float32{axisVector(0)})
		require.Error(t, err)
		assert.Equal(t, citeerrors.ErrCodeInvalidSourceName, citeerrors.GetCode(err))
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := s.Upsert(ctx, "docs", []Chunk{{ID: "x", Text: "t", Source: "a.pdf"}}, nil)
		require.Error(t, err)
	})

	t.Run("failed batch leaves store unchanged", func(t *testing.T) {
		stats, err := s.Stats(ctx, "docs")
		require.NoError(t, err)
		assert.Zero(t, stats.Chunks)
	})
}

func TestSearch_MissingCollection(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Search(context.Background(), "ghost", axisVector(0), 3)
	require.Error(t, err)
	assert.Equal(t, citeerrors.ErrCodeSchemaError, citeerrors.GetCode(err))
}

func TestSearch_EmptyCollection(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.EnsureCollection("docs"))

	hits, err := s.Search(context.Background(), "docs", axisVector(0), 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestDeleteBySource(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureCollection("docs"))

	chunks := []Chunk{
		{ID: "a1", Text: "one", Source: "a.pdf"},
		{ID: "a2", Text: "two", Source: "a.pdf"},
		{ID: "b1", Text: "three", Source: "b.pdf"},
	}
	vectors := [][]float32{axisVector(0), axisVector(1), axisVector(2)}
	_, err := s.Upsert(ctx, "docs", chunks, vectors)
	require.NoError(t, err)

	deleted, err := s.DeleteBySource(ctx, "docs", "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	// Deleted chunks no longer surface in search
	hits, err := s.Search(ctx, "docs", axisVector(0), 5)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, "a.pdf", h.Chunk.Source)
	}

	sources, err := s.DistinctSources(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, []string{"b.pdf"}, sources)
}

func TestDeleteBySource_UnknownSourceIsNoOp(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.EnsureCollection("docs"))

	deleted, err := s.DeleteBySource(context.Background(), "docs", "ghost.pdf")
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestDeleteBySource_RejectsInvalidName(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.EnsureCollection("docs"))

	_, err := s.DeleteBySource(context.Background(), "docs", "x'; DROP TABLE chunks;--")
	require.Error(t, err)
	assert.Equal(t, citeerrors.ErrCodeInvalidSourceName, citeerrors.GetCode(err))
}

func TestDistinctSources_SortedAndComplete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureCollection("docs"))

	var chunks []Chunk
	var vectors [][]float32
	for i := 0; i < 5; i++ {
		chunks = append(chunks, Chunk{
			ID:     fmt.Sprintf("c%d", i),
			Text:   "text",
			Source: fmt.Sprintf("doc_%d.pdf", 4-i), // inserted out of order
		})
		vectors = append(vectors, axisVector(i))
	}
	_, err := s.Upsert(ctx, "docs", chunks, vectors)
	require.NoError(t, err)

	sources, err := s.DistinctSources(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc_0.pdf", "doc_1.pdf", "doc_2.pdf", "doc_3.pdf", "doc_4.pdf"}, sources)
}

func TestStats_MissingCollectionIsZero(t *testing.T) {
	s := openTestStore(t)

	stats, err := s.Stats(context.Background(), "never_made")
	require.NoError(t, err)
	assert.Equal(t, CollectionStats{Name: "never_made"}, stats)
}

func TestPersistence_AcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1, err := Open(dir, testOptions())
	require.NoError(t, err)
	require.NoError(t, s1.EnsureCollection("docs"))
	_, err = s1.Upsert(ctx, "docs",
		[]Chunk{{ID: "p1", Text: "persisted", Source: "a.pdf"}},
		[][]float32{axisVector(3)})
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(dir, testOptions())
	require.NoError(t, err)
	defer s2.Close()
	require.NoError(t, s2.EnsureCollection("docs"))

	hits, err := s2.Search(ctx, "docs", axisVector(3), 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "persisted", hits[0].Chunk.Text)
}

func TestSave_PersistsGraphsWhileOpen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir, testOptions())
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.EnsureCollection("docs"))
	_, err = s.Upsert(ctx, "docs",
		[]Chunk{{ID: "p1", Text: "persisted", Source: "a.pdf"}},
		[][]float32{axisVector(3)})
	require.NoError(t, err)

	require.NoError(t, s.Save())

	info, err := os.Stat(graphPath(dir, "docs"))
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestSave_ClosedStoreFails(t *testing.T) {
	s, err := Open(t.TempDir(), testOptions())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = s.Save()
	require.Error(t, err)
	assert.Equal(t, citeerrors.ErrCodeStoreUnavailable, citeerrors.GetCode(err))
}

func TestClose_Idempotent(t *testing.T) {
	s, err := Open(t.TempDir(), testOptions())
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err = s.EnsureCollection("docs")
	require.Error(t, err)
	assert.Equal(t, citeerrors.ErrCodeStoreUnavailable, citeerrors.GetCode(err))
}
