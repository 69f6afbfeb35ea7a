package syncer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citewise/citewise/internal/embed"
	"github.com/citewise/citewise/internal/ingest"
	"github.com/citewise/citewise/internal/store"
)

const testDims = 32

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()

	st, err := store.Open(t.TempDir(), store.Options{Dimensions: testDims})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	chunker := ingest.NewChunker(400, 40, nil)
	engine, err := NewEngine(st, embed.NewStaticEmbedder(testDims), chunker, nil, "docs", "docs_defs")
	require.NoError(t, err)

	return engine, t.TempDir()
}

func writeDoc(t *testing.T, dir, name, text string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestSync_AddsNewFiles(t *testing.T) {
	engine, docs := newTestEngine(t)
	writeDoc(t, docs, "lease.txt", "The lease runs for twelve months from the signing date.")
	writeDoc(t, docs, "notes.md", "Termination requires sixty days written notice.")
	writeDoc(t, docs, "scan.bin", "binary payload")
	require.NoError(t, os.Mkdir(filepath.Join(docs, "archive"), 0o755))

	report, err := engine.Sync(context.Background(), docs)
	require.NoError(t, err)

	assert.Equal(t, []string{"lease.txt", "notes.md"}, report.Added)
	assert.Empty(t, report.Deleted)
	assert.Empty(t, report.Errors)
	assert.Equal(t, 2, report.TotalOnDisk)
	assert.True(t, report.Changed())

	status, err := engine.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, status.GeneralCount)
	assert.Equal(t, []string{"lease.txt", "notes.md"}, status.Sources)
}

func TestSync_IndexesNestedDirectories(t *testing.T) {
	engine, docs := newTestEngine(t)
	nested := filepath.Join(docs, "contracts", "2026")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	writeDoc(t, docs, "lease.txt", "The lease runs for twelve months.")
	writeDoc(t, nested, "rider.md", "The rider amends the termination clause.")

	report, err := engine.Sync(context.Background(), docs)
	require.NoError(t, err)

	assert.Equal(t, []string{"lease.txt", "rider.md"}, report.Added)
	assert.Equal(t, 2, report.TotalOnDisk)

	status, err := engine.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"lease.txt", "rider.md"}, status.Sources)
}

func TestSync_SecondPassIsNoOp(t *testing.T) {
	engine, docs := newTestEngine(t)
	writeDoc(t, docs, "lease.txt", "The lease runs for twelve months.")

	_, err := engine.Sync(context.Background(), docs)
	require.NoError(t, err)

	report, err := engine.Sync(context.Background(), docs)
	require.NoError(t, err)
	assert.Empty(t, report.Added)
	assert.Empty(t, report.Deleted)
	assert.Empty(t, report.Errors)
	assert.False(t, report.Changed())
}

func TestSync_RemovesVanishedSources(t *testing.T) {
	engine, docs := newTestEngine(t)
	lease := writeDoc(t, docs, "lease.txt", "The lease runs for twelve months.")
	writeDoc(t, docs, "notes.md", "Termination requires written notice.")

	_, err := engine.Sync(context.Background(), docs)
	require.NoError(t, err)

	require.NoError(t, os.Remove(lease))

	report, err := engine.Sync(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, []string{"lease.txt"}, report.Deleted)
	assert.Empty(t, report.Added)
	assert.Equal(t, 1, report.TotalOnDisk)

	status, err := engine.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"notes.md"}, status.Sources)
}

func TestSync_EmptyFileIsReportedNotAdded(t *testing.T) {
	engine, docs := newTestEngine(t)
	writeDoc(t, docs, "blank.txt", "   \n\n  ")
	writeDoc(t, docs, "real.txt", "Actual lease content.")

	report, err := engine.Sync(context.Background(), docs)
	require.NoError(t, err)

	assert.Equal(t, []string{"real.txt"}, report.Added)
	// Error entries carry the bare source name, same shape as Added.
	assert.Equal(t, []string{"blank.txt"}, report.Errors)

	// The failed file stays off the index, so the next pass retries it.
	report, err = engine.Sync(context.Background(), docs)
	require.NoError(t, err)
	assert.Len(t, report.Errors, 1)
}

func TestIndexSource_DefinitionsGoToDefsCollection(t *testing.T) {
	engine, docs := newTestEngine(t)
	path := writeDoc(t, docs, "contract.txt",
		`Definitions

"Tenant" means the person renting the premises. "Landlord" shall mean the registered owner of the premises.`)

	summary, err := engine.IndexSource(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "ok", summary.Status)
	assert.Equal(t, "contract.txt", summary.Source)
	assert.Positive(t, summary.DefinitionCount)

	status, err := engine.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, summary.DefinitionCount, status.DefinitionCount)
}

func TestIndexSource_ReindexLeavesNoStaleChunks(t *testing.T) {
	engine, docs := newTestEngine(t)
	long := ""
	for i := 0; i < 20; i++ {
		long += "The lease obligations continue for the full rental period.\n\n"
	}
	path := writeDoc(t, docs, "lease.txt", long)

	first, err := engine.IndexSource(context.Background(), path)
	require.NoError(t, err)
	require.Greater(t, first.GeneralCount, 1)

	writeDoc(t, docs, "lease.txt", "Short replacement text.")

	second, err := engine.IndexSource(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, second.GeneralCount)

	status, err := engine.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, status.GeneralCount)
}

func TestIndexSource_UnsupportedExtension(t *testing.T) {
	engine, docs := newTestEngine(t)
	path := writeDoc(t, docs, "scan.bin", "payload")

	summary, err := engine.IndexSource(context.Background(), path)
	require.Error(t, err)
	assert.Equal(t, "unsupported", summary.Status)
}

func TestDeleteSource_UnknownSourceIsZero(t *testing.T) {
	engine, _ := newTestEngine(t)

	removed, err := engine.DeleteSource(context.Background(), "missing.txt")
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestSync_MissingDirectoryFails(t *testing.T) {
	engine, docs := newTestEngine(t)

	_, err := engine.Sync(context.Background(), filepath.Join(docs, "nope"))
	require.Error(t, err)
}

func TestNewEngine_RequiresDependencies(t *testing.T) {
	_, err := NewEngine(nil, embed.NewStaticEmbedder(testDims), nil, nil, "a", "b")
	require.Error(t, err)

	st, err := store.Open(t.TempDir(), store.Options{Dimensions: testDims})
	require.NoError(t, err)
	defer st.Close()

	_, err = NewEngine(st, nil, nil, nil, "a", "b")
	require.Error(t, err)
}
