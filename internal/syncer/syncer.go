// Package syncer reconciles a documents directory with the indexed
// collections. Files present on disk but absent from the index are
// ingested; sources indexed but no longer on disk are removed. The diff
// is name-based, so a modified file keeps its entry until it is deleted
// and re-added or re-indexed explicitly.
package syncer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/citewise/citewise/internal/embed"
	citeerrors "github.com/citewise/citewise/internal/errors"
	"github.com/citewise/citewise/internal/ingest"
	"github.com/citewise/citewise/internal/store"
)

// IndexSummary describes the outcome of indexing a single document.
type IndexSummary struct {
	Source          string `json:"source"`
	GeneralCount    int    `json:"general_count"`
	DefinitionCount int    `json:"definition_count"`
	Status          string `json:"status"`
}

// Report summarizes one reconciliation pass. All three lists hold bare
// source names; failure detail goes to the log.
type Report struct {
	Added       []string `json:"added"`
	Deleted     []string `json:"deleted"`
	Errors      []string `json:"errors"`
	TotalOnDisk int      `json:"total_on_disk"`
}

// Changed reports whether the pass touched the index at all.
func (r Report) Changed() bool {
	return len(r.Added) > 0 || len(r.Deleted) > 0
}

// Status is a snapshot of both collections.
type Status struct {
	GeneralCount    int      `json:"general_count"`
	DefinitionCount int      `json:"definition_count"`
	Sources         []string `json:"sources"`
}

// Engine drives ingestion and reconciliation against a store.
type Engine struct {
	store    *store.Store
	embedder embed.Embedder
	chunker  *ingest.Chunker
	registry *ingest.Registry

	general string
	defs    string
}

// NewEngine wires an ingestion engine. A nil chunker gets the default
// chunk geometry; a nil registry gets the built-in loaders.
func NewEngine(st *store.Store, embedder embed.Embedder, chunker *ingest.Chunker, registry *ingest.Registry, general, defs string) (*Engine, error) {
	if st == nil {
		return nil, fmt.Errorf("syncer: store is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("syncer: embedder is required")
	}
	if chunker == nil {
		chunker = ingest.NewChunker(0, 0, nil)
	}
	if registry == nil {
		registry = ingest.NewRegistry()
	}
	if general == "" {
		general = "citewise"
	}
	if defs == "" {
		defs = general + "_defs"
	}
	return &Engine{
		store:    st,
		embedder: embedder,
		chunker:  chunker,
		registry: registry,
		general:  general,
		defs:     defs,
	}, nil
}

// Supported reports whether the file name has a registered loader.
func (e *Engine) Supported(path string) bool {
	return e.registry.Supported(path)
}

// IndexSource loads, chunks, embeds, and stores one document. Existing
// chunks for the same source are removed first so a shrinking document
// leaves no stale entries behind.
func (e *Engine) IndexSource(ctx context.Context, path string) (IndexSummary, error) {
	source := filepath.Base(path)
	summary := IndexSummary{Source: source}

	loader, err := e.registry.LoaderFor(path)
	if err != nil {
		summary.Status = "unsupported"
		return summary, citeerrors.New(citeerrors.ErrCodeIndexFailed,
			fmt.Sprintf("no loader for %s", source), err)
	}

	pages, err := loader.Load(path)
	if err != nil {
		summary.Status = "load_failed"
		return summary, citeerrors.New(citeerrors.ErrCodeIndexFailed,
			fmt.Sprintf("load %s", source), err)
	}
	if len(pages) == 0 {
		summary.Status = "empty"
		return summary, citeerrors.New(citeerrors.ErrCodeIndexFailed,
			fmt.Sprintf("%s produced no text", source), nil)
	}

	general, definitions := e.chunker.ChunkPages(ctx, pages)
	if len(general) == 0 && len(definitions) == 0 {
		summary.Status = "empty"
		return summary, citeerrors.New(citeerrors.ErrCodeIndexFailed,
			fmt.Sprintf("%s produced no chunks", source), nil)
	}

	if err := e.ensureCollections(); err != nil {
		summary.Status = "error"
		return summary, err
	}
	if _, err := e.DeleteSource(ctx, source); err != nil {
		summary.Status = "error"
		return summary, err
	}

	if err := e.upsertChunks(ctx, e.general, general); err != nil {
		summary.Status = "error"
		return summary, err
	}
	if err := e.upsertChunks(ctx, e.defs, definitions); err != nil {
		summary.Status = "error"
		return summary, err
	}

	summary.GeneralCount = len(general)
	summary.DefinitionCount = len(definitions)
	summary.Status = "ok"

	slog.Info("indexed source",
		slog.String("source", source),
		slog.Int("general", len(general)),
		slog.Int("definitions", len(definitions)))
	return summary, nil
}

func (e *Engine) ensureCollections() error {
	for _, collection := range []string{e.general, e.defs} {
		if err := e.store.EnsureCollection(collection); err != nil {
			return err
		}
	}
	return nil
}

// upsertChunks embeds the chunk texts and writes them to one collection.
func (e *Engine) upsertChunks(ctx context.Context, collection string, chunks []store.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	_, err = e.store.Upsert(ctx, collection, chunks, vectors)
	return err
}

// DeleteSource removes a source from both collections and returns the
// number of chunks removed.
func (e *Engine) DeleteSource(ctx context.Context, source string) (int, error) {
	if err := e.ensureCollections(); err != nil {
		return 0, err
	}

	removed := 0
	for _, collection := range []string{e.general, e.defs} {
		n, err := e.store.DeleteBySource(ctx, collection, source)
		if err != nil {
			return removed, citeerrors.DeleteFailed(
				fmt.Sprintf("delete %s from %s", source, collection), err)
		}
		removed += n
	}
	return removed, nil
}

// Sync reconciles the documents tree against the general collection.
// Supported files anywhere under rootDir are keyed by basename, so
// duplicate names in different folders collapse to one entry. Additions
// run before deletions, both in sorted order so repeated passes behave
// identically. Per-source failures are recorded by name and do not abort
// the pass.
func (e *Engine) Sync(ctx context.Context, rootDir string) (Report, error) {
	report := Report{Added: []string{}, Deleted: []string{}, Errors: []string{}}

	onDisk := make(map[string]string) // basename -> full path
	walkErr := filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !e.registry.Supported(d.Name()) {
			return nil
		}
		onDisk[d.Name()] = path
		return nil
	})
	if walkErr != nil {
		return report, citeerrors.New(citeerrors.ErrCodeIndexFailed,
			fmt.Sprintf("scan documents directory %s", rootDir), walkErr)
	}
	report.TotalOnDisk = len(onDisk)

	if err := e.ensureCollections(); err != nil {
		return report, err
	}
	indexed, err := e.store.DistinctSources(ctx, e.general)
	if err != nil {
		return report, err
	}
	indexedSet := make(map[string]bool, len(indexed))
	for _, name := range indexed {
		indexedSet[name] = true
	}

	var toAdd, toDelete []string
	for name := range onDisk {
		if !indexedSet[name] {
			toAdd = append(toAdd, name)
		}
	}
	for _, name := range indexed {
		if _, ok := onDisk[name]; !ok {
			toDelete = append(toDelete, name)
		}
	}
	sort.Strings(toAdd)
	sort.Strings(toDelete)

	for _, name := range toAdd {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		summary, err := e.IndexSource(ctx, onDisk[name])
		if err != nil || summary.Status != "ok" {
			msg := summary.Status
			if err != nil {
				msg = err.Error()
			}
			report.Errors = append(report.Errors, name)
			slog.Warn("sync: indexing failed",
				slog.String("source", name),
				slog.String("status", summary.Status),
				slog.String("error", msg))
			continue
		}
		report.Added = append(report.Added, name)
	}

	for _, name := range toDelete {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if _, err := e.DeleteSource(ctx, name); err != nil {
			report.Errors = append(report.Errors, name)
			slog.Warn("sync: deletion failed",
				slog.String("source", name),
				slog.String("error", err.Error()))
			continue
		}
		report.Deleted = append(report.Deleted, name)
	}

	slog.Info("sync complete",
		slog.Int("added", len(report.Added)),
		slog.Int("deleted", len(report.Deleted)),
		slog.Int("errors", len(report.Errors)),
		slog.Int("on_disk", report.TotalOnDisk))
	return report, nil
}

// Status reports chunk counts for both collections and the indexed
// source names.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	var st Status

	if err := e.ensureCollections(); err != nil {
		return st, err
	}

	general, err := e.store.Stats(ctx, e.general)
	if err != nil {
		return st, err
	}
	defs, err := e.store.Stats(ctx, e.defs)
	if err != nil {
		return st, err
	}

	sources, err := e.store.DistinctSources(ctx, e.general)
	if err != nil {
		return st, err
	}

	st.GeneralCount = general.Chunks
	st.DefinitionCount = defs.Chunks
	st.Sources = sources
	return st, nil
}
