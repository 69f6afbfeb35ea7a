package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/citewise/citewise/internal/config"
	"github.com/citewise/citewise/internal/embed"
	"github.com/citewise/citewise/internal/ingest"
	"github.com/citewise/citewise/internal/logging"
	"github.com/citewise/citewise/internal/search"
	"github.com/citewise/citewise/internal/store"
	"github.com/citewise/citewise/internal/syncer"
	"github.com/citewise/citewise/internal/ui"
)

// app holds the wired dependency graph for one command invocation.
// Construction order: config, logging, store, embedder, reranker,
// retriever, ingestion engine. Close releases in reverse.
type app struct {
	cfg       *config.Config
	store     *store.Store
	embedder  embed.Embedder
	reranker  search.Reranker
	retriever *search.Retriever
	engine    *syncer.Engine
	render    *ui.Renderer

	cleanups []func()
}

// newApp loads configuration and wires every component a command may need.
func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	logCfg := logging.DefaultConfig()
	if opts.debug {
		logCfg = logging.DebugConfig()
	} else if cfg.Logging.Level != "" {
		logCfg.Level = cfg.Logging.Level
	}
	logCfg.FilePath = cfg.Logging.File
	// Keep stderr clean; command results go to stdout via the renderer.
	logCfg.WriteToStderr = false
	logCleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, cleanups: []func(){logCleanup}}
	a.render = ui.NewRenderer(cmd.OutOrStdout(), opts.noColor)

	a.store, err = store.Open(cfg.Paths.DataDir, store.Options{
		Dimensions:     cfg.Store.Dimensions,
		M:              cfg.Store.M,
		EfConstruction: cfg.Store.EfConstruction,
		EfSearch:       cfg.Store.EfSearch,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.cleanups = append(a.cleanups, func() {
		if err := a.store.Close(); err != nil {
			slog.Error("close store", slog.String("error", err.Error()))
		}
	})

	// Load (or create) both collections up front so saved graphs are
	// available to every command.
	for _, name := range []string{cfg.Store.Collection, cfg.DefsCollection()} {
		if err := a.store.EnsureCollection(name); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.embedder, err = embed.New(cfg.Embeddings, cfg.Store.Dimensions)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.cleanups = append(a.cleanups, func() { _ = a.embedder.Close() })

	if cfg.Rerank.Enabled {
		hr := search.NewHTTPReranker(cfg.Rerank.Endpoint, cfg.Rerank.Timeout)
		a.reranker = hr
		a.cleanups = append(a.cleanups, func() { _ = hr.Close() })
	}

	searchCfg := search.DefaultConfig(cfg.Store.Collection, cfg.DefsCollection())
	searchCfg.SemanticTopK = cfg.Search.SemanticTopK
	searchCfg.DefsTopK = cfg.Search.DefsTopK
	searchCfg.RerankTopK = cfg.Search.RerankTopK
	searchCfg.SemanticWeight = cfg.Search.SemanticWeight
	searchCfg.KeywordWeight = cfg.Search.KeywordWeight

	a.retriever, err = search.NewRetriever(a.store, a.embedder, a.reranker, searchCfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	var extractor ingest.Extractor
	if cfg.Extract.Enabled {
		extractor = ingest.NewOllamaExtractor(cfg.Extract.Host, cfg.Extract.Model, cfg.Extract.Timeout)
	}
	chunker := ingest.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap, extractor)

	a.engine, err = syncer.NewEngine(a.store, a.embedder, chunker, nil,
		cfg.Store.Collection, cfg.DefsCollection())
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

// Close releases resources in reverse construction order.
func (a *app) Close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
}
