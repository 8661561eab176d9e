// Package project wires the indexing, search and memory components for one
// project root.
package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dshills/reporecall/internal/config"
	"github.com/dshills/reporecall/internal/embedder"
	"github.com/dshills/reporecall/internal/indexer"
	"github.com/dshills/reporecall/internal/memory"
	"github.com/dshills/reporecall/internal/scope"
	"github.com/dshills/reporecall/internal/searcher"
	"github.com/dshills/reporecall/internal/storage"
	"github.com/dshills/reporecall/internal/symbols"
	"github.com/dshills/reporecall/internal/vectorindex"
)

// Project holds the components of one project root. The indexer and the
// searcher share one index store.
type Project struct {
	Root     *scope.Root
	Config   *config.Config
	StateDir string

	Store    *storage.IndexStore
	Indexer  *indexer.Indexer
	Searcher *searcher.Searcher
	Memory   *memory.Store
	Vectors  vectorindex.Index

	// Lock serializes builds started through this Project
	Lock *indexer.BuildLock
}

// Open builds the component graph for projectRoot. A nil cfg loads the
// project's config file. An embedding backend that cannot be created
// leaves the memory store on keyword-only retrieval.
func Open(projectRoot string, cfg *config.Config, logger *slog.Logger) (*Project, error) {
	if logger == nil {
		logger = slog.Default()
	}

	root, err := scope.NewRoot(projectRoot)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		if cfg, err = config.Load(config.Path(root.Path)); err != nil {
			return nil, err
		}
	}
	stateDir := cfg.StateDir(root.Path)

	store := storage.NewIndexStore(stateDir, logger)
	extractor := symbols.New(cfg.Symbols, logger)

	var emb embedder.Embedder
	if emb, err = embedder.New(cfg.Embedding); err != nil {
		if errors.Is(err, embedder.ErrNoProviderEnabled) {
			logger.Debug("no embedding provider, memory retrieval is keyword-only")
		} else {
			logger.Warn("embedding provider unavailable, memory retrieval is keyword-only",
				"provider", cfg.Embedding.Provider, "error", err)
		}
		emb = nil
	}
	vectors := vectorindex.Open(stateDir, emb, logger)

	p := &Project{
		Root:     root,
		Config:   cfg,
		StateDir: stateDir,
		Store:    store,
		Indexer:  indexer.New(root, store, extractor, cfg.Index, logger),
		Searcher: searcher.NewSearcher(store, logger),
		Memory:   memory.NewStore(stateDir, cfg.Memory, vectors, logger),
		Vectors:  vectors,
		Lock:     &indexer.BuildLock{},
	}
	logger.Debug("project opened",
		"root", root.Path, "state_dir", stateDir,
		"extractor", extractor.Name(), "vectors", vectors.Available())
	return p, nil
}

// Build runs Init or Reindex under the build lock and drops cached source
// lines once a new index is in place
func (p *Project) Build(ctx context.Context, reindex bool, opts indexer.Options) (*indexer.Summary, error) {
	var summary *indexer.Summary
	err := p.Lock.Guard(func() error {
		var err error
		if reindex {
			summary, err = p.Indexer.Reindex(ctx, opts)
		} else {
			summary, err = p.Indexer.Init(ctx, opts)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if !summary.Skipped {
		p.Searcher.InvalidateCache()
	}
	return summary, nil
}

// Close releases the vector index
func (p *Project) Close() error {
	if err := p.Vectors.Close(); err != nil {
		return fmt.Errorf("failed to close vector index: %w", err)
	}
	return nil
}
