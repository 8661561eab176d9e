package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/reporecall/internal/chunker"
	"github.com/dshills/reporecall/internal/config"
	"github.com/dshills/reporecall/internal/endpoints"
	"github.com/dshills/reporecall/internal/manifest"
	"github.com/dshills/reporecall/internal/scope"
	"github.com/dshills/reporecall/internal/storage"
	"github.com/dshills/reporecall/internal/symbols"
	"github.com/dshills/reporecall/pkg/types"
)

// Indexer coordinates the build pipeline: manifest -> {symbols, chunks, endpoints} -> store
type Indexer struct {
	root      *scope.Root
	store     *storage.IndexStore
	extractor symbols.Extractor
	defaults  config.IndexConfig
	logger    *slog.Logger
}

// Options are the per-build parameters. Zero values fall back to the
// configured defaults.
type Options struct {
	Scope         string
	MaxFileSizeMB int
	ChunkLines    int
	ChunkOverlap  *int // nil means the configured default; zero is a valid overlap
}

// Summary contains the counts of one build
type Summary struct {
	Root             string        `json:"root"`
	Scope            string        `json:"scope,omitempty"`
	Files            int           `json:"files"`
	Symbols          int           `json:"symbols"`
	Chunks           int           `json:"chunks"`
	Endpoints        int           `json:"endpoints"`
	SymbolsAvailable bool          `json:"symbols_available"`
	Skipped          bool          `json:"skipped"`
	DurationMS       int64         `json:"duration_ms"`
	Duration         time.Duration `json:"-"`
}

// String renders the summary for tool and CLI output
func (s *Summary) String() string {
	if s.Skipped {
		return fmt.Sprintf("index already exists at %s (files=%d symbols=%d chunks=%d endpoints=%d); use reindex to rebuild",
			s.Root, s.Files, s.Symbols, s.Chunks, s.Endpoints)
	}
	msg := fmt.Sprintf("index built: files=%d symbols=%d chunks=%d endpoints=%d in %v",
		s.Files, s.Symbols, s.Chunks, s.Endpoints, s.Duration.Round(time.Millisecond))
	if !s.SymbolsAvailable {
		msg += " (symbol extractor unavailable)"
	}
	return msg
}

// New creates an Indexer for a project root
func New(root *scope.Root, store *storage.IndexStore, extractor symbols.Extractor, defaults config.IndexConfig, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	if extractor == nil {
		extractor = symbols.Noop{}
	}
	d := config.Default().Index
	if defaults.MaxFileSizeMB <= 0 {
		defaults.MaxFileSizeMB = d.MaxFileSizeMB
	}
	if defaults.ChunkLines <= 0 {
		defaults.ChunkLines = d.ChunkLines
		defaults.ChunkOverlap = d.ChunkOverlap
	}
	return &Indexer{
		root:      root,
		store:     store,
		extractor: extractor,
		defaults:  defaults,
		logger:    logger,
	}
}

// Init builds the indexes only when no previous build exists
func (idx *Indexer) Init(ctx context.Context, opts Options) (*Summary, error) {
	if _, err := idx.root.Resolve(opts.Scope); err != nil {
		return nil, err
	}
	if stats, err := idx.store.ReadStats(); err == nil {
		idx.logger.Debug("index exists, skipping init", "dir", idx.store.Dir())
		return &Summary{
			Root:             stats.Root,
			Scope:            stats.Scope,
			Files:            stats.Files,
			Symbols:          stats.Symbols,
			Chunks:           stats.Chunks,
			Endpoints:        stats.Endpoints,
			SymbolsAvailable: stats.SymbolExtractor != symbols.NameNone,
			Skipped:          true,
		}, nil
	}
	return idx.Reindex(ctx, opts)
}

// Reindex rebuilds every index unconditionally, overwriting the previous build.
// All records are built before any log is written, and the stats file is
// written last so readers never see counts from a partial build.
func (idx *Indexer) Reindex(ctx context.Context, opts Options) (*Summary, error) {
	start := time.Now()
	opts = idx.withDefaults(opts)

	// Boundary checks run before anything is read or written
	scanRoot, err := idx.root.Resolve(opts.Scope)
	if err != nil {
		return nil, err
	}
	overlap := *opts.ChunkOverlap
	if opts.ChunkLines <= 0 || overlap < 0 {
		return nil, fmt.Errorf("%w: lines=%d overlap=%d", types.ErrInvalidChunking, opts.ChunkLines, overlap)
	}

	idx.logger.Info("building index", "root", idx.root.Path, "scan_root", scanRoot, "extractor", idx.extractor.Name())

	builder := manifest.NewBuilder(idx.root, scope.NewClassifier(opts.MaxFileSizeMB), idx.logger)
	files, err := builder.Build(ctx, scanRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to build file manifest: %w", err)
	}

	summary := &Summary{
		Root:  idx.root.Path,
		Scope: opts.Scope,
		Files: len(files),
	}

	// The three builders only read the shared manifest. Nothing is written
	// until all of them succeed, so a failed build leaves the previous one intact.
	var (
		syms   []types.SymbolRecord
		chunks []types.ChunkRecord
		routes []types.EndpointRecord
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		records, available := idx.extractor.Extract(gctx, symbols.Request{
			Root:     idx.root,
			ScanRoot: scanRoot,
			Files:    files,
		})
		if !available {
			idx.logger.Warn("symbol extractor unavailable, symbol index left empty", "extractor", idx.extractor.Name())
			records = nil
		}
		syms = records
		summary.SymbolsAvailable = available
		return nil
	})

	g.Go(func() error {
		records, err := chunker.New(opts.ChunkLines, overlap, idx.logger).Build(gctx, files)
		if err != nil {
			return fmt.Errorf("failed to build chunks: %w", err)
		}
		chunks = records
		return nil
	})

	g.Go(func() error {
		records, err := endpoints.New(idx.logger).Build(gctx, files)
		if err != nil {
			return fmt.Errorf("failed to detect endpoints: %w", err)
		}
		routes = records
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := idx.store.WriteFiles(files); err != nil {
		return nil, err
	}
	if err := idx.store.WriteSymbols(syms); err != nil {
		return nil, err
	}
	if err := idx.store.WriteChunks(chunks); err != nil {
		return nil, err
	}
	if err := idx.store.WriteEndpoints(routes); err != nil {
		return nil, err
	}
	summary.Symbols = len(syms)
	summary.Chunks = len(chunks)
	summary.Endpoints = len(routes)

	extractorName := idx.extractor.Name()
	if !summary.SymbolsAvailable {
		extractorName = symbols.NameNone
	}
	stats := &types.Stats{
		Root:            idx.root.Path,
		Scope:           opts.Scope,
		Files:           summary.Files,
		Symbols:         summary.Symbols,
		Chunks:          summary.Chunks,
		Endpoints:       summary.Endpoints,
		ChunkLines:      opts.ChunkLines,
		ChunkOverlap:    overlap,
		SymbolExtractor: extractorName,
		BuiltAt:         time.Now().UTC(),
	}
	if err := idx.store.WriteStats(stats); err != nil {
		return nil, err
	}

	summary.Duration = time.Since(start)
	summary.DurationMS = summary.Duration.Milliseconds()
	idx.logger.Info("index built",
		"files", summary.Files,
		"symbols", summary.Symbols,
		"chunks", summary.Chunks,
		"endpoints", summary.Endpoints,
		"duration", summary.Duration)
	return summary, nil
}

// Stats returns the last build's stats, or types.ErrNotBuilt
func (idx *Indexer) Stats() (*types.Stats, error) {
	return idx.store.ReadStats()
}

func (idx *Indexer) withDefaults(opts Options) Options {
	if opts.MaxFileSizeMB <= 0 {
		opts.MaxFileSizeMB = idx.defaults.MaxFileSizeMB
	}
	if opts.ChunkLines <= 0 {
		opts.ChunkLines = idx.defaults.ChunkLines
	}
	if opts.ChunkOverlap == nil {
		overlap := idx.defaults.ChunkOverlap
		opts.ChunkOverlap = &overlap
	}
	return opts
}
