package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/reporecall/internal/config"
	"github.com/dshills/reporecall/internal/scope"
	"github.com/dshills/reporecall/internal/storage"
	"github.com/dshills/reporecall/internal/symbols"
	"github.com/dshills/reporecall/pkg/types"
)

// stubExtractor returns fixed symbols
type stubExtractor struct {
	records   []types.SymbolRecord
	available bool
}

func (s *stubExtractor) Name() string { return "stub" }

func (s *stubExtractor) Extract(context.Context, symbols.Request) ([]types.SymbolRecord, bool) {
	return s.records, s.available
}

// cancellingExtractor cancels the build while symbols are being extracted
type cancellingExtractor struct {
	cancel context.CancelFunc
}

func (c *cancellingExtractor) Name() string { return "cancelling" }

func (c *cancellingExtractor) Extract(context.Context, symbols.Request) ([]types.SymbolRecord, bool) {
	c.cancel()
	return []types.SymbolRecord{{Path: "x", RelPath: "x", Name: "Late", Kind: "function", Line: 1}}, true
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// setupProject creates a small project and returns its root and state dir
func setupProject(t *testing.T) (*scope.Root, string) {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "app.py"), `from flask import Flask
app = Flask(__name__)

@app.route("/login", methods=["GET", "POST"])
def login():
    return "ok"
`)
	writeFile(t, filepath.Join(dir, "pkg", "util.go"), `package pkg

func Helper() int { return 1 }
`)
	writeFile(t, filepath.Join(dir, "node_modules", "dep", "index.js"), "module.exports = 1\n")
	writeFile(t, filepath.Join(dir, "logo.png"), "\x89PNG")

	root, err := scope.NewRoot(dir)
	require.NoError(t, err)
	return root, filepath.Join(root.Path, config.DefaultStateDir)
}

func newTestIndexer(t *testing.T, root *scope.Root, stateDir string, ex symbols.Extractor) (*Indexer, *storage.IndexStore) {
	t.Helper()
	store := storage.NewIndexStore(stateDir, nil)
	return New(root, store, ex, config.Default().Index, nil), store
}

func TestReindex_BuildsAllIndexes(t *testing.T) {
	root, stateDir := setupProject(t)
	ex := &stubExtractor{
		available: true,
		records: []types.SymbolRecord{
			{Path: filepath.Join(root.Path, "pkg", "util.go"), RelPath: "pkg/util.go", Name: "Helper", Kind: "function", Line: 3, Language: "go"},
		},
	}
	idx, store := newTestIndexer(t, root, stateDir, ex)

	summary, err := idx.Reindex(context.Background(), Options{})
	require.NoError(t, err)

	// app.py, pkg/util.go and logo.png; node_modules is pruned
	assert.Equal(t, 3, summary.Files)
	assert.Equal(t, 1, summary.Symbols)
	assert.Equal(t, 2, summary.Chunks)
	assert.Equal(t, 2, summary.Endpoints)
	assert.True(t, summary.SymbolsAvailable)
	assert.False(t, summary.Skipped)

	files, err := store.ReadFiles()
	require.NoError(t, err)
	for _, f := range files {
		assert.NotContains(t, f.RelPath, "node_modules")
		assert.True(t, root.Contains(f.Path))
	}

	stats, err := idx.Stats()
	require.NoError(t, err)
	assert.Equal(t, root.Path, stats.Root)
	assert.Equal(t, 3, stats.Files)
	assert.Equal(t, 2, stats.Endpoints)
	assert.Equal(t, 300, stats.ChunkLines)
	assert.Equal(t, 50, stats.ChunkOverlap)
	assert.Equal(t, "stub", stats.SymbolExtractor)
}

func TestStats_NotBuilt(t *testing.T) {
	root, stateDir := setupProject(t)
	idx, _ := newTestIndexer(t, root, stateDir, nil)

	_, err := idx.Stats()
	assert.True(t, errors.Is(err, types.ErrNotBuilt))
}

func TestInit_SkipsExistingBuild(t *testing.T) {
	root, stateDir := setupProject(t)
	idx, _ := newTestIndexer(t, root, stateDir, nil)

	first, err := idx.Init(context.Background(), Options{})
	require.NoError(t, err)
	require.False(t, first.Skipped)

	writeFile(t, filepath.Join(root.Path, "extra.md"), "# extra\n")

	second, err := idx.Init(context.Background(), Options{})
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, first.Files, second.Files)
}

func TestReindex_StatsReflectLatestBuild(t *testing.T) {
	root, stateDir := setupProject(t)
	idx, _ := newTestIndexer(t, root, stateDir, nil)

	_, err := idx.Reindex(context.Background(), Options{})
	require.NoError(t, err)

	writeFile(t, filepath.Join(root.Path, "extra.md"), "# extra\n")
	writeFile(t, filepath.Join(root.Path, "routes.js"), "app.get('/health', health)\n")

	summary, err := idx.Reindex(context.Background(), Options{})
	require.NoError(t, err)

	stats, err := idx.Stats()
	require.NoError(t, err)
	assert.Equal(t, summary.Files, stats.Files)
	assert.Equal(t, 5, stats.Files)
	assert.Equal(t, summary.Endpoints, stats.Endpoints)
	assert.Equal(t, 3, stats.Endpoints)
	assert.Equal(t, summary.Chunks, stats.Chunks)
}

func TestReindex_ScopeOutsideRootWritesNothing(t *testing.T) {
	root, stateDir := setupProject(t)
	idx, store := newTestIndexer(t, root, stateDir, nil)

	outside := t.TempDir()
	for _, s := range []string{"..", outside, "pkg/../../"} {
		t.Run(s, func(t *testing.T) {
			_, err := idx.Reindex(context.Background(), Options{Scope: s})
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrOutsideRoot), "got %v", err)

			_, err = os.Stat(store.Dir())
			assert.True(t, os.IsNotExist(err), "no index directory may be created")
		})
	}

	_, err := idx.Init(context.Background(), Options{Scope: ".."})
	assert.True(t, errors.Is(err, types.ErrOutsideRoot))
}

func TestReindex_Scope(t *testing.T) {
	root, stateDir := setupProject(t)
	idx, store := newTestIndexer(t, root, stateDir, nil)

	summary, err := idx.Reindex(context.Background(), Options{Scope: "pkg"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Files)
	assert.Equal(t, 0, summary.Endpoints)

	files, err := store.ReadFiles()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "pkg/util.go", files[0].RelPath)

	stats, err := store.ReadStats()
	require.NoError(t, err)
	assert.Equal(t, "pkg", stats.Scope)
}

func TestReindex_ExtractorUnavailable(t *testing.T) {
	root, stateDir := setupProject(t)
	idx, store := newTestIndexer(t, root, stateDir, &stubExtractor{available: true, records: []types.SymbolRecord{
		{Path: "x", RelPath: "x", Name: "Old", Kind: "function", Line: 1},
	}})
	_, err := idx.Reindex(context.Background(), Options{})
	require.NoError(t, err)

	// A later build without the extractor clears the old symbols
	idx.extractor = symbols.Noop{}
	summary, err := idx.Reindex(context.Background(), Options{})
	require.NoError(t, err)
	assert.False(t, summary.SymbolsAvailable)
	assert.Equal(t, 0, summary.Symbols)
	assert.Contains(t, summary.String(), "unavailable")

	syms, err := store.ReadSymbols()
	require.NoError(t, err)
	assert.Empty(t, syms)

	stats, err := store.ReadStats()
	require.NoError(t, err)
	assert.Equal(t, symbols.NameNone, stats.SymbolExtractor)
}

func TestReindex_ChunkOptions(t *testing.T) {
	root, stateDir := setupProject(t)
	idx, store := newTestIndexer(t, root, stateDir, nil)

	zero := 0
	_, err := idx.Reindex(context.Background(), Options{ChunkLines: 2, ChunkOverlap: &zero})
	require.NoError(t, err)

	chunks, err := store.ReadChunks()
	require.NoError(t, err)
	for _, c := range chunks {
		assert.LessOrEqual(t, c.LineCount(), 2)
	}

	stats, err := store.ReadStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ChunkLines)
	assert.Equal(t, 0, stats.ChunkOverlap)
}

func TestReindex_Cancelled(t *testing.T) {
	root, stateDir := setupProject(t)
	idx, store := newTestIndexer(t, root, stateDir, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := idx.Reindex(ctx, Options{})
	require.Error(t, err)
	assert.False(t, store.Exists())
}

func TestReindex_FailedBuildKeepsPreviousLogs(t *testing.T) {
	root, stateDir := setupProject(t)
	idx, store := newTestIndexer(t, root, stateDir, nil)

	_, err := idx.Reindex(context.Background(), Options{})
	require.NoError(t, err)
	files, err := store.ReadFiles()
	require.NoError(t, err)
	before, err := store.ReadStats()
	require.NoError(t, err)

	writeFile(t, filepath.Join(root.Path, "extra.md"), "# extra\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	idx.extractor = &cancellingExtractor{cancel: cancel}
	_, err = idx.Reindex(ctx, Options{})
	require.ErrorIs(t, err, context.Canceled)

	after, err := store.ReadFiles()
	require.NoError(t, err)
	assert.Len(t, after, len(files), "files log must not advance past the failed build")

	syms, err := store.ReadSymbols()
	require.NoError(t, err)
	assert.Empty(t, syms)

	stats, err := store.ReadStats()
	require.NoError(t, err)
	assert.Equal(t, before.Files, stats.Files)
	assert.True(t, before.BuiltAt.Equal(stats.BuiltAt))
}

func TestSummary_JSON(t *testing.T) {
	root, stateDir := setupProject(t)
	idx, _ := newTestIndexer(t, root, stateDir, nil)

	summary, err := idx.Reindex(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, summary.Duration.Milliseconds(), summary.DurationMS)

	data, err := json.Marshal(summary)
	require.NoError(t, err)
	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Contains(t, fields, "duration_ms")
	assert.NotContains(t, fields, "duration")
}

func TestIndexer_InvalidChunking(t *testing.T) {
	root, stateDir := setupProject(t)
	idx, store := newTestIndexer(t, root, stateDir, nil)

	overlap := -1
	_, err := idx.Reindex(context.Background(), Options{ChunkOverlap: &overlap})
	assert.ErrorIs(t, err, types.ErrInvalidChunking)
	assert.False(t, store.Exists())
}

func TestBuildLock(t *testing.T) {
	tests := []struct {
		name     string
		testFunc func(t *testing.T)
	}{
		{
			name: "TryAcquire fails while held",
			testFunc: func(t *testing.T) {
				var lock BuildLock
				require.True(t, lock.TryAcquire())
				assert.False(t, lock.TryAcquire())
				lock.Release()
				assert.True(t, lock.TryAcquire())
				lock.Release()
			},
		},
		{
			name: "Guard rejects overlapping builds",
			testFunc: func(t *testing.T) {
				var lock BuildLock
				err := lock.Guard(func() error {
					return lock.Guard(func() error { return nil })
				})
				assert.ErrorIs(t, err, ErrBuildInProgress)
				assert.NoError(t, lock.Guard(func() error { return nil }))
			},
		},
		{
			name: "Concurrent goroutines attempting acquisition",
			testFunc: func(t *testing.T) {
				var lock BuildLock
				const numGoroutines = 100

				acquired := make([]bool, numGoroutines)
				var wg sync.WaitGroup
				wg.Add(numGoroutines)
				for i := 0; i < numGoroutines; i++ {
					go func(idx int) {
						defer wg.Done()
						acquired[idx] = lock.TryAcquire()
					}(i)
				}
				wg.Wait()

				successCount := 0
				for _, ok := range acquired {
					if ok {
						successCount++
					}
				}
				assert.Equal(t, 1, successCount, "Exactly one goroutine should acquire the lock")
				lock.Release()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.testFunc(t)
		})
	}
}
