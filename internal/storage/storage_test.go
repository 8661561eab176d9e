package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dshills/reporecall/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexStore_NotBuilt(t *testing.T) {
	store := NewIndexStore(t.TempDir(), nil)

	assert.False(t, store.Exists())

	_, err := store.ReadStats()
	assert.ErrorIs(t, err, types.ErrNotBuilt)

	_, err = store.ReadSymbols()
	assert.ErrorIs(t, err, types.ErrNotBuilt)
}

func TestIndexStore_RoundTrip(t *testing.T) {
	stateDir := t.TempDir()
	store := NewIndexStore(stateDir, nil)

	lines := 12
	files := []types.FileRecord{
		{Path: "/repo/a.go", RelPath: "a.go", Size: 120, IsText: true, Language: "go", Lines: &lines},
		{Path: "/repo/logo.png", RelPath: "logo.png", Size: 900},
	}
	symbols := []types.SymbolRecord{
		{Path: "/repo/a.go", RelPath: "a.go", Name: "HandleLogin", Kind: types.KindFunction, Line: 3, Language: "go"},
	}
	chunks := []types.ChunkRecord{
		{Path: "/repo/a.go", RelPath: "a.go", StartLine: 1, EndLine: 12, Language: "go", Preview: "package a", Identifiers: []string{"handlelogin"}},
	}
	endpoints := []types.EndpointRecord{
		{Path: "/repo/a.go", RelPath: "a.go", Line: 5, Method: "GET", Route: "/login", Framework: "gin", Preview: `r.GET("/login", HandleLogin)`},
	}

	require.NoError(t, store.WriteFiles(files))
	require.NoError(t, store.WriteSymbols(symbols))
	require.NoError(t, store.WriteChunks(chunks))
	require.NoError(t, store.WriteEndpoints(endpoints))
	require.NoError(t, store.WriteStats(&types.Stats{
		Root: "/repo", Files: 2, Symbols: 1, Chunks: 1, Endpoints: 1, BuiltAt: time.Now().UTC(),
	}))

	assert.True(t, store.Exists())
	assert.FileExists(t, filepath.Join(stateDir, IndexDirName, "files.jsonl"))

	gotFiles, err := store.ReadFiles()
	require.NoError(t, err)
	assert.Equal(t, files, gotFiles)
	assert.Nil(t, gotFiles[1].Lines)

	gotSymbols, err := store.ReadSymbols()
	require.NoError(t, err)
	assert.Equal(t, symbols, gotSymbols)

	gotChunks, err := store.ReadChunks()
	require.NoError(t, err)
	assert.Equal(t, chunks, gotChunks)

	gotEndpoints, err := store.ReadEndpoints()
	require.NoError(t, err)
	assert.Equal(t, endpoints, gotEndpoints)

	stats, err := store.ReadStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)
}

func TestIndexStore_RewriteReplaces(t *testing.T) {
	store := NewIndexStore(t.TempDir(), nil)

	require.NoError(t, store.WriteSymbols([]types.SymbolRecord{
		{RelPath: "a.go", Name: "Old", Kind: types.KindFunction, Line: 1},
		{RelPath: "a.go", Name: "Older", Kind: types.KindFunction, Line: 2},
	}))
	require.NoError(t, store.WriteSymbols([]types.SymbolRecord{
		{RelPath: "b.go", Name: "New", Kind: types.KindFunction, Line: 1},
	}))

	got, err := store.ReadSymbols()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "New", got[0].Name)
}

func TestReadLog_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.jsonl")
	content := `{"path":"/p/a.go","name":"First","kind":"function","line":1}
not json at all
{"path":"/p/a.go","name":"Second","kind":"class","line":9}

{"name":
{"path":"/p/a.go","name":"NoLine","kind":"class","line":0}
{"name":"NoPath","kind":"class","line":3}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	records, stats, err := ReadLog[types.SymbolRecord](path)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Records)
	assert.Equal(t, 4, stats.Skipped)
	require.Len(t, records, 2)
	assert.Equal(t, "First", records[0].Name)
	assert.Equal(t, "Second", records[1].Name)
}

func TestIndexStore_SkipsInvalidChunks(t *testing.T) {
	store := NewIndexStore(t.TempDir(), nil)
	require.NoError(t, store.WriteChunks([]types.ChunkRecord{
		{Path: "/p/a.go", RelPath: "a.go", StartLine: 1, EndLine: 10},
		{Path: "/p/a.go", RelPath: "a.go", StartLine: 8, EndLine: 3},
		{RelPath: "b.go", StartLine: 1, EndLine: 2},
	}))

	chunks, err := store.ReadChunks()
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 10, chunks[0].EndLine)
}

func TestAppendLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.jsonl")

	require.NoError(t, AppendLog(path, []map[string]string{{"id": "a"}}))
	require.NoError(t, AppendLog(path, []map[string]string{{"id": "b"}, {"id": "c"}}))

	records, _, err := ReadLog[map[string]string](path)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "c", records[2]["id"])
}

func TestWriteFileAtomic_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.jsonl")

	require.NoError(t, WriteLog(path, []int{1, 2, 3}))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "out.jsonl", entries[0].Name())
}
