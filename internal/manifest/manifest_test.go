package manifest

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/dshills/reporecall/internal/scope"
	"github.com/dshills/reporecall/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func buildManifest(t *testing.T, dir string, maxMB int) (*scope.Root, []types.FileRecord) {
	t.Helper()
	root, err := scope.NewRoot(dir)
	require.NoError(t, err)
	b := NewBuilder(root, scope.NewClassifier(maxMB), nil)
	records, err := b.Build(context.Background(), root.Path)
	require.NoError(t, err)
	return root, records
}

func byRel(records []types.FileRecord) map[string]types.FileRecord {
	out := make(map[string]types.FileRecord, len(records))
	for _, r := range records {
		out[r.RelPath] = r
	}
	return out
}

func TestBuild_ClassifiesAndPrunes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main\n\nfunc main() {}\n")
	writeFile(t, dir, "app/views.py", "def index():\n    return 1")
	writeFile(t, dir, "assets/logo.png", "\x89PNG\r\n")
	writeFile(t, dir, "node_modules/lib/index.js", "module.exports = {}\n")
	writeFile(t, dir, ".git/config", "[core]\n")
	writeFile(t, dir, "app/__pycache__/views.cpython-311.pyc", "junk")

	root, records := buildManifest(t, dir, 0)
	files := byRel(records)

	require.Len(t, records, 3)

	main := files["main.go"]
	assert.True(t, main.IsText)
	assert.Equal(t, "go", main.Language)
	require.NotNil(t, main.Lines)
	assert.Equal(t, 3, *main.Lines)
	assert.Equal(t, filepath.Join(root.Path, "main.go"), main.Path)

	views := files["app/views.py"]
	assert.Equal(t, "python", views.Language)
	assert.Equal(t, 2, views.LineCount())

	logo := files["assets/logo.png"]
	assert.False(t, logo.IsText)
	assert.Nil(t, logo.Lines)

	for _, r := range records {
		assert.True(t, root.Contains(r.Path), r.Path)
		for _, part := range strings.Split(r.RelPath, "/") {
			assert.False(t, scope.IsPrunedDir(part), r.RelPath)
		}
	}
}

func TestBuild_ExcludesOversizeFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "small.txt", "hello\n")
	writeFile(t, dir, "big.txt", strings.Repeat("x", 1<<20+1))

	_, records := buildManifest(t, dir, 1)

	require.Len(t, records, 1)
	assert.Equal(t, "small.txt", records[0].RelPath)
}

func TestBuild_Scope(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a\n")
	writeFile(t, dir, "sub/b.go", "package b\n")

	root, err := scope.NewRoot(dir)
	require.NoError(t, err)
	scanRoot, err := root.Resolve("sub")
	require.NoError(t, err)

	records, err := NewBuilder(root, nil, nil).Build(context.Background(), scanRoot)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "sub/b.go", records[0].RelPath)
}

func TestBuild_SkipsSymlinksOutsideRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}
	outside := t.TempDir()
	writeFile(t, outside, "secret.txt", "secret\n")

	dir := t.TempDir()
	writeFile(t, dir, "real.txt", "inside\n")
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(dir, "leak.txt")))
	require.NoError(t, os.Symlink(filepath.Join(dir, "real.txt"), filepath.Join(dir, "alias.txt")))

	root, records := buildManifest(t, dir, 0)
	files := byRel(records)

	assert.NotContains(t, files, "leak.txt")
	require.Contains(t, files, "alias.txt")
	assert.Equal(t, filepath.Join(root.Path, "real.txt"), files["alias.txt"].Path)
}

func TestBuild_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a\n")

	root, err := scope.NewRoot(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = NewBuilder(root, nil, nil).Build(ctx, root.Path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"single unterminated", "abc", []string{"abc"}},
		{"trailing newline", "a\nb\n", []string{"a", "b"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"blank lines kept", "a\n\n\nb", []string{"a", "", "", "b"}},
		{"invalid utf8 replaced", "ok\xff\n", []string{"ok�"}},
		{"bom stripped", "\xef\xbb\xbfhello\n", []string{"hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SplitLines([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCountLinesMatchesReadLines(t *testing.T) {
	dir := t.TempDir()
	for i, content := range []string{"", "x", "x\n", "x\ny", "x\ny\n\n", "\xff\n"} {
		path := filepath.Join(dir, "f"+string(rune('a'+i))+".txt")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		n, err := CountLines(path)
		require.NoError(t, err)
		lines, err := ReadLines(path)
		require.NoError(t, err)
		assert.Equal(t, len(lines), n, "content %q", content)
	}
}
