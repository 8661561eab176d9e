package searcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/reporecall/internal/storage"
	"github.com/dshills/reporecall/pkg/types"
)

func intPtr(n int) *int { return &n }

// setupIndex writes a small hand-made index and returns a searcher over it
func setupIndex(t *testing.T) (*Searcher, string) {
	t.Helper()
	dir := t.TempDir()

	authPath := filepath.Join(dir, "internal", "auth", "login.go")
	require.NoError(t, os.MkdirAll(filepath.Dir(authPath), 0o755))
	require.NoError(t, os.WriteFile(authPath, []byte("package auth\n\n// Login checks credentials\nfunc Login(user string) error {\n\treturn nil\n}\n\nfunc LoginHandler() {}\n"), 0o644))

	store := storage.NewIndexStore(filepath.Join(dir, ".reporecall"), nil)
	require.NoError(t, store.WriteFiles([]types.FileRecord{
		{Path: authPath, RelPath: "internal/auth/login.go", IsText: true, Language: "go", Lines: intPtr(8)},
		{Path: filepath.Join(dir, "docs", "login-flow.md"), RelPath: "docs/login-flow.md", IsText: true, Language: "markdown", Lines: intPtr(20)},
		{Path: filepath.Join(dir, "web", "app.py"), RelPath: "web/app.py", IsText: true, Language: "python", Lines: intPtr(40)},
		{Path: filepath.Join(dir, "assets", "logo.png"), RelPath: "assets/logo.png", Language: ""},
	}))
	require.NoError(t, store.WriteSymbols([]types.SymbolRecord{
		{Path: authPath, RelPath: "internal/auth/login.go", Name: "LoginHandler", Kind: "function", Line: 8, Language: "go"},
		{Path: authPath, RelPath: "internal/auth/login.go", Name: "Login", Kind: "function", Line: 4, Language: "go"},
		{Path: filepath.Join(dir, "web", "app.py"), RelPath: "web/app.py", Name: "login_view", Kind: "function", Line: 7, Language: "python"},
		{Path: filepath.Join(dir, "web", "app.py"), RelPath: "web/app.py", Name: "LoginForm", Kind: "class", Line: 20, Language: "python"},
	}))
	require.NoError(t, store.WriteChunks([]types.ChunkRecord{
		{Path: authPath, RelPath: "internal/auth/login.go", StartLine: 1, EndLine: 8, Language: "go",
			Preview: "package auth\n\n// Login checks credentials", Identifiers: []string{"login", "credentials", "user"}},
		{Path: filepath.Join(dir, "web", "app.py"), RelPath: "web/app.py", StartLine: 1, EndLine: 40, Language: "python",
			Preview: "from flask import Flask", Identifiers: []string{"flask", "session", "user"}},
		{Path: filepath.Join(dir, "docs", "login-flow.md"), RelPath: "docs/login-flow.md", StartLine: 1, EndLine: 20, Language: "markdown",
			Preview: "# Sessions", Identifiers: []string{"sessions"}},
	}))
	require.NoError(t, store.WriteEndpoints([]types.EndpointRecord{
		{Path: filepath.Join(dir, "web", "app.py"), RelPath: "web/app.py", Line: 6, Method: "GET", Route: "/login", Framework: "python-flask", Handler: "login_view", Preview: "@app.route(\"/login\")"},
		{Path: filepath.Join(dir, "web", "app.py"), RelPath: "web/app.py", Line: 6, Method: "POST", Route: "/login", Framework: "python-flask", Handler: "login_view", Preview: "@app.route(\"/login\")"},
		{Path: filepath.Join(dir, "web", "app.py"), RelPath: "web/app.py", Line: 12, Method: "GET", Route: "/api/users", Framework: "python-flask", Handler: "list_users", Preview: "@app.get(\"/api/users\") # login required"},
	}))
	require.NoError(t, store.WriteStats(&types.Stats{Root: dir, Files: 4, Symbols: 4, Chunks: 3, Endpoints: 3, BuiltAt: time.Now()}))

	return NewSearcher(store, nil), dir
}

func TestSearch_NotBuilt(t *testing.T) {
	s := NewSearcher(storage.NewIndexStore(t.TempDir(), nil), nil)
	ctx := context.Background()

	responses := []func() (*types.SearchResponse, error){
		func() (*types.SearchResponse, error) { return s.SearchFiles(ctx, FileQuery{}) },
		func() (*types.SearchResponse, error) { return s.SearchSymbols(ctx, SymbolQuery{Name: "x"}) },
		func() (*types.SearchResponse, error) { return s.SearchChunks(ctx, ChunkQuery{Query: "x"}) },
		func() (*types.SearchResponse, error) { return s.SearchEndpoints(ctx, EndpointQuery{}) },
		func() (*types.SearchResponse, error) { return s.SearchMixed(ctx, "x", 5) },
	}
	for _, fn := range responses {
		resp, err := fn()
		require.NoError(t, err)
		assert.NotNil(t, resp.Hits)
		assert.Empty(t, resp.Hits)
		assert.Equal(t, NotBuiltMessage, resp.Message)
	}
}

func TestSearchFiles(t *testing.T) {
	s, _ := setupIndex(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		query     FileQuery
		wantPaths []string
	}{
		{
			name:      "directory match",
			query:     FileQuery{Query: "auth"},
			wantPaths: []string{"internal/auth/login.go"},
		},
		{
			name:      "query in basename",
			query:     FileQuery{Query: "login"},
			wantPaths: []string{"internal/auth/login.go", "docs/login-flow.md"},
		},
		{
			name:      "filter mode returns everything",
			query:     FileQuery{},
			wantPaths: []string{"internal/auth/login.go", "docs/login-flow.md", "web/app.py", "assets/logo.png"},
		},
		{
			name:      "language filter",
			query:     FileQuery{Language: "python"},
			wantPaths: []string{"web/app.py"},
		},
		{
			name:      "path prefix",
			query:     FileQuery{PathPrefix: "./docs/"},
			wantPaths: []string{"docs/login-flow.md"},
		},
		{
			name:      "no match",
			query:     FileQuery{Query: "nothing-here"},
			wantPaths: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := s.SearchFiles(ctx, tt.query)
			require.NoError(t, err)
			var got []string
			for _, h := range resp.Hits {
				got = append(got, h.RelPath)
				assert.Equal(t, types.SourceFile, h.Source)
				if tt.query.Query == "" {
					assert.Zero(t, h.Score)
				}
			}
			assert.Equal(t, tt.wantPaths, got)
		})
	}
}

func TestSearchFiles_TotalBeforeTruncation(t *testing.T) {
	s, _ := setupIndex(t)

	resp, err := s.SearchFiles(context.Background(), FileQuery{TopK: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Hits, 2)
	assert.Equal(t, 4, resp.Total)
}

func TestSearchSymbols(t *testing.T) {
	s, _ := setupIndex(t)
	ctx := context.Background()

	resp, err := s.SearchSymbols(ctx, SymbolQuery{Name: "LOGIN"})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 4)

	names := make([]string, len(resp.Hits))
	for i, h := range resp.Hits {
		names[i] = h.Name
	}
	assert.Equal(t, []string{"Login", "LoginForm", "login_view", "LoginHandler"}, names)
	assert.InDelta(t, 1.0, resp.Hits[0].Score, 1e-9)

	// Preview reads the source around the declaration line
	assert.Contains(t, resp.Hits[0].Preview, "func Login(user string) error {")
	assert.Contains(t, resp.Hits[0].Preview, "// Login checks credentials")

	// Missing source degrades to an empty preview
	assert.Empty(t, resp.Hits[1].Preview)
}

func TestSearchSymbols_Filters(t *testing.T) {
	s, _ := setupIndex(t)
	ctx := context.Background()

	resp, err := s.SearchSymbols(ctx, SymbolQuery{Name: "login", Kind: "class"})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "LoginForm", resp.Hits[0].Name)

	resp, err = s.SearchSymbols(ctx, SymbolQuery{Name: "login", Language: "go", TopK: 1})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "Login", resp.Hits[0].Name)
	assert.Equal(t, 2, resp.Total)

	_, err = s.SearchSymbols(ctx, SymbolQuery{Name: "  "})
	assert.ErrorIs(t, err, types.ErrEmptyQuery)
}

func TestSearchSymbols_ContextLines(t *testing.T) {
	s, _ := setupIndex(t)

	resp, err := s.SearchSymbols(context.Background(), SymbolQuery{Name: "Login", Language: "go", ContextLines: 0, TopK: 1})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	// Default of two lines either side of line 4
	assert.Equal(t, "\n// Login checks credentials\nfunc Login(user string) error {\n\treturn nil\n}", resp.Hits[0].Preview)
}

func TestSearchSymbols_PreviewReloadsChangedFile(t *testing.T) {
	s, dir := setupIndex(t)
	ctx := context.Background()
	path := filepath.Join(dir, "internal", "auth", "login.go")

	resp, err := s.SearchSymbols(ctx, SymbolQuery{Name: "LoginHandler", ContextLines: 1})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Contains(t, resp.Hits[0].Preview, "func LoginHandler() {}")

	require.NoError(t, os.WriteFile(path, []byte("1\n2\n3\n4\n5\n6\n7\nchanged\n"), 0o644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	resp, err = s.SearchSymbols(ctx, SymbolQuery{Name: "LoginHandler", ContextLines: 1})
	require.NoError(t, err)
	assert.Equal(t, "7\nchanged", resp.Hits[0].Preview)
}

func TestSearchChunks(t *testing.T) {
	s, _ := setupIndex(t)
	ctx := context.Background()

	resp, err := s.SearchChunks(ctx, ChunkQuery{Query: "user session"})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 2)
	// app.py shares both tokens, login.go only "user"; "sessions" is not "session"
	assert.Equal(t, "web/app.py", resp.Hits[0].RelPath)
	assert.InDelta(t, 1.2, resp.Hits[0].Score, 1e-9)
	assert.InDelta(t, 0.6, resp.Hits[1].Score, 1e-9)

	// Raw substring in the preview adds 0.4
	resp, err = s.SearchChunks(ctx, ChunkQuery{Query: "checks credentials"})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.InDelta(t, 0.6+0.4, resp.Hits[0].Score, 1e-9)

	resp, err = s.SearchChunks(ctx, ChunkQuery{Query: "user", Language: "go"})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "internal/auth/login.go", resp.Hits[0].RelPath)
	assert.Equal(t, 1, resp.Hits[0].Line)
	assert.Equal(t, 8, resp.Hits[0].EndLine)

	resp, err = s.SearchChunks(ctx, ChunkQuery{Query: "user", PathPrefix: "web"})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "web/app.py", resp.Hits[0].RelPath)

	resp, err = s.SearchChunks(ctx, ChunkQuery{Query: "zebra"})
	require.NoError(t, err)
	assert.Empty(t, resp.Hits)

	_, err = s.SearchChunks(ctx, ChunkQuery{})
	assert.ErrorIs(t, err, types.ErrEmptyQuery)
}

func TestSearchEndpoints(t *testing.T) {
	s, _ := setupIndex(t)
	ctx := context.Background()

	resp, err := s.SearchEndpoints(ctx, EndpointQuery{Query: "login"})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 3)
	// route + handler + preview
	assert.InDelta(t, 4.0, resp.Hits[0].Score, 1e-9)
	assert.InDelta(t, 4.0, resp.Hits[1].Score, 1e-9)
	// preview only
	assert.Equal(t, "/api/users", resp.Hits[2].Route)
	assert.InDelta(t, 1.0, resp.Hits[2].Score, 1e-9)

	resp, err = s.SearchEndpoints(ctx, EndpointQuery{Method: "post"})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "POST", resp.Hits[0].Method)
	assert.Equal(t, "login_view", resp.Hits[0].Handler)

	resp, err = s.SearchEndpoints(ctx, EndpointQuery{PathPrefix: "/api"})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "list_users", resp.Hits[0].Handler)
	assert.Zero(t, resp.Hits[0].Score)

	resp, err = s.SearchEndpoints(ctx, EndpointQuery{Method: "GE"})
	require.NoError(t, err)
	assert.Empty(t, resp.Hits, "method filter is exact")
}

func TestSearchMixed_SourcePriority(t *testing.T) {
	s, _ := setupIndex(t)

	resp, err := s.SearchMixed(context.Background(), "login", 20)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Hits)

	lastPriority := 4
	var sources []string
	for _, h := range resp.Hits {
		p := sourcePriority[h.Source]
		assert.LessOrEqual(t, p, lastPriority, "hits must be grouped by source priority")
		lastPriority = p
		sources = append(sources, h.Source)
	}
	assert.Equal(t, types.SourceSymbol, sources[0])
	assert.Contains(t, sources, types.SourceChunk)
	assert.Contains(t, sources, types.SourceFile)
}

func TestSearchMixed_SymbolBeatsHigherScoringChunk(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewIndexStore(dir, nil)
	require.NoError(t, store.WriteFiles([]types.FileRecord{
		{Path: "/p/zeta_tool.txt", RelPath: "zeta_tool.txt", IsText: true, Language: "text"},
	}))
	require.NoError(t, store.WriteSymbols([]types.SymbolRecord{
		{Path: "/p/a.go", RelPath: "a.go", Name: "zetaLongHelperName", Kind: "function", Line: 10, Language: "go"},
	}))
	require.NoError(t, store.WriteChunks([]types.ChunkRecord{
		{Path: "/p/b.go", RelPath: "b.go", StartLine: 1, EndLine: 5, Language: "go", Preview: "zeta zeta", Identifiers: []string{"zeta"}},
	}))
	require.NoError(t, store.WriteEndpoints(nil))
	require.NoError(t, store.WriteStats(&types.Stats{Root: "/p"}))

	resp, err := NewSearcher(store, nil).SearchMixed(context.Background(), "zeta", 10)
	require.NoError(t, err)
	require.Len(t, resp.Hits, 3)

	assert.Equal(t, types.SourceSymbol, resp.Hits[0].Source)
	assert.Equal(t, types.SourceChunk, resp.Hits[1].Source)
	assert.Equal(t, types.SourceFile, resp.Hits[2].Source)
	assert.Less(t, resp.Hits[0].Score, resp.Hits[1].Score, "priority ignores internal scores")
}

func TestSearchMixed_Dedup(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewIndexStore(dir, nil)
	require.NoError(t, store.WriteFiles([]types.FileRecord{
		{Path: "/p/auth.go", RelPath: "auth.go", IsText: true, Language: "go"},
	}))
	require.NoError(t, store.WriteSymbols([]types.SymbolRecord{
		{Path: "/p/auth.go", RelPath: "auth.go", Name: "auth", Kind: "package", Line: 1, Language: "go"},
	}))
	require.NoError(t, store.WriteChunks([]types.ChunkRecord{
		{Path: "/p/auth.go", RelPath: "auth.go", StartLine: 1, EndLine: 3, Language: "go", Preview: "package auth", Identifiers: []string{"auth"}},
	}))
	require.NoError(t, store.WriteEndpoints(nil))
	require.NoError(t, store.WriteStats(&types.Stats{Root: "/p"}))

	resp, err := NewSearcher(store, nil).SearchMixed(context.Background(), "auth", 10)
	require.NoError(t, err)
	// The symbol and chunk both sit at auth.go:1; the file hit has no line
	require.Len(t, resp.Hits, 2)
	assert.Equal(t, types.SourceSymbol, resp.Hits[0].Source)
	assert.Equal(t, types.SourceFile, resp.Hits[1].Source)
	assert.Equal(t, 0, resp.Hits[1].Line)
}

func TestSearchMixed_FileAndOpeningChunkBothKept(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewIndexStore(dir, nil)
	require.NoError(t, store.WriteFiles([]types.FileRecord{
		{Path: "/p/payment.py", RelPath: "payment.py", IsText: true, Language: "python", Lines: intPtr(40)},
	}))
	require.NoError(t, store.WriteSymbols(nil))
	require.NoError(t, store.WriteChunks([]types.ChunkRecord{
		{Path: "/p/payment.py", RelPath: "payment.py", StartLine: 1, EndLine: 40, Language: "python", Preview: "import stripe", Identifiers: []string{"payment", "stripe"}},
	}))
	require.NoError(t, store.WriteEndpoints(nil))
	require.NoError(t, store.WriteStats(&types.Stats{Root: "/p"}))
	s := NewSearcher(store, nil)

	files, err := s.SearchFiles(context.Background(), FileQuery{Query: "payment"})
	require.NoError(t, err)
	require.Len(t, files.Hits, 1)

	resp, err := s.SearchMixed(context.Background(), "payment", 10)
	require.NoError(t, err)
	require.Len(t, resp.Hits, 2)
	assert.Equal(t, types.SourceChunk, resp.Hits[0].Source)
	assert.Equal(t, 1, resp.Hits[0].Line)
	assert.Equal(t, types.SourceFile, resp.Hits[1].Source)
	assert.Equal(t, "payment.py", resp.Hits[1].RelPath)
}

func TestMixedCaps(t *testing.T) {
	tests := []struct {
		topK                 int
		symbols, chunks, fls int
	}{
		{1, 1, 1, 1},
		{10, 5, 5, 3},
		{20, 10, 10, 5},
	}
	for _, tt := range tests {
		s, c, f := mixedCaps(tt.topK)
		assert.Equal(t, tt.symbols, s, "symbols for %d", tt.topK)
		assert.Equal(t, tt.chunks, c, "chunks for %d", tt.topK)
		assert.Equal(t, tt.fls, f, "files for %d", tt.topK)
	}
}
