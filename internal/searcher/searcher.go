package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/reporecall/internal/manifest"
	"github.com/dshills/reporecall/internal/storage"
	"github.com/dshills/reporecall/internal/tokenize"
	"github.com/dshills/reporecall/pkg/types"
)

// NotBuiltMessage is returned in place of hits when no build exists
const NotBuiltMessage = "index not built; run index_init first"

const (
	defaultTopK         = 20
	maxTopK             = 500
	defaultContextLines = 2
	maxContextLines     = 50
	lineCacheSize       = 256

	// File search increments
	pathMatchScore     = 1.0
	basenameMatchScore = 2.0

	// Chunk search weights
	chunkTokenWeight   = 0.6
	chunkPreviewWeight = 0.4

	// Endpoint search weights
	endpointRouteWeight   = 2.0
	endpointHandlerWeight = 1.0
	endpointPreviewWeight = 1.0
)

// sourcePriority orders mixed results: structural over textual over filename
var sourcePriority = map[string]int{
	types.SourceSymbol: 3,
	types.SourceChunk:  2,
	types.SourceFile:   1,
}

// FileQuery filters the file manifest. An empty Query returns every file
// passing the filters with score 0.
type FileQuery struct {
	Query      string
	Language   string
	PathPrefix string
	TopK       int
}

// SymbolQuery matches symbol names case-insensitively
type SymbolQuery struct {
	Name         string
	Kind         string
	Language     string
	ContextLines int
	TopK         int
}

// ChunkQuery scores chunks by identifier overlap and preview substring
type ChunkQuery struct {
	Query      string
	Language   string
	PathPrefix string
	TopK       int
}

// EndpointQuery filters and scores detected routes. PathPrefix applies to the
// route, not the source file.
type EndpointQuery struct {
	Query      string
	Method     string
	PathPrefix string
	TopK       int
}

// cachedLines is a source file's lines at a given modification time
type cachedLines struct {
	modTime time.Time
	lines   []string
}

// Searcher answers queries against the persisted code indexes
type Searcher struct {
	store  *storage.IndexStore
	lines  *lru.Cache[string, *cachedLines]
	mu     sync.Mutex
	logger *slog.Logger
}

// NewSearcher creates a Searcher over an index store
func NewSearcher(store *storage.IndexStore, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.New[string, *cachedLines](lineCacheSize)
	if err != nil {
		// Only fails for a non-positive size
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	return &Searcher{
		store:  store,
		lines:  cache,
		logger: logger,
	}
}

// InvalidateCache drops cached source lines, typically after a reindex
func (s *Searcher) InvalidateCache() {
	s.lines.Purge()
}

// SearchFiles matches the query against relative paths and basenames
func (s *Searcher) SearchFiles(ctx context.Context, q FileQuery) (*types.SearchResponse, error) {
	files, err := s.store.ReadFiles()
	if err != nil {
		return notBuilt(err)
	}

	needle := strings.ToLower(strings.TrimSpace(q.Query))
	prefix := normalizePrefix(q.PathPrefix)

	var hits []types.Hit
	for i := range files {
		if i%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f := &files[i]
		if !matchLanguage(f.Language, q.Language) || !strings.HasPrefix(f.RelPath, prefix) {
			continue
		}

		score := 0.0
		if needle != "" {
			rel := strings.ToLower(f.RelPath)
			if strings.Contains(rel, needle) {
				score += pathMatchScore
			}
			if strings.Contains(path.Base(rel), needle) {
				score += basenameMatchScore
			}
			if score == 0 {
				continue
			}
		}

		hits = append(hits, types.Hit{
			Source:   types.SourceFile,
			Path:     f.Path,
			RelPath:  f.RelPath,
			Score:    score,
			Language: f.Language,
		})
	}

	sortByScore(hits)
	return respond(hits, q.TopK), nil
}

// SearchSymbols finds declarations whose name contains the query.
// Shorter names rank first as the closest matches.
func (s *Searcher) SearchSymbols(ctx context.Context, q SymbolQuery) (*types.SearchResponse, error) {
	needle := strings.ToLower(strings.TrimSpace(q.Name))
	if needle == "" {
		return nil, fmt.Errorf("symbol name: %w", types.ErrEmptyQuery)
	}

	syms, err := s.store.ReadSymbols()
	if err != nil {
		return notBuilt(err)
	}

	var hits []types.Hit
	for i := range syms {
		if i%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		sym := &syms[i]
		if q.Kind != "" && !strings.EqualFold(sym.Kind, q.Kind) {
			continue
		}
		if !matchLanguage(sym.Language, q.Language) {
			continue
		}
		if !strings.Contains(strings.ToLower(sym.Name), needle) {
			continue
		}
		hits = append(hits, types.Hit{
			Source:   types.SourceSymbol,
			Path:     sym.Path,
			RelPath:  sym.RelPath,
			Line:     sym.Line,
			Score:    float64(len(needle)) / float64(len(sym.Name)),
			Name:     sym.Name,
			Kind:     sym.Kind,
			Language: sym.Language,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return len(hits[i].Name) < len(hits[j].Name)
	})

	resp := respond(hits, q.TopK)

	contextLines := q.ContextLines
	if contextLines <= 0 {
		contextLines = defaultContextLines
	}
	contextLines = min(contextLines, maxContextLines)

	// Previews are resolved only for the returned hits
	for i := range resp.Hits {
		resp.Hits[i].Preview = s.preview(resp.Hits[i].Path, resp.Hits[i].Line, contextLines)
	}
	return resp, nil
}

// SearchChunks scores each chunk as 0.6 x shared identifiers + 0.4 x preview
// substring match. Chunks scoring zero are dropped.
func (s *Searcher) SearchChunks(ctx context.Context, q ChunkQuery) (*types.SearchResponse, error) {
	raw := strings.ToLower(strings.TrimSpace(q.Query))
	if raw == "" {
		return nil, fmt.Errorf("chunk query: %w", types.ErrEmptyQuery)
	}

	chunks, err := s.store.ReadChunks()
	if err != nil {
		return notBuilt(err)
	}

	tokens := queryTokens(raw)
	prefix := normalizePrefix(q.PathPrefix)

	var hits []types.Hit
	for i := range chunks {
		if i%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c := &chunks[i]
		if !matchLanguage(c.Language, q.Language) || !strings.HasPrefix(c.RelPath, prefix) {
			continue
		}

		score := chunkTokenWeight * float64(overlap(tokens, c.Identifiers))
		if strings.Contains(strings.ToLower(c.Preview), raw) {
			score += chunkPreviewWeight
		}
		if score <= 0 {
			continue
		}

		hits = append(hits, types.Hit{
			Source:      types.SourceChunk,
			Path:        c.Path,
			RelPath:     c.RelPath,
			Line:        c.StartLine,
			EndLine:     c.EndLine,
			Score:       score,
			Language:    c.Language,
			Preview:     c.Preview,
			Identifiers: c.Identifiers,
		})
	}

	sortByScore(hits)
	return respond(hits, q.TopK), nil
}

// SearchEndpoints scores routes as 2 x route + 1 x handler + 1 x preview
// substring matches. Method filters are exact and case-insensitive.
func (s *Searcher) SearchEndpoints(ctx context.Context, q EndpointQuery) (*types.SearchResponse, error) {
	eps, err := s.store.ReadEndpoints()
	if err != nil {
		return notBuilt(err)
	}

	needle := strings.ToLower(strings.TrimSpace(q.Query))
	method := strings.TrimSpace(q.Method)

	var hits []types.Hit
	for i := range eps {
		if i%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		ep := &eps[i]
		if method != "" && !strings.EqualFold(ep.Method, method) {
			continue
		}
		if q.PathPrefix != "" && !strings.HasPrefix(ep.Route, q.PathPrefix) {
			continue
		}

		score := 0.0
		if needle != "" {
			if strings.Contains(strings.ToLower(ep.Route), needle) {
				score += endpointRouteWeight
			}
			if strings.Contains(strings.ToLower(ep.Handler), needle) {
				score += endpointHandlerWeight
			}
			if strings.Contains(strings.ToLower(ep.Preview), needle) {
				score += endpointPreviewWeight
			}
			if score == 0 {
				continue
			}
		}

		hits = append(hits, types.Hit{
			Source:    types.SourceEndpoint,
			Path:      ep.Path,
			RelPath:   ep.RelPath,
			Line:      ep.Line,
			Score:     score,
			Preview:   ep.Preview,
			Method:    ep.Method,
			Route:     ep.Route,
			Framework: ep.Framework,
			Handler:   ep.Handler,
		})
	}

	sortByScore(hits)
	return respond(hits, q.TopK), nil
}

// SearchMixed runs symbol, chunk and file search with reduced caps and merges
// them by source priority. Any symbol hit outranks any chunk hit, which
// outranks any file hit, regardless of the per-index scores.
func (s *Searcher) SearchMixed(ctx context.Context, query string, topK int) (*types.SearchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("mixed query: %w", types.ErrEmptyQuery)
	}
	if !s.store.Exists() {
		return &types.SearchResponse{Hits: []types.Hit{}, Message: NotBuiltMessage}, nil
	}
	topK = clampTopK(topK)
	symCap, chunkCap, fileCap := mixedCaps(topK)

	syms, err := s.SearchSymbols(ctx, SymbolQuery{Name: query, TopK: symCap})
	if err != nil {
		return nil, err
	}
	chunks, err := s.SearchChunks(ctx, ChunkQuery{Query: query, TopK: chunkCap})
	if err != nil {
		return nil, err
	}
	files, err := s.SearchFiles(ctx, FileQuery{Query: query, TopK: fileCap})
	if err != nil {
		return nil, err
	}

	// File hits carry no line, so they never collide with a chunk that
	// starts at line 1 of the same file
	type key struct {
		path string
		line int
	}
	seen := make(map[key]struct{})
	var merged []types.Hit
	for _, list := range [][]types.Hit{syms.Hits, chunks.Hits, files.Hits} {
		for _, h := range list {
			k := key{h.RelPath, h.Line}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			merged = append(merged, h)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return sourcePriority[merged[i].Source] > sourcePriority[merged[j].Source]
	})
	return respond(merged, topK), nil
}

// mixedCaps splits topK across the three indexes. Symbols and chunks get
// half each, files a quarter, each at least one.
func mixedCaps(topK int) (symbols, chunks, files int) {
	half := max(1, (topK+1)/2)
	return half, half, max(1, (topK+3)/4)
}

// preview returns the lines around a 1-based line number, or "" when the
// source cannot be read
func (s *Searcher) preview(path string, line, contextLines int) string {
	lines := s.sourceLines(path)
	if len(lines) == 0 || line <= 0 || line > len(lines) {
		return ""
	}
	start := max(0, line-1-contextLines)
	end := min(len(lines), line+contextLines)
	return strings.Join(lines[start:end], "\n")
}

// sourceLines returns a file's lines through the LRU cache, reloading when
// the file's modification time changed
func (s *Searcher) sourceLines(path string) []string {
	info, err := os.Stat(path)
	if err != nil {
		s.logger.Debug("preview source unavailable", "path", path, "error", err)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.lines.Get(path); ok && cached.modTime.Equal(info.ModTime()) {
		return cached.lines
	}
	lines, err := manifest.ReadLines(path)
	if err != nil {
		s.logger.Debug("preview source unreadable", "path", path, "error", err)
		return nil
	}
	s.lines.Add(path, &cachedLines{modTime: info.ModTime(), lines: lines})
	return lines
}

// notBuilt turns a missing index into an empty response with a message
func notBuilt(err error) (*types.SearchResponse, error) {
	if errors.Is(err, types.ErrNotBuilt) {
		return &types.SearchResponse{Hits: []types.Hit{}, Message: NotBuiltMessage}, nil
	}
	return nil, err
}

// respond truncates hits to topK and records the pre-truncation total
func respond(hits []types.Hit, topK int) *types.SearchResponse {
	topK = clampTopK(topK)
	total := len(hits)
	if len(hits) > topK {
		hits = hits[:topK]
	}
	if hits == nil {
		hits = []types.Hit{}
	}
	return &types.SearchResponse{Hits: hits, Total: total}
}

func clampTopK(topK int) int {
	if topK <= 0 {
		return defaultTopK
	}
	return min(topK, maxTopK)
}

// sortByScore orders hits by descending score, keeping index order for ties
func sortByScore(hits []types.Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
}

func matchLanguage(lang, want string) bool {
	return want == "" || strings.EqualFold(lang, want)
}

// normalizePrefix converts a path prefix to the slash separated relative form
// stored in the index
func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(strings.ReplaceAll(prefix, "\\", "/"))
	prefix = strings.TrimPrefix(prefix, "./")
	if prefix == "." {
		return ""
	}
	return prefix
}

// queryTokens returns the distinct identifier tokens of a query, using the
// same tokenization as chunk identifiers
func queryTokens(query string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range tokenize.Identifiers(query) {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

func overlap(tokens, identifiers []string) int {
	if len(tokens) == 0 || len(identifiers) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(identifiers))
	for _, id := range identifiers {
		set[id] = struct{}{}
	}
	return tokenize.Overlap(tokens, set)
}
