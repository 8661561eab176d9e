// Package vectorindex keeps an embedding index of memory items as a derived,
// droppable cache next to the memory log.
//
// The index for a model lives in <stateDir>/index/<model>/: index.vec is a
// SQLite database of vectors and meta.jsonl holds one entry per vector, so
// line N describes vector N. Any inconsistency between the two (count
// mismatch, unreadable meta line, dimension change) marks the index corrupt;
// it then behaves as empty until Rebuild.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dshills/reporecall/internal/embedder"
	"github.com/dshills/reporecall/internal/storage"
	"github.com/dshills/reporecall/pkg/types"
)

// Layout inside the state directory
const (
	DirName      = "index"
	DBFileName   = "index.vec"
	MetaFileName = "meta.jsonl"
)

const embedBatchSize = 64

// ErrCorrupt marks an index that disagrees with itself or the embedder
var ErrCorrupt = errors.New("vector index is inconsistent; rebuild required")

// ErrBackendUnavailable wraps failures of the embedding provider
var ErrBackendUnavailable = errors.New("embedding backend unavailable")

// Entry is the metadata stored for one vector
type Entry struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Match is one nearest-neighbour result
type Match struct {
	Entry
	Score float64 // Cosine similarity
}

// Index is an embedding index over memory items
type Index interface {
	// Available reports whether a vector backend is configured
	Available() bool
	// Len returns the number of usable vectors, 0 when absent or corrupt
	Len(ctx context.Context) int
	// Search embeds text and returns up to k nearest entries
	Search(ctx context.Context, text string, k int) ([]Match, error)
	// Add embeds and appends entries, creating the index on first write
	Add(ctx context.Context, entries []Entry) error
	// Rebuild replaces the whole index with embeddings of entries
	Rebuild(ctx context.Context, entries []Entry) error
	Close() error
}

// Open selects the index implementation. A nil embedder yields Noop.
func Open(stateDir string, emb embedder.Embedder, logger *slog.Logger) Index {
	if emb == nil {
		return Noop{}
	}
	return NewSQLiteIndex(stateDir, emb, logger)
}

// Noop is the index used when no embedding backend is configured
type Noop struct{}

func (Noop) Available() bool                                      { return false }
func (Noop) Len(context.Context) int                              { return 0 }
func (Noop) Search(context.Context, string, int) ([]Match, error) { return nil, nil }
func (Noop) Add(context.Context, []Entry) error                   { return nil }
func (Noop) Rebuild(context.Context, []Entry) error               { return nil }
func (Noop) Close() error                                         { return nil }

// SQLiteIndex stores vectors through storage.VectorDB
type SQLiteIndex struct {
	dir    string
	emb    embedder.Embedder
	logger *slog.Logger

	mu      sync.Mutex
	db      *storage.VectorDB
	entries []Entry // Loaded meta, position-aligned with the vectors
	loaded  bool
	corrupt bool
}

// NewSQLiteIndex creates the index for emb's model. Nothing is opened or
// created until first use.
func NewSQLiteIndex(stateDir string, emb embedder.Embedder, logger *slog.Logger) *SQLiteIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteIndex{
		dir:    filepath.Join(stateDir, DirName, ModelDirName(emb.Model())),
		emb:    emb,
		logger: logger,
	}
}

// ModelDirName turns a model name into a single safe path element
func ModelDirName(model string) string {
	if model == "" {
		return "default"
	}
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, model)
	if strings.Trim(name, ".") == "" {
		return strings.Repeat("_", len(name))
	}
	return name
}

// Dir returns the index directory
func (x *SQLiteIndex) Dir() string { return x.dir }

// Available implements Index
func (x *SQLiteIndex) Available() bool { return true }

// Len implements Index
func (x *SQLiteIndex) Len(ctx context.Context) int {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.load(ctx, false); err != nil {
		return 0
	}
	return len(x.entries)
}

// Search implements Index
func (x *SQLiteIndex) Search(ctx context.Context, text string, k int) ([]Match, error) {
	if strings.TrimSpace(text) == "" || k <= 0 {
		return nil, nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.load(ctx, false); err != nil {
		return nil, err
	}
	if len(x.entries) == 0 {
		return nil, nil
	}

	emb, err := x.emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
	if err != nil {
		return nil, err
	}
	if err := x.checkDimension(ctx, len(emb.Vector)); err != nil {
		return nil, err
	}

	results, err := x.db.Search(ctx, emb.Vector, k)
	if err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(results))
	for _, r := range results {
		if r.Position < 0 || r.Position >= len(x.entries) {
			continue
		}
		matches = append(matches, Match{Entry: x.entries[r.Position], Score: r.Score})
	}
	return matches, nil
}

// Add implements Index. Vectors are written before their meta lines, so an
// interrupted add leaves a count mismatch that is detected as corruption.
func (x *SQLiteIndex) Add(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.load(ctx, true); err != nil {
		return err
	}

	vectors, err := x.embed(ctx, entries)
	if err != nil {
		return err
	}
	if err := x.checkDimension(ctx, len(vectors[0])); err != nil {
		return err
	}

	if _, err := x.db.Append(ctx, vectors); err != nil {
		x.corrupt = true
		return err
	}
	if err := x.db.SetMeta(ctx, storage.MetaModel, x.emb.Model()); err != nil {
		return err
	}
	if err := storage.AppendLog(x.metaPath(x.dir), entries); err != nil {
		x.corrupt = true
		return fmt.Errorf("failed to append vector meta: %w", err)
	}
	x.entries = append(x.entries, entries...)
	return nil
}

// Rebuild implements Index. The new index is written to a sibling directory
// and swapped in, so readers see either the old or the new index. An empty
// entries list produces an explicitly empty index.
func (x *SQLiteIndex) Rebuild(ctx context.Context, entries []Entry) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	var vectors [][]float32
	if len(entries) > 0 {
		var err error
		if vectors, err = x.embed(ctx, entries); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(x.dir), 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	tmpDir, err := os.MkdirTemp(filepath.Dir(x.dir), "."+filepath.Base(x.dir)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp index directory: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(tmpDir)
	}()

	db, err := storage.OpenVectorDB(ctx, filepath.Join(tmpDir, DBFileName))
	if err != nil {
		return err
	}
	if _, err := db.Append(ctx, vectors); err != nil {
		_ = db.Close()
		return err
	}
	if err := db.SetMeta(ctx, storage.MetaModel, x.emb.Model()); err != nil {
		_ = db.Close()
		return err
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("failed to close rebuilt index: %w", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	if err := storage.WriteLog(x.metaPath(tmpDir), entries); err != nil {
		return err
	}

	x.closeDB()
	if err := os.RemoveAll(x.dir); err != nil {
		return fmt.Errorf("failed to remove old index: %w", err)
	}
	if err := os.Rename(tmpDir, x.dir); err != nil {
		return fmt.Errorf("failed to install rebuilt index: %w", err)
	}

	x.loaded = false
	x.corrupt = false
	x.logger.Info("vector index rebuilt", "dir", x.dir, "entries", len(entries), "model", x.emb.Model())
	return nil
}

// Close implements Index
func (x *SQLiteIndex) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.closeDB()
}

func (x *SQLiteIndex) closeDB() error {
	x.loaded = false
	x.entries = nil
	if x.db == nil {
		return nil
	}
	err := x.db.Close()
	x.db = nil
	return err
}

func (x *SQLiteIndex) metaPath(dir string) string {
	return filepath.Join(dir, MetaFileName)
}

// load opens the database and meta log once. Without create, a missing index
// loads as empty and nothing is written.
func (x *SQLiteIndex) load(ctx context.Context, create bool) error {
	if x.corrupt {
		return ErrCorrupt
	}
	if x.loaded && (x.db != nil || !create) {
		return nil
	}

	dbPath := filepath.Join(x.dir, DBFileName)
	if _, err := os.Stat(dbPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to stat vector index: %w", err)
		}
		if !create {
			x.loaded = true
			x.entries = nil
			return nil
		}
		if err := os.MkdirAll(x.dir, 0o755); err != nil {
			return fmt.Errorf("failed to create index directory: %w", err)
		}
	}

	db, err := storage.OpenVectorDB(ctx, dbPath)
	if err != nil {
		return err
	}

	entries, stats, err := storage.ReadLog[Entry](x.metaPath(x.dir))
	if err != nil && !errors.Is(err, types.ErrNotBuilt) {
		_ = db.Close()
		return err
	}
	count, err := db.Count(ctx)
	if err != nil {
		_ = db.Close()
		return err
	}

	stored, err := db.Dimension(ctx)
	if err != nil {
		_ = db.Close()
		return err
	}

	x.db = db
	x.loaded = true
	if want := x.emb.Dimension(); want > 0 && stored > 0 && want != stored {
		x.logger.Warn("vector index dimension does not match the embedder, ignoring until rebuild",
			"dir", x.dir, "stored", stored, "embedder", want)
		x.corrupt = true
		x.entries = nil
		return ErrCorrupt
	}
	if stats.Skipped > 0 || count != len(entries) {
		x.logger.Warn("vector index inconsistent, ignoring until rebuild",
			"dir", x.dir, "vectors", count, "meta", len(entries), "skipped", stats.Skipped)
		x.corrupt = true
		x.entries = nil
		return ErrCorrupt
	}
	x.entries = entries
	return nil
}

// checkDimension rejects vectors that do not match the stored dimension
func (x *SQLiteIndex) checkDimension(ctx context.Context, dim int) error {
	stored, err := x.db.Dimension(ctx)
	if err != nil {
		return err
	}
	if stored != 0 && stored != dim {
		x.logger.Warn("embedding dimension changed, ignoring vector index until rebuild",
			"stored", stored, "embedder", dim, "model", x.emb.Model())
		x.corrupt = true
		return ErrCorrupt
	}
	return nil
}

// embed encodes entry contents in batches
func (x *SQLiteIndex) embed(ctx context.Context, entries []Entry) ([][]float32, error) {
	vectors := make([][]float32, 0, len(entries))
	for start := 0; start < len(entries); start += embedBatchSize {
		end := min(start+embedBatchSize, len(entries))
		texts := make([]string, 0, end-start)
		for _, e := range entries[start:end] {
			texts = append(texts, e.Content)
		}
		resp, err := x.emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		for _, e := range resp.Embeddings {
			vectors = append(vectors, e.Vector)
		}
	}
	return vectors, nil
}
