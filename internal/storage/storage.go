package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dshills/reporecall/pkg/types"
)

// Kind names one of the code indexes
type Kind string

const (
	KindFiles     Kind = "files"
	KindSymbols   Kind = "symbols"
	KindChunks    Kind = "chunks"
	KindEndpoints Kind = "endpoints"
)

// IndexDirName is the code index directory inside the state directory
const IndexDirName = "code_index"

const (
	logExt        = ".jsonl"
	statsFileName = "stats.json"
)

// IndexStore persists the code indexes of one project as record logs
type IndexStore struct {
	dir    string
	logger *slog.Logger
}

// NewIndexStore creates a store rooted at <stateDir>/code_index.
// Nothing is written until the first build.
func NewIndexStore(stateDir string, logger *slog.Logger) *IndexStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexStore{
		dir:    filepath.Join(stateDir, IndexDirName),
		logger: logger,
	}
}

// Dir returns the code index directory
func (s *IndexStore) Dir() string {
	return s.dir
}

// LogPath returns the record log location for an index kind
func (s *IndexStore) LogPath(kind Kind) string {
	return filepath.Join(s.dir, string(kind)+logExt)
}

// StatsPath returns the stats file location
func (s *IndexStore) StatsPath() string {
	return filepath.Join(s.dir, statsFileName)
}

// Exists reports whether a build has completed (the stats file exists)
func (s *IndexStore) Exists() bool {
	_, err := os.Stat(s.StatsPath())
	return err == nil
}

// WriteFiles replaces the file manifest log
func (s *IndexStore) WriteFiles(records []types.FileRecord) error {
	return s.write(KindFiles, len(records), func(p string) error { return WriteLog(p, records) })
}

// WriteSymbols replaces the symbol log
func (s *IndexStore) WriteSymbols(records []types.SymbolRecord) error {
	return s.write(KindSymbols, len(records), func(p string) error { return WriteLog(p, records) })
}

// WriteChunks replaces the chunk log
func (s *IndexStore) WriteChunks(records []types.ChunkRecord) error {
	return s.write(KindChunks, len(records), func(p string) error { return WriteLog(p, records) })
}

// WriteEndpoints replaces the endpoint log
func (s *IndexStore) WriteEndpoints(records []types.EndpointRecord) error {
	return s.write(KindEndpoints, len(records), func(p string) error { return WriteLog(p, records) })
}

func (s *IndexStore) write(kind Kind, n int, fn func(path string) error) error {
	path := s.LogPath(kind)
	if err := fn(path); err != nil {
		return fmt.Errorf("failed to write %s index: %w", kind, err)
	}
	s.logger.Debug("index written", "kind", kind, "records", n, "path", path)
	return nil
}

// ReadFiles returns the file manifest in traversal order
func (s *IndexStore) ReadFiles() ([]types.FileRecord, error) {
	return readKind[types.FileRecord](s, KindFiles)
}

// ReadSymbols returns the symbol table
func (s *IndexStore) ReadSymbols() ([]types.SymbolRecord, error) {
	return readKind[types.SymbolRecord](s, KindSymbols)
}

// ReadChunks returns every chunk record
func (s *IndexStore) ReadChunks() ([]types.ChunkRecord, error) {
	return readKind[types.ChunkRecord](s, KindChunks)
}

// ReadEndpoints returns every endpoint record
func (s *IndexStore) ReadEndpoints() ([]types.EndpointRecord, error) {
	return readKind[types.EndpointRecord](s, KindEndpoints)
}

func readKind[T any](s *IndexStore, kind Kind) ([]T, error) {
	records, stats, err := ReadLog[T](s.LogPath(kind))
	if err != nil {
		return nil, err
	}
	if stats.Skipped > 0 {
		s.logger.Warn("skipped malformed index records", "kind", kind, "skipped", stats.Skipped)
	}
	return records, nil
}

// WriteStats replaces the stats file. It is the last step of a build.
func (s *IndexStore) WriteStats(stats *types.Stats) error {
	err := WriteFileAtomic(s.StatsPath(), 0o644, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	})
	if err != nil {
		return fmt.Errorf("failed to write stats: %w", err)
	}
	return nil
}

// ReadStats returns the last build's stats, or ErrNotBuilt when no build
// has completed
func (s *IndexStore) ReadStats() (*types.Stats, error) {
	data, err := os.ReadFile(s.StatsPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, types.ErrNotBuilt
		}
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}
	var stats types.Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("failed to decode stats: %w", err)
	}
	return &stats, nil
}
