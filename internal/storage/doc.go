// Package storage provides file-based persistence for the code indexes and
// a SQLite-backed store for embedding vectors.
//
// # Code Index Layout
//
// Each build writes one record log per index kind under
// <state>/code_index/, followed by stats.json:
//
//	code_index/files.jsonl      one FileRecord per line
//	code_index/symbols.jsonl    one SymbolRecord per line
//	code_index/chunks.jsonl     one ChunkRecord per line
//	code_index/endpoints.jsonl  one EndpointRecord per line
//	code_index/stats.json       summary of the last completed build
//
// Logs are replaced atomically (temp file, fsync, rename) so readers never
// observe a torn file. A line that fails to decode is skipped and counted
// rather than failing the whole read. The stats file is written last and
// its presence marks the indexes as built.
//
// # Basic Usage
//
//	store := storage.NewIndexStore(stateDir, logger)
//	if err := store.WriteFiles(files); err != nil {
//	    return err
//	}
//	...
//	if err := store.WriteStats(stats); err != nil {
//	    return err
//	}
//
//	symbols, err := store.ReadSymbols()
//	if errors.Is(err, types.ErrNotBuilt) {
//	    // no build yet
//	}
//
// # Vector Database
//
// VectorDB keeps fixed-dimension float32 vectors keyed by a dense insertion
// position. Callers keep their own payload log whose line N describes the
// vector at position N.
//
//	db, err := storage.OpenVectorDB(ctx, "index/local/index.vec")
//	first, err := db.Append(ctx, vectors)
//	hits, err := db.Search(ctx, query, 10)
//
// The schema is versioned and migrated with semantic version ordering.
//
// # Build Tags
//
// CGO Build (sqlite_vec tag):
//
//   - Uses github.com/mattn/go-sqlite3 driver
//
//   - Registers the sqlite-vec extension; similarity runs in SQL
//
//     CGO_ENABLED=1 go build -tags "sqlite_vec"
//
// Pure Go Build (default):
//
//   - Uses modernc.org/sqlite driver
//
//   - Similarity is computed in Go
//
//     CGO_ENABLED=0 go build
package storage
