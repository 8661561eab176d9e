// Package indexer runs the code index build for one project root.
//
// A build walks the scan root once to produce the file manifest, then runs
// the symbol extractor, the chunk builder and the endpoint detector over that
// manifest concurrently. Each index is written as its own record log and the
// stats file is written last:
//
//	idx := indexer.New(root, store, symbols.New(cfg.Symbols, logger), cfg.Index, logger)
//	summary, err := idx.Init(ctx, indexer.Options{Scope: "internal"})
//
// Init is a no-op when a build already exists; Reindex always overwrites.
// Scope resolution happens before any file is read or written, so a scope
// outside the project root fails with types.ErrOutsideRoot and leaves the
// previous build untouched.
//
// Builds against the same state directory must not overlap. Callers that
// accept concurrent requests serialize them with BuildLock.
package indexer
