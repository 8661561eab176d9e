// Package searcher answers ranked queries against the persisted code indexes.
//
// Each index has its own filtered search:
//
//   - SearchFiles: substring match on relative path and basename. With no
//     query it is a pure filter and every hit scores 0. File hits carry no
//     line number.
//   - SearchSymbols: case-insensitive substring on the name, shorter names
//     first. Previews are read from the source through an LRU line cache.
//   - SearchChunks: 0.6 x identifiers shared with the query + 0.4 if the raw
//     query appears in the preview. Zero scores are dropped.
//   - SearchEndpoints: 2 x route + 1 x handler + 1 x preview substring hits,
//     with exact method and route prefix filters.
//   - SearchMixed: symbol, chunk and file search at reduced caps, deduplicated
//     by (path, line) and ordered by source: symbols, then chunks, then files.
//
// Every search returns a well-formed response. When the index has never been
// built the hit list is empty and Message says so; Total counts matches
// before truncation to TopK.
//
// Usage:
//
//	s := searcher.NewSearcher(store, logger)
//	resp, err := s.SearchSymbols(ctx, searcher.SymbolQuery{Name: "login", Kind: "function"})
package searcher
