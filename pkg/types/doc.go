// Package types provides shared record definitions for the reporecall index.
//
// Every derived index is persisted as a log of one JSON object per line, and
// the structs in this package define those line schemas:
//
//	FileRecord      code_index/files.jsonl
//	SymbolRecord    code_index/symbols.jsonl
//	ChunkRecord     code_index/chunks.jsonl
//	EndpointRecord  code_index/endpoints.jsonl
//	Stats           code_index/stats.json
//	MemoryItem      memory.jsonl
//
// # Paths
//
// Records carry both an absolute, symlink-resolved Path and a RelPath that is
// relative to the project root and uses forward slashes. RelPath never starts
// with "..": the scope resolver rejects anything outside the project root
// before a record can be produced.
//
// # Search Results
//
// Query operations return SearchResponse values whose Hits share one shape
// regardless of which index produced them, so the mixed search can merge
// symbol, chunk and file hits into one list:
//
//	resp := searcher.Mixed(ctx, "session token", 10)
//	for _, hit := range resp.Hits {
//	    fmt.Printf("%s %s:%d %.2f\n", hit.Source, hit.RelPath, hit.Line, hit.Score)
//	}
//
// An index that has never been built produces an empty Hits slice and a
// non-empty Message rather than an error.
package types
