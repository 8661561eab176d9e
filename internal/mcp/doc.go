// Package mcp implements the Model Context Protocol (MCP) server for reporecall.
//
// One server serves one project root. It exposes three groups of tools:
//
// Build:
//   - index_init: build the code indexes if no build exists
//   - index_reindex: rebuild every index from scratch
//   - index_stats: counts and parameters of the last build
//
// Search:
//   - search_files: path and file name substring search with filters
//   - search_symbols: declaration name search with source previews
//   - search_chunks: keyword search over overlapping line windows
//   - search_endpoints: HTTP route search
//   - search_mixed: symbols, chunks and files in one ranked list
//
// Memory:
//   - memory_record: extract facts from a completed interaction
//   - memory_add: store one explicit fact
//   - memory_retrieve: rank stored facts for a query
//   - memory_list: list stored facts
//   - memory_rebuild_vectors: re-embed every fact
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport. The server reads
// requests from stdin and writes responses to stdout; logs go to stderr.
//
//	reporecall serve --root /path/to/project
//
// # Tool: search_symbols
//
//	Request:
//	{
//	  "name": "search_symbols",
//	  "arguments": {"name": "login", "kind": "function", "top_k": 5}
//	}
//
//	Response:
//	{
//	  "hits": [
//	    {
//	      "source": "symbol",
//	      "path": "/path/to/project/app/views.py",
//	      "rel_path": "app/views.py",
//	      "line": 42,
//	      "score": 0.5,
//	      "name": "login_view",
//	      "kind": "function",
//	      "preview": "@app.route(\"/login\")\ndef login_view():\n    form = LoginForm()"
//	    }
//	  ],
//	  "total": 1
//	}
//
// Search tools never fail because the index is missing: they return an empty
// hit list with a message asking for index_init.
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "reporecall": {
//	      "command": "/usr/local/bin/reporecall",
//	      "args": ["serve", "--root", "/path/to/project"]
//	    }
//	  }
//	}
//
// # Error Handling
//
// Invalid requests return JSON-RPC errors:
//   - -32602: Invalid params (missing/invalid arguments, bad chunk settings)
//   - -32603: Internal error (filesystem, embedding backend)
//   - -32001: Scope outside the project root
//   - -32002: Indexing in progress
//   - -32003: Project not indexed
//   - -32004: Empty query
package mcp
