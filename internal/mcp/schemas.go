package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Tool names
const (
	ToolIndexInit            = "index_init"
	ToolIndexReindex         = "index_reindex"
	ToolIndexStats           = "index_stats"
	ToolSearchFiles          = "search_files"
	ToolSearchSymbols        = "search_symbols"
	ToolSearchChunks         = "search_chunks"
	ToolSearchEndpoints      = "search_endpoints"
	ToolSearchMixed          = "search_mixed"
	ToolMemoryRecord         = "memory_record"
	ToolMemoryAdd            = "memory_add"
	ToolMemoryRetrieve       = "memory_retrieve"
	ToolMemoryList           = "memory_list"
	ToolMemoryRebuildVectors = "memory_rebuild_vectors"
)

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

// buildOptions are shared by index_init and index_reindex
func buildOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("scope",
			mcp.Description("Subdirectory to index, relative to the project root. Defaults to the whole project; paths outside the root are rejected."),
		),
		mcp.WithNumber("max_file_size_mb",
			mcp.Description("Skip files larger than this many megabytes (default 10)"),
			mcp.Min(1),
		),
		mcp.WithNumber("chunk_lines",
			mcp.Description("Lines per chunk window (default 300)"),
			mcp.Min(1),
		),
		mcp.WithNumber("chunk_overlap",
			mcp.Description("Lines shared by consecutive chunk windows (default 50)"),
			mcp.Min(0),
		),
	}
}

func indexInitTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Build the code indexes (files, symbols, chunks, endpoints) if they do not exist yet. Returns the existing counts otherwise."),
	}, buildOptions()...)
	return mcp.NewTool(ToolIndexInit, opts...)
}

func indexReindexTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Rebuild every code index from scratch and replace the previous build."),
	}, buildOptions()...)
	return mcp.NewTool(ToolIndexReindex, opts...)
}

func indexStatsTool() mcp.Tool {
	return mcp.NewTool(ToolIndexStats,
		mcp.WithDescription("Report the counts and parameters of the most recent index build."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

func topKOption(def int) mcp.ToolOption {
	return mcp.WithNumber("top_k",
		mcp.Description("Maximum number of results"),
		mcp.DefaultNumber(float64(def)),
		mcp.Min(1),
		mcp.Max(500),
	)
}

func searchFilesTool() mcp.Tool {
	return mcp.NewTool(ToolSearchFiles,
		mcp.WithDescription("Find indexed files by path or file name substring. Without a query, lists files matching the filters."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query", mcp.Description("Substring of the relative path or file name")),
		mcp.WithString("lang", mcp.Description("Language filter, e.g. go, python, typescript")),
		mcp.WithString("path_prefix", mcp.Description("Only files under this relative directory")),
		topKOption(20),
	)
}

func searchSymbolsTool() mcp.Tool {
	return mcp.NewTool(ToolSearchSymbols,
		mcp.WithDescription("Find declarations (functions, classes, methods, types) whose name contains the given text. Shorter names rank first."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("name", mcp.Required(), mcp.Description("Case-insensitive substring of the symbol name")),
		mcp.WithString("kind", mcp.Description("Symbol kind filter, e.g. function, class, method")),
		mcp.WithString("lang", mcp.Description("Language filter")),
		mcp.WithNumber("context_lines",
			mcp.Description("Source lines of context around each declaration (default 2)"),
			mcp.Min(0),
			mcp.Max(50),
		),
		topKOption(20),
	)
}

func searchChunksTool() mcp.Tool {
	return mcp.NewTool(ToolSearchChunks,
		mcp.WithDescription("Rank source windows by identifier overlap with the query and by literal query matches."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query", mcp.Required(), mcp.Description("Keywords or identifiers to look for")),
		mcp.WithString("lang", mcp.Description("Language filter")),
		mcp.WithString("path_prefix", mcp.Description("Only chunks of files under this relative directory")),
		topKOption(20),
	)
}

func searchEndpointsTool() mcp.Tool {
	return mcp.NewTool(ToolSearchEndpoints,
		mcp.WithDescription("Find HTTP route registrations detected in the source (Flask, FastAPI, Django, Express, NestJS, Spring, Go routers, Rails, Laravel)."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query", mcp.Description("Substring of the route, handler or source line")),
		mcp.WithString("method", mcp.Description("HTTP method filter, e.g. GET")),
		mcp.WithString("path_prefix", mcp.Description("Only routes starting with this prefix, e.g. /api")),
		topKOption(20),
	)
}

func searchMixedTool() mcp.Tool {
	return mcp.NewTool(ToolSearchMixed,
		mcp.WithDescription("Search symbols, chunks and files at once. Symbol hits rank above chunk hits, which rank above file hits."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
		topKOption(20),
	)
}

func memoryRecordTool() mcp.Tool {
	return mcp.NewTool(ToolMemoryRecord,
		mcp.WithDescription("Extract short reusable facts from a completed interaction and store them in project memory."),
		mcp.WithString("input", mcp.Description("The user's request")),
		mcp.WithString("output", mcp.Required(), mcp.Description("The final answer to extract facts from")),
		mcp.WithString("session_id", mcp.Description("Identifier of the conversation")),
	)
}

func memoryAddTool() mcp.Tool {
	return mcp.NewTool(ToolMemoryAdd,
		mcp.WithDescription("Store one explicit fact in project memory."),
		mcp.WithString("content", mcp.Required(), mcp.Description("The fact to remember")),
		mcp.WithArray("tags", mcp.Description("Optional tags"), mcp.WithStringItems()),
	)
}

func memoryRetrieveTool() mcp.Tool {
	return mcp.NewTool(ToolMemoryRetrieve,
		mcp.WithDescription("Return the stored facts most relevant to a query."),
		mcp.WithString("query", mcp.Required(), mcp.Description("What the facts should be about")),
		mcp.WithNumber("k",
			mcp.Description("Maximum number of facts"),
			mcp.DefaultNumber(5),
			mcp.Min(1),
			mcp.Max(100),
		),
	)
}

func memoryListTool() mcp.Tool {
	return mcp.NewTool(ToolMemoryList,
		mcp.WithDescription("List every stored fact with its importance and timestamps."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

func memoryRebuildVectorsTool() mcp.Tool {
	return mcp.NewTool(ToolMemoryRebuildVectors,
		mcp.WithDescription("Re-embed every stored fact and replace the memory vector index."),
	)
}
