package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/reporecall/internal/indexer"
	"github.com/dshills/reporecall/internal/searcher"
	"github.com/dshills/reporecall/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeOutsideRoot        = -32001 // Requested path escapes the project root
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeNotIndexed         = -32003 // Project not indexed
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

const defaultMemoryK = 5

// handleIndexInit builds the indexes unless a build already exists
func (s *Server) handleIndexInit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.build(ctx, request, false)
}

// handleIndexReindex rebuilds every index
func (s *Server) handleIndexReindex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.build(ctx, request, true)
}

func (s *Server) build(ctx context.Context, request mcp.CallToolRequest, reindex bool) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	opts := indexer.Options{
		Scope:         getStringDefault(args, "scope", ""),
		MaxFileSizeMB: getIntDefault(args, "max_file_size_mb", 0),
		ChunkLines:    getIntDefault(args, "chunk_lines", 0),
	}
	if _, ok := args["chunk_overlap"]; ok {
		overlap := getIntDefault(args, "chunk_overlap", 0)
		opts.ChunkOverlap = &overlap
	}

	summary, err := s.project.Build(ctx, reindex, opts)
	if err != nil {
		return nil, toMCPError("indexing failed", err)
	}

	response := map[string]interface{}{
		"root":              summary.Root,
		"files":             summary.Files,
		"symbols":           summary.Symbols,
		"chunks":            summary.Chunks,
		"endpoints":         summary.Endpoints,
		"symbols_available": summary.SymbolsAvailable,
		"skipped":           summary.Skipped,
		"duration_ms":       summary.DurationMS,
		"message":           summary.String(),
	}
	if summary.Scope != "" {
		response["scope"] = summary.Scope
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIndexStats reports the last build
func (s *Server) handleIndexStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.project.Indexer.Stats()
	if errors.Is(err, types.ErrNotBuilt) {
		response := map[string]interface{}{
			"built":   false,
			"root":    s.project.Root.Path,
			"message": searcher.NotBuiltMessage,
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}
	if err != nil {
		return nil, toMCPError("failed to read index stats", err)
	}

	response := map[string]interface{}{
		"built":            true,
		"root":             stats.Root,
		"files":            stats.Files,
		"symbols":          stats.Symbols,
		"chunks":           stats.Chunks,
		"endpoints":        stats.Endpoints,
		"chunk_lines":      stats.ChunkLines,
		"chunk_overlap":    stats.ChunkOverlap,
		"symbol_extractor": stats.SymbolExtractor,
		"built_at":         stats.BuiltAt.Format("2006-01-02T15:04:05Z07:00"),
		"memory_vectors":   s.project.Vectors.Len(ctx),
	}
	if stats.Scope != "" {
		response["scope"] = stats.Scope
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchFiles handles the search_files tool invocation
func (s *Server) handleSearchFiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	resp, err := s.project.Searcher.SearchFiles(ctx, searcher.FileQuery{
		Query:      getStringDefault(args, "query", ""),
		Language:   getStringDefault(args, "lang", ""),
		PathPrefix: getStringDefault(args, "path_prefix", ""),
		TopK:       getIntDefault(args, "top_k", 0),
	})
	return searchResult(resp, err)
}

// handleSearchSymbols handles the search_symbols tool invocation
func (s *Server) handleSearchSymbols(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	name, err := requireString(args, "name")
	if err != nil {
		return nil, err
	}

	resp, err := s.project.Searcher.SearchSymbols(ctx, searcher.SymbolQuery{
		Name:         name,
		Kind:         getStringDefault(args, "kind", ""),
		Language:     getStringDefault(args, "lang", ""),
		ContextLines: getIntDefault(args, "context_lines", 0),
		TopK:         getIntDefault(args, "top_k", 0),
	})
	return searchResult(resp, err)
}

// handleSearchChunks handles the search_chunks tool invocation
func (s *Server) handleSearchChunks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	query, err := requireString(args, "query")
	if err != nil {
		return nil, err
	}

	resp, err := s.project.Searcher.SearchChunks(ctx, searcher.ChunkQuery{
		Query:      query,
		Language:   getStringDefault(args, "lang", ""),
		PathPrefix: getStringDefault(args, "path_prefix", ""),
		TopK:       getIntDefault(args, "top_k", 0),
	})
	return searchResult(resp, err)
}

// handleSearchEndpoints handles the search_endpoints tool invocation
func (s *Server) handleSearchEndpoints(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	resp, err := s.project.Searcher.SearchEndpoints(ctx, searcher.EndpointQuery{
		Query:      getStringDefault(args, "query", ""),
		Method:     getStringDefault(args, "method", ""),
		PathPrefix: getStringDefault(args, "path_prefix", ""),
		TopK:       getIntDefault(args, "top_k", 0),
	})
	return searchResult(resp, err)
}

// handleSearchMixed handles the search_mixed tool invocation
func (s *Server) handleSearchMixed(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	query, err := requireString(args, "query")
	if err != nil {
		return nil, err
	}
	resp, err := s.project.Searcher.SearchMixed(ctx, query, getIntDefault(args, "top_k", 0))
	return searchResult(resp, err)
}

// handleMemoryRecord stores facts from a completed turn
func (s *Server) handleMemoryRecord(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	output, err := requireString(args, "output")
	if err != nil {
		return nil, err
	}

	before := s.memoryCount()
	err = s.project.Memory.RecordTurn(ctx,
		getStringDefault(args, "input", ""),
		output,
		getStringDefault(args, "session_id", ""))
	if err != nil {
		return nil, toMCPError("failed to record memory", err)
	}

	after := s.memoryCount()
	response := map[string]interface{}{
		"recorded": true,
		"added":    after - before,
		"total":    after,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleMemoryAdd stores one explicit fact
func (s *Server) handleMemoryAdd(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	content, err := requireString(args, "content")
	if err != nil {
		return nil, err
	}

	item, err := s.project.Memory.Add(ctx, content, getStringSlice(args, "tags"), types.SourceManual)
	if err != nil {
		return nil, toMCPError("failed to add memory", err)
	}
	return mcp.NewToolResultText(formatJSON(item)), nil
}

// handleMemoryRetrieve returns the most relevant stored facts
func (s *Server) handleMemoryRetrieve(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	query, err := requireString(args, "query")
	if err != nil {
		return nil, err
	}

	k := getIntDefault(args, "k", defaultMemoryK)
	if k < 1 || k > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "k must be between 1 and 100", map[string]interface{}{
			"param": "k",
			"value": k,
		})
	}

	scored, err := s.project.Memory.RetrieveItems(ctx, query, k)
	if err != nil {
		return nil, toMCPError("failed to retrieve memory", err)
	}

	items := make([]map[string]interface{}, 0, len(scored))
	for _, sc := range scored {
		items = append(items, map[string]interface{}{
			"id":         sc.Item.ID,
			"content":    sc.Item.Content,
			"score":      sc.Score,
			"importance": sc.Item.Importance,
			"tags":       sc.Item.Tags,
		})
	}
	response := map[string]interface{}{
		"items":   items,
		"vectors": s.project.Vectors.Available(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleMemoryList returns every stored fact
func (s *Server) handleMemoryList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.project.Memory.List()
	if err != nil {
		return nil, toMCPError("failed to list memory", err)
	}
	if items == nil {
		items = []types.MemoryItem{}
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"items": items,
		"total": len(items),
	})), nil
}

// handleMemoryRebuildVectors re-embeds the memory log
func (s *Server) handleMemoryRebuildVectors(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	msg, err := s.project.Memory.RebuildVectorIndex(ctx)
	if err != nil {
		return nil, toMCPError("failed to rebuild vector index", err)
	}
	return mcp.NewToolResultText(msg), nil
}

func (s *Server) memoryCount() int {
	items, err := s.project.Memory.List()
	if err != nil {
		return 0
	}
	return len(items)
}

// Helper functions

func searchResult(resp *types.SearchResponse, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return nil, toMCPError("search failed", err)
	}
	return mcp.NewToolResultText(formatJSON(resp)), nil
}

// toMCPError maps domain errors onto MCP error codes
func toMCPError(message string, err error) error {
	data := map[string]interface{}{"error": err.Error()}
	switch {
	case errors.Is(err, types.ErrOutsideRoot):
		return newMCPError(ErrorCodeOutsideRoot, message, data)
	case errors.Is(err, indexer.ErrBuildInProgress):
		return newMCPError(ErrorCodeIndexingInProgress, message, data)
	case errors.Is(err, types.ErrNotBuilt):
		return newMCPError(ErrorCodeNotIndexed, message, data)
	case errors.Is(err, types.ErrEmptyQuery), errors.Is(err, types.ErrEmptyContent):
		return newMCPError(ErrorCodeEmptyQuery, message, data)
	case errors.Is(err, types.ErrInvalidScope), errors.Is(err, types.ErrInvalidChunking):
		return newMCPError(ErrorCodeInvalidParams, message, data)
	default:
		return newMCPError(ErrorCodeInternalError, message, data)
	}
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// requireString extracts a non-empty string parameter
func requireString(args map[string]interface{}, key string) (string, error) {
	val, ok := args[key].(string)
	if !ok || val == "" {
		code := ErrorCodeInvalidParams
		if key == "query" || key == "name" {
			code = ErrorCodeEmptyQuery
		}
		return "", newMCPError(code, key+" parameter is required and cannot be empty", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	return val, nil
}

// formatJSON formats a value as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string array parameter, ignoring non-string items
func getStringSlice(args map[string]interface{}, key string) []string {
	switch val := args[key].(type) {
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, v := range val {
			if str, ok := v.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}
