package mcp

import (
	"context"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/reporecall/internal/project"
)

const (
	// ServerName is the MCP server name
	ServerName = "reporecall"
	// ServerVersion is the current server version
	ServerVersion = "0.3.0"
)

// Server exposes one project's build, search and memory operations as MCP tools
type Server struct {
	mcp     *server.MCPServer
	project *project.Project
	logger  *slog.Logger
}

// NewServer creates the MCP server for an opened project
func NewServer(p *project.Project, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcp:     server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		project: p,
		logger:  logger,
	}
	s.registerTools()
	return s
}

// Serve runs the MCP protocol over in and out until ctx is cancelled or
// the input is closed
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	s.logger.Info("mcp server listening", "root", s.project.Root.Path)
	return stdio.Listen(ctx, in, out)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexInitTool(), s.handleIndexInit)
	s.mcp.AddTool(indexReindexTool(), s.handleIndexReindex)
	s.mcp.AddTool(indexStatsTool(), s.handleIndexStats)

	s.mcp.AddTool(searchFilesTool(), s.handleSearchFiles)
	s.mcp.AddTool(searchSymbolsTool(), s.handleSearchSymbols)
	s.mcp.AddTool(searchChunksTool(), s.handleSearchChunks)
	s.mcp.AddTool(searchEndpointsTool(), s.handleSearchEndpoints)
	s.mcp.AddTool(searchMixedTool(), s.handleSearchMixed)

	s.mcp.AddTool(memoryRecordTool(), s.handleMemoryRecord)
	s.mcp.AddTool(memoryAddTool(), s.handleMemoryAdd)
	s.mcp.AddTool(memoryRetrieveTool(), s.handleMemoryRetrieve)
	s.mcp.AddTool(memoryListTool(), s.handleMemoryList)
	s.mcp.AddTool(memoryRebuildVectorsTool(), s.handleMemoryRebuildVectors)
}
