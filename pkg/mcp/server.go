package mcp

import (
	"context"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sanity/pkg/mcp/tools"
)

// ServerName is advertised to MCP clients during initialization.
const ServerName = "ekaya-sanity"

// Server wraps the mcp-go MCPServer with the sanity tools.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates a server with the health and sanity tools registered.
func NewServer(deps *tools.SanityToolDeps, info tools.HealthInfo, logger *zap.Logger) *Server {
	mcpServer := server.NewMCPServer(
		ServerName,
		info.Version,
		server.WithToolCapabilities(true),
	)
	tools.RegisterHealthTool(mcpServer, info)
	tools.RegisterSanityTools(mcpServer, deps)

	return &Server{
		mcp:    mcpServer,
		logger: logger.Named("mcp"),
	}
}

// MCP returns the underlying MCPServer.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// RegisterTool is a convenience wrapper for registering a tool.
func (s *Server) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
}

// ServeStdio serves JSON-RPC over in/out until ctx is cancelled or in closes.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("Serving MCP over stdio")
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// NewStreamableHTTPServer creates a stateless HTTP transport for this server.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}
