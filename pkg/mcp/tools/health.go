package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type healthResult struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Persistence   bool   `json:"persistence"`
	Introspection string `json:"introspection,omitempty"`
}

// HealthInfo describes the running server for the health tool.
type HealthInfo struct {
	Version string
	// Persistence reports whether a report store is configured.
	Persistence   bool
	Introspection string
}

// RegisterHealthTool adds a health check tool to the MCP server.
func RegisterHealthTool(s *server.MCPServer, info HealthInfo) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status, version and whether reports are persisted"),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(healthResult{
			Status:        "ok",
			Version:       info.Version,
			Persistence:   info.Persistence,
			Introspection: info.Introspection,
		})
	})
}
