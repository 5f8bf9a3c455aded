package tools

import (
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthTool_Execute(t *testing.T) {
	tests := []struct {
		name string
		info HealthInfo
	}{
		{"with persistence", HealthInfo{Version: "1.2.3", Persistence: true, Introspection: "python"}},
		{"version needing escapes", HealthInfo{Version: `1.0.0-beta"test`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mcpServer := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
			RegisterHealthTool(mcpServer, tt.info)

			resp := callTool(t, mcpServer, "health", nil)
			require.Nil(t, resp.Error)
			assert.Equal(t, "text", resp.Result.Content[0].Type)

			var health healthResult
			require.NoError(t, json.Unmarshal([]byte(resp.text(t)), &health))
			assert.Equal(t, "ok", health.Status)
			assert.Equal(t, tt.info.Version, health.Version)
			assert.Equal(t, tt.info.Persistence, health.Persistence)
			assert.Equal(t, tt.info.Introspection, health.Introspection)
		})
	}
}
