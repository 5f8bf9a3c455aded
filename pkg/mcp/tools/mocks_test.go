package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-sanity/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sanity/pkg/models"
)

type mockReconciler struct {
	report *models.APISanityReport
	err    error
	gotDir string
}

func (m *mockReconciler) Reconcile(ctx context.Context, baseDir string) (*models.APISanityReport, error) {
	m.gotDir = baseDir
	return m.report, m.err
}

type mockReportService struct {
	saved     []models.Report
	stored    map[uuid.UUID]*models.StoredReport
	overview  *models.ReportOverview
	listLimit int
	err       error
}

func newMockReportService() *mockReportService {
	return &mockReportService{stored: make(map[uuid.UUID]*models.StoredReport)}
}

func (m *mockReportService) Save(ctx context.Context, report models.Report) (*models.StoredReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.saved = append(m.saved, report)
	stored := &models.StoredReport{ID: uuid.New(), Title: report.ReportTitle(), ReportType: report.ReportType()}
	m.stored[stored.ID] = stored
	return stored, nil
}

func (m *mockReportService) Get(ctx context.Context, id uuid.UUID) (*models.StoredReport, error) {
	if r, ok := m.stored[id]; ok {
		return r, nil
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockReportService) List(ctx context.Context, reportType string, limit int) ([]*models.StoredReport, error) {
	m.listLimit = limit
	var out []*models.StoredReport
	for _, r := range m.stored {
		if r.ReportType == reportType {
			out = append(out, r)
		}
	}
	return out, m.err
}

func (m *mockReportService) Summary(ctx context.Context, reportType string) (*models.ReportOverview, error) {
	return m.overview, m.err
}

func (m *mockReportService) Delete(ctx context.Context, id uuid.UUID) error {
	delete(m.stored, id)
	return nil
}

// toolResponse is the decoded JSON-RPC response of a tools/call.
type toolResponse struct {
	Result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// text returns the first text content block.
func (r toolResponse) text(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, r.Result.Content, "expected content in response")
	return r.Result.Content[0].Text
}

// errorResponse decodes a structured error result.
func (r toolResponse) errorResponse(t *testing.T) ErrorResponse {
	t.Helper()
	require.True(t, r.Result.IsError, "expected an error result")
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(r.text(t)), &resp))
	return resp
}

// callTool executes an MCP tool via the server's HandleMessage method.
func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) toolResponse {
	t.Helper()
	request := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  string(mcp.MethodToolsCall),
		"params":  map[string]any{"name": name, "arguments": args},
	}
	reqBytes, err := json.Marshal(request)
	require.NoError(t, err)

	result := s.HandleMessage(context.Background(), reqBytes)
	resultBytes, err := json.Marshal(result)
	require.NoError(t, err)

	var response toolResponse
	require.NoError(t, json.Unmarshal(resultBytes, &response))
	return response
}
