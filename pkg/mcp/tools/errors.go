package tools

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/ekaya-sanity/pkg/apperrors"
)

// ErrorResponse represents a structured error in tool results.
// Errors the caller can fix are returned as successful tool results so the
// details reach the agent instead of being swallowed by the MCP client.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for actionable errors (bad paths, malformed declarations).
// System failures such as a lost database connection stay Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// userErrorCodes maps run-level failures a caller can fix to result codes.
var userErrorCodes = []struct {
	err  error
	code string
}{
	{apperrors.ErrMissingInput, "missing_input"},
	{apperrors.ErrInvalidSpec, "invalid_spec"},
	{apperrors.ErrMalformedJSON, "malformed_json"},
	{apperrors.ErrUnsupportedRelationshipType, "unsupported_relationship_type"},
	{apperrors.ErrNotFound, "not_found"},
}

// UserErrorCode returns the result code for an error the caller can fix,
// or "" when err is a system failure.
func UserErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, e := range userErrorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return ""
}

// AsUserErrorResult converts a user-fixable error into an error result.
// It returns nil when err should propagate as a Go error.
func AsUserErrorResult(err error) *mcp.CallToolResult {
	code := UserErrorCode(err)
	if code == "" {
		return nil
	}
	return NewErrorResult(code, err.Error())
}
