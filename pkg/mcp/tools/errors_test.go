package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-sanity/pkg/apperrors"
)

func TestNewErrorResultWithDetails(t *testing.T) {
	result := NewErrorResultWithDetails("invalid_parameters", "bad input", map[string]any{"field": "bundle_dir"})
	require.True(t, result.IsError)

	raw, err := json.Marshal(result)
	require.NoError(t, err)
	var decoded struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded.Content, 1)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(decoded.Content[0].Text), &resp))
	assert.Equal(t, ErrorResponse{
		Error:   true,
		Code:    "invalid_parameters",
		Message: "bad input",
		Details: map[string]any{"field": "bundle_dir"},
	}, resp)
}

func TestUserErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"missing input", fmt.Errorf("load: %w: enums.yaml", apperrors.ErrMissingInput), "missing_input"},
		{"invalid spec", fmt.Errorf("%w: yaml", apperrors.ErrInvalidSpec), "invalid_spec"},
		{"malformed json", fmt.Errorf("table funds: %w", apperrors.ErrMalformedJSON), "malformed_json"},
		{"unsupported relationship", apperrors.ErrUnsupportedRelationshipType, "unsupported_relationship_type"},
		{"not found", apperrors.ErrNotFound, "not_found"},
		{"system failure", errors.New("connection refused"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserErrorCode(tt.err))
		})
	}
}

func TestAsUserErrorResult(t *testing.T) {
	assert.Nil(t, AsUserErrorResult(errors.New("boom")))

	result := AsUserErrorResult(fmt.Errorf("%w: data", apperrors.ErrMissingInput))
	require.NotNil(t, result)
	assert.True(t, result.IsError)

	raw, err := json.Marshal(result)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `missing_input`)
}
