package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-sanity/pkg/apperrors"
)

func TestNormalizeRelationshipType(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"1:1", "1:1"},
		{" 1:n ", "1:N"},
		{"m:n", "M:N"},
		{"M:N", "M:N"},
		{"61", "1:1"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := NormalizeRelationshipType(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeRelationshipType_Unsupported(t *testing.T) {
	for _, raw := range []string{"", "N:1", "one-to-many", "1:2"} {
		_, err := NormalizeRelationshipType(raw)
		require.Error(t, err, raw)
		assert.True(t, errors.Is(err, apperrors.ErrUnsupportedRelationshipType), raw)
	}
}

func TestNormalizeTypeToken(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"str", "str"},
		{"Optional[str]", "str"},
		{"typing.Optional[int]", "int"},
		{"Union[str, None]", "str"},
		{"Union[None, float]", "float"},
		{"str | None", "str"},
		{"None | Dict[str, Any]", "dict"},
		{"List[str]", "list"},
		{"list[dict[str, int]]", "list"},
		{"Optional[List[str]]", "list"},
		{"typing.Dict[str, Any]", "dict"},
		{"models.User", "user"},
		{"'User'", "user"},
		{"\"Optional[str]\"", "str"},
		{"Union[str, int]", "union"},
		{"None", "none"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTypeToken(tt.raw))
		})
	}
}

func TestNormalizeTypeToken_EmptyIsNotWildcard(t *testing.T) {
	assert.NotEqual(t, NormalizeTypeToken(""), NormalizeTypeToken("str"))
	assert.Equal(t, NormalizeTypeToken(""), NormalizeTypeToken(""))
}
