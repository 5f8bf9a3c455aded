package pysource

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsUnionWithNone(t *testing.T) {
	tests := []struct {
		ann  string
		want bool
	}{
		{"Optional[str]", true},
		{"typing.Optional[List[int]]", true},
		{"Union[str, None]", true},
		{"Union[str,int]", false},
		{"str | None", true},
		{"None|int", true},
		{"'Optional[str]'", true},
		{"str", false},
		{"List[Optional[str]]", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.ann, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUnionWithNone(tt.ann))
		})
	}
}

func TestStripNoneUnion(t *testing.T) {
	tests := []struct {
		ann  string
		want string
	}{
		{"Optional[str]", "str"},
		{"Optional[Optional[int]]", "int"},
		{"Union[None, float]", "float"},
		{"Dict[str, Any] | None", "Dict[str, Any]"},
		{"Union[str, int]", "Union[str, int]"},
		{"str | int | None", "str | int | None"},
		{"Optional[a][b]", "Optional[a][b]"},
		{"None", "None"},
	}
	for _, tt := range tests {
		t.Run(tt.ann, func(t *testing.T) {
			assert.Equal(t, tt.want, StripNoneUnion(tt.ann))
		})
	}
}

func TestUnquoteAndTypingPrefix(t *testing.T) {
	assert.Equal(t, "User", Unquote(` "User" `))
	assert.Equal(t, "User", Unquote("User"))
	assert.Equal(t, "Optional[Dict[str, Any]]", StripTypingPrefix("typing.Optional[typing.Dict[str, Any]]"))
}
