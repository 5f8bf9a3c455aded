package toolinfo

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sanity/pkg/models"
)

func writeTool(t *testing.T, dir, iface, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, iface, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestClassNameFor(t *testing.T) {
	tests := map[string]string{
		"get_user":        "GetUser",
		"list_all_ORDERS": "ListAllOrders",
		"_private__name":  "PrivateName",
		"x":               "X",
	}
	for stem, want := range tests {
		assert.Equal(t, want, ClassNameFor(stem), stem)
	}
}

func TestNewLoadRequest(t *testing.T) {
	req := NewLoadRequest("interface_2", "/base/interface_2/update_order.py")
	assert.Equal(t, LoadRequest{
		Interface: "interface_2",
		APIName:   "update_order",
		Path:      "/base/interface_2/update_order.py",
		ClassName: "UpdateOrder",
	}, req)
}

func TestLoadError(t *testing.T) {
	err := loadError(ReasonImportFailed, "a.py", fs.ErrNotExist)
	assert.Equal(t, "a.py: import_failed: file does not exist", err.Error())
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.Equal(t, "a.py: class_missing", loadError(ReasonClassMissing, "a.py", nil).Error())
}

const literalTool = `
from tau_bench.envs.tool import Tool

class GetUser(Tool):
    @staticmethod
    def invoke(data, user_id: str) -> str:
        return data["users"][user_id]

    @staticmethod
    def get_info():
        return {
            "type": "function",
            "function": {
                "name": "get_user",
                "parameters": {
                    "type": "object",
                    "properties": {"user_id": {"type": "string"}},
                    "required": ["user_id"],
                },
            },
        }
`

func TestLiteralLoader(t *testing.T) {
	dir := t.TempDir()
	loader := NewLiteralLoader(zap.NewNop())

	path := writeTool(t, dir, "interface_1", "get_user.py", literalTool)
	info, err := loader.Load(context.Background(), NewLoadRequest("interface_1", path))
	require.NoError(t, err)
	assert.Equal(t, &models.ToolInfo{
		Interface:    "interface_1",
		APIName:      "get_user",
		Params:       []models.Param{{Name: "user_id", Type: "str", Optional: false}},
		NameMismatch: false,
	}, info)
}

func TestLiteralLoader_Failures(t *testing.T) {
	dir := t.TempDir()
	loader := NewLiteralLoader(zap.NewNop())
	tests := []struct {
		name   string
		file   string
		src    string
		reason string
	}{
		{"syntax error", "get_user.py", "class GetUser(:\n", ReasonImportFailed},
		{"class missing", "get_user.py", "class Other:\n    pass\n", ReasonClassMissing},
		{"accessor missing", "get_user.py", "class GetUser:\n    pass\n", ReasonAccessorMissing},
		{"accessor without return", "get_user.py", "class GetUser:\n    def get_info():\n        pass\n", ReasonAccessorFailed},
		{"computed schema", "get_user.py", "class GetUser:\n    def get_info():\n        return build_schema()\n", ReasonInvalidSchema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTool(t, filepath.Join(dir, tt.name), "interface_1", tt.file, tt.src)
			_, err := loader.Load(context.Background(), NewLoadRequest("interface_1", path))
			var le *LoadError
			require.True(t, errors.As(err, &le), "got %v", err)
			assert.Equal(t, tt.reason, le.Reason)
			assert.Equal(t, path, le.Path)
		})
	}

	_, err := loader.Load(context.Background(), NewLoadRequest("interface_1", filepath.Join(dir, "missing.py")))
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, ReasonImportFailed, le.Reason)
}
