package toolinfo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sanity/pkg/models"
)

type countingLoader struct {
	calls int
	err   error
}

func (c *countingLoader) Load(ctx context.Context, req LoadRequest) (*models.ToolInfo, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &models.ToolInfo{Interface: req.Interface, APIName: req.APIName, Params: []models.Param{{Name: "q", Type: "str"}}}, nil
}

func TestCachedLoader(t *testing.T) {
	dir := t.TempDir()
	path := writeTool(t, dir, "interface_1", "search.py", "class Search: pass\n")
	cache, err := NewCache(8)
	require.NoError(t, err)

	inner := &countingLoader{}
	loader := NewCachedLoader(inner, cache, zap.NewNop())
	req := NewLoadRequest("interface_1", path)

	first, err := loader.Load(context.Background(), req)
	require.NoError(t, err)
	first.Params[0].Name = "mutated"

	second, err := loader.Load(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, "q", second.Params[0].Name, "cached entries are isolated from callers")

	otherIface := NewLoadRequest("interface_2", path)
	_, err = loader.Load(context.Background(), otherIface)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls, "interface is part of the key")

	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
	_, err = loader.Load(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls, "a modified file is introspected again")

	cache.Purge()
	assert.Equal(t, 0, cache.Len())
	_, err = loader.Load(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 4, inner.calls)
}

func TestCachedLoader_FailuresAreNotCached(t *testing.T) {
	dir := t.TempDir()
	path := writeTool(t, dir, "interface_1", "search.py", "")
	cache, err := NewCache(0)
	require.NoError(t, err)

	inner := &countingLoader{err: loadError(ReasonImportFailed, path, errors.New("boom"))}
	loader := NewCachedLoader(inner, cache, zap.NewNop())
	for i := 0; i < 2; i++ {
		_, err := loader.Load(context.Background(), NewLoadRequest("interface_1", path))
		require.Error(t, err)
	}
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 0, cache.Len())

	_, err = loader.Load(context.Background(), NewLoadRequest("interface_1", filepath.Join(dir, "gone.py")))
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, 2, inner.calls, "missing files never reach the wrapped loader")
}
