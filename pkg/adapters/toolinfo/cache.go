package toolinfo

import (
	"context"
	"fmt"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sanity/pkg/models"
)

const defaultCacheSize = 1024

// Cache holds introspection results keyed by file identity. It lives for as
// long as its owner keeps it; nothing is cached at package level.
type Cache struct {
	entries *lru.Cache[string, *models.ToolInfo]
}

// NewCache creates a cache holding up to size entries.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	entries, err := lru.New[string, *models.ToolInfo](size)
	if err != nil {
		return nil, fmt.Errorf("create tool info cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int { return c.entries.Len() }

// Purge drops every entry.
func (c *Cache) Purge() { c.entries.Purge() }

// CachedLoader serves repeated loads of an unchanged file from a Cache.
// Failures are never cached.
type CachedLoader struct {
	next   Loader
	cache  *Cache
	logger *zap.Logger
}

var _ Loader = (*CachedLoader)(nil)

// NewCachedLoader wraps next with cache.
func NewCachedLoader(next Loader, cache *Cache, logger *zap.Logger) *CachedLoader {
	return &CachedLoader{next: next, cache: cache, logger: logger.Named("tool-info-cache")}
}

func (l *CachedLoader) Load(ctx context.Context, req LoadRequest) (*models.ToolInfo, error) {
	st, err := os.Stat(req.Path)
	if err != nil {
		return nil, loadError(ReasonImportFailed, req.Path, err)
	}
	key := fmt.Sprintf("%s|%s|%s|%d|%d", req.Interface, req.ClassName, req.Path, st.ModTime().UnixNano(), st.Size())

	if info, ok := l.cache.entries.Get(key); ok {
		l.logger.Debug("Tool info cache hit", zap.String("path", req.Path))
		return cloneToolInfo(info), nil
	}
	info, err := l.next.Load(ctx, req)
	if err != nil {
		return nil, err
	}
	l.cache.entries.Add(key, cloneToolInfo(info))
	return info, nil
}

func cloneToolInfo(info *models.ToolInfo) *models.ToolInfo {
	out := *info
	out.Params = append([]models.Param{}, info.Params...)
	return &out
}
