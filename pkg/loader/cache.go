package loader

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// FileCache memoizes fetched corpus files. Concurrent fetches of the same
// path share one request.
type FileCache struct {
	files *expirable.LRU[string, []byte]
	group singleflight.Group
}

func NewFileCache(size int, ttl time.Duration) *FileCache {
	if size <= 0 {
		size = 16
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &FileCache{files: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

// Get returns the cached content of key or calls fetch to load it.
func (c *FileCache) Get(ctx context.Context, key string, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	if cached, ok := c.files.Get(key); ok {
		return cached, nil
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		if cached, ok := c.files.Get(key); ok {
			return cached, nil
		}
		data, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.files.Add(key, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}
