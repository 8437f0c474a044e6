package io

import (
	"context"
	"os"

	"github.com/NimaFathima/astrobiomers/pkg/loader"
)

// IOCorpusLoader loads corpus files directly from the local filesystem with
// caching.
type IOCorpusLoader struct {
	cache *loader.FileCache
}

// NewIOCorpusLoader creates a new filesystem-based corpus loader.
func NewIOCorpusLoader() *IOCorpusLoader {
	return &IOCorpusLoader{cache: loader.NewFileCache(0, 0)}
}

// GetFile reads the file content from the filesystem. Results are cached.
func (l *IOCorpusLoader) GetFile(ctx context.Context, path string) ([]byte, error) {
	return l.cache.Get(ctx, path, func(context.Context) ([]byte, error) {
		return os.ReadFile(path)
	})
}

var _ loader.CorpusLoader = (*IOCorpusLoader)(nil)
