package embedding

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// CachedEmbedder memoizes vectors by input text.
type CachedEmbedder struct {
	next  Embedder
	cache *ristretto.Cache
}

// NewCachedEmbedder wraps next with a cache holding roughly maxItems vectors.
func NewCachedEmbedder(next Embedder, maxItems int64) (*CachedEmbedder, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        maxItems * 10,
		MaxCost:            maxItems,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachedEmbedder{next: next, cache: cache}, nil
}

// Embed returns a copy of the cached vector, so callers may mutate it.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	if v, ok := e.cache.Get(text); ok {
		return append(Vector(nil), v.(Vector)...), nil
	}
	vec, err := e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, append(Vector(nil), vec...), 1)
	return vec, nil
}

func (e *CachedEmbedder) Dims() int { return e.next.Dims() }

// Wait blocks until pending cache writes are visible.
func (e *CachedEmbedder) Wait() { e.cache.Wait() }

// Close releases the cache and the wrapped embedder if it can be closed.
func (e *CachedEmbedder) Close() {
	e.cache.Close()
	if c, ok := e.next.(interface{ Close() }); ok {
		c.Close()
	}
}
