package retrieval

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the default number of cached (query, k) results.
const DefaultCacheSize = 512

type cacheKey struct {
	query string
	k     int
}

// CachedRetriever memoizes results of an underlying Retriever in an LRU
// cache keyed by (query, k). Errors are never cached.
type CachedRetriever struct {
	next  Retriever
	cache *lru.Cache[cacheKey, []Fragment]

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedRetriever wraps next. size <= 0 uses DefaultCacheSize.
func NewCachedRetriever(next Retriever, size int) (*CachedRetriever, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[cacheKey, []Fragment](size)
	if err != nil {
		return nil, fmt.Errorf("create retrieval cache: %w", err)
	}
	return &CachedRetriever{next: next, cache: cache}, nil
}

// Search implements Retriever.
func (c *CachedRetriever) Search(ctx context.Context, query string, k int) ([]Fragment, error) {
	if err := checkK(k); err != nil {
		return nil, err
	}

	key := cacheKey{query: query, k: k}
	if frags, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return cloneFragments(frags), nil
	}
	c.misses.Add(1)

	frags, err := c.next.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, cloneFragments(frags))
	return frags, nil
}

// Index forwards to the wrapped retriever when it is an Indexer and drops
// the cache afterwards.
func (c *CachedRetriever) Index(ctx context.Context, docs []Document) error {
	ix, ok := c.next.(Indexer)
	if !ok {
		return fmt.Errorf("retrieval: %T does not support indexing", c.next)
	}
	defer c.Purge()
	return ix.Index(ctx, docs)
}

// Purge drops all cached entries, e.g. after re-indexing.
func (c *CachedRetriever) Purge() { c.cache.Purge() }

// Stats returns cache hit and miss counts.
func (c *CachedRetriever) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func cloneFragments(in []Fragment) []Fragment {
	out := make([]Fragment, len(in))
	for i, f := range in {
		f.Metadata = copyMetadata(f.Metadata)
		out[i] = f
	}
	return out
}
