package db

import (
	"container/list"
	"sync"

	"github.com/nickyhof/PagerDB/op"
)

const DefaultCacheSize = 64

// CatalogCache keeps decoded databases keyed by the BLAKE3 digest of their
// image, so opening the same bytes twice skips the schema walk. It is safe
// for concurrent use and evicts the least recently used entry when full.
type CatalogCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front is most recent
	hits     int
	misses   int
}

type cacheEntry struct {
	digest   string
	database *op.DatabaseOp
}

type CacheStats struct {
	Hits    int `json:"hits"`
	Misses  int `json:"misses"`
	Entries int `json:"entries"`
}

func NewCatalogCache(capacity int) *CatalogCache {
	if capacity < 1 {
		capacity = DefaultCacheSize
	}
	return &CatalogCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Open returns the decoded database for data, reusing a cached catalog when
// the same image was opened before.
func (cache *CatalogCache) Open(source string, data []byte) (*op.DatabaseOp, error) {
	digest := op.Digest(data)

	if database, ok := cache.lookup(digest); ok {
		return database.WithSource(source), nil
	}

	database, err := op.OpenDigested(source, data, digest)
	if err != nil {
		return nil, err
	}

	cache.store(digest, database)
	return database, nil
}

func (cache *CatalogCache) lookup(digest string) (*op.DatabaseOp, bool) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	element, ok := cache.entries[digest]
	if !ok {
		cache.misses++
		return nil, false
	}

	cache.hits++
	cache.order.MoveToFront(element)
	return element.Value.(*cacheEntry).database, true
}

func (cache *CatalogCache) store(digest string, database *op.DatabaseOp) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	if element, ok := cache.entries[digest]; ok {
		cache.order.MoveToFront(element)
		return
	}

	cache.entries[digest] = cache.order.PushFront(&cacheEntry{digest: digest, database: database})

	for cache.order.Len() > cache.capacity {
		oldest := cache.order.Back()
		cache.order.Remove(oldest)
		delete(cache.entries, oldest.Value.(*cacheEntry).digest)
	}
}

func (cache *CatalogCache) Stats() CacheStats {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	return CacheStats{
		Hits:    cache.hits,
		Misses:  cache.misses,
		Entries: cache.order.Len(),
	}
}
