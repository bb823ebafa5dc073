package ardent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"
)

// Cache is the interface for storing resolved table metadata.
// Users can implement this interface with their preferred caching solution
// (e.g., Redis, Memcached); MemoryCache is the in-process default.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// CacheKey identifies the metadata of one table on one connection.
type CacheKey struct {
	Connection string
	Table      string
}

// String returns the string representation of the cache key.
func (k CacheKey) String() string {
	return "ardent:meta:" + k.Connection + ":" + k.Table
}

// ConnectionPrefix returns the key prefix shared by all tables of a connection.
func ConnectionPrefix(conn string) string {
	return "ardent:meta:" + conn + ":"
}

// TableMeta is the resolved metadata of a table.
type TableMeta struct {
	Table      string    `msgpack:"table"`
	Columns    []string  `msgpack:"columns"`
	PrimaryKey string    `msgpack:"primary_key"`
	ResolvedAt time.Time `msgpack:"resolved_at"`
}

// MetadataCache shares resolved table metadata between model instances.
// Concurrent loads of the same key are coalesced into one resolution.
type MetadataCache struct {
	cache Cache
	ttl   time.Duration
	group singleflight.Group
}

// NewMetadataCache returns a MetadataCache backed by c. Entries expire after
// ttl, or never if ttl is 0.
func NewMetadataCache(c Cache, ttl time.Duration) *MetadataCache {
	return &MetadataCache{cache: c, ttl: ttl}
}

// Load returns the metadata stored under key, calling resolve on a miss.
func (m *MetadataCache) Load(ctx context.Context, key CacheKey, resolve func(context.Context) (*TableMeta, error)) (*TableMeta, error) {
	k := key.String()
	if meta, err := m.get(ctx, k); err != nil || meta != nil {
		return meta, err
	}
	v, err, _ := m.group.Do(k, func() (any, error) {
		// Another caller may have stored the entry while we waited.
		if meta, err := m.get(ctx, k); err != nil || meta != nil {
			return meta, err
		}
		meta, err := resolve(ctx)
		if err != nil {
			return nil, err
		}
		b, err := msgpack.Marshal(meta)
		if err != nil {
			return nil, fmt.Errorf("ardent: encode metadata %s: %w", k, err)
		}
		if err := m.cache.Set(ctx, k, b, m.ttl); err != nil {
			return nil, fmt.Errorf("ardent: store metadata %s: %w", k, err)
		}
		return meta, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*TableMeta), nil
}

func (m *MetadataCache) get(ctx context.Context, k string) (*TableMeta, error) {
	b, err := m.cache.Get(ctx, k)
	if err != nil {
		return nil, fmt.Errorf("ardent: load metadata %s: %w", k, err)
	}
	if b == nil {
		return nil, nil
	}
	meta := &TableMeta{}
	if err := msgpack.Unmarshal(b, meta); err != nil {
		return nil, fmt.Errorf("ardent: decode metadata %s: %w", k, err)
	}
	return meta, nil
}

// Invalidate removes the metadata stored under key.
func (m *MetadataCache) Invalidate(ctx context.Context, key CacheKey) error {
	return m.cache.Delete(ctx, key.String())
}

// InvalidateConnection removes the metadata of all tables of a connection.
func (m *MetadataCache) InvalidateConnection(ctx context.Context, conn string) error {
	return m.cache.DeletePrefix(ctx, ConnectionPrefix(conn))
}

// MemoryCache is an in-memory Cache safe for concurrent use.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	now := c.now()
	if e.live(now) {
		return e.value, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// The entry may have been replaced since the read lock was released.
	if cur, ok := c.entries[key]; ok && cur.live(now) {
		return cur.value, nil
	}
	delete(c.entries, key)
	return nil, nil
}

func (e memoryEntry) live(now time.Time) bool {
	return e.expires.IsZero() || now.Before(e.expires)
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

// Delete implements Cache.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// DeletePrefix implements Cache.
func (c *MemoryCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	return nil
}

// Clear implements Cache.
func (c *MemoryCache) Clear(context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]memoryEntry)
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var _ Cache = (*MemoryCache)(nil)
