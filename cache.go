package veloq

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Cache is the interface for caching query results.
// Users should implement this interface with their preferred caching solution
// (e.g., Redis, Memcached, in-memory).
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

// CacheKey identifies the result of one compiled read statement.
// Compilation is deterministic, so identical statement trees share a key.
type CacheKey struct {
	Table string
	SQL   string
	Args  []any
}

// String returns the string representation of the cache key. The table
// name is kept in clear so that writes can evict by prefix.
func (k CacheKey) String() string {
	h := sha256.New()
	h.Write([]byte(k.SQL))
	if len(k.Args) > 0 {
		b, err := msgpack.Marshal(k.Args)
		if err != nil {
			// Unencodable arguments still produce a stable key.
			b = []byte(fmt.Sprint(k.Args...))
		}
		h.Write([]byte{0})
		h.Write(b)
	}
	return k.Table + ":" + hex.EncodeToString(h.Sum(nil))
}

// DefaultMaxEntries bounds a MemoryCache created without WithMaxEntries.
const DefaultMaxEntries = 10000

// MemoryCache is a process-local Cache evicting the least recently used
// entry once it holds its maximum number of entries. Expired entries are
// dropped when read.
type MemoryCache struct {
	mu      sync.Mutex
	max     int
	order   *list.List // front is most recently used
	entries map[string]*list.Element
	now     func() time.Time
}

type memoryEntry struct {
	key     string
	value   []byte
	expires time.Time
}

// MemoryCacheOption configures a MemoryCache.
type MemoryCacheOption func(*MemoryCache)

// WithMaxEntries sets the entry bound. n <= 0 means DefaultMaxEntries.
func WithMaxEntries(n int) MemoryCacheOption {
	return func(c *MemoryCache) {
		if n > 0 {
			c.max = n
		}
	}
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache(opts ...MemoryCacheOption) *MemoryCache {
	c := &MemoryCache{
		max:     DefaultMaxEntries,
		order:   list.New(),
		entries: make(map[string]*list.Element),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	e := el.Value.(*memoryEntry)
	if !e.expires.IsZero() && c.now().After(e.expires) {
		c.remove(el)
		return nil, nil
	}
	c.order.MoveToFront(el)
	return e.value, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := &memoryEntry{key: key, value: value}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		el.Value = e
		c.order.MoveToFront(el)
		return nil
	}
	c.entries[key] = c.order.PushFront(e)
	for c.order.Len() > c.max {
		c.remove(c.order.Back())
	}
	return nil
}

func (c *MemoryCache) remove(el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, el.Value.(*memoryEntry).key)
}

// Delete implements Cache.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.remove(el)
	}
	return nil
}

// DeletePrefix implements Cache.
func (c *MemoryCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, el := range c.entries {
		if strings.HasPrefix(k, prefix) {
			c.remove(el)
		}
	}
	return nil
}

// Clear implements Cache.
func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	c.order.Init()
	c.entries = make(map[string]*list.Element)
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries. Expired entries not read since
// they expired are included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

var _ Cache = (*MemoryCache)(nil)
