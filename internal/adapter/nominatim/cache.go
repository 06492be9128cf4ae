package nominatim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/couchcryptid/incident-etl/internal/domain"
	"github.com/couchcryptid/incident-etl/internal/observability"
)

// Store persists found geocoding results across runs. Entries never expire.
type Store interface {
	Get(ctx context.Context, key string) (domain.GeocodingResult, bool, error)
	Put(ctx context.Context, key string, result domain.GeocodingResult) error
}

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache and an optional
// persistent Store behind it.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *lruCache
	store   Store
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewCachedGeocoder creates a cache decorator around a geocoder. store may be nil.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, store Store, metrics *observability.Metrics, logger *slog.Logger) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		store:   store,
		metrics: metrics,
		logger:  logger,
	}
}

func (c *CachedGeocoder) ForwardGeocode(ctx context.Context, query string) (domain.GeocodingResult, error) {
	return c.lookup(ctx, "forward", "fwd:"+query, func() (domain.GeocodingResult, error) {
		return c.inner.ForwardGeocode(ctx, query)
	})
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	key := fmt.Sprintf("rev:%.6f,%.6f", lat, lon)
	return c.lookup(ctx, "reverse", key, func() (domain.GeocodingResult, error) {
		return c.inner.ReverseGeocode(ctx, lat, lon)
	})
}

func (c *CachedGeocoder) lookup(ctx context.Context, method, key string, fetch func() (domain.GeocodingResult, error)) (domain.GeocodingResult, error) {
	if e, ok := c.cache.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues(method, "hit").Inc()
		if !e.found {
			return domain.GeocodingResult{}, fmt.Errorf("%w: %s (cached)", domain.ErrNotFound, key)
		}
		return e.result, nil
	}

	if c.store != nil {
		result, ok, err := c.store.Get(ctx, key)
		if err != nil {
			c.logger.Warn("geocode store read failed", "key", key, "error", err)
		} else if ok {
			c.metrics.GeocodeCache.WithLabelValues(method, "store_hit").Inc()
			c.cache.put(key, cacheEntry{result: result, found: true})
			return result, nil
		}
	}
	c.metrics.GeocodeCache.WithLabelValues(method, "miss").Inc()

	result, err := fetch()
	if err != nil {
		// Misses are remembered for this process only; transport errors are retried.
		if errors.Is(err, domain.ErrNotFound) {
			c.cache.put(key, cacheEntry{})
		}
		return domain.GeocodingResult{}, err
	}

	c.cache.put(key, cacheEntry{result: result, found: true})
	if c.store != nil {
		if err := c.store.Put(ctx, key, result); err != nil {
			c.logger.Warn("geocode store write failed", "key", key, "error", err)
		}
	}
	return result, nil
}

type cacheEntry struct {
	result domain.GeocodingResult
	found  bool
}

// lruCache is a simple thread-safe LRU cache of geocoding outcomes.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value cacheEntry
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return cacheEntry{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
