package terrain

import (
	"image"
	"sync"
	"time"

	"github.com/paulmach/orb/maptile"
)

type cacheItem struct {
	img       image.Image
	err       error
	expiresAt time.Time
}

// TileCache keeps decoded tiles for a bounded time.
type TileCache struct {
	mu      sync.RWMutex
	items   map[maptile.Tile]*cacheItem
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// NewTileCache creates a cache holding at most maxSize tiles for ttl each.
func NewTileCache(maxSize int, ttl time.Duration) *TileCache {
	if maxSize <= 0 {
		maxSize = 256
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &TileCache{
		items:   make(map[maptile.Tile]*cacheItem),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns a cached tile that has not expired.
func (c *TileCache) Get(key maptile.Tile) (image.Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[key]
	if !ok || item.err != nil || c.now().After(item.expiresAt) {
		return nil, false
	}
	return item.img, true
}

// Failure returns the error remembered for a tile whose fetch failed, or nil.
func (c *TileCache) Failure(key maptile.Tile) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[key]
	if !ok || c.now().After(item.expiresAt) {
		return nil
	}
	return item.err
}

// Set stores a tile, evicting the entry closest to expiry when full.
func (c *TileCache) Set(key maptile.Tile, img image.Image) {
	c.put(key, &cacheItem{img: img, expiresAt: c.now().Add(c.ttl)})
}

// SetFailure remembers a failed fetch for ttl so that lookups in the same
// tile fail fast instead of refetching.
func (c *TileCache) SetFailure(key maptile.Tile, err error, ttl time.Duration) {
	c.put(key, &cacheItem{err: err, expiresAt: c.now().Add(ttl)})
}

func (c *TileCache) put(key maptile.Tile, item *cacheItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxSize {
		c.evictOldest()
	}
	c.items[key] = item
}

func (c *TileCache) evictOldest() {
	now := c.now()
	var oldest maptile.Tile
	var oldestAt time.Time
	found := false
	for key, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, key)
			continue
		}
		if !found || item.expiresAt.Before(oldestAt) {
			oldest, oldestAt, found = key, item.expiresAt, true
		}
	}
	if found && len(c.items) >= c.maxSize {
		delete(c.items, oldest)
	}
}

// Clear drops every cached tile.
func (c *TileCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[maptile.Tile]*cacheItem)
}

// Size reports the number of cached tiles.
func (c *TileCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
