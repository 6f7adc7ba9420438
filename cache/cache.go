// Package cache stores decoded tile data. Records are shared by cache key,
// so wrapped copies of one source tile hold one copy of its bytes; tiles
// are tracked per owner so one scheduler's reset cannot evict another's
// working set.
package cache

import (
	"log/slog"
	"sync"

	"github.com/lcl45/openseadragon/params"
	"github.com/lcl45/openseadragon/tile"
)

// Record is one cached blob of decoded tile data, referenced by every tile
// sharing its cache key. It satisfies tile.DataHandle.
type Record struct {
	key   string
	data  []byte
	tiles []*tile.Tile
}

func (r *Record) Data() []byte { return r.data }

func (r *Record) tileCount() int { return len(r.tiles) }

func (r *Record) addTile(t *tile.Tile) {
	r.tiles = append(r.tiles, t)
}

func (r *Record) removeTile(t *tile.Tile) {
	for i := range r.tiles {
		if r.tiles[i] == t {
			r.tiles = append(r.tiles[:i], r.tiles[i+1:]...)
			return
		}
	}
}

type entry struct {
	t     *tile.Tile
	owner tile.OwnerID
}

type TileCache struct {
	logger *slog.Logger
	cfg    *params.CacheConfig

	mu      sync.Mutex
	records map[string]*Record
	loaded  []entry
}

func New(cfg *params.CacheConfig) *TileCache {
	if cfg == nil {
		cfg = params.DefaultCacheConfig()
	}
	return &TileCache{
		logger:  slog.With("d", "cache"),
		cfg:     cfg,
		records: map[string]*Record{},
	}
}

type PutOptions struct {
	Data  []byte
	Tile  *tile.Tile
	Owner tile.OwnerID

	// Cutoff protects levels at or below it from eviction. Owners pass
	// the level interval's watermark of always-wanted coarse levels.
	Cutoff int
}

// Put caches a tile's data and attaches the record to the tile. When the
// cache is at capacity the worst resident tile is unloaded first: oldest
// last touch, deeper level breaking ties, skipping protected and
// currently-drawn tiles.
func (c *TileCache) Put(opts PutOptions) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec := c.records[opts.Tile.CacheKey]
	if rec == nil {
		rec = &Record{key: opts.Tile.CacheKey, data: opts.Data}
		c.records[opts.Tile.CacheKey] = rec
	}
	rec.addTile(opts.Tile)
	opts.Tile.Record = rec

	insertion := len(c.loaded)
	if len(c.loaded) >= c.cfg.MaxTileCount {
		worst := -1
		for i := len(c.loaded) - 1; i >= 0; i-- {
			prev := c.loaded[i].t
			if prev.Level <= opts.Cutoff || prev.BeingDrawn {
				continue
			}
			if worst < 0 {
				worst = i
				continue
			}
			w := c.loaded[worst].t
			if prev.LastTouch.Before(w.LastTouch) ||
				(prev.LastTouch.Equal(w.LastTouch) && prev.Level > w.Level) {
				worst = i
			}
		}
		if worst >= 0 {
			// Unload in place; the new entry takes the slot.
			c.logger.Debug("Evicting", "tile", c.loaded[worst].t.Address, "for", opts.Tile.Address)
			c.unloadTileOnlyLocked(c.loaded[worst].t)
			insertion = worst
		}
	}

	e := entry{t: opts.Tile, owner: opts.Owner}
	if insertion == len(c.loaded) {
		c.loaded = append(c.loaded, e)
	} else {
		c.loaded[insertion] = e
	}
}

// GetRecord returns the record for a cache key, nil if absent. A hit lets
// the scheduler mark a tile loaded without a network round trip.
func (c *TileCache) GetRecord(key string) *Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records[key]
}

// ClearFor unloads every tile owned by one scheduler, dropping records
// that lose their last reference.
func (c *TileCache) ClearFor(owner tile.OwnerID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.loaded[:0]
	for _, e := range c.loaded {
		if e.owner == owner {
			c.unloadTileOnlyLocked(e.t)
			continue
		}
		kept = append(kept, e)
	}
	c.loaded = kept
}

// Len is the number of resident tiles.
func (c *TileCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.loaded)
}

// RecordCount is the number of distinct data blobs held.
func (c *TileCache) RecordCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

func (c *TileCache) unloadTileOnlyLocked(t *tile.Tile) {
	if rec := c.records[t.CacheKey]; rec != nil {
		rec.removeTile(t)
		if rec.tileCount() == 0 {
			delete(c.records, t.CacheKey)
		}
	}
	t.Unload()
}
