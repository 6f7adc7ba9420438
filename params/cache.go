package params

import "path/filepath"

type CacheConfig struct {
	// MaxTileCount caps the number of cached tile records. Above the cap
	// the worst tile (oldest touch, deepest level breaking ties) is
	// evicted, never one at or below the caller's cutoff level.
	MaxTileCount int
}

func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		MaxTileCount: 200,
	}
}

type DiskCacheConfig struct {
	// Path of the bbolt tile store.
	Path string
}

func DefaultDiskCacheConfig() *DiskCacheConfig {
	return &DiskCacheConfig{
		Path: filepath.Join(DatadirRoot, TileDBName),
	}
}
