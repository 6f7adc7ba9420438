// Package tilesource describes image pyramids: their geometry and how to
// reach the bytes of any tile in them. The Pyramid base supplies the generic
// level math; DZI, Slippy and PMTiles bind it to real descriptor formats.
package tilesource

import (
	"context"
	"errors"

	"github.com/paulmach/orb"

	"github.com/lcl45/openseadragon/tile"
)

var (
	ErrBadDescriptor = errors.New("tilesource: bad descriptor")
	ErrNoSuchTile    = errors.New("tilesource: no such tile")
)

// Source is the pyramid contract the scheduler consumes. All geometry is
// stateless with respect to the frame loop; implementations may memoize.
type Source interface {
	// Dimensions is the full-resolution image size in source pixels.
	Dimensions() orb.Point
	AspectRatio() float64

	MinLevel() int
	MaxLevel() int

	// TileSize is the nominal tile raster size at a level, without overlap.
	TileSize(level int) orb.Point
	TileOverlap() int

	// NumTiles is the tile grid extent at a level.
	NumTiles(level int) (x, y int)

	// PixelRatio is the size of one of this level's pixels in normalized
	// image units, per axis.
	PixelRatio(level int) orb.Point

	// ClosestLevel is the finest level still fitting a single tile.
	ClosestLevel() int

	// TileAtPoint maps a point in normalized image coordinates
	// (x in [0,1], y in [0,1/aspect]) to the address containing it.
	TileAtPoint(level int, p orb.Point) tile.Address

	// TileBounds is the tile rectangle including overlap padding. With
	// sourceSpace it is the tile's own raster extent anchored at the
	// origin; otherwise normalized image coordinates.
	TileBounds(level, x, y int, sourceSpace bool) orb.Bound

	TileExists(level, x, y int) bool

	TileURL(level, x, y int) string
	TilePostData(level, x, y int) []byte
	TileAjaxHeaders(level, x, y int) map[string]string

	HasTransparency(level, x, y int) bool

	// TileHashKey keys the decoded-data cache. Tiles resolving to the same
	// request share a key.
	TileHashKey(level, x, y int, url string, post []byte, headers map[string]string) string
}

// Local is implemented by sources whose tiles are readable without going
// through a URL fetch, such as archive files on disk. The loader prefers
// this path when present.
type Local interface {
	ReadTile(ctx context.Context, level, x, y int) ([]byte, error)
}
