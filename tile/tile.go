// Package tile defines the shared tile types used by the scheduler,
// the tile sources, the cache, and the loader.
package tile

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"

	"github.com/lcl45/openseadragon/common"
)

// Address identifies one tile of an image pyramid: a resolution level and a
// column/row within it. Addresses are unbounded; negative or out-of-range
// values are meaningful when an axis wraps (torus addressing).
type Address struct {
	Level int
	X     int
	Y     int
}

func (a Address) String() string {
	return fmt.Sprintf("%d/%d_%d", a.Level, a.X, a.Y)
}

// Children returns the four quad children of the address at the next finer
// level. The pyramid downsamples 2x per level, so each tile is covered by
// exactly these four.
func (a Address) Children() [4]Address {
	return [4]Address{
		{Level: a.Level + 1, X: 2 * a.X, Y: 2 * a.Y},
		{Level: a.Level + 1, X: 2 * a.X, Y: 2*a.Y + 1},
		{Level: a.Level + 1, X: 2*a.X + 1, Y: 2 * a.Y},
		{Level: a.Level + 1, X: 2*a.X + 1, Y: 2*a.Y + 1},
	}
}

// Parent returns the address of the tile covering this one at the next
// coarser level. The floor division keeps wrapped (negative) addresses
// parenting correctly.
func (a Address) Parent() Address {
	return Address{
		Level: a.Level - 1,
		X:     common.FloorDiv(a.X, 2),
		Y:     common.FloorDiv(a.Y, 2),
	}
}

// OwnerID identifies the owner of a set of tiles, normally one scheduler
// instance per tiled image. The tile cache keys evictions by it.
type OwnerID string

func (o OwnerID) String() string {
	return string(o)
}

func (o OwnerID) Empty() bool {
	return o == ""
}

// DataHandle is a weak reference to a decoded-data record owned by the tile
// cache. The tile does not own the bytes; the cache may drop the record and
// unload the tile at any time between frames.
type DataHandle interface {
	Data() []byte
}

// Tile is one rectangular patch of pyramid content at an address. A Tile is
// owned exclusively by the tile matrix that created it; there is at most one
// Tile per address, and it is recreated (never mutated) if the owner's flip
// state no longer matches the Flipped flag it was built with.
type Tile struct {
	Address

	// Bounds is the tile's rectangle in normalized image coordinates
	// (x in [0,1], y in [0,1/aspect]), already shifted for wrapped copies
	// and mirrored when flipped.
	Bounds orb.Bound

	// SourceBounds is the tile's own raster size in source pixels, used to
	// crop overlap-padded edge tiles when compositing.
	SourceBounds orb.Bound

	// Exists is false for addresses the source reports missing, eg. the
	// ragged edge of a sparse pyramid. Nonexistent tiles contribute nothing.
	Exists bool

	URL         string
	PostData    []byte
	AjaxHeaders map[string]string

	// CacheKey identifies the decoded data in the tile cache. Distinct
	// addresses may share a key (wrapped copies of the same source tile).
	CacheKey string

	Loading bool
	Loaded  bool

	// Record is the handle into the tile cache once loaded, nil otherwise.
	Record DataHandle

	// Opacity and BlendStart belong to the blend state machine:
	// unblended -> blending -> opaque, in that order only.
	Opacity    float64
	BlendStart time.Time

	// Visibility ranks this tile for load priority; DistanceSq breaks ties.
	// Both are rewritten every frame the tile is positioned.
	Visibility float64
	DistanceSq float64

	// Position and Size place the tile in container pixels for the drawer.
	Position orb.Point
	Size     orb.Point

	Flipped      bool
	IsRightMost  bool
	IsBottomMost bool

	// BeingDrawn marks tiles on the current frame's draw list; the cache
	// must not evict them.
	BeingDrawn bool

	LastTouch time.Time

	HasTransparency bool
}

func (t *Tile) String() string {
	return fmt.Sprintf("tile %s", t.Address)
}

// Blending reports whether the tile is mid-fade: visible but not yet opaque.
func (t *Tile) Blending() bool {
	return !t.BlendStart.IsZero() && t.Opacity < 1
}

// Unload detaches the tile from its cached data and returns it to the
// unloaded, unblended state. The cache calls this on eviction.
func (t *Tile) Unload() {
	t.Loaded = false
	t.Loading = false
	t.Record = nil
	t.Opacity = 0
	t.BlendStart = time.Time{}
}
