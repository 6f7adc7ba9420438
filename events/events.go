// Package events publishes the scheduler's observable state transitions as
// typed feeds. Feeds are notification-only: the scheduling pass collects
// payloads while it runs and sends them at pass boundaries, so a slow or
// absent subscriber can never change a scheduling decision.
package events

import (
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/paulmach/orb"

	"github.com/lcl45/openseadragon/tile"
)

// LevelProcessed is emitted once per pyramid level examined by a frame
// pass, finest first. Coarser levels skipped by the coverage short-circuit
// emit nothing.
type LevelProcessed struct {
	Owner tile.OwnerID
	Level int
	// Drawable is whether the level was selected (or forced) to draw.
	Drawable bool
	Time     time.Time
}

var LevelProcessedFeed = event.FeedOf[LevelProcessed]{}

// TileProcessed is emitted for every address the pass visited.
type TileProcessed struct {
	Owner   tile.OwnerID
	Address tile.Address
	Loaded  bool
	Loading bool
	Time    time.Time
}

var TileProcessedFeed = event.FeedOf[TileProcessed]{}

// TileDispatched is emitted for the single load candidate handed to the
// loader by a pass, after the pass completes.
type TileDispatched struct {
	Owner   tile.OwnerID
	Address tile.Address
	URL     string
	Time    time.Time
}

var TileDispatchedFeed = event.FeedOf[TileDispatched]{}

// TileLoaded is emitted when a tile's data lands in the cache and the tile
// is marked loaded, including synchronous cache hits.
type TileLoaded struct {
	Owner   tile.OwnerID
	Address tile.Address
	Bytes   int
	Time    time.Time
}

var TileLoadedFeed = event.FeedOf[TileLoaded]{}

// TileLoadFailed is emitted when a dispatched tile comes back without data.
// The tile is marked nonexistent; the frame carries on without it.
type TileLoadFailed struct {
	Owner   tile.OwnerID
	Address tile.Address
	URL     string
	Error   string
	Time    time.Time
}

var TileLoadFailedFeed = event.FeedOf[TileLoadFailed]{}

// TileDrawn is emitted per tile handed to the drawer each frame.
type TileDrawn struct {
	Owner   tile.OwnerID
	Address tile.Address
	Opacity float64
	Time    time.Time
}

var TileDrawnFeed = event.FeedOf[TileDrawn]{}

// FullyLoadedChanged is emitted on the edges of the fully-loaded signal:
// true when every visible tile is resident, false again as soon as a new
// load is needed.
type FullyLoadedChanged struct {
	Owner       tile.OwnerID
	FullyLoaded bool
	Time        time.Time
}

var FullyLoadedChangedFeed = event.FeedOf[FullyLoadedChanged]{}

// BoundsChanged is emitted by the viewport when a pan, zoom or resize
// command retargets it. Spring animation between targets does not emit.
type BoundsChanged struct {
	Center orb.Point
	Zoom   float64
	Time   time.Time
}

var BoundsChangedFeed = event.FeedOf[BoundsChanged]{}
