package scheduler

import (
	"math"
	"time"

	"github.com/lcl45/openseadragon/events"
	"github.com/lcl45/openseadragon/tile"
)

// blendTile advances the tile's fade-in and appends it to the draw list
// while it is visible. At full opacity the tile starts covering its cell.
// Returns true while the fade is still in progress.
func (s *Scheduler) blendTile(t *tile.Tile, x, y, level int, levelOpacity float64, now time.Time) bool {
	blendTime := s.cfg.BlendTime
	if t.BlendStart.IsZero() {
		t.BlendStart = now
	}
	elapsed := now.Sub(t.BlendStart)

	opacity := 1.0
	if blendTime > 0 {
		opacity = math.Min(1, float64(elapsed)/float64(blendTime))
	}
	if s.cfg.AlwaysBlend {
		opacity *= levelOpacity
	}
	t.Opacity = opacity

	if opacity > 0 {
		t.BeingDrawn = true
		s.lastDrawn = append(s.lastDrawn, t)

		owner, addr := s.owner, t.Address
		s.queueEvent(func() {
			events.TileDrawnFeed.Send(events.TileDrawn{Owner: owner, Address: addr, Opacity: opacity, Time: now})
		})
	}

	if opacity == 1 {
		s.coverage.setCoverage(level, x, y, true)
		s.hasOpaqueTile = true
	} else if elapsed < blendTime {
		return true
	}
	return false
}
