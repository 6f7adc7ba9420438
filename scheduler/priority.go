package scheduler

import "github.com/lcl45/openseadragon/tile"

// compareTiles picks the better load candidate of the two. Strictly greater
// visibility wins; on a visibility tie the tile closer to the viewport
// center wins; otherwise the incumbent is kept.
func compareTiles(previousBest, t *tile.Tile) *tile.Tile {
	if previousBest == nil {
		return t
	}
	if t.Visibility > previousBest.Visibility {
		return t
	}
	if t.Visibility == previousBest.Visibility && t.DistanceSq < previousBest.DistanceSq {
		return t
	}
	return previousBest
}
