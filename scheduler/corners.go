package scheduler

import (
	"math"

	"github.com/lcl45/openseadragon/common"
	"github.com/lcl45/openseadragon/tile"
	"github.com/paulmach/orb"
)

// cornerTiles resolves the grid addresses of the draw area's corners at a
// level. On a wrapping axis the bound is folded into the base period and the
// address shifted back out by whole grid widths, so addresses outside
// [0, numTiles) name tiles in neighboring copies of the image. A
// non-wrapping axis clamps to the image instead.
func (s *Scheduler) cornerTiles(level int, topLeft, bottomRight orb.Point) (tl, br tile.Address) {
	var leftX, rightX float64
	if s.cfg.WrapHorizontal {
		leftX = common.PositiveModulo(topLeft.X(), 1)
		rightX = common.PositiveModulo(bottomRight.X(), 1)
	} else {
		leftX = math.Max(0, topLeft.X())
		rightX = math.Min(1, bottomRight.X())
	}

	period := 1 / s.source.AspectRatio()
	var topY, bottomY float64
	if s.cfg.WrapVertical {
		topY = common.PositiveModulo(topLeft.Y(), period)
		bottomY = common.PositiveModulo(bottomRight.Y(), period)
	} else {
		topY = math.Max(0, topLeft.Y())
		bottomY = math.Min(period, bottomRight.Y())
	}

	tl = s.source.TileAtPoint(level, orb.Point{leftX, topY})
	br = s.source.TileAtPoint(level, orb.Point{rightX, bottomY})

	nx, ny := s.source.NumTiles(level)
	if s.cfg.WrapHorizontal {
		tl.X += nx * int(math.Floor(topLeft.X()))
		br.X += nx * int(math.Floor(bottomRight.X()))
	}
	if s.cfg.WrapVertical {
		tl.Y += ny * int(math.Floor(topLeft.Y()/period))
		br.Y += ny * int(math.Floor(bottomRight.Y()/period))
	}
	return tl, br
}

// tileBounds returns the tile's rectangle in image-local coordinates,
// mirrored when flipped and shifted by whole image widths for wrap
// addresses outside the grid.
func (s *Scheduler) tileBounds(level, x, y int) orb.Bound {
	nx, ny := s.source.NumTiles(level)
	xMod := common.PositiveModuloInt(x, nx)
	yMod := common.PositiveModuloInt(y, ny)

	b := s.source.TileBounds(level, xMod, yMod, false)
	w := b.Max.X() - b.Min.X()
	h := b.Max.Y() - b.Min.Y()
	minX, minY := b.Min.X(), b.Min.Y()
	if s.cfg.Flipped {
		minX = math.Max(0, 1-minX-w)
	}
	// One horizontal period is 1; one vertical period is the image height
	// in normalized units.
	minX += float64((x - xMod) / nx)
	minY += float64((y-yMod)/ny) / s.source.AspectRatio()
	return orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{minX + w, minY + h}}
}

// flippedColumn mirrors a column within its wrap period.
func flippedColumn(x, nx int) int {
	xMod := common.PositiveModuloInt(x, nx)
	return x - xMod + nx - xMod - 1
}

// intersectBound returns the overlap of two bounds; ok is false when the
// overlap is empty or degenerate.
func intersectBound(a, b orb.Bound) (orb.Bound, bool) {
	minX := math.Max(a.Min.X(), b.Min.X())
	minY := math.Max(a.Min.Y(), b.Min.Y())
	maxX := math.Min(a.Max.X(), b.Max.X())
	maxY := math.Min(a.Max.Y(), b.Max.Y())
	if minX >= maxX || minY >= maxY {
		return orb.Bound{}, false
	}
	return orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{maxX, maxY}}, true
}
