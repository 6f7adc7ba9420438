package tilesource

import (
	"fmt"
	"math"

	"github.com/golang/groupcache/lru"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/paulmach/orb"

	"github.com/lcl45/openseadragon/tile"
)

const urlMemoSize = 1024

// Pyramid is the generic geometry shared by all pyramid sources. Levels
// halve in linear size from Max down; level Max is full resolution.
// Concrete sources embed it and add URL schemes on top.
type Pyramid struct {
	// Width and Height are the full-resolution size in source pixels.
	Width  int
	Height int

	TileWidth  int
	TileHeight int

	// Overlap is the pixel border shared with neighboring tiles.
	Overlap int

	Min int
	Max int

	// Transparent marks sources whose tile format carries alpha.
	Transparent bool

	memo *lru.Cache
}

func (p *Pyramid) Dimensions() orb.Point {
	return orb.Point{float64(p.Width), float64(p.Height)}
}

func (p *Pyramid) AspectRatio() float64 {
	return float64(p.Width) / float64(p.Height)
}

func (p *Pyramid) MinLevel() int { return p.Min }
func (p *Pyramid) MaxLevel() int { return p.Max }

func (p *Pyramid) TileSize(level int) orb.Point {
	return orb.Point{float64(p.TileWidth), float64(p.TileHeight)}
}

func (p *Pyramid) TileOverlap() int { return p.Overlap }

// LevelScale is the linear scale of a level relative to full resolution,
// 1 at Max and halving per level down.
func (p *Pyramid) LevelScale(level int) float64 {
	return math.Pow(0.5, float64(p.Max-level))
}

func (p *Pyramid) NumTiles(level int) (x, y int) {
	scale := p.LevelScale(level)
	x = int(math.Ceil(scale * float64(p.Width) / float64(p.TileWidth)))
	y = int(math.Ceil(scale * float64(p.Height) / float64(p.TileHeight)))
	return x, y
}

// PixelRatio is the normalized-unit size of one level pixel. The scheduler
// multiplies it by the viewport's pixels-per-unit to get the on-screen
// density of the level.
func (p *Pyramid) PixelRatio(level int) orb.Point {
	scale := p.LevelScale(level)
	return orb.Point{
		1 / (float64(p.Width) * scale),
		1 / (float64(p.Height) * scale),
	}
}

// ClosestLevel returns the last level covered by a single tile, walking up
// from Min until the grid grows.
func (p *Pyramid) ClosestLevel() int {
	level := p.Min + 1
	for ; level <= p.Max; level++ {
		x, y := p.NumTiles(level)
		if x+y > 2 {
			break
		}
	}
	return level - 1
}

// TileAtPoint maps a normalized point to its tile address. Points on the
// far edges select the last row/column instead of one past it.
func (p *Pyramid) TileAtPoint(level int, point orb.Point) tile.Address {
	widthScaled := float64(p.Width) * p.LevelScale(level)
	pixelX := point.X() * widthScaled
	pixelY := point.Y() * widthScaled

	x := int(math.Floor(pixelX / float64(p.TileWidth)))
	y := int(math.Floor(pixelY / float64(p.TileHeight)))

	nx, ny := p.NumTiles(level)
	if point.X() >= 1 {
		x = nx - 1
	}
	const epsilon = 1e-15
	if point.Y() >= 1/p.AspectRatio()-epsilon {
		y = ny - 1
	}
	return tile.Address{Level: level, X: x, Y: y}
}

// TileBounds returns the tile rectangle including overlap. Interior tiles
// bleed Overlap pixels on every side; edge tiles only inward, and the last
// row/column is clipped to the image.
func (p *Pyramid) TileBounds(level, x, y int, sourceSpace bool) orb.Bound {
	scaledW := float64(p.Width) * p.LevelScale(level)
	scaledH := float64(p.Height) * p.LevelScale(level)

	px := float64(p.TileWidth * x)
	if x != 0 {
		px -= float64(p.Overlap)
	}
	py := float64(p.TileHeight * y)
	if y != 0 {
		py -= float64(p.Overlap)
	}

	sx := float64(p.TileWidth + p.Overlap)
	if x != 0 {
		sx += float64(p.Overlap)
	}
	sy := float64(p.TileHeight + p.Overlap)
	if y != 0 {
		sy += float64(p.Overlap)
	}

	sx = math.Min(sx, scaledW-px)
	sy = math.Min(sy, scaledH-py)

	if sourceSpace {
		return orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{sx, sy}}
	}

	scale := 1.0 / scaledW
	return orb.Bound{
		Min: orb.Point{px * scale, py * scale},
		Max: orb.Point{(px + sx) * scale, (py + sy) * scale},
	}
}

func (p *Pyramid) TileExists(level, x, y int) bool {
	if level < p.Min || level > p.Max {
		return false
	}
	nx, ny := p.NumTiles(level)
	return x >= 0 && y >= 0 && x < nx && y < ny
}

func (p *Pyramid) TilePostData(level, x, y int) []byte { return nil }

func (p *Pyramid) TileAjaxHeaders(level, x, y int) map[string]string { return nil }

func (p *Pyramid) HasTransparency(level, x, y int) bool { return p.Transparent }

// TileHashKey is address + url for plain GETs. Requests carrying post data
// or headers fold them into the key with a structural hash, so the same
// address fetched differently caches differently.
func (p *Pyramid) TileHashKey(level, x, y int, url string, post []byte, headers map[string]string) string {
	if len(post) == 0 && len(headers) == 0 {
		return fmt.Sprintf("%d/%d_%d/%s", level, x, y, url)
	}
	h, err := hashstructure.Hash(struct {
		URL     string
		Post    []byte
		Headers map[string]string
	}{url, post, headers}, hashstructure.FormatV2, nil)
	if err != nil {
		return fmt.Sprintf("%d/%d_%d/%s", level, x, y, url)
	}
	return fmt.Sprintf("%d/%d_%d/%d", level, x, y, h)
}

// memoized caches computed per-address strings (URLs, keys). The frame loop
// asks for the same handful of addresses over and over. The lru is not
// synchronized; callers share the scheduling goroutine.
func (p *Pyramid) memoized(a tile.Address, compute func() string) string {
	if p.memo == nil {
		p.memo = lru.New(urlMemoSize)
	}
	if v, ok := p.memo.Get(a); ok {
		return v.(string)
	}
	s := compute()
	p.memo.Add(a, s)
	return s
}
