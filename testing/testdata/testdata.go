// Package testdata provides a synthetic tile source for tests and benches.
package testdata

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/lcl45/openseadragon/tile"
	"github.com/lcl45/openseadragon/tilesource"
)

// Grid is a square pyramid whose tiles are generated rather than fetched.
// Each tile renders as a solid color derived from its address, so any two
// runs produce identical bytes and no test needs the network.
type Grid struct {
	*tilesource.Pyramid
}

// NewGrid builds a size-by-size pixel pyramid with square tiles.
func NewGrid(size, tileSize, overlap int) *Grid {
	return &Grid{
		Pyramid: &tilesource.Pyramid{
			Width:      size,
			Height:     size,
			TileWidth:  tileSize,
			TileHeight: tileSize,
			Overlap:    overlap,
			Max:        int(math.Ceil(math.Log2(float64(size)))),
		},
	}
}

func (g *Grid) TileURL(level, x, y int) string {
	return fmt.Sprintf("grid://%d/%d_%d", level, x, y)
}

// ReadTile generates the tile's PNG. Grid implements tilesource.Local, so a
// loader wired to it never leaves the process.
func (g *Grid) ReadTile(_ context.Context, level, x, y int) ([]byte, error) {
	if !g.TileExists(level, x, y) {
		return nil, tilesource.ErrNoSuchTile
	}
	sb := g.TileBounds(level, x, y, true)
	w := int(math.Ceil(sb.Max.X()))
	h := int(math.Ceil(sb.Max.Y()))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(AddressColor(level, x, y)), image.Point{}, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// AddressColor is the fill color of a generated tile, stable per address.
func AddressColor(level, x, y int) color.RGBA {
	h := fnv.New32a()
	io.WriteString(h, tile.Address{Level: level, X: x, Y: y}.String())
	sum := h.Sum32()
	return color.RGBA{R: uint8(sum), G: uint8(sum >> 8), B: uint8(sum >> 16), A: 0xff}
}
