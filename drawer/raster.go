// Package drawer paints scheduled tiles into a raster frame. The scheduler
// hands it the full draw list every pass, coarse levels first, so each frame
// repaints from scratch and finer tiles land on top.
package drawer

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"math"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	xdraw "golang.org/x/image/draw"

	"github.com/lcl45/openseadragon/common"
	"github.com/lcl45/openseadragon/tile"
)

const decodedCacheSize = 256

// Raster composites tiles into an RGBA frame sized to the viewport
// container.
type Raster struct {
	logger *slog.Logger

	mu      sync.Mutex
	frame   *image.RGBA
	decoded *lru.Cache[string, image.Image]
	tiles   int
}

func NewRaster(width, height int) *Raster {
	decoded, err := lru.New[string, image.Image](decodedCacheSize)
	if err != nil {
		panic(err)
	}
	return &Raster{
		logger:  slog.With("d", "drawer"),
		frame:   image.NewRGBA(image.Rect(0, 0, width, height)),
		decoded: decoded,
	}
}

// Draw repaints the frame with a pass's draw list.
func (d *Raster) Draw(tiles []*tile.Tile) {
	d.mu.Lock()
	defer d.mu.Unlock()

	xdraw.Draw(d.frame, d.frame.Bounds(), image.NewUniform(color.Black), image.Point{}, xdraw.Src)
	d.tiles = 0
	for _, t := range tiles {
		if d.drawTile(t) {
			d.tiles++
		}
	}
}

func (d *Raster) drawTile(t *tile.Tile) bool {
	if t.Record == nil {
		// Unloaded between the pass and the paint.
		d.logger.Debug("Skipping tile without data", "tile", t)
		return false
	}
	src, err := d.decode(t)
	if err != nil {
		d.logger.Warn("Undrawable tile", "tile", t, "error", err)
		return false
	}

	dr := image.Rect(
		common.Round(t.Position.X()),
		common.Round(t.Position.Y()),
		common.Round(t.Position.X()+t.Size.X()),
		common.Round(t.Position.Y()+t.Size.Y()),
	)
	if dr.Empty() {
		return false
	}

	// Crop overlap padding off edge tiles.
	sr := src.Bounds()
	if w := int(math.Ceil(t.SourceBounds.Max.X())); w > 0 && w < sr.Dx() {
		sr.Max.X = sr.Min.X + w
	}
	if h := int(math.Ceil(t.SourceBounds.Max.Y())); h > 0 && h < sr.Dy() {
		sr.Max.Y = sr.Min.Y + h
	}

	var opts *xdraw.Options
	if t.Opacity < 1 {
		opts = &xdraw.Options{
			SrcMask: image.NewUniform(color.Alpha16{A: uint16(t.Opacity * 0xffff)}),
		}
	}
	xdraw.NearestNeighbor.Scale(d.frame, dr, src, sr, xdraw.Over, opts)
	return true
}

// decode caches decoded rasters by cache key; the same tiles repaint frame
// after frame.
func (d *Raster) decode(t *tile.Tile) (image.Image, error) {
	if im, ok := d.decoded.Get(t.CacheKey); ok {
		return im, nil
	}
	im, _, err := common.DecodeImage(t.Record.Data())
	if err != nil {
		return nil, err
	}
	d.decoded.Add(t.CacheKey, im)
	return im, nil
}

// Snapshot returns a copy of the current frame.
func (d *Raster) Snapshot() *image.RGBA {
	d.mu.Lock()
	defer d.mu.Unlock()
	dup := image.NewRGBA(d.frame.Rect)
	copy(dup.Pix, d.frame.Pix)
	return dup
}

// EncodePNG writes the current frame as a PNG.
func (d *Raster) EncodePNG(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return png.Encode(w, d.frame)
}

// TileCount reports how many tiles the last frame painted.
func (d *Raster) TileCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tiles
}
