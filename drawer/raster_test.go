package drawer

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"testing"

	"github.com/paulmach/orb"

	"github.com/lcl45/openseadragon/common"
	"github.com/lcl45/openseadragon/tile"
)

type staticData []byte

func (s staticData) Data() []byte { return s }

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	im := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(im, im.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, im); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestTile(key string, data []byte, pos, size orb.Point) *tile.Tile {
	return &tile.Tile{
		CacheKey:     key,
		Record:       staticData(data),
		Position:     pos,
		Size:         size,
		SourceBounds: orb.Bound{Max: orb.Point{10, 10}},
		Opacity:      1,
	}
}

var (
	red  = color.RGBA{R: 0xff, A: 0xff}
	blue = color.RGBA{B: 0xff, A: 0xff}
)

func TestRaster_PaintsAndScales(t *testing.T) {
	d := NewRaster(100, 100)
	a := newTestTile("a", solidPNG(t, 10, 10, red), orb.Point{0, 0}, orb.Point{50, 50})
	b := newTestTile("b", solidPNG(t, 10, 10, blue), orb.Point{50, 0}, orb.Point{50, 50})

	d.Draw([]*tile.Tile{a, b})
	if d.TileCount() != 2 {
		t.Errorf("Expected 2 tiles painted, but got %d", d.TileCount())
	}

	snap := d.Snapshot()
	if got := snap.RGBAAt(25, 25); got != red {
		t.Errorf("Expected red at (25,25), but got %v", got)
	}
	if got := snap.RGBAAt(75, 25); got != blue {
		t.Errorf("Expected blue at (75,25), but got %v", got)
	}
	if got := snap.RGBAAt(25, 75); got.R != 0 || got.G != 0 || got.B != 0 {
		t.Errorf("Expected background at (25,75), but got %v", got)
	}
}

func TestRaster_FinerPaintsOver(t *testing.T) {
	d := NewRaster(100, 100)
	coarse := newTestTile("coarse", solidPNG(t, 10, 10, blue), orb.Point{0, 0}, orb.Point{100, 100})
	fine := newTestTile("fine", solidPNG(t, 10, 10, red), orb.Point{0, 0}, orb.Point{50, 50})

	// Draw lists arrive coarse first; finer tiles land on top.
	d.Draw([]*tile.Tile{coarse, fine})

	snap := d.Snapshot()
	if got := snap.RGBAAt(25, 25); got != red {
		t.Errorf("Expected the finer tile on top, but got %v", got)
	}
	if got := snap.RGBAAt(75, 75); got != blue {
		t.Errorf("Expected the coarse tile outside it, but got %v", got)
	}
}

func TestRaster_OpacityBlends(t *testing.T) {
	d := NewRaster(100, 100)
	fading := newTestTile("f", solidPNG(t, 10, 10, red), orb.Point{0, 0}, orb.Point{100, 100})
	fading.Opacity = 0.5

	d.Draw([]*tile.Tile{fading})

	got := d.Snapshot().RGBAAt(50, 50)
	if got.R < 126 || got.R > 129 {
		t.Errorf("Expected half-faded red, but got %v", got)
	}
	if got.G != 0 || got.B != 0 {
		t.Errorf("Expected no color bleed, but got %v", got)
	}
}

func TestRaster_CropsOverlap(t *testing.T) {
	// Left half red, right half blue.
	im := image.NewRGBA(image.Rect(0, 0, 10, 10))
	draw.Draw(im, image.Rect(0, 0, 5, 10), image.NewUniform(red), image.Point{}, draw.Src)
	draw.Draw(im, image.Rect(5, 0, 10, 10), image.NewUniform(blue), image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, im); err != nil {
		t.Fatal(err)
	}

	d := NewRaster(100, 100)
	edge := newTestTile("e", buf.Bytes(), orb.Point{0, 0}, orb.Point{50, 50})
	edge.SourceBounds = orb.Bound{Max: orb.Point{5, 10}}

	d.Draw([]*tile.Tile{edge})

	snap := d.Snapshot()
	if got := snap.RGBAAt(40, 25); got != red {
		t.Errorf("Expected the cropped source all red, but got %v", got)
	}
}

func TestRaster_SkipsUndrawable(t *testing.T) {
	defer common.SlogResetLevel(slog.LevelError)()
	d := NewRaster(100, 100)

	missing := newTestTile("m", nil, orb.Point{0, 0}, orb.Point{50, 50})
	missing.Record = nil
	junk := newTestTile("j", []byte("not an image"), orb.Point{50, 0}, orb.Point{50, 50})

	d.Draw([]*tile.Tile{missing, junk})
	if d.TileCount() != 0 {
		t.Errorf("Expected nothing painted, but got %d", d.TileCount())
	}

	// An empty list still clears the frame.
	a := newTestTile("a", solidPNG(t, 10, 10, red), orb.Point{0, 0}, orb.Point{100, 100})
	d.Draw([]*tile.Tile{a})
	d.Draw(nil)
	if got := d.Snapshot().RGBAAt(50, 50); got.R != 0 {
		t.Errorf("Expected the frame cleared, but got %v", got)
	}
}

func TestRaster_SnapshotIsolated(t *testing.T) {
	d := NewRaster(100, 100)
	a := newTestTile("a", solidPNG(t, 10, 10, red), orb.Point{0, 0}, orb.Point{100, 100})
	d.Draw([]*tile.Tile{a})

	snap := d.Snapshot()
	d.Draw(nil)
	if got := snap.RGBAAt(50, 50); got != red {
		t.Errorf("Expected the snapshot untouched by later frames, but got %v", got)
	}

	var buf bytes.Buffer
	if err := d.EncodePNG(&buf); err != nil {
		t.Fatal(err)
	}
	if buf.Len() == 0 {
		t.Errorf("Expected an encoded frame")
	}
}
