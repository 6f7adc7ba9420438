package tilesource

import (
	"testing"

	"github.com/paulmach/orb"

	"github.com/lcl45/openseadragon/tile"
)

// newTestPyramid is a 1000x1000 image with DZI-ish tiling: 254px tiles
// with 1px overlap, 11 levels.
func newTestPyramid() *Pyramid {
	return &Pyramid{
		Width:      1000,
		Height:     1000,
		TileWidth:  254,
		TileHeight: 254,
		Overlap:    1,
		Min:        0,
		Max:        10,
	}
}

func TestPyramid_NumTiles(t *testing.T) {
	p := newTestPyramid()
	for _, tt := range []struct {
		level    int
		wantX    int
		wantY    int
	}{
		{10, 4, 4},
		{9, 2, 2},
		{8, 1, 1},
		{0, 1, 1},
	} {
		x, y := p.NumTiles(tt.level)
		if x != tt.wantX || y != tt.wantY {
			t.Errorf("level %d: Expected %dx%d, but got %dx%d", tt.level, tt.wantX, tt.wantY, x, y)
		}
	}
}

func TestPyramid_ClosestLevel(t *testing.T) {
	p := newTestPyramid()
	want := 8
	if got := p.ClosestLevel(); got != want {
		t.Errorf("Expected %v, but got %v", want, got)
	}
}

func TestPyramid_TileBounds(t *testing.T) {
	p := newTestPyramid()
	for _, tt := range []struct {
		name    string
		x, y    int
		source  bool
		want    orb.Bound
	}{
		{"origin tile bleeds right and down only", 0, 0, false,
			orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{0.255, 0.255}}},
		{"interior tile bleeds both sides", 1, 0, false,
			orb.Bound{Min: orb.Point{0.253, 0}, Max: orb.Point{0.509, 0.255}}},
		{"last tile clipped to image", 3, 3, false,
			orb.Bound{Min: orb.Point{0.761, 0.761}, Max: orb.Point{1, 1}}},
		{"source space anchors at origin", 3, 3, true,
			orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{239, 239}}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got := p.TileBounds(10, tt.x, tt.y, tt.source)
			if !boundsClose(got, tt.want) {
				t.Errorf("Expected %v, but got %v", tt.want, got)
			}
		})
	}
}

func boundsClose(a, b orb.Bound) bool {
	const eps = 1e-9
	close := func(x, y float64) bool {
		d := x - y
		return d < eps && d > -eps
	}
	return close(a.Min.X(), b.Min.X()) && close(a.Min.Y(), b.Min.Y()) &&
		close(a.Max.X(), b.Max.X()) && close(a.Max.Y(), b.Max.Y())
}

func TestPyramid_TileAtPoint(t *testing.T) {
	p := newTestPyramid()
	for _, tt := range []struct {
		name  string
		point orb.Point
		want  tile.Address
	}{
		{"origin", orb.Point{0, 0}, tile.Address{Level: 10, X: 0, Y: 0}},
		{"center", orb.Point{0.5, 0.5}, tile.Address{Level: 10, X: 1, Y: 1}},
		{"far corner picks last tile", orb.Point{1, 1}, tile.Address{Level: 10, X: 3, Y: 3}},
		{"right edge picks last column", orb.Point{1, 0}, tile.Address{Level: 10, X: 3, Y: 0}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.TileAtPoint(10, tt.point); got != tt.want {
				t.Errorf("Expected %v, but got %v", tt.want, got)
			}
		})
	}
}

func TestPyramid_TileExists(t *testing.T) {
	p := newTestPyramid()
	for _, tt := range []struct {
		name    string
		level   int
		x, y    int
		want    bool
	}{
		{"inside", 10, 3, 3, true},
		{"column out of range", 10, 4, 0, false},
		{"negative", 10, -1, 0, false},
		{"level above max", 11, 0, 0, false},
		{"level below min", -1, 0, 0, false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.TileExists(tt.level, tt.x, tt.y); got != tt.want {
				t.Errorf("Expected %v, but got %v", tt.want, got)
			}
		})
	}
}

func TestPyramid_PixelRatio(t *testing.T) {
	p := newTestPyramid()
	got := p.PixelRatio(10)
	want := orb.Point{0.001, 0.001}
	if got != want {
		t.Errorf("Expected %v, but got %v", want, got)
	}
	// One level coarser, pixels are twice the size.
	got = p.PixelRatio(9)
	want = orb.Point{0.002, 0.002}
	if got != want {
		t.Errorf("Expected %v, but got %v", want, got)
	}
}

func TestPyramid_TileHashKey(t *testing.T) {
	p := newTestPyramid()
	plain := p.TileHashKey(3, 1, 2, "http://x/t.jpg", nil, nil)
	if plain != "3/1_2/http://x/t.jpg" {
		t.Errorf("Expected plain key, but got %v", plain)
	}
	withHeaders := p.TileHashKey(3, 1, 2, "http://x/t.jpg", nil, map[string]string{"Authorization": "Bearer a"})
	otherHeaders := p.TileHashKey(3, 1, 2, "http://x/t.jpg", nil, map[string]string{"Authorization": "Bearer b"})
	if withHeaders == plain {
		t.Errorf("Expected header-carrying key to differ from plain key")
	}
	if withHeaders == otherHeaders {
		t.Errorf("Expected different headers to produce different keys")
	}
}
