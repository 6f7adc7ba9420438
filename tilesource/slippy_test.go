package tilesource

import (
	"math"
	"testing"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"github.com/lcl45/openseadragon/tile"
)

func TestNewSlippy(t *testing.T) {
	s, err := NewSlippy("https://{s}.tile.example.com/{z}/{x}/{y}.png", 0, 4, 0, "a", "b", "c")
	if err != nil {
		t.Fatal(err)
	}
	if s.TileWidth != 256 {
		t.Errorf("Expected default tile size 256, but got %d", s.TileWidth)
	}
	x, y := s.NumTiles(4)
	if x != 16 || y != 16 {
		t.Errorf("Expected 16x16 at zoom 4, but got %dx%d", x, y)
	}
	if !s.Transparent {
		t.Errorf("Expected png template to carry transparency")
	}
	if s.AspectRatio() != 1 {
		t.Errorf("Expected square world, but got aspect %v", s.AspectRatio())
	}
}

func TestNewSlippy_Bad(t *testing.T) {
	if _, err := NewSlippy("https://x/{z}/{x}.png", 0, 4, 0); err == nil {
		t.Errorf("Expected error for template missing {y}")
	}
	if _, err := NewSlippy("https://x/{z}/{x}/{y}.png", 5, 4, 0); err == nil {
		t.Errorf("Expected error for inverted zoom range")
	}
}

func TestSlippy_TileURL(t *testing.T) {
	s, err := NewSlippy("https://{s}.tile.example.com/{z}/{x}/{y}.png", 0, 8, 0, "a", "b", "c")
	if err != nil {
		t.Fatal(err)
	}
	// (x+y) rotates the subdomain: 1+1 == 2 -> "c".
	want := "https://c.tile.example.com/3/1/1.png"
	if got := s.TileURL(3, 1, 1); got != want {
		t.Errorf("Expected %v, but got %v", want, got)
	}
}

func TestTileAtLatLng(t *testing.T) {
	for _, tt := range []struct {
		name string
		lat  float64
		lng  float64
		zoom int
		want tile.Address
	}{
		{"null island z1", 0, 0, 1, tile.Address{Level: 1, X: 1, Y: 1}},
		{"nw quadrant z1", 40, -100, 1, tile.Address{Level: 1, X: 0, Y: 0}},
		{"pole clamps to edge row", 89.9, 0, 2, tile.Address{Level: 2, X: 2, Y: 0}},
		{"z0 is a single tile", 45, 120, 0, tile.Address{Level: 0, X: 0, Y: 0}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got := TileAtLatLng(s2.LatLngFromDegrees(tt.lat, tt.lng), tt.zoom)
			if got != tt.want {
				t.Errorf("Expected %v, but got %v", tt.want, got)
			}
		})
	}
}

func TestLatLngAtTile(t *testing.T) {
	// NW corner of 1/1_1 is null island.
	ll := LatLngAtTile(tile.Address{Level: 1, X: 1, Y: 1})
	if math.Abs(ll.Lat.Degrees()) > 1e-9 || math.Abs(ll.Lng.Degrees()) > 1e-9 {
		t.Errorf("Expected (0,0), but got %v", ll)
	}
}

func TestWebMercatorY(t *testing.T) {
	// The projection takes the latitude angle straight off an s2.LatLng.
	var equator s1.Angle = s2.LatLngFromDegrees(0, 0).Lat
	if got := webMercatorY(equator); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Expected equator at 0.5, but got %v", got)
	}
	if got := webMercatorY(s2.LatLngFromDegrees(85.0511287798, 0).Lat); math.Abs(got) > 1e-9 {
		t.Errorf("Expected mercator limit at 0, but got %v", got)
	}
}

func TestSlippy_PointAtLatLng(t *testing.T) {
	s, err := NewSlippy("https://x/{z}/{x}/{y}.png", 0, 4, 0)
	if err != nil {
		t.Fatal(err)
	}
	p := s.PointAtLatLng(s2.LatLngFromDegrees(0, 0))
	if math.Abs(p.X()-0.5) > 1e-9 || math.Abs(p.Y()-0.5) > 1e-9 {
		t.Errorf("Expected (0.5,0.5), but got %v", p)
	}
}
