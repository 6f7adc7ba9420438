package scheduler

import (
	"testing"

	"github.com/paulmach/orb"

	"github.com/lcl45/openseadragon/cache"
	"github.com/lcl45/openseadragon/params"
	"github.com/lcl45/openseadragon/testing/testdata"
	"github.com/lcl45/openseadragon/tile"
	"github.com/lcl45/openseadragon/viewport"
)

func TestCornerTiles_Clamped(t *testing.T) {
	h := newHarness(nil)

	tl, br := h.s.cornerTiles(10, orb.Point{-0.5, -0.5}, orb.Point{1.5, 1.5})
	if tl != (tile.Address{Level: 10}) {
		t.Errorf("Expected 10/0_0, but got %s", tl)
	}
	if br != (tile.Address{Level: 10, X: 3, Y: 3}) {
		t.Errorf("Expected 10/3_3, but got %s", br)
	}

	tl, br = h.s.cornerTiles(10, orb.Point{0.3, 0.3}, orb.Point{0.6, 0.6})
	if tl != (tile.Address{Level: 10, X: 1, Y: 1}) {
		t.Errorf("Expected 10/1_1, but got %s", tl)
	}
	if br != (tile.Address{Level: 10, X: 2, Y: 2}) {
		t.Errorf("Expected 10/2_2, but got %s", br)
	}
}

func TestCornerTiles_WrapHorizontal(t *testing.T) {
	cfg := params.DefaultSchedulerConfig()
	cfg.WrapHorizontal = true
	h := newHarness(cfg)

	// A view hanging off both seams addresses tiles in the neighbor copies.
	tl, br := h.s.cornerTiles(10, orb.Point{-0.2, 0}, orb.Point{1.3, 1})
	if tl != (tile.Address{Level: 10, X: -1, Y: 0}) {
		t.Errorf("Expected 10/-1_0, but got %s", tl)
	}
	if br != (tile.Address{Level: 10, X: 5, Y: 3}) {
		t.Errorf("Expected 10/5_3, but got %s", br)
	}
}

func TestTileBounds_WrapShift(t *testing.T) {
	cfg := params.DefaultSchedulerConfig()
	cfg.WrapHorizontal = true
	h := newHarness(cfg)

	// Column -1 is the rightmost source column shifted one image west.
	b := h.s.tileBounds(10, -1, 0)
	want := orb.Bound{Min: orb.Point{-0.25, 0}, Max: orb.Point{0, 0.25}}
	if b != want {
		t.Errorf("Expected %v, but got %v", want, b)
	}

	// Column 4 is the leftmost column one image east.
	b = h.s.tileBounds(10, 4, 1)
	want = orb.Bound{Min: orb.Point{1, 0.25}, Max: orb.Point{1.25, 0.5}}
	if b != want {
		t.Errorf("Expected %v, but got %v", want, b)
	}
}

func TestTileBounds_WrapVerticalNonSquare(t *testing.T) {
	cfg := params.DefaultSchedulerConfig()
	cfg.WrapVertical = true

	// A 1000x500 source: the vertical period is 0.5, not a full unit.
	wide := testdata.NewGrid(1000, 250, 0)
	wide.Height = 500
	s := New(wide, viewport.New(orb.Point{500, 500}, params.DefaultSpringConfig), cache.New(nil), &fakeLoader{}, cfg)

	// Row 2 is the top source row one image south.
	b := s.tileBounds(10, 0, 2)
	want := orb.Bound{Min: orb.Point{0, 0.5}, Max: orb.Point{0.25, 0.75}}
	if b != want {
		t.Errorf("Expected %v, but got %v", want, b)
	}

	// Row -1 is the bottom row one image north.
	b = s.tileBounds(10, 1, -1)
	want = orb.Bound{Min: orb.Point{0.25, -0.25}, Max: orb.Point{0.5, 0}}
	if b != want {
		t.Errorf("Expected %v, but got %v", want, b)
	}
}

func TestTileBounds_Flipped(t *testing.T) {
	cfg := params.DefaultSchedulerConfig()
	cfg.Flipped = true
	h := newHarness(cfg)

	b := h.s.tileBounds(10, 0, 0)
	want := orb.Bound{Min: orb.Point{0.75, 0}, Max: orb.Point{1, 0.25}}
	if b != want {
		t.Errorf("Expected the first column mirrored east, got %v", b)
	}

	b = h.s.tileBounds(10, 3, 0)
	want = orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{0.25, 0.25}}
	if b != want {
		t.Errorf("Expected the last column mirrored west, got %v", b)
	}
}

func TestFlippedColumn(t *testing.T) {
	cases := []struct {
		x, nx, want int
	}{
		{0, 4, 3},
		{1, 4, 2},
		{3, 4, 0},
		{4, 4, 7},
		{-1, 4, -4},
	}
	for _, tc := range cases {
		if got := flippedColumn(tc.x, tc.nx); got != tc.want {
			t.Errorf("Expected flippedColumn(%d, %d) == %d, but got %d", tc.x, tc.nx, tc.want, got)
		}
	}
}

func TestIntersectBound(t *testing.T) {
	a := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}

	got, ok := intersectBound(a, orb.Bound{Min: orb.Point{0.5, 0.5}, Max: orb.Point{2, 2}})
	if !ok {
		t.Fatal("Expected an overlap")
	}
	want := orb.Bound{Min: orb.Point{0.5, 0.5}, Max: orb.Point{1, 1}}
	if got != want {
		t.Errorf("Expected %v, but got %v", want, got)
	}

	if _, ok := intersectBound(a, orb.Bound{Min: orb.Point{2, 2}, Max: orb.Point{3, 3}}); ok {
		t.Errorf("Expected disjoint bounds not to intersect")
	}
	// A shared edge has no area.
	if _, ok := intersectBound(a, orb.Bound{Min: orb.Point{1, 0}, Max: orb.Point{2, 1}}); ok {
		t.Errorf("Expected edge contact not to intersect")
	}
}
