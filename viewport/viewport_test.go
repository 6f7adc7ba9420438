package viewport

import (
	"math"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/lcl45/openseadragon/events"
	"github.com/lcl45/openseadragon/params"
)

func newTestViewport() *Viewport {
	return New(orb.Point{1000, 800}, params.DefaultSpringConfig)
}

func pointsClose(a, b orb.Point) bool {
	const eps = 1e-9
	return math.Abs(a.X()-b.X()) < eps && math.Abs(a.Y()-b.Y()) < eps
}

func TestViewport_Bounds(t *testing.T) {
	v := newTestViewport()
	b := v.Bounds(true)
	want := orb.Bound{Min: orb.Point{0, 0.1}, Max: orb.Point{1, 0.9}}
	if !pointsClose(b.Min, want.Min) || !pointsClose(b.Max, want.Max) {
		t.Errorf("Expected %v, but got %v", want, b)
	}

	v.ZoomTo(2, time.Now(), true)
	b = v.Bounds(true)
	want = orb.Bound{Min: orb.Point{0.25, 0.3}, Max: orb.Point{0.75, 0.7}}
	if !pointsClose(b.Min, want.Min) || !pointsClose(b.Max, want.Max) {
		t.Errorf("Expected %v, but got %v", want, b)
	}
}

func TestViewport_PixelFromPointNoRotate(t *testing.T) {
	v := newTestViewport()
	// The viewport center lands on the container center.
	got := v.PixelFromPointNoRotate(orb.Point{0.5, 0.5}, true)
	if !pointsClose(got, orb.Point{500, 400}) {
		t.Errorf("Expected (500,400), but got %v", got)
	}
	if ppu := v.PixelsPerUnit(true); ppu != 1000 {
		t.Errorf("Expected 1000 px/unit, but got %v", ppu)
	}

	v.ZoomTo(2, time.Now(), true)
	if ppu := v.PixelsPerUnit(true); ppu != 2000 {
		t.Errorf("Expected 2000 px/unit, but got %v", ppu)
	}
	got = v.PixelFromPointNoRotate(orb.Point{0.5, 0.5}, true)
	if !pointsClose(got, orb.Point{500, 400}) {
		t.Errorf("Expected center to stay centered, but got %v", got)
	}
}

func TestViewport_Margins(t *testing.T) {
	v := newTestViewport()
	v.SetMargins(Margins{Left: 50, Top: 40, Right: 50, Bottom: 40})

	if got := v.InnerSize(); !pointsClose(got, orb.Point{900, 720}) {
		t.Errorf("Expected inner 900x720, but got %v", got)
	}

	inner := v.Bounds(true)
	outer := v.BoundsWithMargins(true)
	if outer.Min.X() >= inner.Min.X() || outer.Max.X() <= inner.Max.X() {
		t.Errorf("Expected margins to widen bounds, inner %v outer %v", inner, outer)
	}
	// 50px on each side at 900 px/unit.
	wantPad := 50.0 / 900.0
	if got := inner.Min.X() - outer.Min.X(); math.Abs(got-wantPad) > 1e-9 {
		t.Errorf("Expected pad %v, but got %v", wantPad, got)
	}
}

func TestViewport_PanZoomAnimated(t *testing.T) {
	start := time.Now()
	v := newTestViewport()
	v.Update(start)

	v.PanTo(orb.Point{0.8, 0.5}, start, false)
	v.ZoomTo(4, start, false)

	if !v.Update(start.Add(100 * time.Millisecond)) {
		t.Errorf("Expected camera to be animating")
	}
	cur := v.Center(true)
	if cur.X() <= 0.5 || cur.X() >= 0.8 {
		t.Errorf("Expected center mid-flight, but got %v", cur)
	}
	if tgt := v.Center(false); !pointsClose(tgt, orb.Point{0.8, 0.5}) {
		t.Errorf("Expected target (0.8,0.5), but got %v", tgt)
	}

	if v.Update(start.Add(2*time.Second)) && v.Update(start.Add(3*time.Second)) {
		t.Errorf("Expected camera at rest after animation time")
	}
	if got := v.Zoom(true); got != 4 {
		t.Errorf("Expected zoom 4, but got %v", got)
	}
}

func TestViewport_FitBounds(t *testing.T) {
	v := newTestViewport()
	now := time.Now()
	v.FitBounds(orb.Bound{Min: orb.Point{0.25, 0.25}, Max: orb.Point{0.75, 0.75}}, now, true)
	v.Update(now)

	if got := v.Center(true); !pointsClose(got, orb.Point{0.5, 0.5}) {
		t.Errorf("Expected center (0.5,0.5), but got %v", got)
	}
	// 0.5 wide but 0.5 tall at 1000x800: height binds, 0.5*1.25 = 0.625.
	if got := v.Zoom(true); math.Abs(got-1/0.625) > 1e-9 {
		t.Errorf("Expected zoom %v, but got %v", 1/0.625, got)
	}
}

func TestViewport_BoundsChangedEvent(t *testing.T) {
	ch := make(chan events.BoundsChanged, 4)
	sub := events.BoundsChangedFeed.Subscribe(ch)
	defer sub.Unsubscribe()

	v := newTestViewport()
	now := time.Now()
	v.PanTo(orb.Point{0.2, 0.2}, now, true)

	select {
	case ev := <-ch:
		if !pointsClose(ev.Center, orb.Point{0.2, 0.2}) {
			t.Errorf("Expected center (0.2,0.2), but got %v", ev.Center)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected a bounds-changed event")
	}
}
