// Package viewport models the camera over a tiled image: an animated
// center and zoom plus the pixel/point transform queries the scheduler and
// drawer consume. One viewport unit is the content width, so zoom z shows
// a slice 1/z units wide.
package viewport

import (
	"log/slog"
	"math"
	"time"

	"github.com/paulmach/orb"

	"github.com/lcl45/openseadragon/events"
	"github.com/lcl45/openseadragon/params"
)

type Margins struct {
	Left, Top, Right, Bottom float64
}

type Viewport struct {
	logger *slog.Logger

	containerSize orb.Point
	margins       Margins

	centerX *Spring
	centerY *Spring
	zoom    *Spring

	degrees float64
}

// New creates a viewport over a container of the given pixel size, at
// zoom 1 centered on (0.5, 0.5).
func New(containerSize orb.Point, cfg params.SpringConfig) *Viewport {
	return &Viewport{
		logger:        slog.With("d", "viewport"),
		containerSize: containerSize,
		centerX:       NewSpring(0.5, cfg),
		centerY:       NewSpring(0.5, cfg),
		zoom:          NewExponentialSpring(1, cfg),
	}
}

func (v *Viewport) ContainerSize() orb.Point { return v.containerSize }

func (v *Viewport) SetMargins(m Margins) { v.margins = m }

// InnerSize is the container minus margins, the region tiles render into.
func (v *Viewport) InnerSize() orb.Point {
	return orb.Point{
		v.containerSize.X() - v.margins.Left - v.margins.Right,
		v.containerSize.Y() - v.margins.Top - v.margins.Bottom,
	}
}

func (v *Viewport) Rotation() float64 { return v.degrees }

func (v *Viewport) SetRotation(degrees float64) { v.degrees = degrees }

// Update advances all springs to now. It reports whether anything moved,
// so callers know the camera is still animating.
func (v *Viewport) Update(now time.Time) bool {
	cx, cy, cz := v.centerX.Current(), v.centerY.Current(), v.zoom.Current()
	v.centerX.Update(now)
	v.centerY.Update(now)
	v.zoom.Update(now)
	return cx != v.centerX.Current() || cy != v.centerY.Current() || cz != v.zoom.Current()
}

func (v *Viewport) Zoom(current bool) float64 {
	if current {
		return v.zoom.Current()
	}
	return v.zoom.Target()
}

func (v *Viewport) Center(current bool) orb.Point {
	if current {
		return orb.Point{v.centerX.Current(), v.centerY.Current()}
	}
	return orb.Point{v.centerX.Target(), v.centerY.Target()}
}

// PixelsPerUnit is the screen-pixel length of one viewport unit.
func (v *Viewport) PixelsPerUnit(current bool) float64 {
	return v.InnerSize().X() * v.Zoom(current)
}

// Bounds is the visible rectangle in viewport units.
func (v *Viewport) Bounds(current bool) orb.Bound {
	center := v.Center(current)
	w := 1.0 / v.Zoom(current)
	h := w * (v.InnerSize().Y() / v.InnerSize().X())
	return orb.Bound{
		Min: orb.Point{center.X() - w/2, center.Y() - h/2},
		Max: orb.Point{center.X() + w/2, center.Y() + h/2},
	}
}

// BoundsWithMargins expands Bounds so content under the margins is still
// scheduled and drawn.
func (v *Viewport) BoundsWithMargins(current bool) orb.Bound {
	b := v.Bounds(current)
	factor := v.PixelsPerUnit(current)
	return orb.Bound{
		Min: orb.Point{b.Min.X() - v.margins.Left/factor, b.Min.Y() - v.margins.Top/factor},
		Max: orb.Point{b.Max.X() + v.margins.Right/factor, b.Max.Y() + v.margins.Bottom/factor},
	}
}

// PixelFromPointNoRotate maps a viewport point to container pixels,
// ignoring rotation.
func (v *Viewport) PixelFromPointNoRotate(p orb.Point, current bool) orb.Point {
	b := v.Bounds(current)
	ppu := v.PixelsPerUnit(current)
	return orb.Point{
		(p.X()-b.Min.X())*ppu + v.margins.Left,
		(p.Y()-b.Min.Y())*ppu + v.margins.Top,
	}
}

// PixelFromPoint maps a viewport point to container pixels, rotating about
// the viewport center.
func (v *Viewport) PixelFromPoint(p orb.Point, current bool) orb.Point {
	if v.degrees == 0 {
		return v.PixelFromPointNoRotate(p, current)
	}
	center := v.Center(current)
	rad := v.degrees * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	dx, dy := p.X()-center.X(), p.Y()-center.Y()
	rotated := orb.Point{
		center.X() + dx*cos - dy*sin,
		center.Y() + dx*sin + dy*cos,
	}
	return v.PixelFromPointNoRotate(rotated, current)
}

// DeltaPixelsFromPointsNoRotate scales a viewport-unit delta to pixels.
func (v *Viewport) DeltaPixelsFromPointsNoRotate(p orb.Point, current bool) orb.Point {
	ppu := v.PixelsPerUnit(current)
	return orb.Point{p.X() * ppu, p.Y() * ppu}
}

func (v *Viewport) PanTo(center orb.Point, now time.Time, immediately bool) {
	if immediately {
		v.centerX.ResetTo(center.X())
		v.centerY.ResetTo(center.Y())
	} else {
		v.centerX.SpringTo(center.X(), now)
		v.centerY.SpringTo(center.Y(), now)
	}
	v.boundsChanged(now)
}

func (v *Viewport) PanBy(delta orb.Point, now time.Time, immediately bool) {
	target := orb.Point{v.centerX.Target() + delta.X(), v.centerY.Target() + delta.Y()}
	v.PanTo(target, now, immediately)
}

func (v *Viewport) ZoomTo(zoom float64, now time.Time, immediately bool) {
	if zoom <= 0 {
		v.logger.Warn("Refusing non-positive zoom", "zoom", zoom)
		return
	}
	if immediately {
		v.zoom.ResetTo(zoom)
	} else {
		v.zoom.SpringTo(zoom, now)
	}
	v.boundsChanged(now)
}

func (v *Viewport) ZoomBy(factor float64, now time.Time, immediately bool) {
	v.ZoomTo(v.zoom.Target()*factor, now, immediately)
}

// FitBounds retargets center and zoom so the rectangle fits inside the
// viewport.
func (v *Viewport) FitBounds(b orb.Bound, now time.Time, immediately bool) {
	w := b.Max.X() - b.Min.X()
	h := b.Max.Y() - b.Min.Y()
	if w <= 0 || h <= 0 {
		v.logger.Warn("Refusing to fit empty bounds", "bounds", b)
		return
	}
	aspect := v.InnerSize().X() / v.InnerSize().Y()
	fitWidth := math.Max(w, h*aspect)
	center := orb.Point{(b.Min.X() + b.Max.X()) / 2, (b.Min.Y() + b.Max.Y()) / 2}
	v.PanTo(center, now, immediately)
	v.ZoomTo(1/fitWidth, now, immediately)
}

// Resize changes the container size, keeping the camera target.
func (v *Viewport) Resize(size orb.Point, now time.Time) {
	if size.X() <= 0 || size.Y() <= 0 {
		v.logger.Warn("Refusing empty container resize", "size", size)
		return
	}
	v.containerSize = size
	v.boundsChanged(now)
}

func (v *Viewport) boundsChanged(now time.Time) {
	events.BoundsChangedFeed.Send(events.BoundsChanged{
		Center: v.Center(false),
		Zoom:   v.Zoom(false),
		Time:   now,
	})
}
