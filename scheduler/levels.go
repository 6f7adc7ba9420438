package scheduler

import (
	"math"

	"github.com/lcl45/openseadragon/params"
)

// levelRange is the slice of source geometry the interval computation
// needs; any Source satisfies it.
type levelRange interface {
	MinLevel() int
	MaxLevel() int
}

// levelInterval computes the inclusive range of pyramid levels eligible for
// a pass. zeroRatio is the on-screen pixels per source pixel at the base
// level under the current view; it caps the highest level so the scheduler
// never loads detail the screen cannot show, scaled by the minimum pixel
// ratio. The lowest level is floored by how far out the image may zoom.
func levelInterval(src levelRange, zeroRatio float64, cfg *params.SchedulerConfig) (lowest, highest int) {
	lowest = src.MinLevel()
	if floor := int(math.Floor(math.Log2(cfg.MinZoomImageRatio))); floor > lowest {
		lowest = floor
	}

	highest = intAbs(src.MaxLevel())
	if ceiling := intAbs(int(math.Floor(math.Log2(zeroRatio / cfg.MinPixelRatio)))); ceiling < highest {
		highest = ceiling
	}
	if src.MinLevel() > highest {
		highest = src.MinLevel()
	}
	if lowest > highest {
		lowest = highest
	}
	return lowest, highest
}

func intAbs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
