package params

import "time"

type SchedulerConfig struct {
	// MinZoomImageRatio bounds how small the image may get relative to
	// the viewport before coarser levels stop being considered.
	MinZoomImageRatio float64

	// MinPixelRatio is the screen-pixel density a level must reach to be
	// chosen as the draw level.
	MinPixelRatio float64

	// BlendTime is how long a freshly loaded tile fades from 0 to full
	// opacity. Zero means tiles pop in at full opacity immediately.
	BlendTime time.Duration

	// AlwaysBlend additionally scales tile opacity by the level's own
	// opacity, tying the fade to resolution-appropriateness.
	AlwaysBlend bool

	// ImmediateRender prefers whatever resolution is already on hand
	// over waiting for the ideal level.
	ImmediateRender bool

	WrapHorizontal bool
	WrapVertical   bool
	Flipped        bool
}

func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		MinZoomImageRatio: 0.9,
		MinPixelRatio:     0.5,
		BlendTime:         0,
		AlwaysBlend:       false,
		ImmediateRender:   false,
	}
}

// DefaultTestSchedulerConfig enables blending so fade behavior is
// observable in tests.
func DefaultTestSchedulerConfig() *SchedulerConfig {
	c := DefaultSchedulerConfig()
	c.BlendTime = 100 * time.Millisecond
	return c
}

// MatrixSize bounds the sparse tile matrix. Addresses untouched the
// longest are dropped first once the bound is hit.
var MatrixSize = 4096
