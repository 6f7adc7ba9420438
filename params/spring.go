package params

import "time"

type SpringConfig struct {
	// Stiffness shapes the exponential easing curve. Higher values
	// approach the target faster early on.
	Stiffness float64

	// AnimationTime is how long a spring takes to reach its target.
	AnimationTime time.Duration
}

var DefaultSpringConfig = SpringConfig{
	Stiffness:     6.5,
	AnimationTime: 1200 * time.Millisecond,
}
