package viewport

import (
	"math"
	"time"

	"github.com/lcl45/openseadragon/params"
)

// Spring animates a scalar toward a target along an exponential easing
// curve. Exponential springs interpolate in log space, which keeps zoom
// animation perceptually even across magnitudes; their values must stay
// positive.
type Spring struct {
	cfg         params.SpringConfig
	exponential bool

	startValue  float64
	startTime   time.Time
	targetValue float64
	targetTime  time.Time

	current     float64
	currentTime time.Time
}

func NewSpring(initial float64, cfg params.SpringConfig) *Spring {
	return &Spring{
		cfg:         cfg,
		startValue:  initial,
		targetValue: initial,
		current:     initial,
	}
}

func NewExponentialSpring(initial float64, cfg params.SpringConfig) *Spring {
	s := NewSpring(initial, cfg)
	s.exponential = true
	return s
}

func (s *Spring) Current() float64 { return s.current }
func (s *Spring) Target() float64  { return s.targetValue }

func (s *Spring) AtRest() bool {
	return s.current == s.targetValue
}

// SpringTo retargets the spring, animating from the current value over the
// configured animation time.
func (s *Spring) SpringTo(v float64, now time.Time) {
	s.startValue = s.current
	s.startTime = now
	s.targetValue = v
	s.targetTime = now.Add(s.cfg.AnimationTime)
}

// ResetTo jumps the spring to a value with no animation.
func (s *Spring) ResetTo(v float64) {
	s.startValue = v
	s.targetValue = v
	s.current = v
	s.startTime = s.currentTime
	s.targetTime = s.currentTime
}

// ShiftBy moves both endpoints, preserving animation progress.
func (s *Spring) ShiftBy(delta float64) {
	s.startValue += delta
	s.targetValue += delta
}

// Update advances the spring to now and returns the new current value.
func (s *Spring) Update(now time.Time) float64 {
	s.currentTime = now

	// Settle on the exact target; log/exp does not round-trip.
	if !now.Before(s.targetTime) || !s.targetTime.After(s.startTime) {
		s.current = s.targetValue
		return s.current
	}

	start, target := s.startValue, s.targetValue
	if s.exponential {
		start, target = math.Log(start), math.Log(target)
	}
	x := float64(now.Sub(s.startTime)) / float64(s.targetTime.Sub(s.startTime))
	cur := start + (target-start)*easing(s.cfg.Stiffness, x)
	if s.exponential {
		cur = math.Exp(cur)
	}
	s.current = cur
	return cur
}

func easing(stiffness, x float64) float64 {
	return (1.0 - math.Exp(-stiffness*x)) / (1.0 - math.Exp(-stiffness))
}
