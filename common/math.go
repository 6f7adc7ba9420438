package common

import "math"

// https://stackoverflow.com/questions/18390266/how-can-we-truncate-float64-type-to-a-particular-precision
func Round(num float64) int {
	return int(num + math.Copysign(0.5, num))
}

func DecimalToFixed(num float64, precision int) float64 {
	output := math.Pow(10, float64(precision))
	return float64(Round(num*output)) / output
}

// Clamp limits v to the closed interval [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// PositiveModulo returns v mod m in [0, m), also for negative v.
// The native % operator keeps the sign of the dividend, which is
// useless for wrapped coordinates.
func PositiveModulo(v, m float64) float64 {
	r := math.Mod(v, m)
	if r < 0 {
		r += m
	}
	return r
}

// PositiveModuloInt is PositiveModulo for ints.
func PositiveModuloInt(v, m int) int {
	r := v % m
	if r < 0 {
		r += m
	}
	return r
}

// FloorDiv divides v by m rounding toward negative infinity,
// so FloorDiv(-1, 4) == -1, not 0.
func FloorDiv(v, m int) int {
	q := v / m
	if (v%m != 0) && ((v < 0) != (m < 0)) {
		q--
	}
	return q
}
