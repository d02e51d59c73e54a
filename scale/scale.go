package scale

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Clamp limits t to the interval [min,max]. The bounds may be given in either order.
func Clamp[T constraints.Integer | constraints.Float](t, min, max T) T {
	if min > max {
		min, max = max, min
	}
	if t < min {
		return min
	}
	if t > max {
		return max
	}
	return t
}

// ToUnitClamp returns a function that scales a number from the interval [rMin,rMax]
// to the unit interval ([0,1]), if the result falls outside [0,1], it is clamped
// to 0 or 1.
func ToUnitClamp(rMin, rMax float64) func(m float64) float64 {
	return Linear(rMin, rMax, 0, 1)
}

// Linear returns a function that maps [rMin,rMax] onto [tMin,tMax] and clamps the result to the
// target interval. A degenerate source interval maps everything to tMin.
func Linear(rMin, rMax, tMin, tMax float64) func(m float64) float64 {
	return func(m float64) float64 {
		if rMax == rMin {
			return tMin
		}
		v := (m-rMin)/(rMax-rMin)*(tMax-tMin) + tMin
		return Clamp(v, tMin, tMax)
	}
}

// ToDMX converts a unit value into a DMX channel level (0-255).
func ToDMX(unit float64) byte {
	return byte(math.Round(Clamp(unit, 0, 1) * 255))
}
