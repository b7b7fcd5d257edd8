// Package utils contains small numeric helpers shared across packages.
package utils

import (
	"math"
)

// DegToRad converts degrees to radians.
func DegToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// Float64AlmostEqual compares two float64s and returns if the difference between them is less than epsilon.
func Float64AlmostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

// Clamp returns value clamped to [lower, upper].
func Clamp(value, lower, upper float64) float64 {
	return math.Min(math.Max(value, lower), upper)
}

// WrapAngle maps an angle in radians into (-pi, pi].
func WrapAngle(rad float64) float64 {
	wrapped := math.Mod(rad+math.Pi, 2*math.Pi)
	if wrapped <= 0 {
		wrapped += 2 * math.Pi
	}
	return wrapped - math.Pi
}

// MaxAbs returns the largest absolute value in values, or zero for an empty slice.
func MaxAbs(values []float64) float64 {
	m := 0.
	for _, v := range values {
		m = math.Max(m, math.Abs(v))
	}
	return m
}
