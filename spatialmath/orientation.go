// Package spatialmath defines poses and orientations in 3D space. Points are in meters and angles in radians.
package spatialmath

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Orientation is an interface used to express the different parameterizations of the orientation
// of a rigid object or a frame of reference in 3D Euclidean space.
type Orientation interface {
	AxisAngles() *R4AA
	Quaternion() quat.Number
	EulerAngles() *EulerAngles
}

// NewZeroOrientation returns an orientatation which signifies no rotation.
func NewZeroOrientation() Orientation {
	return &Quaternion{Real: 1}
}

// OrientationAlmostEqual will return a bool describing whether 2 poses have approximately the same orientation.
func OrientationAlmostEqual(o1, o2 Orientation) bool {
	return QuaternionAlmostEqual(o1.Quaternion(), o2.Quaternion(), 1e-5)
}

// OrientationBetween returns the orientation representing the difference between the two given Orientations.
func OrientationBetween(o1, o2 Orientation) Orientation {
	q := Quaternion(quat.Mul(o2.Quaternion(), quat.Conj(o1.Quaternion())))
	return &q
}

// OrientationDistance returns the angle in radians of the smallest rotation taking o1 to o2.
func OrientationDistance(o1, o2 Orientation) float64 {
	return QuaternionAngle(OrientationBetween(o1, o2).Quaternion())
}

// QuaternionAngle returns the rotation angle in [0, pi] represented by a unit quaternion.
func QuaternionAngle(q quat.Number) float64 {
	q = Normalize(q)
	vecNorm := math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	return 2 * math.Atan2(vecNorm, math.Abs(q.Real))
}
