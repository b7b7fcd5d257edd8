package ik

import (
	"testing"

	"go.viam.com/test"
)

func TestClassifyStatus(t *testing.T) {
	for _, tc := range []struct {
		code     int
		expected Outcome
	}{
		{0, Success},
		{StatusOptimal, Success},
		{StatusAccuracyNotAchieved, Success},
		{10, Success},
		{11, Infeasible},
		{StatusInfeasible, Infeasible},
		{19, Infeasible},
		{20, SolverError},
		{StatusMajorIterationsLimit, SolverError},
		{StatusInvalidInput, SolverError},
	} {
		test.That(t, ClassifyStatus(tc.code), test.ShouldEqual, tc.expected)
	}
	test.That(t, Infeasible.String(), test.ShouldEqual, "infeasible")
}

func TestNewOptions(t *testing.T) {
	opts := NewOptions(4)
	test.That(t, opts.MajorIterationsLimit, test.ShouldEqual, 10000)
	test.That(t, opts.IterationsLimit, test.ShouldEqual, 500000)
	test.That(t, opts.SuperbasicsLimit, test.ShouldEqual, 1000)
	test.That(t, opts.MajorOptimalityTolerance, test.ShouldEqual, 2e-4)
	test.That(t, opts.Debug, test.ShouldBeTrue)

	r, c := opts.Q.Dims()
	test.That(t, r, test.ShouldEqual, 4)
	test.That(t, c, test.ShouldEqual, 4)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if i == j {
				test.That(t, opts.Q.At(i, j), test.ShouldEqual, 1.)
				test.That(t, opts.Qa.At(i, j), test.ShouldAlmostEqual, 0.001)
			} else {
				test.That(t, opts.Q.At(i, j), test.ShouldEqual, 0.)
				test.That(t, opts.Qa.At(i, j), test.ShouldEqual, 0.)
			}
		}
	}
	test.That(t, opts.Validate(4), test.ShouldBeNil)

	// every call builds new matrices
	other := NewOptions(4)
	other.Q.Set(0, 0, 5)
	test.That(t, opts.Q.At(0, 0), test.ShouldEqual, 1.)
}

func TestOptionsValidate(t *testing.T) {
	var opts *Options
	test.That(t, opts.Validate(3), test.ShouldBeError, ErrNilOptions)

	opts = NewOptions(3)
	test.That(t, opts.Validate(4), test.ShouldNotBeNil)
	test.That(t, opts.Validate(4).Error(), test.ShouldContainSubstring, "Q is 3x3")

	opts.MajorIterationsLimit = 0
	test.That(t, opts.Validate(3), test.ShouldNotBeNil)

	test.That(t, NewOptions(0).Validate(0), test.ShouldBeNil)
}
