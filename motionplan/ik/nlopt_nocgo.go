//go:build !nlopt

package ik

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/wholebody/logging"
)

// errNloptUnavailable is returned when the binary was built without the nlopt tag.
var errNloptUnavailable = errors.New("nlopt is not supported on this build, rebuild with -tags nlopt")

// NloptSolver mimics the type in the nlopt tagged build.
type NloptSolver struct{}

// NewNloptSolver is not supported without the nlopt build tag.
func NewNloptSolver(logger logging.Logger) (*NloptSolver, error) {
	return nil, errNloptUnavailable
}

// Solve refuses to solve problems without nlopt.
func (s *NloptSolver) Solve(
	ctx context.Context,
	model KinematicModel,
	seed, nominal []float64,
	constraints []Constraint,
	opts *Options,
) (*Result, error) {
	return nil, errNloptUnavailable
}
