package ik

import (
	"context"

	"go.viam.com/wholebody/referenceframe"
)

// KinematicModel is the view of a robot model that solvers need.
type KinematicModel interface {
	DoF() int
	Limits() []referenceframe.Limit
	Kinematics(q []float64) (*referenceframe.KinematicsSnapshot, error)
}

// Result is the outcome of a single solve.
type Result struct {
	// Status is the raw solver status code; interpret it with ClassifyStatus.
	Status int
	// Solution is the final configuration. It is meaningful only when the status classifies as Success.
	Solution []float64
	// InfeasibleConstraints names the constraints that were violated at the final configuration, in input order.
	InfeasibleConstraints []string
}

// Solver finds a configuration satisfying a set of constraints while staying close to the nominal and seed
// configurations, as weighted by Options.Q and Options.Qa.
//
// A returned error means the problem could not be posed or the context was cancelled. Failing to satisfy the
// constraints is not an error; it is reported through Result.Status.
type Solver interface {
	Solve(
		ctx context.Context,
		model KinematicModel,
		seed, nominal []float64,
		constraints []Constraint,
		opts *Options,
	) (*Result, error)
}

// checkProblem validates the inputs every solver shares.
func checkProblem(model KinematicModel, seed, nominal []float64, opts *Options) error {
	if opts == nil {
		return ErrNilOptions
	}
	dof := model.DoF()
	if len(seed) != dof {
		return referenceframe.NewIncorrectDoFError(len(seed), dof)
	}
	if len(nominal) != dof {
		return referenceframe.NewIncorrectDoFError(len(nominal), dof)
	}
	return opts.Validate(dof)
}
