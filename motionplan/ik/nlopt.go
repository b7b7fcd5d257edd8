//go:build nlopt

package ik

import (
	"context"
	"math"
	"sync"

	"github.com/go-nlopt/nlopt"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/wholebody/logging"
	"go.viam.com/wholebody/referenceframe"
)

const defaultJump = 1e-8

type optimizeReturn struct {
	solution []float64
	err      error
}

// NloptSolver solves constrained IK problems with nlopt's SLSQP. Joint limits become variable bounds and every
// other constraint residual becomes an equality constraint.
type NloptSolver struct {
	logger               logging.Logger
	feasibilityTolerance float64
}

// NewNloptSolver returns an SLSQP solver.
func NewNloptSolver(logger logging.Logger) (*NloptSolver, error) {
	return &NloptSolver{logger: logger, feasibilityTolerance: defaultFeasibilityTolerance}, nil
}

// Solve implements Solver.
func (s *NloptSolver) Solve(
	ctx context.Context,
	model KinematicModel,
	seed, nominal []float64,
	constraints []Constraint,
	opts *Options,
) (*Result, error) {
	if err := checkProblem(model, seed, nominal, opts); err != nil {
		return nil, err
	}
	dof := model.DoF()
	x0 := append([]float64(nil), seed...)
	if dof > opts.SuperbasicsLimit {
		return &Result{Status: StatusSuperbasicsLimit, Solution: x0}, nil
	}
	if dof == 0 {
		return nil, errors.New("nlopt cannot solve a problem with no free variables")
	}

	// The joint limits are handled by bounds, so only the constraint residuals are passed to nlopt.
	p := newProblem(model, constraints)
	m := p.offsets[len(constraints)]
	full := make([]float64, p.size)
	if err := p.residuals(full, x0); err != nil {
		return nil, errors.Wrap(err, "cannot evaluate constraints at the seed")
	}

	opt, err := nlopt.NewNLopt(nlopt.LD_SLSQP, uint(dof))
	if err != nil {
		return nil, errors.Wrap(err, "nlopt creation error")
	}
	defer opt.Destroy()

	evals := 0
	objective := func(x, gradient []float64) float64 {
		evals++
		if len(gradient) > 0 {
			objectiveGradient(gradient, opts, x, seed, nominal)
		}
		return quadraticCost(opts.Q, x, nominal) + quadraticCost(opts.Qa, x, seed)
	}

	scratch := make([]float64, p.size)
	stepped := make([]float64, dof)
	constraintFunc := func(result, x, gradient []float64) {
		if err := p.residuals(scratch, x); err != nil {
			s.logger.Errorw("error evaluating constraints in nlopt", "error", err)
			if err := opt.ForceStop(); err != nil {
				s.logger.Errorw("forcestop error", "error", err)
			}
			return
		}
		copy(result, scratch[:m])
		if len(gradient) == 0 {
			return
		}
		base := append([]float64(nil), scratch[:m]...)
		copy(stepped, x)
		for j := 0; j < dof; j++ {
			stepped[j] += defaultJump
			if err := p.residuals(scratch, stepped); err != nil {
				return
			}
			for i := 0; i < m; i++ {
				gradient[i*dof+j] = (scratch[i] - base[i]) / defaultJump
			}
			stepped[j] = x[j]
		}
	}

	lower, upper := limitsToArrays(model.Limits())
	tolerances := make([]float64, m)
	for i := range tolerances {
		tolerances[i] = s.feasibilityTolerance
	}
	err = multierr.Combine(
		opt.SetLowerBounds(lower),
		opt.SetUpperBounds(upper),
		opt.SetMinObjective(objective),
		opt.SetXtolRel(opts.MajorOptimalityTolerance*opts.MajorOptimalityTolerance),
		opt.SetFtolAbs(opts.MajorOptimalityTolerance*opts.MajorOptimalityTolerance),
		opt.SetMaxEval(opts.IterationsLimit),
	)
	if m > 0 {
		err = multierr.Combine(err, opt.AddEqualityMConstraint(constraintFunc, tolerances))
	}
	if err != nil {
		return nil, err
	}

	// nlopt rejects starting points outside the bounds.
	for i := range x0 {
		x0[i] = math.Min(math.Max(x0[i], lower[i]), upper[i])
	}

	var activeSolvers sync.WaitGroup
	solveChan := make(chan *optimizeReturn, 1)
	activeSolvers.Add(1)
	utils.PanicCapturingGo(func() {
		defer activeSolvers.Done()
		solution, _, nloptErr := opt.Optimize(x0)
		solveChan <- &optimizeReturn{solution, nloptErr}
	})
	var ret *optimizeReturn
	select {
	case <-ctx.Done():
		err = opt.ForceStop()
		activeSolvers.Wait()
		return nil, multierr.Combine(err, ctx.Err())
	case ret = <-solveChan:
	}

	solution := x0
	if ret.solution != nil {
		solution = ret.solution
	}
	if err := p.residuals(full, solution); err != nil {
		return nil, err
	}
	if opts.Debug {
		s.logger.Debugw("nlopt finished", "status", opt.LastStatus(), "evaluations", evals, "error", ret.err)
	}

	res := &Result{Solution: solution}
	feasible := len(p.violated(full, s.feasibilityTolerance)) == 0
	switch {
	case feasible && ret.err == nil:
		res.Status = StatusOptimal
	case feasible:
		res.Status = StatusAccuracyNotAchieved
	case opt.LastStatus() == "MAXEVAL_REACHED":
		res.Status = StatusIterationsLimit
	case ret.err != nil && opt.LastStatus() != "ROUNDOFF_LIMITED":
		res.Status = StatusNumericalDifficulties
	default:
		res.Status = StatusInfeasible
	}
	if ClassifyStatus(res.Status) != Success {
		res.InfeasibleConstraints = p.violated(full, s.feasibilityTolerance)
	}
	return res, nil
}

// objectiveGradient writes Q(x - nominal) + Qa(x - seed) into dst.
func objectiveGradient(dst []float64, opts *Options, x, seed, nominal []float64) {
	n := len(x)
	out := mat.NewVecDense(n, dst)
	out.Zero()
	var tmp mat.VecDense
	for _, term := range []struct {
		w   *mat.Dense
		ref []float64
	}{{opts.Q, nominal}, {opts.Qa, seed}} {
		if term.w == nil {
			continue
		}
		diff := make([]float64, n)
		for i := range x {
			diff[i] = x[i] - term.ref[i]
		}
		tmp.MulVec(term.w, mat.NewVecDense(n, diff))
		out.AddVec(out, &tmp)
	}
}

func limitsToArrays(limits []referenceframe.Limit) ([]float64, []float64) {
	lower := make([]float64, 0, len(limits))
	upper := make([]float64, 0, len(limits))
	for _, limit := range limits {
		lower = append(lower, limit.Min)
		upper = append(upper, limit.Max)
	}
	return lower, upper
}
