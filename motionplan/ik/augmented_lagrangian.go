package ik

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/wholebody/logging"
	"go.viam.com/wholebody/utils"
)

const (
	initialPenalty = 10.
	penaltyGrowth  = 10.
	maxPenalty     = 1e10

	// The penalty grows whenever a major iteration fails to shrink the worst violation by this factor.
	sufficientDecrease = 0.25

	innerIterationsLimit = 100

	// Damping of the Gauss-Newton steps, relative to the largest Hessian diagonal at the start of a major iteration.
	initialDamping  = 1e-3
	dampingDecrease = 1. / 3
	dampingIncrease = 4.
	minDamping      = 1e-15
	maxDamping      = 1e30

	// An inner minimization stops once a step moves no coordinate by more than this, relative to the largest one.
	minRelativeStep = 1e-14
)

// AugmentedLagrangianSolver solves constrained IK problems with the method of multipliers. Each major iteration
// minimizes the augmented Lagrangian with damped Gauss-Newton (Levenberg-Marquardt) steps over a central
// finite-difference Jacobian of the constraint residuals, then updates the multipliers and, when progress stalls,
// the penalty weight. It needs nothing beyond Go.
type AugmentedLagrangianSolver struct {
	logger               logging.Logger
	feasibilityTolerance float64
}

// NewAugmentedLagrangianSolver returns a solver that logs to logger when Options.Debug is set.
func NewAugmentedLagrangianSolver(logger logging.Logger) *AugmentedLagrangianSolver {
	return &AugmentedLagrangianSolver{
		logger:               logger,
		feasibilityTolerance: defaultFeasibilityTolerance,
	}
}

// Solve implements Solver.
func (s *AugmentedLagrangianSolver) Solve(
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
	x := append([]float64(nil), seed...)
	if dof > opts.SuperbasicsLimit {
		return &Result{Status: StatusSuperbasicsLimit, Solution: x}, nil
	}
	if floats.HasNaN(x) || floats.HasNaN(nominal) {
		return &Result{Status: StatusInvalidInput, Solution: x}, nil
	}

	p := newProblem(model, constraints)
	r := make([]float64, p.size)
	if err := p.residuals(r, x); err != nil {
		return nil, errors.Wrap(err, "cannot evaluate constraints at the seed")
	}
	violation := utils.MaxAbs(r)

	// A feasible seed that is also the nominal configuration has zero cost, so nothing can improve on it.
	if violation <= s.feasibilityTolerance && (dof == 0 || floats.Equal(x, nominal)) {
		return &Result{Status: StatusOptimal, Solution: x}, nil
	}
	if dof == 0 {
		return s.finish(StatusInfeasible, x, p, r), nil
	}

	l := newLagrangian(p, opts, seed, nominal)
	status := StatusMajorIterationsLimit
	for major := 1; major <= opts.MajorIterationsLimit; major++ {
		outcome, err := s.minimize(ctx, l, x)
		if err != nil {
			return nil, err
		}
		if outcome == innerNumericalDifficulties {
			s.logger.Debugw("inner minimization produced a non-finite gradient", "iteration", major)
			status = StatusNumericalDifficulties
			break
		}
		if err := p.residuals(r, x); err != nil {
			return nil, err
		}
		prevViolation := violation
		violation = utils.MaxAbs(r)
		if opts.Debug {
			s.logger.Debugw("major iteration",
				"iteration", major,
				"violation", violation,
				"penalty", l.mu,
				"inner_outcome", outcome.String(),
				"evaluations", l.evals,
			)
		}

		if violation <= s.feasibilityTolerance {
			status = StatusAccuracyNotAchieved
			if outcome == innerConverged {
				status = StatusOptimal
			}
			break
		}
		if l.evals >= opts.IterationsLimit {
			status = StatusIterationsLimit
			break
		}
		for i, ri := range r {
			l.lambda[i] += l.mu * ri
		}
		if violation > sufficientDecrease*prevViolation {
			l.mu *= penaltyGrowth
		}
		if l.mu > maxPenalty {
			status = StatusInfeasible
			break
		}
	}
	return s.finish(status, x, p, r), nil
}

// innerOutcome is how an inner minimization ended.
type innerOutcome int

const (
	// innerConverged means the gradient fell below the optimality tolerance.
	innerConverged innerOutcome = iota
	// innerStalled means no damped step decreased the Lagrangian, the steps became negligible, or a limit was hit.
	innerStalled
	innerNumericalDifficulties
)

func (o innerOutcome) String() string {
	switch o {
	case innerConverged:
		return "converged"
	case innerStalled:
		return "stalled"
	case innerNumericalDifficulties:
		return "numerical difficulties"
	default:
		return "unknown"
	}
}

// minimize moves x, in place, toward a minimum of the Lagrangian at its current multipliers and penalty.
// Every accepted step strictly decreases the Lagrangian, so x never ends worse than it started.
func (s *AugmentedLagrangianSolver) minimize(ctx context.Context, l *lagrangian, x []float64) (innerOutcome, error) {
	n := len(x)
	grad := make([]float64, n)
	trial := make([]float64, n)
	damped := mat.NewDense(n, n, nil)
	var step mat.VecDense
	damping := 0.
	for iter := 0; iter < innerIterationsLimit; iter++ {
		if err := ctx.Err(); err != nil {
			return innerStalled, err
		}
		if l.evals >= l.opts.IterationsLimit {
			return innerStalled, nil
		}
		hessian, err := l.model(grad, x)
		if err != nil {
			return innerStalled, err
		}
		if floats.HasNaN(grad) || math.IsInf(floats.Norm(grad, 1), 0) {
			return innerNumericalDifficulties, nil
		}
		if utils.MaxAbs(grad) <= l.opts.MajorOptimalityTolerance {
			return innerConverged, nil
		}
		if damping == 0 {
			damping = math.Max(initialDamping*maxDiagonal(hessian), minDamping)
		}

		current := l.value(x)
		accepted := false
		for ; damping < maxDamping; damping *= dampingIncrease {
			damped.Copy(hessian)
			for i := 0; i < n; i++ {
				damped.Set(i, i, hessian.At(i, i)+damping)
			}
			if err := step.SolveVec(damped, mat.NewVecDense(n, grad)); err != nil {
				// an ill-conditioned system still yields a step for the descent test to judge
				if _, ill := err.(mat.Condition); !ill {
					continue
				}
			}
			floats.SubTo(trial, x, step.RawVector().Data)
			if l.value(trial) < current {
				accepted = true
				break
			}
		}
		if !accepted {
			return innerStalled, nil
		}
		damping = math.Max(damping*dampingDecrease, minDamping)
		small := floats.Distance(trial, x, math.Inf(1)) <= minRelativeStep*(1+floats.Norm(x, math.Inf(1)))
		copy(x, trial)
		if small {
			return innerStalled, nil
		}
	}
	return innerStalled, nil
}

// lagrangian is the augmented Lagrangian of one solve,
//
//	0.5 (x-nominal)' Q (x-nominal) + 0.5 (x-seed)' Qa (x-seed) + sum_i lambda_i r_i(x) + 0.5 mu r_i(x)^2,
//
// where r is the residual vector of the problem.
type lagrangian struct {
	p             *problem
	opts          *Options
	seed, nominal []float64
	lambda        []float64
	mu            float64
	evals         int

	// weights is the symmetric part of Q + Qa, the Hessian of the cost terms.
	weights *mat.Dense
	r       []float64
	jac     *mat.Dense
}

func newLagrangian(p *problem, opts *Options, seed, nominal []float64) *lagrangian {
	n := len(seed)
	weights := mat.NewDense(n, n, nil)
	for _, w := range []*mat.Dense{opts.Q, opts.Qa} {
		weights.Add(weights, w)
		weights.Add(weights, w.T())
	}
	weights.Scale(0.5, weights)
	return &lagrangian{
		p:       p,
		opts:    opts,
		seed:    seed,
		nominal: nominal,
		lambda:  make([]float64, p.size),
		mu:      initialPenalty,
		weights: weights,
		r:       make([]float64, p.size),
		jac:     mat.NewDense(p.size, n, nil),
	}
}

func (l *lagrangian) value(x []float64) float64 {
	l.evals++
	if err := l.p.residuals(l.r, x); err != nil {
		return math.Inf(1)
	}
	total := quadraticCost(l.opts.Q, x, l.nominal) + quadraticCost(l.opts.Qa, x, l.seed)
	for i, ri := range l.r {
		total += l.lambda[i]*ri + 0.5*l.mu*ri*ri
	}
	return total
}

// model fills grad with the gradient of the Lagrangian at x and returns its Gauss-Newton Hessian,
// weights + mu J'J, where J is the residual Jacobian.
func (l *lagrangian) model(grad, x []float64) (*mat.Dense, error) {
	l.evals++
	if err := l.p.residuals(l.r, x); err != nil {
		return nil, err
	}
	var jacErr error
	fd.Jacobian(l.jac, func(y, x []float64) {
		l.evals++
		if err := l.p.residuals(y, x); err != nil {
			jacErr = err
		}
	}, x, &fd.JacobianSettings{Formula: fd.Central})
	if jacErr != nil {
		return nil, jacErr
	}

	multipliers := make([]float64, len(l.r))
	for i, ri := range l.r {
		multipliers[i] = l.lambda[i] + l.mu*ri
	}
	mat.NewVecDense(len(grad), grad).MulVec(l.jac.T(), mat.NewVecDense(len(multipliers), multipliers))
	quadraticGrad(grad, l.opts.Q, x, l.nominal)
	quadraticGrad(grad, l.opts.Qa, x, l.seed)

	var jtj mat.SymDense
	jtj.SymOuterK(l.mu, l.jac.T())
	hessian := mat.NewDense(len(x), len(x), nil)
	hessian.Add(&jtj, l.weights)
	return hessian, nil
}

func maxDiagonal(m *mat.Dense) float64 {
	n, _ := m.Dims()
	largest := 0.
	for i := 0; i < n; i++ {
		largest = math.Max(largest, m.At(i, i))
	}
	return largest
}

func (s *AugmentedLagrangianSolver) finish(status int, x []float64, p *problem, r []float64) *Result {
	res := &Result{Status: status, Solution: x}
	if ClassifyStatus(status) != Success {
		res.InfeasibleConstraints = p.violated(r, s.feasibilityTolerance)
	}
	return res
}
