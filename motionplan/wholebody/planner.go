// Package wholebody turns end-effector goals for a humanoid into whole-body joint configurations. It translates
// robot states to configuration vectors and back, builds the constraints that keep the support links planted and
// the robot balanced, and hands the problem to an ik.Solver.
package wholebody

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"go.viam.com/wholebody/logging"
	"go.viam.com/wholebody/motionplan/ik"
	"go.viam.com/wholebody/msgs"
)

// PlanState is a step of a single solve attempt.
type PlanState string

// The states of a solve attempt, in the order they are entered.
const (
	StateSeeding            PlanState = "seeding"
	StateConstraintBuilding PlanState = "constraint_building"
	StateSolving            PlanState = "solving"
	StateSuccess            PlanState = "success"
	StateInfeasible         PlanState = "infeasible"
)

// NewSolver builds the solver named by cfg.Solver.
func NewSolver(cfg *PlannerConfig, logger logging.Logger) (ik.Solver, error) {
	switch cfg.Solver {
	case SolverAugmentedLagrangian, "":
		return ik.NewAugmentedLagrangianSolver(logger), nil
	case SolverNlopt:
		solver, err := ik.NewNloptSolver(logger)
		if err != nil {
			return nil, err
		}
		return solver, nil
	default:
		return nil, errors.Errorf("unknown solver %q", cfg.Solver)
	}
}

// PositionIKPlanner solves one IK request at a time against a model. It holds no per-request state and is safe
// for concurrent use.
type PositionIKPlanner struct {
	model  KinematicModel
	solver ik.Solver
	cfg    *PlannerConfig
	logger logging.Logger
}

// NewPositionIKPlanner returns a planner. A nil cfg selects NewDefaultPlannerConfig.
func NewPositionIKPlanner(
	model KinematicModel,
	solver ik.Solver,
	cfg *PlannerConfig,
	logger logging.Logger,
) (*PositionIKPlanner, error) {
	if model == nil {
		return nil, errors.New("planner needs a model")
	}
	if solver == nil {
		return nil, errors.New("planner needs a solver")
	}
	if logger == nil {
		return nil, errors.New("planner needs a logger")
	}
	if cfg == nil {
		cfg = NewDefaultPlannerConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid planner config")
	}
	return &PositionIKPlanner{model: model, solver: solver, cfg: cfg, logger: logger}, nil
}

// Plan solves req. The boolean result is the same as the IsValid field of the response.
//
// A solve that fails to find a configuration is not an error: the response then echoes the request state with
// IsValid false. Errors are returned, without a response, for malformed requests, unknown link names, solver
// errors and context cancellation.
func (p *PositionIKPlanner) Plan(ctx context.Context, req *msgs.IKRequest) (*msgs.IKResult, bool, error) {
	targets, err := TargetsFromRequest(req.TargetLinkNames, req.TargetPoses)
	if err != nil {
		return nil, false, err
	}
	logger := p.logger.WithFields("plan_id", uuid.New().String())

	logger.Debugw("planner state", "state", StateSeeding)
	seed, hasFloatingBase := ToInternal(p.model, make([]float64, p.model.DoF()), req.RobotState, p.cfg.FloatingBaseName)

	res, err := p.solve(ctx, logger, seed, targets)
	if err != nil {
		return nil, false, err
	}

	if outcome := ik.ClassifyStatus(res.Status); outcome != ik.Success {
		logger.Debugw("planner state", "state", StateInfeasible)
		logger.Warnw("IK solve failed",
			"status", res.Status,
			"outcome", outcome.String(),
			"infeasible_constraints", strings.Join(res.InfeasibleConstraints, " | "),
		)
		return &msgs.IKResult{ResultState: req.RobotState.Clone(), IsValid: false}, false, nil
	}

	logger.Debugw("planner state", "state", StateSuccess, "status", res.Status)
	state := ToExternal(p.model, res.Solution, req.RobotState, hasFloatingBase, p.cfg.FloatingBaseName)
	return &msgs.IKResult{ResultState: state, IsValid: true}, true, nil
}

// solve builds the constraints and options for seed and runs the solver once, with seed as the nominal
// configuration too.
func (p *PositionIKPlanner) solve(
	ctx context.Context,
	logger logging.Logger,
	seed []float64,
	targets []Target,
) (*ik.Result, error) {
	logger.Debugw("planner state", "state", StateConstraintBuilding)
	constraints, err := BuildConstraints(p.model, seed, targets, p.cfg)
	if err != nil {
		return nil, err
	}
	opts := ik.NewOptions(p.model.DoF())

	logger.Debugw("planner state", "state", StateSolving, "constraints", len(constraints))
	res, err := p.solver.Solve(ctx, p.model, seed, seed, constraints, opts)
	if err != nil {
		return nil, errors.Wrap(err, "solver failed")
	}
	return res, nil
}
