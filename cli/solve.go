package cli

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/wholebody/logging"
	"go.viam.com/wholebody/motionplan/wholebody"
	"go.viam.com/wholebody/msgs"
	"go.viam.com/wholebody/referenceframe"
)

// errInfeasible is returned after the result has been written when no valid plan was found.
var errInfeasible = errors.New("no valid plan found")

func setup(c *cli.Context) (*referenceframe.Model, *wholebody.PlannerConfig, logging.Logger, error) {
	logger := newLogger(c)
	model, err := loadModel(c)
	if err != nil {
		return nil, nil, nil, err
	}
	cfg, err := loadPlannerConfig(c)
	if err != nil {
		return nil, nil, nil, err
	}
	return model, cfg, logger, nil
}

// SolveAction solves a single IK request.
func SolveAction(c *cli.Context) error {
	model, cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	var req msgs.IKRequest
	state, err := readRequest(c, &req)
	if err != nil {
		return err
	}
	if state != nil {
		req.RobotState = *state
	}

	solver, err := wholebody.NewSolver(cfg, logger.Sublogger("solver"))
	if err != nil {
		return err
	}
	planner, err := wholebody.NewPositionIKPlanner(model, solver, cfg, logger)
	if err != nil {
		return err
	}
	res, ok, err := planner.Plan(c.Context, &req)
	if err != nil {
		return err
	}
	if err := writeResult(c, res); err != nil {
		return err
	}
	if !ok {
		return errInfeasible
	}
	return nil
}

// TrajectoryAction plans a trajectory through the waypoints of a request.
func TrajectoryAction(c *cli.Context) error {
	model, cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	var req msgs.TrajectoryRequest
	state, err := readRequest(c, &req)
	if err != nil {
		return err
	}
	if state != nil {
		req.RobotState = *state
	}

	solver, err := wholebody.NewSolver(cfg, logger.Sublogger("solver"))
	if err != nil {
		return err
	}
	planner, err := wholebody.NewTrajectoryPlanner(model, solver, cfg, logger)
	if err != nil {
		return err
	}
	res, err := planner.Plan(c.Context, &req)
	if err != nil {
		return err
	}
	if err := writeResult(c, res); err != nil {
		return err
	}
	if path := c.String(flagPlot); path != "" {
		if err := plotTrajectory(res.Trajectory, path); err != nil {
			return errors.Wrap(err, "cannot plot trajectory")
		}
		fmt.Fprintf(c.App.ErrWriter, "trajectory plot written to %s\n", path)
	}
	if !res.IsValid {
		return errors.Wrapf(errInfeasible, "waypoint %d is unreachable", res.FailedWaypoint)
	}
	return nil
}
