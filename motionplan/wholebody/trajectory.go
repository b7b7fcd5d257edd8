package wholebody

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"go.viam.com/wholebody/logging"
	"go.viam.com/wholebody/motionplan/ik"
	"go.viam.com/wholebody/msgs"
)

// TrajectoryPlanner plans through a sequence of waypoints by solving one IK problem per waypoint, each seeded with
// the solution of the previous one so the support links stay where they started.
type TrajectoryPlanner struct {
	ik *PositionIKPlanner
}

// NewTrajectoryPlanner returns a trajectory planner. A nil cfg selects NewDefaultPlannerConfig.
func NewTrajectoryPlanner(
	model KinematicModel,
	solver ik.Solver,
	cfg *PlannerConfig,
	logger logging.Logger,
) (*TrajectoryPlanner, error) {
	planner, err := NewPositionIKPlanner(model, solver, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &TrajectoryPlanner{ik: planner}, nil
}

func validateWaypoints(waypoints []msgs.TrajectoryWaypoint) error {
	if len(waypoints) == 0 {
		return errors.New("trajectory request has no waypoints")
	}
	last := 0.
	for i, wp := range waypoints {
		if len(wp.TargetLinkNames) != len(wp.TargetPoses) {
			return errors.Wrapf(newMismatchedTargetsError(len(wp.TargetLinkNames), len(wp.TargetPoses)), "waypoint %d", i)
		}
		if wp.TimeFromStart <= last {
			return errors.Errorf("waypoint %d: time_from_start %v must be after %v", i, wp.TimeFromStart, last)
		}
		last = wp.TimeFromStart
	}
	return nil
}

// Plan returns a trajectory that starts at the request state at time zero and passes through every waypoint.
// Velocities and accelerations are finite differences over the sample times, and zero at both ends.
//
// The first waypoint that cannot be reached ends planning: the result then holds the samples planned so far,
// IsValid false, and the index of that waypoint. Errors are reserved for malformed requests, unknown links, solver
// errors and cancellation.
func (tp *TrajectoryPlanner) Plan(ctx context.Context, req *msgs.TrajectoryRequest) (*msgs.TrajectoryResult, error) {
	if err := validateWaypoints(req.Waypoints); err != nil {
		return nil, err
	}
	p := tp.ik
	logger := p.logger.WithFields("plan_id", uuid.New().String())

	logger.Debugw("planner state", "state", StateSeeding)
	q, hasFloatingBase := ToInternal(p.model, make([]float64, p.model.DoF()), req.RobotState, p.cfg.FloatingBaseName)
	times := []float64{0}
	configs := [][]float64{q}

	failed := -1
	for i, wp := range req.Waypoints {
		targets, err := TargetsFromRequest(wp.TargetLinkNames, wp.TargetPoses)
		if err != nil {
			return nil, err
		}
		res, err := p.solve(ctx, logger.WithFields("waypoint", i), q, targets)
		if err != nil {
			return nil, errors.Wrapf(err, "waypoint %d", i)
		}
		if outcome := ik.ClassifyStatus(res.Status); outcome != ik.Success {
			logger.Warnw("IK solve failed",
				"waypoint", i,
				"status", res.Status,
				"outcome", outcome.String(),
				"infeasible_constraints", strings.Join(res.InfeasibleConstraints, " | "),
			)
			failed = i
			break
		}
		q = res.Solution
		times = append(times, wp.TimeFromStart)
		configs = append(configs, q)
	}

	result := &msgs.TrajectoryResult{
		Trajectory:     jointTrajectory(p.model, times, configs),
		IsValid:        failed < 0,
		FailedWaypoint: failed,
	}
	if hasFloatingBase {
		result.MultiDOFTrajectory = floatingBaseTrajectory(p.cfg.FloatingBaseName, times, configs)
	}
	if result.IsValid {
		logger.Debugw("planner state", "state", StateSuccess, "samples", len(times))
	} else {
		logger.Debugw("planner state", "state", StateInfeasible, "failed_waypoint", failed)
	}
	return result, nil
}

// jointTrajectory samples the single degree of freedom joints of the model.
func jointTrajectory(model KinematicModel, times []float64, configs [][]float64) msgs.JointTrajectory {
	names := model.JointNames()
	indices := make([]int, 0, len(names))
	for _, name := range names {
		idx, _ := model.JointIndex(name)
		indices = append(indices, idx)
	}
	velocities, accelerations := Differentiate(times, configs)
	pick := func(q []float64) []float64 {
		out := make([]float64, 0, len(indices))
		for _, idx := range indices {
			out = append(out, q[idx])
		}
		return out
	}

	traj := msgs.JointTrajectory{JointNames: names}
	for i := range times {
		traj.Points = append(traj.Points, msgs.JointTrajectoryPoint{
			Positions:     pick(configs[i]),
			Velocities:    pick(velocities[i]),
			Accelerations: pick(accelerations[i]),
			TimeFromStart: times[i],
		})
	}
	return traj
}

func floatingBaseTrajectory(name string, times []float64, configs [][]float64) *msgs.MultiDOFJointTrajectory {
	traj := &msgs.MultiDOFJointTrajectory{JointNames: []string{name}}
	for i, q := range configs {
		traj.Points = append(traj.Points, msgs.MultiDOFJointTrajectoryPoint{
			Transforms:    []msgs.Transform{FloatingBaseTransform(q)},
			TimeFromStart: times[i],
		})
	}
	return traj
}

// Differentiate estimates the first and second time derivatives of configs sampled at times. Interior samples use
// central differences over the neighbouring samples; the first and last samples are at rest.
func Differentiate(times []float64, configs [][]float64) ([][]float64, [][]float64) {
	n := len(configs)
	velocities := make([][]float64, n)
	accelerations := make([][]float64, n)
	for i, q := range configs {
		velocities[i] = make([]float64, len(q))
		accelerations[i] = make([]float64, len(q))
		if i == 0 || i == n-1 {
			continue
		}
		span := times[i+1] - times[i-1]
		floats.SubTo(velocities[i], configs[i+1], configs[i-1])
		floats.Scale(1/span, velocities[i])

		ahead := floats.SubTo(make([]float64, len(q)), configs[i+1], q)
		floats.Scale(1/(times[i+1]-times[i]), ahead)
		behind := floats.SubTo(make([]float64, len(q)), q, configs[i-1])
		floats.Scale(1/(times[i]-times[i-1]), behind)
		floats.SubTo(accelerations[i], ahead, behind)
		floats.Scale(2/span, accelerations[i])
	}
	return velocities, accelerations
}
