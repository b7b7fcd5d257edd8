package wholebody

import (
	"context"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/wholebody/logging"
	"go.viam.com/wholebody/motionplan/ik"
	"go.viam.com/wholebody/msgs"
	"go.viam.com/wholebody/spatialmath"
)

func handWaypoint(time float64, pt r3.Vector) msgs.TrajectoryWaypoint {
	return msgs.TrajectoryWaypoint{
		TimeFromStart:   time,
		TargetLinkNames: []string{"hand"},
		TargetPoses: []msgs.PoseStamped{{
			Pose: msgs.Pose{Position: msgs.Vector3FromR3(pt), Orientation: msgs.Quaternion{W: 1}},
		}},
	}
}

func TestDifferentiate(t *testing.T) {
	times := []float64{0, 1, 3}
	configs := [][]float64{{0, 2}, {1, 2}, {5, 2}}
	velocities, accelerations := Differentiate(times, configs)

	test.That(t, velocities[0], test.ShouldResemble, []float64{0, 0})
	test.That(t, velocities[2], test.ShouldResemble, []float64{0, 0})
	test.That(t, accelerations[0], test.ShouldResemble, []float64{0, 0})
	test.That(t, accelerations[2], test.ShouldResemble, []float64{0, 0})
	test.That(t, velocities[1][0], test.ShouldAlmostEqual, 5./3)
	test.That(t, velocities[1][1], test.ShouldEqual, 0.)
	test.That(t, accelerations[1][0], test.ShouldAlmostEqual, 2./3)
	test.That(t, accelerations[1][1], test.ShouldEqual, 0.)

	velocities, accelerations = Differentiate([]float64{0}, [][]float64{{1}})
	test.That(t, velocities, test.ShouldResemble, [][]float64{{0}})
	test.That(t, accelerations, test.ShouldResemble, [][]float64{{0}})
}

func TestTrajectoryPlan(t *testing.T) {
	logger := logging.NewTestLogger(t)
	m := loadHumanoid(t, "")
	planner, err := NewTrajectoryPlanner(m, ik.NewAugmentedLagrangianSolver(logger), nil, logger)
	test.That(t, err, test.ShouldBeNil)

	goal := r3.Vector{X: 0.2, Z: 1.1}
	res, err := planner.Plan(context.Background(), &msgs.TrajectoryRequest{
		RobotState: armState(0, 0, 0, 0),
		Waypoints: []msgs.TrajectoryWaypoint{
			handWaypoint(1, r3.Vector{X: 0.3, Z: 1.0}),
			handWaypoint(2.5, goal),
		},
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.IsValid, test.ShouldBeTrue)
	test.That(t, res.FailedWaypoint, test.ShouldEqual, -1)
	test.That(t, res.MultiDOFTrajectory, test.ShouldBeNil)

	traj := res.Trajectory
	test.That(t, traj.JointNames, test.ShouldResemble, m.JointNames())
	test.That(t, traj.Points, test.ShouldHaveLength, 3)
	test.That(t, traj.Points[0].TimeFromStart, test.ShouldEqual, 0.)
	test.That(t, traj.Points[1].TimeFromStart, test.ShouldEqual, 1.)
	test.That(t, traj.Points[2].TimeFromStart, test.ShouldEqual, 2.5)
	test.That(t, traj.Points[0].Positions, test.ShouldResemble, []float64{0, 0, 0, 0})
	test.That(t, traj.Points[0].Velocities, test.ShouldResemble, []float64{0, 0, 0, 0})
	test.That(t, traj.Points[2].Velocities, test.ShouldResemble, []float64{0, 0, 0, 0})
	test.That(t, traj.Points[1].Accelerations, test.ShouldHaveLength, 4)

	last := traj.Points[2].Positions
	ks, err := m.Kinematics(last)
	test.That(t, err, test.ShouldBeNil)
	hand, _ := m.FindLinkID("hand")
	test.That(t, spatialmath.R3VectorAlmostEqual(ks.LinkPose(hand).Point(), goal, 1e-4), test.ShouldBeTrue)
}

func TestTrajectoryFailedWaypoint(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	m := loadHumanoid(t, DefaultFloatingBaseName)
	solver := &fakeSolver{statuses: []int{ik.StatusOptimal, ik.StatusInfeasible}, infeasible: []string{"QuasiStaticConstraint"}}
	planner, err := NewTrajectoryPlanner(m, solver, nil, logger)
	test.That(t, err, test.ShouldBeNil)

	state := armState(0.1, 0, 0, 0)
	state.MultiDOFJointState.SetTransform(DefaultFloatingBaseName, baseTransform(0, 0, 0.9, 0, 0, 0))
	res, err := planner.Plan(context.Background(), &msgs.TrajectoryRequest{
		RobotState: state,
		Waypoints: []msgs.TrajectoryWaypoint{
			handWaypoint(1, r3.Vector{X: 0.3, Z: 1.0}),
			handWaypoint(2, r3.Vector{X: 5}),
			handWaypoint(3, r3.Vector{X: 0.3, Z: 1.0}),
		},
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.IsValid, test.ShouldBeFalse)
	test.That(t, res.FailedWaypoint, test.ShouldEqual, 1)
	test.That(t, solver.calls, test.ShouldEqual, 2)
	test.That(t, res.Trajectory.Points, test.ShouldHaveLength, 2)
	test.That(t, res.MultiDOFTrajectory, test.ShouldNotBeNil)
	test.That(t, res.MultiDOFTrajectory.JointNames, test.ShouldResemble, []string{DefaultFloatingBaseName})
	test.That(t, res.MultiDOFTrajectory.Points, test.ShouldHaveLength, 2)
	test.That(t, res.MultiDOFTrajectory.Points[1].Transforms[0].Translation.Z, test.ShouldAlmostEqual, 0.9)

	// the second waypoint was seeded from the first solution
	test.That(t, solver.seeds[1], test.ShouldResemble, solver.seeds[0])

	warnings := logs.FilterMessage("IK solve failed").All()
	test.That(t, warnings, test.ShouldHaveLength, 1)
	test.That(t, warnings[0].ContextMap()["waypoint"], test.ShouldEqual, int64(1))
	test.That(t, warnings[0].ContextMap()["infeasible_constraints"], test.ShouldEqual, "QuasiStaticConstraint")
}

func TestTrajectoryValidation(t *testing.T) {
	m := loadHumanoid(t, "")
	solver := &fakeSolver{status: ik.StatusOptimal}
	planner, err := NewTrajectoryPlanner(m, solver, nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	_, err = planner.Plan(context.Background(), &msgs.TrajectoryRequest{})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = planner.Plan(context.Background(), &msgs.TrajectoryRequest{Waypoints: []msgs.TrajectoryWaypoint{
		handWaypoint(0, r3.Vector{}),
	}})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = planner.Plan(context.Background(), &msgs.TrajectoryRequest{Waypoints: []msgs.TrajectoryWaypoint{
		handWaypoint(2, r3.Vector{}),
		handWaypoint(1, r3.Vector{}),
	}})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "waypoint 1")

	mismatched := handWaypoint(1, r3.Vector{})
	mismatched.TargetPoses = nil
	_, err = planner.Plan(context.Background(), &msgs.TrajectoryRequest{Waypoints: []msgs.TrajectoryWaypoint{mismatched}})
	test.That(t, errors.Is(err, ErrMismatchedTargets), test.ShouldBeTrue)

	unknown := handWaypoint(1, r3.Vector{})
	unknown.TargetLinkNames = []string{"tail"}
	_, err = planner.Plan(context.Background(), &msgs.TrajectoryRequest{Waypoints: []msgs.TrajectoryWaypoint{unknown}})
	test.That(t, IsLinkNotFound(err), test.ShouldBeTrue)
	test.That(t, solver.calls, test.ShouldEqual, 0)
}
