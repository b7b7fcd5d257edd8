package wholebody

import (
	"context"
	"sync"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/wholebody/logging"
	"go.viam.com/wholebody/motionplan/ik"
	"go.viam.com/wholebody/msgs"
	"go.viam.com/wholebody/referenceframe"
	"go.viam.com/wholebody/spatialmath"
)

// fakeSolver returns the seed. The status of call i is statuses[i] when present, status otherwise.
type fakeSolver struct {
	mu          sync.Mutex
	status      int
	statuses    []int
	infeasible  []string
	err         error
	calls       int
	seeds       [][]float64
	constraints [][]ik.Constraint
}

func (s *fakeSolver) Solve(
	ctx context.Context,
	model ik.KinematicModel,
	seed, nominal []float64,
	constraints []ik.Constraint,
	opts *ik.Options,
) (*ik.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.seeds = append(s.seeds, append([]float64(nil), seed...))
	s.constraints = append(s.constraints, constraints)
	if s.err != nil {
		return nil, s.err
	}
	status := s.status
	if s.calls <= len(s.statuses) {
		status = s.statuses[s.calls-1]
	}
	return &ik.Result{
		Status:                status,
		Solution:              append([]float64(nil), seed...),
		InfeasibleConstraints: s.infeasible,
	}, nil
}

func armState(shoulder, elbow, wrist, neck float64) msgs.RobotState {
	return msgs.RobotState{JointState: msgs.JointState{
		Name:     []string{"neck_yaw", "wrist_pitch", "elbow_pitch", "shoulder_pitch"},
		Position: []float64{neck, wrist, elbow, shoulder},
	}}
}

func handRequest(state msgs.RobotState, x, y, z float64) *msgs.IKRequest {
	return &msgs.IKRequest{
		RobotState:      state,
		TargetLinkNames: []string{"hand"},
		TargetPoses: []msgs.PoseStamped{{
			Header: msgs.Header{FrameID: "world"},
			Pose:   msgs.Pose{Position: msgs.Point{X: x, Y: y, Z: z}, Orientation: msgs.Quaternion{W: 1}},
		}},
	}
}

func TestPlanReachesHandTarget(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	m := loadHumanoid(t, "")
	planner, err := NewPositionIKPlanner(m, ik.NewAugmentedLagrangianSolver(logger), nil, logger)
	test.That(t, err, test.ShouldBeNil)

	res, ok, err := planner.Plan(context.Background(), handRequest(armState(0, 0, 0, 0), 0.3, 0, 1.0))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, res.IsValid, test.ShouldBeTrue)
	test.That(t, res.ResultState.MultiDOFJointState.JointNames, test.ShouldBeEmpty)
	test.That(t, res.ResultState.MultiDOFJointState.Transforms, test.ShouldBeEmpty)
	test.That(t, logs.FilterMessage("IK solve failed").Len(), test.ShouldEqual, 0)

	q, floating := ToInternal(m, m.ZeroConfiguration(), res.ResultState, DefaultFloatingBaseName)
	test.That(t, floating, test.ShouldBeFalse)
	ks, err := m.Kinematics(q)
	test.That(t, err, test.ShouldBeNil)
	hand, _ := m.FindLinkID("hand")
	pose := ks.LinkPose(hand)
	test.That(t, spatialmath.R3VectorAlmostEqual(pose.Point(), r3.Vector{X: 0.3, Z: 1.0}, 1e-4), test.ShouldBeTrue)

	// states were logged under one plan id
	states := logs.FilterMessage("planner state").All()
	test.That(t, len(states), test.ShouldBeGreaterThanOrEqualTo, 4)
	test.That(t, states[0].ContextMap()["state"], test.ShouldEqual, StateSeeding)
	test.That(t, states[len(states)-1].ContextMap()["state"], test.ShouldEqual, StateSuccess)
	test.That(t, states[len(states)-1].ContextMap()["plan_id"], test.ShouldEqual, states[0].ContextMap()["plan_id"])
}

func TestPlanFloatingBaseReachesHandTarget(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	m := loadHumanoid(t, DefaultFloatingBaseName)
	planner, err := NewPositionIKPlanner(m, ik.NewAugmentedLagrangianSolver(logger), nil, logger)
	test.That(t, err, test.ShouldBeNil)

	state := armState(0, 0, 0, 0)
	state.MultiDOFJointState.SetTransform(DefaultFloatingBaseName, baseTransform(0, 0, 0.9, 0, 0, 0))
	res, ok, err := planner.Plan(context.Background(), handRequest(state, 0.3, 0, 1.0))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, res.IsValid, test.ShouldBeTrue)
	test.That(t, logs.FilterMessage("IK solve failed").Len(), test.ShouldEqual, 0)

	tf, ok := res.ResultState.MultiDOFJointState.Transform(DefaultFloatingBaseName)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, spatialmath.R3VectorAlmostEqual(tf.Translation.ToR3(), r3.Vector{Z: 0.9}, 1e-4), test.ShouldBeTrue)

	seed, _ := ToInternal(m, m.ZeroConfiguration(), state, DefaultFloatingBaseName)
	q, floating := ToInternal(m, m.ZeroConfiguration(), res.ResultState, DefaultFloatingBaseName)
	test.That(t, floating, test.ShouldBeTrue)
	before, err := m.Kinematics(seed)
	test.That(t, err, test.ShouldBeNil)
	after, err := m.Kinematics(q)
	test.That(t, err, test.ShouldBeNil)
	hand, _ := m.FindLinkID("hand")
	test.That(t, spatialmath.R3VectorAlmostEqual(after.LinkPose(hand).Point(), r3.Vector{X: 0.3, Z: 1.0}, 1e-4),
		test.ShouldBeTrue)
	for _, name := range []string{"l_foot", "r_foot"} {
		foot, _ := m.FindLinkID(name)
		test.That(t, spatialmath.PoseAlmostEqualEps(after.LinkPose(foot), before.LinkPose(foot), 1e-4), test.ShouldBeTrue)
	}
}

func TestPlanWithoutMovableJoints(t *testing.T) {
	feet := []r3.Vector{{X: 0.1, Y: 0.05}, {X: 0.1, Y: -0.05}, {X: -0.1, Y: 0.05}, {X: -0.1, Y: -0.05}}
	cfg := &referenceframe.ModelConfigJSON{
		Name:     "statue",
		BasePose: &referenceframe.PoseConfig{Translation: r3.Vector{Z: 0.9}},
		Links: []referenceframe.LinkConfig{
			{ID: "pelvis", Mass: 10},
			{ID: "l_foot", Mass: 1, ContactPoints: feet},
			{ID: "r_foot", Mass: 1, ContactPoints: feet},
		},
		Joints: []referenceframe.JointConfig{
			{ID: "l_leg", Type: "fixed", Parent: "pelvis", Child: "l_foot",
				Origin: &referenceframe.PoseConfig{Translation: r3.Vector{Y: 0.1, Z: -0.9}}},
			{ID: "r_leg", Type: "fixed", Parent: "pelvis", Child: "r_foot",
				Origin: &referenceframe.PoseConfig{Translation: r3.Vector{Y: -0.1, Z: -0.9}}},
		},
	}
	m, err := cfg.ParseConfig("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.DoF(), test.ShouldEqual, 0)

	logger := logging.NewTestLogger(t)
	planner, err := NewPositionIKPlanner(m, ik.NewAugmentedLagrangianSolver(logger), nil, logger)
	test.That(t, err, test.ShouldBeNil)
	state := msgs.RobotState{JointState: msgs.JointState{Name: []string{"l_leg"}, Position: []float64{0.4}}}
	res, ok, err := planner.Plan(context.Background(), &msgs.IKRequest{RobotState: state})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, res.ResultState, test.ShouldResemble, state)
}

func TestPlanIdempotent(t *testing.T) {
	logger := logging.NewTestLogger(t)
	m := loadHumanoid(t, "")
	planner, err := NewPositionIKPlanner(m, ik.NewAugmentedLagrangianSolver(logger), nil, logger)
	test.That(t, err, test.ShouldBeNil)

	state := armState(0.3, -0.4, 0.1, 1.2)
	q, _ := ToInternal(m, m.ZeroConfiguration(), state, DefaultFloatingBaseName)
	ks, err := m.Kinematics(q)
	test.That(t, err, test.ShouldBeNil)
	hand, _ := m.FindLinkID("hand")
	pose := ks.LinkPose(hand)
	req := &msgs.IKRequest{
		RobotState:      state,
		TargetLinkNames: []string{"hand"},
		TargetPoses: []msgs.PoseStamped{{Pose: msgs.Pose{
			Position:    msgs.Vector3FromR3(pose.Point()),
			Orientation: msgs.QuaternionFromQuat(pose.Orientation().Quaternion()),
		}}},
	}

	res, ok, err := planner.Plan(context.Background(), req)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, res.ResultState, test.ShouldResemble, state)

	req.RobotState = res.ResultState
	again, ok, err := planner.Plan(context.Background(), req)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, again.ResultState, test.ShouldResemble, res.ResultState)
}

func TestPlanStatusBoundary(t *testing.T) {
	m := loadHumanoid(t, "")
	for _, tc := range []struct {
		status int
		valid  bool
	}{
		{ik.StatusOptimal, true},
		{ik.StatusAccuracyNotAchieved, true},
		{10, true},
		{11, false},
		{ik.StatusInfeasible, false},
		{19, false},
		{20, false},
		{ik.StatusIterationsLimit, false},
		{ik.StatusInvalidInput, false},
	} {
		logger, logs := logging.NewObservedTestLogger(t)
		solver := &fakeSolver{
			status:     tc.status,
			infeasible: []string{"WorldPositionConstraint(hand)", "QuasiStaticConstraint"},
		}
		planner, err := NewPositionIKPlanner(m, solver, nil, logger)
		test.That(t, err, test.ShouldBeNil)

		req := handRequest(armState(0.1, 0.2, 0.3, 0.4), 0.3, 0, 1.0)
		res, ok, err := planner.Plan(context.Background(), req)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, ok, test.ShouldEqual, tc.valid)
		test.That(t, res.IsValid, test.ShouldEqual, tc.valid)
		test.That(t, solver.calls, test.ShouldEqual, 1)
		test.That(t, res.ResultState, test.ShouldResemble, req.RobotState)

		warnings := logs.FilterMessage("IK solve failed").All()
		if tc.valid {
			test.That(t, warnings, test.ShouldBeEmpty)
			continue
		}
		test.That(t, warnings, test.ShouldHaveLength, 1)
		fields := warnings[0].ContextMap()
		test.That(t, fields["status"], test.ShouldEqual, int64(tc.status))
		test.That(t, fields["infeasible_constraints"], test.ShouldEqual,
			"WorldPositionConstraint(hand) | QuasiStaticConstraint")
	}
}

func TestPlanEchoesStateOnFailure(t *testing.T) {
	m := loadHumanoid(t, DefaultFloatingBaseName)
	planner, err := NewPositionIKPlanner(m, &fakeSolver{status: ik.StatusInfeasible}, nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	state := armState(0.1, 0.2, 0.3, 0.4)
	state.MultiDOFJointState.SetTransform(DefaultFloatingBaseName, baseTransform(0, 0, 0.9, 0, 0, 0))
	res, ok, err := planner.Plan(context.Background(), handRequest(state, 5, 0, 0))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, res.ResultState, test.ShouldResemble, state)

	res.ResultState.JointState.Position[0] = 100
	test.That(t, state.JointState.Position[0], test.ShouldEqual, 0.4)
}

func TestPlanFloatingBasePresence(t *testing.T) {
	m := loadHumanoid(t, DefaultFloatingBaseName)
	solver := &fakeSolver{status: ik.StatusOptimal}
	planner, err := NewPositionIKPlanner(m, solver, nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	// without a floating base transform, none is reported back
	res, ok, err := planner.Plan(context.Background(), handRequest(armState(0, 0, 0, 0), 0.3, 0, 1.0))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, res.ResultState.MultiDOFJointState.JointNames, test.ShouldBeEmpty)

	state := armState(0, 0, 0, 0)
	state.MultiDOFJointState.SetTransform("camera_mount", baseTransform(1, 1, 1, 0, 0, 0))
	state.MultiDOFJointState.SetTransform(DefaultFloatingBaseName, baseTransform(0.2, -0.1, 0.9, 0, 0, 0.5))
	res, ok, err = planner.Plan(context.Background(), handRequest(state, 0.3, 0, 1.0))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, res.ResultState.MultiDOFJointState.JointNames, test.ShouldResemble,
		[]string{"camera_mount", DefaultFloatingBaseName})
	tf, ok := res.ResultState.MultiDOFJointState.Transform(DefaultFloatingBaseName)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, spatialmath.R3VectorAlmostEqual(tf.Translation.ToR3(), r3.Vector{X: 0.2, Y: -0.1, Z: 0.9}, 1e-12),
		test.ShouldBeTrue)
	expected := baseTransform(0, 0, 0, 0, 0, 0.5).Rotation.ToQuat()
	test.That(t, spatialmath.QuaternionAlmostEqual(tf.Rotation.ToQuat(), expected, 1e-9), test.ShouldBeTrue)

	// the seed carried the base pose
	test.That(t, solver.seeds[1][:3], test.ShouldResemble, []float64{0.2, -0.1, 0.9})

	// a model without a floating base ignores the transform
	fixed, err := NewPositionIKPlanner(loadHumanoid(t, ""), solver, nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	res, _, err = fixed.Plan(context.Background(), handRequest(state, 0.3, 0, 1.0))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.ResultState.MultiDOFJointState, test.ShouldResemble, state.MultiDOFJointState)
}

func TestPlanErrors(t *testing.T) {
	m := loadHumanoid(t, "")
	solver := &fakeSolver{status: ik.StatusOptimal}
	planner, err := NewPositionIKPlanner(m, solver, nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	req := handRequest(armState(0, 0, 0, 0), 0.3, 0, 1.0)
	req.TargetPoses = nil
	_, _, err = planner.Plan(context.Background(), req)
	test.That(t, errors.Is(err, ErrMismatchedTargets), test.ShouldBeTrue)

	req = handRequest(armState(0, 0, 0, 0), 0.3, 0, 1.0)
	req.TargetLinkNames = []string{"tail"}
	res, ok, err := planner.Plan(context.Background(), req)
	test.That(t, IsLinkNotFound(err), test.ShouldBeTrue)
	test.That(t, res, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, solver.calls, test.ShouldEqual, 0)

	solver.err = errors.New("boom")
	_, _, err = planner.Plan(context.Background(), handRequest(armState(0, 0, 0, 0), 0.3, 0, 1.0))
	test.That(t, errors.Is(err, solver.err), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "solver failed")

	// cancellation surfaces from the real solver as an error
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	logger := logging.NewTestLogger(t)
	planner, err = NewPositionIKPlanner(m, ik.NewAugmentedLagrangianSolver(logger), nil, logger)
	test.That(t, err, test.ShouldBeNil)
	_, _, err = planner.Plan(ctx, handRequest(armState(0, 0, 0, 0), 0.3, 0, 1.0))
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}

func TestPlanSolverOptions(t *testing.T) {
	m := loadHumanoid(t, DefaultFloatingBaseName)
	var got *ik.Options
	solver := solverFunc(func(model ik.KinematicModel, seed, nominal []float64, opts *ik.Options) {
		got = opts
		test.That(t, nominal, test.ShouldResemble, seed)
	})
	planner, err := NewPositionIKPlanner(m, solver, nil, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	_, ok, err := planner.Plan(context.Background(), handRequest(armState(0, 0, 0, 0), 0.3, 0, 1.0))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, got, test.ShouldResemble, ik.NewOptions(m.DoF()))
}

type solverFunc func(model ik.KinematicModel, seed, nominal []float64, opts *ik.Options)

func (f solverFunc) Solve(
	ctx context.Context,
	model ik.KinematicModel,
	seed, nominal []float64,
	constraints []ik.Constraint,
	opts *ik.Options,
) (*ik.Result, error) {
	f(model, seed, nominal, opts)
	return &ik.Result{Status: ik.StatusOptimal, Solution: seed}, nil
}

func TestNewPositionIKPlanner(t *testing.T) {
	m := loadHumanoid(t, "")
	logger := logging.NewTestLogger(t)
	_, err := NewPositionIKPlanner(nil, &fakeSolver{}, nil, logger)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewPositionIKPlanner(m, nil, nil, logger)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewPositionIKPlanner(m, &fakeSolver{}, nil, nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "logger")

	cfg := NewDefaultPlannerConfig()
	cfg.ShrinkFactor = -1
	_, err = NewPositionIKPlanner(m, &fakeSolver{}, cfg, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "invalid planner config")

	solver, err := NewSolver(NewDefaultPlannerConfig(), logger)
	test.That(t, err, test.ShouldBeNil)
	_, isAL := solver.(*ik.AugmentedLagrangianSolver)
	test.That(t, isAL, test.ShouldBeTrue)

	_, err = NewSolver(&PlannerConfig{Solver: "simplex"}, logger)
	test.That(t, err, test.ShouldNotBeNil)
}
