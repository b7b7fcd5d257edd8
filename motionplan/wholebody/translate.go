package wholebody

import (
	"github.com/samber/lo"

	"go.viam.com/wholebody/motionplan/ik"
	"go.viam.com/wholebody/msgs"
	"go.viam.com/wholebody/referenceframe"
	"go.viam.com/wholebody/spatialmath"
)

// KinematicModel is the view of a robot model the planners need. *referenceframe.Model satisfies it.
type KinematicModel interface {
	ik.KinematicModel
	FindLinkID(name string) (int, bool)
	Link(id int) referenceframe.Link
	JointIndex(name string) (int, bool)
	JointNames() []string
	FloatingBase() (string, bool)
}

var _ KinematicModel = (*referenceframe.Model)(nil)

// jointIndex returns the configuration index of a named single degree of freedom joint. On a model with a
// floating base, the floating base coordinates are only reachable through the floating base transform.
func jointIndex(model KinematicModel, name string) (int, bool) {
	if _, floating := model.FloatingBase(); floating && lo.Contains(referenceframe.FloatingBasePositionNames, name) {
		return 0, false
	}
	return model.JointIndex(name)
}

// ToInternal writes the joint values of an external robot state into a copy of seed. Joints the model does not
// know, and joints without a position, are skipped; joints missing from the state keep their seed value. When the
// model has a floating base and the state carries a transform named floatingBaseName, its translation is written
// to indices 0 to 2, its roll, pitch and yaw to 3 to 5, and the second result is true.
func ToInternal(model KinematicModel, seed []float64, state msgs.RobotState, floatingBaseName string) ([]float64, bool) {
	q := append([]float64(nil), seed...)
	js := state.JointState
	for i, name := range js.Name {
		if i >= len(js.Position) {
			break
		}
		if idx, ok := jointIndex(model, name); ok && idx < len(q) {
			q[idx] = js.Position[i]
		}
	}

	if _, floating := model.FloatingBase(); !floating || len(q) < 6 {
		return q, false
	}
	tf, ok := state.MultiDOFJointState.Transform(floatingBaseName)
	if !ok {
		return q, false
	}
	rpy := spatialmath.QuatToEulerAngles(tf.Rotation.ToQuat())
	q[0], q[1], q[2] = tf.Translation.X, tf.Translation.Y, tf.Translation.Z
	q[3], q[4], q[5] = rpy.Roll, rpy.Pitch, rpy.Yaw
	return q, true
}

// ToExternal returns a copy of original with every joint the model knows set from solution. When hasFloatingBase
// is set, the floating base transform recomposed from indices 0 to 5 replaces the transform named
// floatingBaseName, or is appended if there is none; otherwise the multi degree of freedom state is left as is.
func ToExternal(
	model KinematicModel,
	solution []float64,
	original msgs.RobotState,
	hasFloatingBase bool,
	floatingBaseName string,
) msgs.RobotState {
	out := original.Clone()
	js := &out.JointState
	for i, name := range js.Name {
		if i >= len(js.Position) {
			break
		}
		if idx, ok := jointIndex(model, name); ok && idx < len(solution) {
			js.Position[i] = solution[idx]
		}
	}
	if hasFloatingBase && len(solution) >= 6 {
		out.MultiDOFJointState.SetTransform(floatingBaseName, FloatingBaseTransform(solution))
	}
	return out
}

// FloatingBaseTransform composes the floating base transform held in the first six entries of q.
func FloatingBaseTransform(q []float64) msgs.Transform {
	rpy := &spatialmath.EulerAngles{Roll: q[3], Pitch: q[4], Yaw: q[5]}
	return msgs.Transform{
		Translation: msgs.Vector3{X: q[0], Y: q[1], Z: q[2]},
		Rotation:    msgs.QuaternionFromQuat(rpy.Quaternion()),
	}
}
