// Package msgs defines the request and response messages exchanged with the whole-body planners. The layouts follow
// the ROS message definitions of the same names so they can be produced from, and fed back to, ROS tooling.
package msgs

import (
	"encoding/json"
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"
)

// Time is a ROS timestamp.
type Time struct {
	Secs  int64 `json:"secs"`
	Nsecs int64 `json:"nsecs"`
}

// Header carries the frame and timestamp of stamped messages.
type Header struct {
	Seq     uint32 `json:"seq"`
	Stamp   Time   `json:"stamp"`
	FrameID string `json:"frame_id"`
}

// Vector3 is a free vector or translation in meters.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Point is a position in meters.
type Point = Vector3

// ToR3 converts the vector to an r3.Vector.
func (v Vector3) ToR3() r3.Vector {
	return r3.Vector{X: v.X, Y: v.Y, Z: v.Z}
}

// Vector3FromR3 converts an r3.Vector.
func Vector3FromR3(v r3.Vector) Vector3 {
	return Vector3{X: v.X, Y: v.Y, Z: v.Z}
}

// Quaternion is an orientation in x, y, z, w order. The all-zero quaternion means "unspecified".
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// IsZero reports whether every component is zero.
func (q Quaternion) IsZero() bool {
	return q == Quaternion{}
}

// ToQuat converts the quaternion to a gonum quaternion.
func (q Quaternion) ToQuat() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

// QuaternionFromQuat converts a gonum quaternion.
func QuaternionFromQuat(q quat.Number) Quaternion {
	return Quaternion{X: q.Imag, Y: q.Jmag, Z: q.Kmag, W: q.Real}
}

// Pose is a position and orientation.
type Pose struct {
	Position    Point      `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// PoseStamped is a pose with a header.
type PoseStamped struct {
	Header Header `json:"header"`
	Pose   Pose   `json:"pose"`
}

// Transform is a rigid transform.
type Transform struct {
	Translation Vector3    `json:"translation"`
	Rotation    Quaternion `json:"rotation"`
}

// JointState holds single degree of freedom joint values. Name, Position, Velocity and Effort are parallel; the
// last two may be empty.
type JointState struct {
	Header   Header    `json:"header"`
	Name     []string  `json:"name"`
	Position []float64 `json:"position"`
	Velocity []float64 `json:"velocity,omitempty"`
	Effort   []float64 `json:"effort,omitempty"`
}

// MultiDOFJointState holds the transforms of multi degree of freedom joints, such as a floating base.
type MultiDOFJointState struct {
	Header     Header      `json:"header"`
	JointNames []string    `json:"joint_names"`
	Transforms []Transform `json:"transforms"`
}

// Transform returns the transform of the named joint.
func (s *MultiDOFJointState) Transform(name string) (Transform, bool) {
	for i, jointName := range s.JointNames {
		if jointName == name && i < len(s.Transforms) {
			return s.Transforms[i], true
		}
	}
	return Transform{}, false
}

// SetTransform replaces the transform of the named joint, or appends it when the joint is not present.
func (s *MultiDOFJointState) SetTransform(name string, tf Transform) {
	for i, jointName := range s.JointNames {
		if jointName == name && i < len(s.Transforms) {
			s.Transforms[i] = tf
			return
		}
	}
	s.JointNames = append(s.JointNames, name)
	s.Transforms = append(s.Transforms, tf)
}

// RobotState is the state of a whole robot.
type RobotState struct {
	JointState         JointState         `json:"joint_state"`
	MultiDOFJointState MultiDOFJointState `json:"multi_dof_joint_state"`
}

// Clone returns a deep copy of the state.
func (rs RobotState) Clone() RobotState {
	out := rs
	out.JointState.Name = cloneSlice(rs.JointState.Name)
	out.JointState.Position = cloneSlice(rs.JointState.Position)
	out.JointState.Velocity = cloneSlice(rs.JointState.Velocity)
	out.JointState.Effort = cloneSlice(rs.JointState.Effort)
	out.MultiDOFJointState.JointNames = cloneSlice(rs.MultiDOFJointState.JointNames)
	out.MultiDOFJointState.Transforms = cloneSlice(rs.MultiDOFJointState.Transforms)
	return out
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}

// IKRequest asks for a configuration that places each named link at the pose of the same index.
type IKRequest struct {
	RobotState      RobotState    `json:"robot_state"`
	TargetLinkNames []string      `json:"target_link_names"`
	TargetPoses     []PoseStamped `json:"target_poses"`
}

// IKResult is the answer to an IKRequest. When IsValid is false ResultState echoes the request state.
type IKResult struct {
	ResultState RobotState `json:"result_state"`
	IsValid     bool       `json:"is_valid"`
}

// TrajectoryWaypoint is one set of link targets to be reached TimeFromStart seconds into a trajectory.
type TrajectoryWaypoint struct {
	TimeFromStart   float64       `json:"time_from_start"`
	TargetLinkNames []string      `json:"target_link_names"`
	TargetPoses     []PoseStamped `json:"target_poses"`
}

// TrajectoryRequest asks for a trajectory through waypoints in time order, starting from RobotState.
type TrajectoryRequest struct {
	RobotState RobotState           `json:"robot_state"`
	Waypoints  []TrajectoryWaypoint `json:"waypoints"`
}

// JointTrajectoryPoint is one sample of a JointTrajectory.
type JointTrajectoryPoint struct {
	Positions     []float64 `json:"positions"`
	Velocities    []float64 `json:"velocities"`
	Accelerations []float64 `json:"accelerations"`
	TimeFromStart float64   `json:"time_from_start"`
}

// JointTrajectory samples single degree of freedom joints over time.
type JointTrajectory struct {
	Header     Header                 `json:"header"`
	JointNames []string               `json:"joint_names"`
	Points     []JointTrajectoryPoint `json:"points"`
}

// MultiDOFJointTrajectoryPoint is one sample of a MultiDOFJointTrajectory.
type MultiDOFJointTrajectoryPoint struct {
	Transforms    []Transform `json:"transforms"`
	TimeFromStart float64     `json:"time_from_start"`
}

// MultiDOFJointTrajectory samples multi degree of freedom joints over time.
type MultiDOFJointTrajectory struct {
	Header     Header                         `json:"header"`
	JointNames []string                       `json:"joint_names"`
	Points     []MultiDOFJointTrajectoryPoint `json:"points"`
}

// TrajectoryResult is the answer to a TrajectoryRequest. FailedWaypoint is the index of the first waypoint that
// could not be reached, or -1.
type TrajectoryResult struct {
	Trajectory         JointTrajectory          `json:"trajectory"`
	MultiDOFTrajectory *MultiDOFJointTrajectory `json:"multi_dof_trajectory,omitempty"`
	IsValid            bool                     `json:"is_valid"`
	FailedWaypoint     int                      `json:"failed_waypoint"`
}

// ReadJSONFile decodes a JSON file into v.
func ReadJSONFile(path string, v interface{}) error {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "cannot read %q", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "cannot decode %q", path)
	}
	return nil
}
