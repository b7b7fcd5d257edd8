package referenceframe

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/wholebody/spatialmath"
)

// JointType is the kind of motion a joint allows between its parent and child links.
type JointType string

// The joint types understood by the model parsers.
const (
	FixedJoint      JointType = "fixed"
	RevoluteJoint   JointType = "revolute"
	ContinuousJoint JointType = "continuous"
	PrismaticJoint  JointType = "prismatic"
	FloatingJoint   JointType = "floating"
)

// floatingDoF is the number of positions of a floating joint: x, y, z, roll, pitch, yaw.
const floatingDoF = 6

// FloatingBasePositionNames are the position names given to the six floating base coordinates, in index order.
var FloatingBasePositionNames = []string{"base_x", "base_y", "base_z", "base_roll", "base_pitch", "base_yaw"}

// Limit represents the limits of motion for a single position coordinate.
type Limit struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Unlimited is the limit of coordinates that are free to take any value.
var Unlimited = Limit{Min: math.Inf(-1), Max: math.Inf(1)}

// Contains reports whether value lies within the limit.
func (l Limit) Contains(value float64) bool {
	return value >= l.Min && value <= l.Max
}

// Joint connects a parent link to a child link. Origin is the pose of the joint frame in the parent link frame
// when the joint is at zero.
type Joint struct {
	Name   string
	Type   JointType
	Parent int
	Child  int
	Origin spatialmath.Pose
	Axis   r3.Vector
	Limit  Limit

	// PositionIndex is the index of the first position coordinate of this joint, or -1 for fixed joints.
	PositionIndex int
}

// dof returns the number of position coordinates of the joint.
func (j *Joint) dof() int {
	switch j.Type {
	case FixedJoint:
		return 0
	case FloatingJoint:
		return floatingDoF
	case RevoluteJoint, ContinuousJoint, PrismaticJoint:
		return 1
	default:
		return 0
	}
}

// motion returns the pose of the child link relative to the joint frame for the given joint positions.
func (j *Joint) motion(positions []float64) spatialmath.Pose {
	switch j.Type {
	case RevoluteJoint, ContinuousJoint:
		return spatialmath.NewPoseFromOrientation(spatialmath.NewR4AAFromAxis(j.Axis, positions[0]))
	case PrismaticJoint:
		return spatialmath.NewPoseFromPoint(j.Axis.Mul(positions[0]))
	case FloatingJoint:
		return spatialmath.NewPose(
			r3.Vector{X: positions[0], Y: positions[1], Z: positions[2]},
			&spatialmath.EulerAngles{Roll: positions[3], Pitch: positions[4], Yaw: positions[5]},
		)
	case FixedJoint:
	}
	return spatialmath.NewZeroPose()
}

// Link is a rigid body of the model.
type Link struct {
	Name string
	// Mass in kilograms, CenterOfMass in the link frame.
	Mass         float64
	CenterOfMass r3.Vector
	// ContactPoints are points in the link frame that may touch the ground.
	ContactPoints []r3.Vector

	parentJoint int
}
