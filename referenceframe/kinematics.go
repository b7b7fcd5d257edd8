package referenceframe

import (
	"github.com/golang/geo/r3"

	"go.viam.com/wholebody/spatialmath"
)

// KinematicsSnapshot holds the world pose of every link of a model for one configuration. It is computed once
// and never changes, so any number of callers may query it.
type KinematicsSnapshot struct {
	model     *Model
	q         []float64
	linkPoses []spatialmath.Pose
}

// Kinematics evaluates the world pose of every link for configuration q.
func (m *Model) Kinematics(q []float64) (*KinematicsSnapshot, error) {
	if len(q) != m.DoF() {
		return nil, NewIncorrectDoFError(len(q), m.DoF())
	}
	poses := make([]spatialmath.Pose, len(m.links))
	poses[m.root] = m.basePose
	for i := range m.joints {
		joint := &m.joints[i]
		parent := spatialmath.NewZeroPose()
		if joint.Parent >= 0 {
			parent = poses[joint.Parent]
		}
		var positions []float64
		if joint.PositionIndex >= 0 {
			positions = q[joint.PositionIndex : joint.PositionIndex+joint.dof()]
		}
		poses[joint.Child] = spatialmath.Compose(spatialmath.Compose(parent, joint.Origin), joint.motion(positions))
	}
	return &KinematicsSnapshot{
		model:     m,
		q:         append([]float64(nil), q...),
		linkPoses: poses,
	}, nil
}

// Configuration returns a copy of the configuration the snapshot was computed for.
func (ks *KinematicsSnapshot) Configuration() []float64 {
	return append([]float64(nil), ks.q...)
}

// LinkPose returns the world pose of the link frame.
func (ks *KinematicsSnapshot) LinkPose(link int) spatialmath.Pose {
	return ks.linkPoses[link]
}

// ForwardKin returns the world position of a point given in the link frame, with the orientation of the link.
func (ks *KinematicsSnapshot) ForwardKin(link int, point r3.Vector) spatialmath.Pose {
	linkPose := ks.linkPoses[link]
	return spatialmath.NewPose(spatialmath.TransformPoint(linkPose, point), linkPose.Orientation())
}

// WorldContactPoints returns the contact points of the link expressed in the world frame.
func (ks *KinematicsSnapshot) WorldContactPoints(link int) []r3.Vector {
	local := ks.model.links[link].ContactPoints
	pts := make([]r3.Vector, 0, len(local))
	for _, pt := range local {
		pts = append(pts, spatialmath.TransformPoint(ks.linkPoses[link], pt))
	}
	return pts
}

// CenterOfMass returns the world position of the center of mass of the whole model and its total mass.
// A massless model reports the root link origin.
func (ks *KinematicsSnapshot) CenterOfMass() (r3.Vector, float64) {
	var weighted r3.Vector
	total := 0.
	for i, link := range ks.model.links {
		if link.Mass == 0 {
			continue
		}
		weighted = weighted.Add(spatialmath.TransformPoint(ks.linkPoses[i], link.CenterOfMass).Mul(link.Mass))
		total += link.Mass
	}
	if total == 0 {
		return ks.linkPoses[ks.model.root].Point(), 0
	}
	return weighted.Mul(1 / total), total
}
