// Package referenceframe defines the kinematic model of a robot: a tree of links connected by joints, the
// mapping between joint names and positions in a configuration vector, and forward kinematics.
package referenceframe

import (
	"github.com/golang/geo/r3"

	"go.viam.com/wholebody/spatialmath"
)

// Model is a kinematic tree. A Model is immutable once parsed and may be shared between goroutines.
type Model struct {
	name string
	// links and joints are ordered so that every joint appears after the joint of its parent link.
	links  []Link
	joints []Joint
	root   int

	linkIndex     map[string]int
	jointIndex    map[string]int
	positionNames []string
	limits        []Limit

	floatingBase string
	basePose     spatialmath.Pose
}

func (m *Model) addJoint(joint Joint, limit Limit) {
	joint.Limit = limit
	joint.PositionIndex = -1
	if n := joint.dof(); n > 0 {
		joint.PositionIndex = len(m.positionNames)
		if joint.Type == FloatingJoint {
			for i, name := range FloatingBasePositionNames {
				m.jointIndex[name] = joint.PositionIndex + i
				m.positionNames = append(m.positionNames, name)
				m.limits = append(m.limits, Unlimited)
			}
		} else {
			m.jointIndex[joint.Name] = joint.PositionIndex
			m.positionNames = append(m.positionNames, joint.Name)
			m.limits = append(m.limits, limit)
		}
	}
	m.joints = append(m.joints, joint)
}

// Name returns the name of this model.
func (m *Model) Name() string {
	return m.name
}

// DoF returns the length of a configuration vector for this model.
func (m *Model) DoF() int {
	return len(m.positionNames)
}

// Limits returns the limits of every position coordinate, in configuration order.
func (m *Model) Limits() []Limit {
	return append([]Limit(nil), m.limits...)
}

// PositionNames returns the name of every position coordinate, in configuration order. The floating base
// coordinates, if any, come first and are named by FloatingBasePositionNames.
func (m *Model) PositionNames() []string {
	return append([]string(nil), m.positionNames...)
}

// JointNames returns the names of the single-DOF joints in configuration order, excluding the floating base.
func (m *Model) JointNames() []string {
	names := make([]string, 0, len(m.positionNames))
	for _, joint := range m.joints {
		if joint.Type != FloatingJoint && joint.PositionIndex >= 0 {
			names = append(names, joint.Name)
		}
	}
	return names
}

// JointIndex returns the configuration index of the named joint or floating base coordinate.
func (m *Model) JointIndex(name string) (int, bool) {
	idx, ok := m.jointIndex[name]
	return idx, ok
}

// FindLinkID returns the id of the named link.
func (m *Model) FindLinkID(name string) (int, bool) {
	idx, ok := m.linkIndex[name]
	return idx, ok
}

// LinkName returns the name of the link with the given id.
func (m *Model) LinkName(id int) string {
	return m.links[id].Name
}

// NumLinks returns the number of links in the model.
func (m *Model) NumLinks() int {
	return len(m.links)
}

// Link returns a copy of the link with the given id.
func (m *Model) Link(id int) Link {
	link := m.links[id]
	link.ContactPoints = append([]r3.Vector(nil), link.ContactPoints...)
	return link
}

// RootLink returns the id of the link attached to the world.
func (m *Model) RootLink() int {
	return m.root
}

// FloatingBase returns the name of the floating base joint, and whether the model has one. When it does, the
// configuration indices 0 to 2 are its translation and 3 to 5 its roll, pitch and yaw.
func (m *Model) FloatingBase() (string, bool) {
	return m.floatingBase, m.floatingBase != ""
}

// AreJointPositionsValid checks whether the given configuration violates any joint limits.
func (m *Model) AreJointPositionsValid(q []float64) bool {
	if len(q) != len(m.limits) {
		return false
	}
	for i, limit := range m.limits {
		if !limit.Contains(q[i]) {
			return false
		}
	}
	return true
}

// ZeroConfiguration returns an all-zero configuration of the right length.
func (m *Model) ZeroConfiguration() []float64 {
	return make([]float64, m.DoF())
}
