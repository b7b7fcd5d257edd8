package ik

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Constraint is one of PositionConstraint, OrientationConstraint or QuasiStaticConstraint. The set is closed: solvers
// switch over the concrete types, and no other package can add a variant.
type Constraint interface {
	// Name identifies the constraint in infeasibility reports.
	Name() string
	isConstraint()
}

// PositionConstraint bounds the world position of a point fixed in a link frame to the box [LowerBound, UpperBound].
// Equal bounds pin the point exactly.
type PositionConstraint struct {
	Link       int
	LinkName   string
	Point      r3.Vector
	LowerBound r3.Vector
	UpperBound r3.Vector
}

// Name returns the diagnostic name of the constraint.
func (c PositionConstraint) Name() string {
	return fmt.Sprintf("WorldPositionConstraint(%s)", c.LinkName)
}

func (PositionConstraint) isConstraint() {}

// OrientationConstraint requires the world orientation of a link to be within Tolerance radians of Target.
type OrientationConstraint struct {
	Link      int
	LinkName  string
	Target    quat.Number
	Tolerance float64
}

// Name returns the diagnostic name of the constraint.
func (c OrientationConstraint) Name() string {
	return fmt.Sprintf("WorldQuatConstraint(%s)", c.LinkName)
}

func (OrientationConstraint) isConstraint() {}

// ContactGroup is a set of contact points, in the frame of one link.
type ContactGroup struct {
	Link     int
	LinkName string
	Points   []r3.Vector
}

// QuasiStaticConstraint requires the ground projection of the center of mass to stay inside the convex hull of the
// contact points after it has been scaled about its centroid by ShrinkFactor. An inactive constraint is always met.
type QuasiStaticConstraint struct {
	Contacts     []ContactGroup
	ShrinkFactor float64
	Active       bool
}

// Name returns the diagnostic name of the constraint.
func (c QuasiStaticConstraint) Name() string {
	return "QuasiStaticConstraint"
}

func (QuasiStaticConstraint) isConstraint() {}

// ConstraintNames returns the name of each constraint, in order.
func ConstraintNames(constraints []Constraint) []string {
	names := make([]string, 0, len(constraints))
	for _, c := range constraints {
		names = append(names, c.Name())
	}
	return names
}
