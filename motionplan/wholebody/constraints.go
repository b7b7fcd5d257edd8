package wholebody

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/wholebody/motionplan/ik"
	"go.viam.com/wholebody/msgs"
	"go.viam.com/wholebody/spatialmath"
)

// Target is a goal pose for the origin of a link.
type Target struct {
	LinkName string
	Pose     msgs.Pose
}

// TargetsFromRequest pairs the parallel target lists of a request.
func TargetsFromRequest(names []string, poses []msgs.PoseStamped) ([]Target, error) {
	if len(names) != len(poses) {
		return nil, newMismatchedTargetsError(len(names), len(poses))
	}
	targets := make([]Target, 0, len(names))
	for i, name := range names {
		targets = append(targets, Target{LinkName: name, Pose: poses[i].Pose})
	}
	return targets, nil
}

// BuildConstraints returns the constraints of one solve from configuration q, in this order: a position
// constraint per support link, an orientation constraint per support link, the quasi-static constraint over every
// support link's contact points, then a position and an orientation constraint per target.
//
// Support links are pinned exactly to their pose at q. Every link name is resolved before kinematics is evaluated,
// so an unknown name yields a *LinkNotFoundError and no constraints.
func BuildConstraints(model KinematicModel, q []float64, targets []Target, cfg *PlannerConfig) ([]ik.Constraint, error) {
	supportIDs := make([]int, 0, len(cfg.SupportLinks))
	for _, name := range cfg.SupportLinks {
		id, ok := model.FindLinkID(name)
		if !ok {
			return nil, &LinkNotFoundError{Name: name, Role: "support"}
		}
		supportIDs = append(supportIDs, id)
	}
	targetIDs := make([]int, 0, len(targets))
	for _, target := range targets {
		id, ok := model.FindLinkID(target.LinkName)
		if !ok {
			return nil, &LinkNotFoundError{Name: target.LinkName, Role: "target"}
		}
		targetIDs = append(targetIDs, id)
	}

	ks, err := model.Kinematics(q)
	if err != nil {
		return nil, err
	}

	constraints := make([]ik.Constraint, 0, 2*len(supportIDs)+1+2*len(targets))
	for i, id := range supportIDs {
		pos := ks.ForwardKin(id, r3.Vector{}).Point()
		constraints = append(constraints, ik.PositionConstraint{
			Link:       id,
			LinkName:   cfg.SupportLinks[i],
			LowerBound: pos,
			UpperBound: pos,
		})
	}
	for i, id := range supportIDs {
		constraints = append(constraints, ik.OrientationConstraint{
			Link:     id,
			LinkName: cfg.SupportLinks[i],
			Target:   ks.LinkPose(id).Orientation().Quaternion(),
		})
	}

	contacts := make([]ik.ContactGroup, 0, len(supportIDs))
	for i, id := range supportIDs {
		contacts = append(contacts, ik.ContactGroup{
			Link:     id,
			LinkName: cfg.SupportLinks[i],
			Points:   model.Link(id).ContactPoints,
		})
	}
	constraints = append(constraints, ik.QuasiStaticConstraint{
		Contacts:     contacts,
		ShrinkFactor: cfg.ShrinkFactor,
		Active:       !cfg.DisableQuasiStatic,
	})

	slack := r3.Vector{X: cfg.PositionTolerance, Y: cfg.PositionTolerance, Z: cfg.PositionTolerance}
	for i, target := range targets {
		goal := target.Pose.Position.ToR3()
		constraints = append(constraints, ik.PositionConstraint{
			Link:       targetIDs[i],
			LinkName:   target.LinkName,
			LowerBound: goal.Sub(slack),
			UpperBound: goal.Add(slack),
		})
		orientation, constrained := targetOrientation(target.Pose.Orientation, cfg)
		if !constrained {
			continue
		}
		constraints = append(constraints, ik.OrientationConstraint{
			Link:      targetIDs[i],
			LinkName:  target.LinkName,
			Target:    orientation,
			Tolerance: cfg.OrientationTolerance,
		})
	}
	return constraints, nil
}

// targetOrientation resolves the all-zero quaternion according to the configured policy.
func targetOrientation(q msgs.Quaternion, cfg *PlannerConfig) (quat.Number, bool) {
	if !q.IsZero() {
		return spatialmath.Normalize(q.ToQuat()), true
	}
	if cfg.UnspecifiedOrientation == UnspecifiedOrientationFree {
		return quat.Number{}, false
	}
	return quat.Number{Real: 1}, true
}
