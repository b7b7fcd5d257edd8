package ik

import (
	"math"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/wholebody/referenceframe"
	"go.viam.com/wholebody/spatialmath"
	"go.viam.com/wholebody/utils"
)

// defaultFeasibilityTolerance is the largest residual at which a constraint still counts as satisfied.
const defaultFeasibilityTolerance = 1e-6

// residualSize returns how many residual values a constraint produces.
func residualSize(c Constraint) int {
	switch c := c.(type) {
	case PositionConstraint:
		return 3
	case OrientationConstraint:
		if c.Tolerance > 0 {
			return 1
		}
		return 3
	case QuasiStaticConstraint:
		return 1
	default:
		return 0
	}
}

// problem couples a model with a constraint set and lays out the residual vector: the residuals of each constraint
// in input order, followed by one residual per position coordinate for the joint limits. A configuration is
// feasible when every residual is zero.
type problem struct {
	model       KinematicModel
	constraints []Constraint
	limits      []referenceframe.Limit
	offsets     []int
	size        int
}

func newProblem(model KinematicModel, constraints []Constraint) *problem {
	p := &problem{
		model:       model,
		constraints: constraints,
		limits:      model.Limits(),
		offsets:     make([]int, 0, len(constraints)+1),
	}
	for _, c := range constraints {
		p.offsets = append(p.offsets, p.size)
		p.size += residualSize(c)
	}
	p.offsets = append(p.offsets, p.size)
	p.size += len(p.limits)
	return p
}

// residuals fills dst with the residual vector at q.
func (p *problem) residuals(dst, q []float64) error {
	ks, err := p.model.Kinematics(q)
	if err != nil {
		return err
	}
	for i, c := range p.constraints {
		out := dst[p.offsets[i]:p.offsets[i+1]]
		switch c := c.(type) {
		case PositionConstraint:
			positionResidual(out, ks, c)
		case OrientationConstraint:
			orientationResidual(out, ks, c)
		case QuasiStaticConstraint:
			out[0] = quasiStaticResidual(ks, c)
		}
	}
	limitOut := dst[p.offsets[len(p.constraints)]:]
	for i, limit := range p.limits {
		limitOut[i] = q[i] - utils.Clamp(q[i], limit.Min, limit.Max)
	}
	return nil
}

// violated returns the names of the constraints whose residuals exceed tol, in input order. Joint limit violations
// are reported under a single entry.
func (p *problem) violated(r []float64, tol float64) []string {
	var names []string
	for i, c := range p.constraints {
		if utils.MaxAbs(r[p.offsets[i]:p.offsets[i+1]]) > tol {
			names = append(names, c.Name())
		}
	}
	if utils.MaxAbs(r[p.offsets[len(p.constraints)]:]) > tol {
		names = append(names, "JointLimits")
	}
	return names
}

// positionResidual is the displacement of the point from the nearest point of its bounding box.
func positionResidual(dst []float64, ks *referenceframe.KinematicsSnapshot, c PositionConstraint) {
	pt := ks.ForwardKin(c.Link, c.Point).Point()
	dst[0] = pt.X - utils.Clamp(pt.X, c.LowerBound.X, c.UpperBound.X)
	dst[1] = pt.Y - utils.Clamp(pt.Y, c.LowerBound.Y, c.UpperBound.Y)
	dst[2] = pt.Z - utils.Clamp(pt.Z, c.LowerBound.Z, c.UpperBound.Z)
}

// orientationResidual measures the rotation from the target to the current link orientation. With no tolerance it
// is the vector part of that rotation, taken in the hemisphere with a non negative real part so q and -q agree;
// otherwise it is the angle in excess of the tolerance.
func orientationResidual(dst []float64, ks *referenceframe.KinematicsSnapshot, c OrientationConstraint) {
	current := ks.LinkPose(c.Link).Orientation().Quaternion()
	delta := quat.Mul(quat.Conj(spatialmath.Normalize(c.Target)), current)
	if delta.Real < 0 {
		delta = quat.Scale(-1, delta)
	}
	if c.Tolerance > 0 {
		dst[0] = math.Max(0, spatialmath.QuaternionAngle(delta)-c.Tolerance)
		return
	}
	dst[0] = delta.Imag
	dst[1] = delta.Jmag
	dst[2] = delta.Kmag
}

// quasiStaticResidual is the ground-plane distance of the center of mass outside the shrunken support polygon.
func quasiStaticResidual(ks *referenceframe.KinematicsSnapshot, c QuasiStaticConstraint) float64 {
	if !c.Active {
		return 0
	}
	polygon := supportPolygon(ks, c)
	if len(polygon) == 0 {
		return 0
	}
	com, _ := ks.CenterOfMass()
	return DistanceOutsidePolygon(polygon, r2.Point{X: com.X, Y: com.Y})
}

// ConvexHull returns the convex hull of pts in counter-clockwise order, without collinear points.
func ConvexHull(pts []r2.Point) []r2.Point {
	sorted := append([]r2.Point(nil), pts...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})
	if len(sorted) < 3 {
		return dedupe(sorted)
	}
	hull := make([]r2.Point, 0, 2*len(sorted))
	// lower chain then upper chain
	for _, pt := range sorted {
		for len(hull) >= 2 && turn(hull[len(hull)-2], hull[len(hull)-1], pt) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, pt)
	}
	lower := len(hull) + 1
	for i := len(sorted) - 2; i >= 0; i-- {
		pt := sorted[i]
		for len(hull) >= lower && turn(hull[len(hull)-2], hull[len(hull)-1], pt) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, pt)
	}
	return dedupe(hull[:len(hull)-1])
}

func dedupe(pts []r2.Point) []r2.Point {
	out := make([]r2.Point, 0, len(pts))
	for _, pt := range pts {
		if len(out) > 0 && out[len(out)-1] == pt {
			continue
		}
		out = append(out, pt)
	}
	if len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}

func turn(a, b, c r2.Point) float64 {
	return b.Sub(a).Cross(c.Sub(a))
}

// ShrinkPolygon scales polygon vertices about their centroid by factor.
func ShrinkPolygon(polygon []r2.Point, factor float64) []r2.Point {
	if len(polygon) == 0 {
		return nil
	}
	var centroid r2.Point
	for _, pt := range polygon {
		centroid = centroid.Add(pt)
	}
	centroid = centroid.Mul(1 / float64(len(polygon)))
	out := make([]r2.Point, 0, len(polygon))
	for _, pt := range polygon {
		out = append(out, centroid.Add(pt.Sub(centroid).Mul(factor)))
	}
	return out
}

// DistanceOutsidePolygon returns zero when pt lies inside the counter-clockwise convex polygon and its distance to
// the polygon boundary otherwise. Polygons with fewer than three vertices are treated as a segment or a point.
func DistanceOutsidePolygon(polygon []r2.Point, pt r2.Point) float64 {
	switch len(polygon) {
	case 0:
		return 0
	case 1:
		return pt.Sub(polygon[0]).Norm()
	case 2:
		return segmentDistance(polygon[0], polygon[1], pt)
	}
	inside := true
	for i := range polygon {
		if turn(polygon[i], polygon[(i+1)%len(polygon)], pt) < 0 {
			inside = false
			break
		}
	}
	if inside {
		return 0
	}
	best := math.Inf(1)
	for i := range polygon {
		best = math.Min(best, segmentDistance(polygon[i], polygon[(i+1)%len(polygon)], pt))
	}
	return best
}

func segmentDistance(a, b, pt r2.Point) float64 {
	ab := b.Sub(a)
	length2 := ab.Dot(ab)
	if length2 == 0 {
		return pt.Sub(a).Norm()
	}
	t := utils.Clamp(pt.Sub(a).Dot(ab)/length2, 0, 1)
	return pt.Sub(a.Add(ab.Mul(t))).Norm()
}

func supportPolygon(ks *referenceframe.KinematicsSnapshot, c QuasiStaticConstraint) []r2.Point {
	var pts []r2.Point
	for _, group := range c.Contacts {
		linkPose := ks.LinkPose(group.Link)
		for _, pt := range group.Points {
			world := spatialmath.TransformPoint(linkPose, pt)
			pts = append(pts, r2.Point{X: world.X, Y: world.Y})
		}
	}
	if len(pts) == 0 {
		return nil
	}
	return ShrinkPolygon(ConvexHull(pts), c.ShrinkFactor)
}

// SupportPolygon returns the shrunken support polygon of a quasi-static constraint and the center of mass, both
// evaluated at q.
func SupportPolygon(model KinematicModel, q []float64, c QuasiStaticConstraint) ([]r2.Point, r3.Vector, error) {
	ks, err := model.Kinematics(q)
	if err != nil {
		return nil, r3.Vector{}, err
	}
	com, _ := ks.CenterOfMass()
	return supportPolygon(ks, c), com, nil
}
