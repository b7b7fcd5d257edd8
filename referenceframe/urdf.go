package referenceframe

import (
	"encoding/json"
	"encoding/xml"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/wholebody/spatialmath"
	"go.viam.com/wholebody/utils"
)

// URDFConfig represents all supported fields in a Universal Robot Description Format (URDF) file.
type URDFConfig struct {
	XMLName xml.Name    `xml:"robot"`
	Name    string      `xml:"name,attr"`
	Links   []URDFLink  `xml:"link"`
	Joints  []URDFJoint `xml:"joint"`
}

// URDFLink is a struct which details the XML used in a URDF link element.
type URDFLink struct {
	XMLName   xml.Name        `xml:"link"`
	Name      string          `xml:"name,attr"`
	Inertial  *urdfInertial   `xml:"inertial,omitempty"`
	Collision []urdfCollision `xml:"collision"`
}

// URDFJoint is a struct which details the XML used in a URDF joint element.
type URDFJoint struct {
	XMLName xml.Name   `xml:"joint"`
	Name    string     `xml:"name,attr"`
	Type    string     `xml:"type,attr"`
	Parent  urdfFrame  `xml:"parent"`
	Child   urdfFrame  `xml:"child"`
	Origin  *urdfPose  `xml:"origin,omitempty"`
	Axis    *urdfAxis  `xml:"axis,omitempty"`
	Limit   *urdfLimit `xml:"limit,omitempty"`
}

type urdfFrame struct {
	Link string `xml:"link,attr"`
}

type urdfLimit struct {
	Lower float64 `xml:"lower,attr"` // translation limits are in meters, revolute limits are in radians
	Upper float64 `xml:"upper,attr"`
}

type urdfAxis struct {
	XYZ string `xml:"xyz,attr"`
}

type urdfPose struct {
	RPY string `xml:"rpy,attr"` // Fixed frame angle "r p y" format, in radians
	XYZ string `xml:"xyz,attr"` // "x y z" format, in meters
}

type urdfInertial struct {
	Origin *urdfPose `xml:"origin,omitempty"`
	Mass   *struct {
		Value float64 `xml:"value,attr"`
	} `xml:"mass,omitempty"`
}

type urdfCollision struct {
	Origin   *urdfPose `xml:"origin,omitempty"`
	Geometry struct {
		Box *struct {
			Size string `xml:"size,attr"`
		} `xml:"box,omitempty"`
		Sphere *struct {
			Radius float64 `xml:"radius,attr"`
		} `xml:"sphere,omitempty"`
	} `xml:"geometry"`
}

func (p *urdfPose) toConfig() (*PoseConfig, error) {
	if p == nil {
		return nil, nil
	}
	xyz, err := parseTriple(p.XYZ)
	if err != nil {
		return nil, errors.Wrap(err, "bad origin xyz")
	}
	rpy, err := parseTriple(p.RPY)
	if err != nil {
		return nil, errors.Wrap(err, "bad origin rpy")
	}
	return &PoseConfig{
		Translation: r3.Vector{X: xyz[0], Y: xyz[1], Z: xyz[2]},
		RPY:         spatialmath.EulerAngles{Roll: rpy[0], Pitch: rpy[1], Yaw: rpy[2]},
	}, nil
}

// contactPoints returns the corners of box collisions and the centers of sphere collisions in the link frame.
func (c *urdfCollision) contactPoints() ([]r3.Vector, error) {
	originCfg, err := c.Origin.toConfig()
	if err != nil {
		return nil, err
	}
	origin := originCfg.ParseConfig()
	switch {
	case c.Geometry.Box != nil:
		dims, err := parseTriple(c.Geometry.Box.Size)
		if err != nil {
			return nil, errors.Wrap(err, "bad box size")
		}
		pts := make([]r3.Vector, 0, 8)
		for _, sx := range []float64{-1, 1} {
			for _, sy := range []float64{-1, 1} {
				for _, sz := range []float64{-1, 1} {
					corner := r3.Vector{X: sx * dims[0] / 2, Y: sy * dims[1] / 2, Z: sz * dims[2] / 2}
					pts = append(pts, spatialmath.TransformPoint(origin, corner))
				}
			}
		}
		return pts, nil
	case c.Geometry.Sphere != nil:
		return []r3.Vector{origin.Point()}, nil
	default:
		return nil, nil
	}
}

// ParseURDFFile will read a given file and parse the contained URDF XML data into a Model.
func ParseURDFFile(filename, modelName, floatingBase string) (*Model, error) {
	xmlData, err := utils.ReadFileLimited(filename, maxModelFileSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read URDF file")
	}

	mc, err := ConvertURDFToConfig(xmlData, modelName, floatingBase)
	if err != nil {
		return nil, err
	}

	return mc.ParseConfig(modelName)
}

// ConvertURDFToConfig will transfer the given URDF XML data into an equivalent ModelConfigJSON. A fixed joint whose
// parent is the "world" link becomes the base pose of the model; floatingBase, when not empty, attaches the root link
// to the world through a six-DOF joint of that name instead.
func ConvertURDFToConfig(xmlData []byte, modelName, floatingBase string) (*ModelConfigJSON, error) {
	// empty data probably means that the read URDF has no actionable information
	if len(xmlData) == 0 {
		return nil, ErrNoModelInformation
	}

	urdf := &URDFConfig{}
	if err := xml.Unmarshal(xmlData, urdf); err != nil {
		return nil, errors.Wrap(err, "failed to convert URDF data to equivalent URDFConfig struct")
	}

	if modelName == "" {
		modelName = urdf.Name
	}
	mc := &ModelConfigJSON{
		Name:         modelName,
		FloatingBase: floatingBase,
		OriginalFile: &ModelFile{Bytes: xmlData, Extension: "urdf"},
	}

	for _, linkElem := range urdf.Links {
		if linkElem.Name == World {
			continue
		}
		link := LinkConfig{ID: linkElem.Name}
		if linkElem.Inertial != nil {
			if linkElem.Inertial.Mass != nil {
				link.Mass = linkElem.Inertial.Mass.Value
			}
			origin, err := linkElem.Inertial.Origin.toConfig()
			if err != nil {
				return nil, errors.Wrapf(err, "link '%s' inertial", linkElem.Name)
			}
			if origin != nil {
				link.CenterOfMass = origin.Translation
			}
		}
		for _, coll := range linkElem.Collision {
			pts, err := coll.contactPoints()
			if err != nil {
				return nil, errors.Wrapf(err, "link '%s' collision", linkElem.Name)
			}
			link.ContactPoints = append(link.ContactPoints, pts...)
		}
		mc.Links = append(mc.Links, link)
	}

	for _, jointElem := range urdf.Joints {
		origin, err := jointElem.Origin.toConfig()
		if err != nil {
			return nil, errors.Wrapf(err, "joint '%s'", jointElem.Name)
		}
		if jointElem.Parent.Link == World {
			if JointType(jointElem.Type) != FixedJoint || floatingBase != "" {
				return nil, errors.Errorf("joint '%s' attaches to world; only a fixed joint without a floating base is supported",
					jointElem.Name)
			}
			mc.BasePose = origin
			continue
		}

		if floatingBase != "" && lo.Contains(FloatingBasePositionNames, jointElem.Name) {
			return nil, newFloatingCoordinateNameError(jointElem.Name)
		}

		joint := JointConfig{
			ID:     jointElem.Name,
			Type:   jointElem.Type,
			Parent: jointElem.Parent.Link,
			Child:  jointElem.Child.Link,
			Origin: origin,
		}
		switch JointType(jointElem.Type) {
		case RevoluteJoint, ContinuousJoint, PrismaticJoint:
			// the URDF default axis
			joint.Axis = r3.Vector{X: 1}
			if jointElem.Axis != nil {
				axis, err := parseTriple(jointElem.Axis.XYZ)
				if err != nil {
					return nil, errors.Wrapf(err, "joint '%s' axis", jointElem.Name)
				}
				joint.Axis = r3.Vector{X: axis[0], Y: axis[1], Z: axis[2]}
			}
			if jointElem.Limit != nil && JointType(jointElem.Type) != ContinuousJoint {
				lower, upper := jointElem.Limit.Lower, jointElem.Limit.Upper
				joint.Min, joint.Max = &lower, &upper
			}
		case FixedJoint:
		default:
			return nil, NewUnsupportedJointTypeError(jointElem.Type)
		}
		mc.Joints = append(mc.Joints, joint)
	}

	return mc, nil
}

// ParseModelFile reads a model from a .urdf or .json file. A non-empty floatingBase overrides the one in a json file.
func ParseModelFile(filename, floatingBase string) (*Model, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".urdf", ".xml":
		return ParseURDFFile(filename, "", floatingBase)
	case ".json":
		jsonData, err := utils.ReadFileLimited(filename, maxModelFileSize)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read json file")
		}
		if len(jsonData) == 0 {
			return nil, ErrNoModelInformation
		}
		m := &ModelConfigJSON{OriginalFile: &ModelFile{Bytes: jsonData, Extension: "json"}}
		if err := json.Unmarshal(jsonData, m); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal json file")
		}
		if floatingBase != "" {
			m.FloatingBase = floatingBase
		}
		return m.ParseConfig("")
	default:
		return nil, errors.Errorf("unsupported model file extension %q, expected .urdf or .json", filepath.Ext(filename))
	}
}

// parseTriple splits a space-delimited "a b c" attribute into three floats. An empty string is three zeros.
func parseTriple(s string) ([3]float64, error) {
	var out [3]float64
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return out, nil
	}
	if len(fields) != 3 {
		return out, errors.Errorf("expected 3 values, got %q", s)
	}
	for i, field := range fields {
		value, err := strconv.ParseFloat(field, 64)
		if err != nil || math.IsNaN(value) {
			return out, errors.Errorf("invalid number %q", field)
		}
		out[i] = value
	}
	return out, nil
}
