package referenceframe

import (
	"encoding/json"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"go.viam.com/wholebody/spatialmath"
	"go.viam.com/wholebody/utils"
)

// ModelConfigJSON represents all supported fields in a kinematics JSON file.
type ModelConfigJSON struct {
	Name string `json:"name"`
	// FloatingBase names the six-DOF joint attaching the root link to the world. Empty means the root link is
	// fixed in the world at BasePose.
	FloatingBase string        `json:"floating_base,omitempty"`
	BasePose     *PoseConfig   `json:"base_pose,omitempty"`
	Links        []LinkConfig  `json:"links"`
	Joints       []JointConfig `json:"joints"`
	OriginalFile *ModelFile    `json:"-"`
}

// ModelFile is a struct that stores the raw bytes of the file used to create the model as well as its extension,
// which is useful for knowing how to unmarhsal it.
type ModelFile struct {
	Bytes     []byte
	Extension string
}

// PoseConfig is the json form of a pose: a translation in meters and fixed-axis roll/pitch/yaw in radians.
type PoseConfig struct {
	Translation r3.Vector               `json:"translation"`
	RPY         spatialmath.EulerAngles `json:"rpy"`
}

// ParseConfig converts a PoseConfig into a Pose. A nil config is the zero pose.
func (cfg *PoseConfig) ParseConfig() spatialmath.Pose {
	if cfg == nil {
		return spatialmath.NewZeroPose()
	}
	rpy := cfg.RPY
	return spatialmath.NewPose(cfg.Translation, &rpy)
}

// LinkConfig describes a rigid body.
type LinkConfig struct {
	ID            string      `json:"id"`
	Mass          float64     `json:"mass,omitempty"`
	CenterOfMass  r3.Vector   `json:"center_of_mass,omitempty"`
	ContactPoints []r3.Vector `json:"contact_points,omitempty"`
}

// JointConfig describes a joint between two links. Min and Max are in radians for rotational joints and
// meters for prismatic joints.
type JointConfig struct {
	ID     string      `json:"id"`
	Type   string      `json:"type"`
	Parent string      `json:"parent"`
	Child  string      `json:"child"`
	Origin *PoseConfig `json:"origin,omitempty"`
	Axis   r3.Vector   `json:"axis,omitempty"`
	Min    *float64    `json:"min,omitempty"`
	Max    *float64    `json:"max,omitempty"`
}

func (cfg *JointConfig) limit() Limit {
	limit := Unlimited
	if JointType(cfg.Type) == ContinuousJoint {
		return limit
	}
	if cfg.Min != nil {
		limit.Min = *cfg.Min
	}
	if cfg.Max != nil {
		limit.Max = *cfg.Max
	}
	return limit
}

// UnmarshalModelJSON will parse the given JSON data into a kinematics model. modelName sets the name of the model,
// will use the name from the JSON if string is empty.
func UnmarshalModelJSON(jsonData []byte, modelName string) (*Model, error) {
	m := &ModelConfigJSON{OriginalFile: &ModelFile{Bytes: jsonData, Extension: "json"}}

	// empty data probably means that the robot has no model information
	if len(jsonData) == 0 {
		return nil, ErrNoModelInformation
	}

	if err := json.Unmarshal(jsonData, m); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal json file")
	}

	return m.ParseConfig(modelName)
}

// maxModelFileSize bounds the model files the parsers will read.
const maxModelFileSize = 32 << 20

// ParseModelJSONFile will read a given file and then parse the contained JSON data.
func ParseModelJSONFile(filename, modelName string) (*Model, error) {
	jsonData, err := utils.ReadFileLimited(filename, maxModelFileSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read json file")
	}
	return UnmarshalModelJSON(jsonData, modelName)
}

// Validate checks the config for naming and typing problems, reporting all of them at once.
func (cfg *ModelConfigJSON) Validate() error {
	var err error
	seenLinks := map[string]bool{}
	for _, link := range cfg.Links {
		switch {
		case link.ID == "":
			multierr.AppendInto(&err, errors.New("link with empty id"))
		case link.ID == World:
			multierr.AppendInto(&err, NewReservedWordError("link", World))
		case seenLinks[link.ID]:
			multierr.AppendInto(&err, NewDuplicateNameError("link", link.ID))
		}
		if link.Mass < 0 {
			multierr.AppendInto(&err, errors.Errorf("link '%s' has negative mass", link.ID))
		}
		seenLinks[link.ID] = true
	}

	seenJoints := map[string]bool{}
	if cfg.FloatingBase != "" {
		seenJoints[cfg.FloatingBase] = true
	}
	for _, joint := range cfg.Joints {
		switch {
		case joint.ID == "":
			multierr.AppendInto(&err, errors.New("joint with empty id"))
		case joint.ID == World:
			multierr.AppendInto(&err, NewReservedWordError("joint", World))
		case seenJoints[joint.ID]:
			multierr.AppendInto(&err, NewDuplicateNameError("joint", joint.ID))
		}
		seenJoints[joint.ID] = true
		if cfg.FloatingBase != "" && lo.Contains(FloatingBasePositionNames, joint.ID) {
			multierr.AppendInto(&err, newFloatingCoordinateNameError(joint.ID))
		}

		switch JointType(joint.Type) {
		case FixedJoint:
		case RevoluteJoint, ContinuousJoint, PrismaticJoint:
			if joint.Axis.Norm() == 0 {
				multierr.AppendInto(&err, errors.Errorf("joint '%s' has a zero axis", joint.ID))
			}
		case FloatingJoint:
			multierr.AppendInto(&err, errors.Errorf("joint '%s': floating joints are declared with floating_base", joint.ID))
		default:
			multierr.AppendInto(&err, NewUnsupportedJointTypeError(joint.Type))
		}

		if !seenLinks[joint.Parent] {
			multierr.AppendInto(&err, NewLinkMissingError(joint.ID, joint.Parent))
		}
		if !seenLinks[joint.Child] {
			multierr.AppendInto(&err, NewLinkMissingError(joint.ID, joint.Child))
		}
		if limit := joint.limit(); limit.Min > limit.Max {
			multierr.AppendInto(&err, errors.Errorf("joint '%s' has min %f greater than max %f", joint.ID, limit.Min, limit.Max))
		}
	}
	return err
}

// ParseConfig converts the ModelConfigJSON struct into a full Model with the name modelName.
func (cfg *ModelConfigJSON) ParseConfig(modelName string) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = cfg.Name
	}

	model := &Model{
		name:       modelName,
		linkIndex:  map[string]int{},
		jointIndex: map[string]int{},
		basePose:   cfg.BasePose.ParseConfig(),
	}
	for _, linkCfg := range cfg.Links {
		model.linkIndex[linkCfg.ID] = len(model.links)
		model.links = append(model.links, Link{
			Name:          linkCfg.ID,
			Mass:          linkCfg.Mass,
			CenterOfMass:  linkCfg.CenterOfMass,
			ContactPoints: append([]r3.Vector(nil), linkCfg.ContactPoints...),
			parentJoint:   -1,
		})
	}

	// children of each link, in config order, so the traversal below is deterministic
	children := make([][]int, len(model.links))
	for i, jointCfg := range cfg.Joints {
		parent, child := model.linkIndex[jointCfg.Parent], model.linkIndex[jointCfg.Child]
		if model.links[child].parentJoint >= 0 {
			return nil, errors.Errorf("link '%s' has more than one parent joint", jointCfg.Child)
		}
		model.links[child].parentJoint = i
		children[parent] = append(children[parent], i)
	}

	root := -1
	for i, link := range model.links {
		if link.parentJoint >= 0 {
			continue
		}
		if root >= 0 {
			return nil, errors.Errorf("model has more than one root link: '%s' and '%s'", model.links[root].Name, link.Name)
		}
		root = i
	}
	if root < 0 {
		return nil, errors.New("model has no root link, the joint graph contains a cycle")
	}
	model.root = root

	if cfg.FloatingBase != "" {
		model.floatingBase = cfg.FloatingBase
		model.addJoint(Joint{
			Name:   cfg.FloatingBase,
			Type:   FloatingJoint,
			Parent: -1,
			Child:  root,
			Origin: spatialmath.NewZeroPose(),
		}, Unlimited)
	}

	// breadth first from the root so that every parent pose is computed before its children
	queue := []int{root}
	for len(queue) > 0 {
		link := queue[0]
		queue = queue[1:]
		for _, jointIdx := range children[link] {
			jointCfg := cfg.Joints[jointIdx]
			axis := jointCfg.Axis
			if axis.Norm() > 0 {
				axis = axis.Normalize()
			}
			child := model.linkIndex[jointCfg.Child]
			model.addJoint(Joint{
				Name:   jointCfg.ID,
				Type:   JointType(jointCfg.Type),
				Parent: link,
				Child:  child,
				Origin: jointCfg.Origin.ParseConfig(),
				Axis:   axis,
			}, jointCfg.limit())
			model.links[child].parentJoint = len(model.joints) - 1
			queue = append(queue, child)
		}
	}
	if len(model.joints) != len(cfg.Joints)+btoi(cfg.FloatingBase != "") {
		return nil, errors.New("model joint graph is not a tree")
	}

	return model, nil
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}
