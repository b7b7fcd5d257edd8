package referenceframe

import (
	"github.com/pkg/errors"
)

// World is the name of the implicit fixed frame every model is rooted in.
const World = "world"

// ErrNoModelInformation is used when there is no model information.
var ErrNoModelInformation = errors.New("no model information")

// NewIncorrectDoFError returns an error indicating that the length of a configuration does not match the
// number of degrees of freedom of the model it was used with.
func NewIncorrectDoFError(actual, expected int) error {
	return errors.Errorf("number of inputs does not match degrees of freedom. Expected %d, got %d", expected, actual)
}

// NewReservedWordError returns an error indicating that a reserved name was used for a link or joint.
func NewReservedWordError(configType, reservedWord string) error {
	return errors.Errorf("reserved word: cannot name a %s '%s'", configType, reservedWord)
}

// NewDuplicateNameError returns an error indicating that a name was used twice within one model.
func NewDuplicateNameError(configType, name string) error {
	return errors.Errorf("duplicate %s name '%s'", configType, name)
}

// NewLinkMissingError returns an error indicating that a joint references a link that is not in the model.
func NewLinkMissingError(jointName, linkName string) error {
	return errors.Errorf("joint '%s' references unknown link '%s'", jointName, linkName)
}

// NewUnsupportedJointTypeError returns an error indicating that a joint type is not supported.
func NewUnsupportedJointTypeError(jointType string) error {
	return errors.Errorf("unsupported joint type detected: %q", jointType)
}

// newFloatingCoordinateNameError returns an error indicating that a joint of a model with a floating base is named
// like one of the floating base coordinates.
func newFloatingCoordinateNameError(jointName string) error {
	return errors.Errorf("joint '%s' has the name of a floating base coordinate", jointName)
}
