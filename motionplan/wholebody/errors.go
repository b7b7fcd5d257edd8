package wholebody

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrMismatchedTargets is returned when a request does not carry exactly one pose per target link name.
var ErrMismatchedTargets = errors.New("target link names and target poses must have the same length")

// LinkNotFoundError is returned when a support or target link name is not part of the model.
type LinkNotFoundError struct {
	Name string
	// Role is either "support" or "target".
	Role string
}

func (e *LinkNotFoundError) Error() string {
	return fmt.Sprintf("%s link %q not found in model", e.Role, e.Name)
}

// IsLinkNotFound reports whether err is, or wraps, a LinkNotFoundError.
func IsLinkNotFound(err error) bool {
	var target *LinkNotFoundError
	return errors.As(err, &target)
}

func newMismatchedTargetsError(names, poses int) error {
	return errors.Wrapf(ErrMismatchedTargets, "got %d names and %d poses", names, poses)
}
