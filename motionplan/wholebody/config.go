package wholebody

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
)

// Policies for targets whose orientation is the all-zero quaternion.
const (
	// UnspecifiedOrientationIdentity constrains the link to the identity orientation.
	UnspecifiedOrientationIdentity = "identity"
	// UnspecifiedOrientationFree leaves the link orientation unconstrained.
	UnspecifiedOrientationFree = "free"
)

// Solver names accepted by PlannerConfig.Solver.
const (
	SolverAugmentedLagrangian = "augmented_lagrangian"
	SolverNlopt               = "nlopt"
)

// DefaultFloatingBaseName is the multi degree of freedom joint that carries the floating base transform.
const DefaultFloatingBaseName = "world_virtual_joint"

// PlannerConfig configures the whole-body planners.
type PlannerConfig struct {
	// SupportLinks are held at their current pose, and their contact points form the support polygon.
	SupportLinks []string `json:"support_links"`
	// FloatingBaseName names the transform entry in the robot state that holds the floating base pose.
	FloatingBaseName string `json:"floating_base_name"`
	// ShrinkFactor scales the support polygon about its centroid; it must be in (0, 1].
	ShrinkFactor float64 `json:"shrink_factor"`
	// DisableQuasiStatic emits the quasi-static constraint as inactive.
	DisableQuasiStatic bool `json:"disable_quasi_static"`
	// PositionTolerance widens target position bounds by this many meters on each axis. Zero means exact.
	PositionTolerance float64 `json:"position_tolerance"`
	// OrientationTolerance is the angle in radians a target orientation may be missed by. Zero means exact.
	OrientationTolerance float64 `json:"orientation_tolerance"`
	// UnspecifiedOrientation is the policy for targets with an all-zero quaternion.
	UnspecifiedOrientation string `json:"unspecified_orientation"`
	// Solver selects the solver built by NewSolver.
	Solver string `json:"solver"`
}

// NewDefaultPlannerConfig returns the configuration of a biped standing on "l_foot" and "r_foot".
func NewDefaultPlannerConfig() *PlannerConfig {
	return &PlannerConfig{
		SupportLinks:           []string{"l_foot", "r_foot"},
		FloatingBaseName:       DefaultFloatingBaseName,
		ShrinkFactor:           0.9,
		UnspecifiedOrientation: UnspecifiedOrientationIdentity,
		Solver:                 SolverAugmentedLagrangian,
	}
}

// Validate reports every problem with the configuration.
func (cfg *PlannerConfig) Validate() error {
	var err error
	if cfg.FloatingBaseName == "" {
		multierr.AppendInto(&err, errors.New("floating_base_name must not be empty"))
	}
	if cfg.ShrinkFactor <= 0 || cfg.ShrinkFactor > 1 {
		multierr.AppendInto(&err, errors.Errorf("shrink_factor must be in (0, 1], got %v", cfg.ShrinkFactor))
	}
	if cfg.PositionTolerance < 0 {
		multierr.AppendInto(&err, errors.Errorf("position_tolerance must not be negative, got %v", cfg.PositionTolerance))
	}
	if cfg.OrientationTolerance < 0 {
		multierr.AppendInto(&err, errors.Errorf("orientation_tolerance must not be negative, got %v", cfg.OrientationTolerance))
	}
	if !lo.Contains([]string{UnspecifiedOrientationIdentity, UnspecifiedOrientationFree}, cfg.UnspecifiedOrientation) {
		multierr.AppendInto(&err, errors.Errorf("unknown unspecified_orientation policy %q", cfg.UnspecifiedOrientation))
	}
	if !lo.Contains([]string{SolverAugmentedLagrangian, SolverNlopt}, cfg.Solver) {
		multierr.AppendInto(&err, errors.Errorf("unknown solver %q", cfg.Solver))
	}
	for _, name := range cfg.SupportLinks {
		if name == "" {
			multierr.AppendInto(&err, errors.New("support link names must not be empty"))
		}
	}
	for _, name := range lo.FindDuplicates(cfg.SupportLinks) {
		multierr.AppendInto(&err, errors.Errorf("support link %q listed more than once", name))
	}
	return err
}

// FromAttributes decodes an attribute map, such as a parsed JSON object, over the default configuration.
// Unknown keys are rejected.
func FromAttributes(attrs map[string]interface{}) (*PlannerConfig, error) {
	cfg := NewDefaultPlannerConfig()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           cfg,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attrs); err != nil {
		return nil, errors.Wrap(err, "cannot decode planner config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
