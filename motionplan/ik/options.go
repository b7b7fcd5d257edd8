package ik

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Solver tuning defaults. They are the same for every request; only the matrix sizes depend on the model.
const (
	defaultSmoothnessWeight         = 0.001
	defaultMajorIterationsLimit     = 10000
	defaultIterationsLimit          = 500000
	defaultSuperbasicsLimit         = 1000
	defaultMajorOptimalityTolerance = 2e-4
)

// ErrNilOptions is returned by solvers called without options.
var ErrNilOptions = errors.New("solver options cannot be nil")

// Options configures a solve.
type Options struct {
	// Q weights the squared deviation of the solution from the nominal configuration.
	Q *mat.Dense
	// Qa weights the squared deviation of the solution from the seed configuration.
	Qa *mat.Dense

	// MajorIterationsLimit caps the outer iterations of the solver.
	MajorIterationsLimit int
	// IterationsLimit caps the total number of function evaluations.
	IterationsLimit int
	// SuperbasicsLimit is the largest number of free variables the solver accepts.
	SuperbasicsLimit int
	// MajorOptimalityTolerance is the gradient size below which an inner minimization is considered converged.
	MajorOptimalityTolerance float64
	Debug                    bool
}

// NewOptions returns the solver options for a model with dof position coordinates. Every call returns a new value.
func NewOptions(dof int) *Options {
	q := identity(dof)
	qa := identity(dof)
	if qa != nil {
		qa.Scale(defaultSmoothnessWeight, qa)
	}
	return &Options{
		Q:                        q,
		Qa:                       qa,
		MajorIterationsLimit:     defaultMajorIterationsLimit,
		IterationsLimit:          defaultIterationsLimit,
		SuperbasicsLimit:         defaultSuperbasicsLimit,
		MajorOptimalityTolerance: defaultMajorOptimalityTolerance,
		Debug:                    true,
	}
}

// Validate checks that the options fit a model with dof position coordinates.
func (opts *Options) Validate(dof int) error {
	if opts == nil {
		return ErrNilOptions
	}
	for name, m := range map[string]*mat.Dense{"Q": opts.Q, "Qa": opts.Qa} {
		if m == nil {
			if dof == 0 {
				continue
			}
			return errors.Errorf("%s must be set", name)
		}
		if r, c := m.Dims(); r != dof || c != dof {
			return errors.Errorf("%s is %dx%d, expected %dx%d", name, r, c, dof, dof)
		}
	}
	if opts.MajorIterationsLimit < 1 || opts.IterationsLimit < 1 {
		return errors.New("iteration limits must be positive")
	}
	if opts.MajorOptimalityTolerance <= 0 {
		return errors.New("optimality tolerance must be positive")
	}
	return nil
}

// identity returns an n by n identity matrix; a zero size yields nil since gonum has no empty matrices.
func identity(n int) *mat.Dense {
	if n == 0 {
		return nil
	}
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// quadraticCost returns 0.5 * (x - ref)^T W (x - ref).
func quadraticCost(w *mat.Dense, x, ref []float64) float64 {
	if w == nil {
		return 0
	}
	diff := make([]float64, len(x))
	for i := range x {
		diff[i] = x[i] - ref[i]
	}
	d := mat.NewVecDense(len(diff), diff)
	return 0.5 * mat.Inner(d, w, d)
}

// quadraticGrad adds the gradient of quadraticCost, 0.5 * (W + W^T) (x - ref), to dst.
func quadraticGrad(dst []float64, w *mat.Dense, x, ref []float64) {
	if w == nil {
		return
	}
	diff := make([]float64, len(x))
	for i := range x {
		diff[i] = x[i] - ref[i]
	}
	d := mat.NewVecDense(len(diff), diff)
	var wd, wtd mat.VecDense
	wd.MulVec(w, d)
	wtd.MulVec(w.T(), d)
	for i := range dst {
		dst[i] += 0.5 * (wd.AtVec(i) + wtd.AtVec(i))
	}
}
