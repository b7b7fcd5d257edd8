package ik

// Solver status codes. The numbering follows SNOPT's INFO convention: single digit codes finish successfully, the
// tens report infeasibility, and higher codes report limits and failures.
const (
	// StatusOptimal means the optimality and feasibility conditions were met.
	StatusOptimal = 1
	// StatusAccuracyNotAchieved means a feasible point was found but it could not be confirmed optimal.
	StatusAccuracyNotAchieved = 3
	// StatusInfeasible means the constraints could not be satisfied; the solver minimized their violation instead.
	StatusInfeasible = 13
	// StatusIterationsLimit means the total evaluation budget ran out before a feasible point was found.
	StatusIterationsLimit = 31
	// StatusMajorIterationsLimit means the outer iteration budget ran out before a feasible point was found.
	StatusMajorIterationsLimit = 32
	// StatusSuperbasicsLimit means the problem has more free variables than the superbasics limit.
	StatusSuperbasicsLimit = 33
	// StatusNumericalDifficulties means the current point could not be improved.
	StatusNumericalDifficulties = 41
	// StatusInvalidInput means the problem data could not be evaluated, for example a seed containing NaN.
	StatusInvalidInput = 91
)

// SuccessThreshold is the largest status code that still counts as a successful solve.
const SuccessThreshold = 10

// Outcome is the classification of a raw solver status code.
type Outcome int

// The outcomes of a solve.
const (
	Success Outcome = iota
	Infeasible
	SolverError
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Infeasible:
		return "infeasible"
	case SolverError:
		return "solver error"
	default:
		return "unknown"
	}
}

// ClassifyStatus maps a solver status code to an Outcome. Codes up to SuccessThreshold are successes, codes in the
// tens above it are infeasibility reports, and anything higher is a solver error.
func ClassifyStatus(code int) Outcome {
	switch {
	case code <= SuccessThreshold:
		return Success
	case code < 20:
		return Infeasible
	default:
		return SolverError
	}
}
