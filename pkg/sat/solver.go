package sat

import (
	"context"
	"fmt"
)

type SATSolver interface {
	// Solve returns a solution if the instance is satisfiable and nil if it is not; both are valid outputs where
	// error shall be nil. A cancelled context aborts the search with the context's error.
	Solve(ctx context.Context, instance SAT) (SATSolution, error)
}

const (
	Gophersat = "gophersat"
	Gini      = "gini"
)

var Solvers = []string{Gophersat, Gini}

func NewSolver(name string) (SATSolver, error) {
	switch name {
	case Gophersat, "":
		return NewGophersatSolver(), nil
	case Gini:
		return NewGiniSolver(), nil
	}
	return nil, fmt.Errorf("unknown SAT solver %q, expected one of %v", name, Solvers)
}

// fromModel turns a solver's boolean model, indexed from variable 1, into signed literals
func fromModel(variables uint64, value func(variable int) bool) SATSolution {
	solution := make(SATSolution, 0, variables)
	for variable := 1; variable <= int(variables); variable++ {
		if value(variable) {
			solution = append(solution, int64(variable))
		} else {
			solution = append(solution, -int64(variable))
		}
	}
	return solution
}
