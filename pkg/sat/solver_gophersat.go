package sat

import (
	"context"

	"github.com/crillab/gophersat/solver"
	"github.com/samber/lo"
)

type gophersatSolver struct{}

func NewGophersatSolver() SATSolver {
	return &gophersatSolver{}
}

func (gophersat *gophersatSolver) Solve(ctx context.Context, instance SAT) (SATSolution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clauses := lo.Map(instance.Clauses, func(clause []int64, _ int) []int {
		return lo.Map(clause, func(literal int64, _ int) int { return int(literal) })
	})
	problem := solver.ParseSlice(clauses)
	if problem.Status == solver.Unsat {
		return nil, nil
	}

	// gophersat cannot be interrupted, an abandoned search runs to completion in the background
	type result struct {
		status solver.Status
		model  []bool
	}
	done := make(chan result, 1)
	go func() {
		s := solver.New(problem)
		status := s.Solve()
		if status != solver.Sat {
			done <- result{status: status}
			return
		}
		done <- result{status: status, model: s.Model()}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case outcome := <-done:
		if outcome.status != solver.Sat {
			return nil, nil
		}
		return fromModel(instance.Variables, func(variable int) bool {
			// Variables no clause mentions are left out of the model
			return variable <= len(outcome.model) && outcome.model[variable-1]
		}), nil
	}
}
