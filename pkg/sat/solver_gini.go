package sat

import (
	"context"
	"time"

	"github.com/go-air/gini"
	"github.com/go-air/gini/z"
)

// pollInterval bounds how long a cancelled search keeps running
const pollInterval = 20 * time.Millisecond

type giniSolver struct{}

func NewGiniSolver() SATSolver {
	return &giniSolver{}
}

func (*giniSolver) Solve(ctx context.Context, instance SAT) (SATSolution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g := gini.New()
	for _, clause := range instance.Clauses {
		for _, literal := range clause {
			g.Add(z.Dimacs2Lit(int(literal)))
		}
		g.Add(z.LitNull)
	}

	search := g.GoSolve()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			search.Stop()
			return nil, ctx.Err()
		case <-ticker.C:
		}

		result, done := search.Test()
		if !done {
			continue
		}
		if result != 1 {
			return nil, nil
		}
		return fromModel(instance.Variables, func(variable int) bool {
			return variable <= int(g.MaxVar()) && g.Value(z.Dimacs2Lit(variable))
		}), nil
	}
}
