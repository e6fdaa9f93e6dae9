package generator

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/limaJavier/timetable-engine/pkg/evaluator"
	"github.com/limaJavier/timetable-engine/pkg/model"
	"github.com/limaJavier/timetable-engine/pkg/sat"
	"go.uber.org/zap"
)

// ShortfallWeight is what every period left unassigned adds to a schedule's weighted score
const ShortfallWeight = evaluator.HardWeight

// solution is a finished or partial schedule and its weighted score, shortfall included
type solution struct {
	assignments []model.Assignment
	unassigned  int
	cost        float64
}

var noSolution = solution{cost: math.Inf(1)}

func (s solution) better(other solution) bool {
	if s.cost != other.cost {
		return s.cost < other.cost
	}
	return s.unassigned < other.unassigned
}

// run is the read-only context shared by the strategies of one generation. Only rng is mutable and every
// search branch gets its own run.
type run struct {
	domain    *model.Domain
	units     []unit
	order     []int
	evaluator *evaluator.Evaluator
	budget    int
	rng       *rand.Rand
	solver    sat.SATSolver
	logger    *zap.Logger
}

func (r *run) branch(seed uint64) *run {
	branched := *r
	branched.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return &branched
}

func (r *run) jitter() float64 {
	return r.rng.Float64() * 3
}

func (r *run) score(b *board) solution {
	assignments := b.assignments()
	unassigned := b.unassigned()
	return solution{
		assignments: assignments,
		unassigned:  unassigned,
		cost:        r.evaluator.Score(assignments) + ShortfallWeight*float64(unassigned),
	}
}

// strategy searches for a schedule within the run's iteration budget. It returns the best solution found and the
// iterations spent; on cancellation it stops at the next iteration boundary and returns what it has.
type strategy interface {
	search(ctx context.Context, r *run) (solution, int)
}

var strategies = map[Algorithm]strategy{
	Backtracking:          backtracking{},
	SimulatedAnnealing:    simulatedAnnealing{},
	GeneticSearch:         geneticSearch{},
	ConstraintProgramming: constraintProgramming{},
}

// greedy places the units in the given order at their best open placement, skipping those with none
func greedy(ctx context.Context, b *board, order []int, jitter func() float64) int {
	iterations := 0
	for _, i := range order {
		if ctx.Err() != nil {
			break
		}
		iterations++
		if b.placed[i] {
			continue
		}
		if options := b.options(i, jitter); len(options) > 0 {
			b.place(i, options[0])
		}
	}
	return iterations
}

// firstFit is the fast quality level: one greedy pass in heuristic order
type firstFit struct{}

func (firstFit) search(ctx context.Context, r *run) (solution, int) {
	b := newBoard(r.domain, r.units)
	iterations := greedy(ctx, b, r.order, nil)
	return r.score(b), iterations
}
