package generator

import (
	"context"
	"math"

	"go.uber.org/zap"
)

// branchingWidth bounds how many placements a unit tries before it is skipped
const branchingWidth = 3

// backtracking walks the units in heuristic order, trying each unit's best placements and finally leaving it
// unassigned. Its first leaf is the greedy schedule; the rest of the budget goes to branch and bound over the
// shortfall, where a branch whose skipped periods alone outweigh the best schedule is cut. A budget too small
// for the first leaf keeps the units placed so far.
type backtracking struct{}

func (backtracking) search(ctx context.Context, r *run) (solution, int) {
	b := newBoard(r.domain, r.units)
	best := noSolution
	iterations := 0

	var descend func(depth, skipped int) bool
	descend = func(depth, skipped int) bool {
		found := !math.IsInf(best.cost, 1)
		if ctx.Err() != nil || iterations >= r.budget {
			if !found {
				best = r.score(b)
			}
			return false
		}
		if ShortfallWeight*float64(skipped) >= best.cost {
			return true
		}
		if depth == len(r.order) {
			if candidate := r.score(b); candidate.better(best) {
				best = candidate
			}
			return true
		}

		iterations++
		i := r.order[depth]
		options := b.options(i, nil)
		for _, option := range options[:min(branchingWidth, len(options))] {
			b.place(i, option)
			proceed := descend(depth+1, skipped)
			b.remove(i)
			if !proceed {
				return false
			}
		}
		return descend(depth+1, skipped+1)
	}
	descend(0, 0)

	r.logger.Debug("backtracking finished", zap.Int("iterations", iterations), zap.Float64("cost", best.cost))
	return best, iterations
}
